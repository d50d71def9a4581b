package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/kotae/internal/models"
)

// extractPDF extracts page text and the info dictionary from PDF bytes.
// Missing info entries leave the defaults in meta untouched.
func extractPDF(content []byte, meta models.DocumentMetadata) (string, models.DocumentMetadata, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", meta, fmt.Errorf("open PDF: %w", err)
	}

	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", meta, fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}

	meta.PageCount = numPages
	info := r.Trailer().Key("Info")
	if !info.IsNull() {
		setIfPresent(&meta.Title, info, "Title")
		setIfPresent(&meta.Author, info, "Author")
		setIfPresent(&meta.Subject, info, "Subject")
		setIfPresent(&meta.Creator, info, "Creator")
		setIfPresent(&meta.Producer, info, "Producer")
		setIfPresent(&meta.CreationDate, info, "CreationDate")
		setIfPresent(&meta.ModificationDate, info, "ModDate")
	}
	return buf.String(), meta, nil
}

func setIfPresent(dst *string, info pdf.Value, key string) {
	if v := info.Key(key); v.Kind() == pdf.String {
		if s := v.RawString(); s != "" {
			*dst = s
		}
	}
}
