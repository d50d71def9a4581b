// Package extract provides text and metadata extraction from document files.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// ExtractionError reports an unreadable or corrupt source document. Fatal
// for the upload that hit it; the caller does not retry.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor extracts plain text and metadata from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content and metadata.
// PDF documents contribute their info dictionary and page count; for other
// formats the metadata carries the file name as title. Unknown extensions
// are treated as plain text. Returns a *ExtractionError when the file
// cannot be read or parsed.
func (e *Extractor) Extract(path string) (string, models.DocumentMetadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", models.DocumentMetadata{}, &ExtractionError{Path: path, Err: err}
	}
	return e.ExtractBytes(content, path)
}

// ExtractBytes extracts text and metadata from content. The path supplies
// the format (by extension) and the fallback title.
func (e *Extractor) ExtractBytes(content []byte, path string) (string, models.DocumentMetadata, error) {
	meta := models.DocumentMetadata{
		Title:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Author: "Unknown",
	}

	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, meta, err = extractPDF(content, meta)
	case ".docx":
		text, err = extractDOCX(content)
	case ".odt", ".rtf":
		text, err = extractCat(content, path)
	case ".xlsx":
		text, err = extractExcel(content)
	default:
		// .txt, .md, .rst, and anything unrecognized
		text, err = extractPlain(content)
	}
	if err != nil {
		return "", models.DocumentMetadata{}, &ExtractionError{Path: path, Err: err}
	}
	return text, meta, nil
}
