package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtract_plainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("plain text content"), 0600); err != nil {
		t.Fatal(err)
	}
	text, meta, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if text != "plain text content" {
		t.Errorf("text = %q", text)
	}
	if meta.Title != "notes" {
		t.Errorf("title = %q, want %q", meta.Title, "notes")
	}
	if meta.PageCount != 0 {
		t.Errorf("page count = %d, want 0", meta.PageCount)
	}
}

func TestExtract_invalidUTF8Replaced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weird.txt")
	if err := os.WriteFile(path, []byte{'o', 'k', 0xff, 0xfe}, 0600); err != nil {
		t.Fatal(err)
	}
	text, _, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix([]byte(text), []byte("ok")) {
		t.Errorf("text = %q", text)
	}
}

func TestExtract_missingFile(t *testing.T) {
	_, _, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "nope.txt"))
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtract_corruptPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0600); err != nil {
		t.Fatal(err)
	}
	_, _, err := NewExtractor().Extract(path)
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExtractionError for corrupt PDF, got %v", err)
	}
}

func TestExtract_docx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte(`<w:document><w:body><w:p w:rsidR="0"><w:r><w:t>Hello</w:t></w:r>` +
		`<w:r><w:t xml:space="preserve">docx world</w:t></w:r></w:p></w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	text, meta, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello docx world" {
		t.Errorf("text = %q", text)
	}
	if meta.Title != "doc" {
		t.Errorf("title = %q", meta.Title)
	}
}

func TestExtract_unknownExtensionFallsBackToPlain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.log")
	if err := os.WriteFile(path, []byte("log line"), 0600); err != nil {
		t.Fatal(err)
	}
	text, _, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if text != "log line" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractBytes_rtfWithoutSourceFile(t *testing.T) {
	// Uploads arrive as bytes plus a client-side filename that does not
	// exist on disk; cat-backed formats must still extract.
	rtf := `{\rtf1\ansi\deff0{\fonttbl{\f0 Arial;}}\f0 Quarterly revenue grew steadily this year.\par}`
	text, meta, err := NewExtractor().ExtractBytes([]byte(rtf), "report.rtf")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Quarterly revenue grew steadily this year") {
		t.Errorf("text = %q", text)
	}
	if meta.Title != "report" {
		t.Errorf("title = %q", meta.Title)
	}
}
