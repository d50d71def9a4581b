package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lu4p/cat"
)

// extractCat extracts text from ODT and RTF content via lu4p/cat. cat only
// reads from the filesystem and dispatches on the extension, so in-memory
// content is staged in a temp file that keeps the original extension.
func extractCat(content []byte, path string) (string, error) {
	tmp, err := os.CreateTemp("", "kotae-extract-*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", filepath.Base(path), err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("stage %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("stage %s: %w", filepath.Base(path), err)
	}
	return cat.File(tmpPath)
}
