// Package docid derives deterministic document IDs from document content.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// hashLen is the number of hex characters of the content hash kept in the ID.
const hashLen = 12

// FromContent returns a stable document ID combining a human-readable name
// component with a content hash: byte-identical content under the same name
// always yields the same ID, so re-uploads are detected rather than
// duplicated.
func FromContent(name string, content []byte) string {
	sum := sha256.Sum256(content)
	return sanitizeName(name) + "_" + hex.EncodeToString(sum[:])[:hashLen]
}

// sanitizeName reduces a file name to a compact ID-safe component: the base
// name without extension, lowercased, with separators collapsed to dashes.
func sanitizeName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	var b strings.Builder
	b.Grow(len(base))
	lastDash := true
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "doc"
	}
	return out
}
