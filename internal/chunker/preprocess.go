package chunker

import (
	"strings"
	"unicode"
)

// Lines shorter than this after trimming are treated as extraction artifacts
// (page numbers, running headers) and dropped.
const minLineLength = 10

// Preprocess cleans raw extracted text for chunking: drops short artifact
// lines, strips control and other non-printable runes, and collapses all
// whitespace runs to single spaces.
func Preprocess(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) > minLineLength {
			kept = append(kept, line)
		}
	}
	text = strings.Join(kept, " ")

	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case unicode.IsControl(r) || !unicode.IsPrint(r):
			// dropped
		default:
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
