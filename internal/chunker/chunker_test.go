package chunker

import (
	"strings"
	"testing"
)

func TestChunk_empty(t *testing.T) {
	c := NewChunker(500, 50)
	if got := c.Chunk(""); got != nil {
		t.Errorf("expected nil for empty text, got %d chunks", len(got))
	}
}

func TestChunk_shortTextSingleChunk(t *testing.T) {
	c := NewChunker(500, 50)
	text := "A short paragraph that fits in one chunk."
	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	ch := chunks[0]
	if ch.ID != 0 || ch.StartPos != 0 || ch.EndPos != len(text) {
		t.Errorf("unexpected chunk bounds: %+v", ch)
	}
	if ch.Text != text {
		t.Errorf("chunk text = %q, want %q", ch.Text, text)
	}
}

func TestChunk_noTerminatorsRawWindows(t *testing.T) {
	// 1200 characters without sentence terminators: no snapping is possible,
	// so windows advance by size-overlap: starts 0, 450, 900.
	text := strings.Repeat("abcdefghij", 120)
	c := NewChunker(500, 50)
	chunks := c.Chunk(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantStarts := []int{0, 450, 900}
	wantLengths := []int{500, 500, 300}
	for i, ch := range chunks {
		if ch.ID != i {
			t.Errorf("chunk %d: id = %d", i, ch.ID)
		}
		if ch.StartPos != wantStarts[i] {
			t.Errorf("chunk %d: start = %d, want %d", i, ch.StartPos, wantStarts[i])
		}
		if ch.Length != wantLengths[i] {
			t.Errorf("chunk %d: length = %d, want %d", i, ch.Length, wantLengths[i])
		}
		if ch.Length != ch.EndPos-ch.StartPos {
			t.Errorf("chunk %d: length %d != end-start %d", i, ch.Length, ch.EndPos-ch.StartPos)
		}
	}
}

func TestChunk_snapsToSentenceBoundary(t *testing.T) {
	// A terminator past the midpoint of the first window: the chunk should
	// end just after it instead of splitting the following sentence.
	sentence := strings.Repeat("x", 399) + "."
	text := sentence + " " + strings.Repeat("y", 600)
	c := NewChunker(500, 50)
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if chunks[0].EndPos != 400 {
		t.Errorf("first chunk end = %d, want 400 (just after terminator)", chunks[0].EndPos)
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Errorf("first chunk should end at the sentence terminator, got %q", chunks[0].Text[len(chunks[0].Text)-10:])
	}
}

func TestChunk_ignoresTerminatorBeforeMidpoint(t *testing.T) {
	// Terminator at position 100 is before the midpoint (250): the window
	// must not shrink below half the chunk size.
	text := strings.Repeat("a", 100) + "." + strings.Repeat("b", 899)
	c := NewChunker(500, 50)
	chunks := c.Chunk(text)
	if chunks[0].EndPos != 500 {
		t.Errorf("first chunk end = %d, want raw window end 500", chunks[0].EndPos)
	}
}

func TestChunk_coverageAndOverlapBounds(t *testing.T) {
	text := "First sentence here. Second sentence follows! Third one asks a question? " +
		strings.Repeat("Filler words to make the text long enough for several windows. ", 40)
	c := NewChunker(500, 50)
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if cur.StartPos > prev.EndPos {
			t.Errorf("gap between chunk %d (end %d) and chunk %d (start %d)", i-1, prev.EndPos, i, cur.StartPos)
		}
		if overlap := prev.EndPos - cur.StartPos; overlap > 50 {
			t.Errorf("overlap between chunks %d and %d is %d, want <= 50", i-1, i, overlap)
		}
		if cur.StartPos <= prev.StartPos {
			t.Errorf("chunk %d does not advance past chunk %d", i, i-1)
		}
	}
	if last := chunks[len(chunks)-1]; last.EndPos != len(text) {
		t.Errorf("last chunk ends at %d, want %d", last.EndPos, len(text))
	}
}

func TestChunk_idempotent(t *testing.T) {
	text := strings.Repeat("Sentences of moderate size keep arriving. ", 60)
	c := NewChunker(500, 50)
	a := c.Chunk(text)
	b := c.Chunk(text)
	if len(a) != len(b) {
		t.Fatalf("re-chunking changed chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestNewChunker_invalidFallsBack(t *testing.T) {
	c := NewChunker(0, -1)
	if c.chunkSize != DefaultChunkSize || c.chunkOverlap != DefaultChunkOverlap {
		t.Errorf("invalid params should fall back to defaults, got size=%d overlap=%d", c.chunkSize, c.chunkOverlap)
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "hello   world\t\tagain and some more", "hello world again and some more"},
		{"drops short artifact lines", "42\nThis line is long enough to keep around.\n- 7 -", "This line is long enough to keep around."},
		{"strips control characters", "a control\x00 character hides in this line", "a control character hides in this line"},
		{"trims result", "   surrounded by space, long enough to keep   ", "surrounded by space, long enough to keep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preprocess(tt.in); got != tt.want {
				t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
