// Package vector provides a per-document similarity index over chunk
// embeddings: build, search, persist, reload, and context-window expansion.
package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

// DefaultScoreThreshold is the minimum similarity for a search hit.
const DefaultScoreThreshold = 0.3

// Index holds the unit-normalized embeddings of one document's chunks and
// answers similarity queries by inner product (equal to cosine similarity
// under normalization). Append-only within a document's lifetime: chunks
// are embedded once at build time and never updated.
type Index struct {
	embedder   embedding.Embedder
	dimensions int
	vectors    [][]float32
	chunks     []models.Chunk // parallel to vectors, ordered by chunk ID
	logger     *zap.Logger    // optional; when set, logs build/load events
	mu         sync.RWMutex
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a logger for debug output and compatibility warnings.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Index) { idx.logger = l }
}

// NewIndex creates an empty index bound to the given embedder.
func NewIndex(embedder embedding.Embedder, opts ...Option) *Index {
	idx := &Index{
		embedder:   embedder,
		dimensions: embedder.Dimensions(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Build embeds all chunk texts in one batch, normalizes the vectors, and
// stores them alongside the chunk records. Returns an embedding.Error when
// any chunk text is empty or the embedder fails. Building replaces any
// previous contents; a fresh index per document is expected.
func (idx *Index) Build(ctx context.Context, chunks []models.Chunk) error {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		if ch.Text == "" {
			return &embedding.Error{Op: "build", Err: fmt.Errorf("chunk %d has empty text", ch.ID)}
		}
		texts[i] = ch.Text
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	for _, v := range vectors {
		if len(v) != idx.dimensions {
			return &embedding.Error{Op: "build", Err: fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), idx.dimensions)}
		}
		embedding.NormalizeL2(v)
	}

	idx.mu.Lock()
	idx.vectors = vectors
	idx.chunks = append([]models.Chunk(nil), chunks...)
	idx.mu.Unlock()

	if idx.logger != nil {
		idx.logger.Debug("index built", zap.Int("chunks", len(chunks)), zap.Int("dimensions", idx.dimensions))
	}
	return nil
}

// Search embeds the query and returns up to k chunks whose similarity is at
// least scoreThreshold, ordered by descending score with ties broken by
// ascending chunk ID. Rank is 1-based among the returned set. An empty
// index yields an empty result, not an error.
func (idx *Index) Search(ctx context.Context, query string, k int, scoreThreshold float64) ([]models.ScoredChunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVec) != idx.dimensions {
		return nil, &embedding.Error{Op: "search", Err: fmt.Errorf("query dimension mismatch: got %d, expected %d", len(queryVec), idx.dimensions)}
	}
	embedding.NormalizeL2(queryVec)

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(idx.vectors))
	for i, vec := range idx.vectors {
		var dot float64
		for j := 0; j < idx.dimensions; j++ {
			dot += float64(queryVec[j] * vec[j])
		}
		scores[i] = scored{pos: i, score: dot}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return idx.chunks[scores[i].pos].ID < idx.chunks[scores[j].pos].ID
	})

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]models.ScoredChunk, 0, k)
	for _, s := range scores[:k] {
		if s.score < scoreThreshold {
			continue
		}
		results = append(results, models.ScoredChunk{
			Chunk: idx.chunks[s.pos],
			Score: s.score,
			Rank:  len(results) + 1,
		})
	}
	return results, nil
}

// ExpandWithContext widens each hit to the chunk IDs in [id-window,
// id+window], clamped to the valid range and deduplicated. The returned
// chunks are in ascending ID order; chunks that were not among the original
// hits are marked IsContext.
func (idx *Index) ExpandWithContext(results []models.ScoredChunk, window int) []models.ScoredChunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(results) == 0 {
		return nil
	}
	hits := make(map[int]models.ScoredChunk, len(results))
	include := make(map[int]bool)
	for _, r := range results {
		hits[r.ID] = r
		lo := r.ID - window
		if lo < 0 {
			lo = 0
		}
		hi := r.ID + window
		if hi > len(idx.chunks)-1 {
			hi = len(idx.chunks) - 1
		}
		for id := lo; id <= hi; id++ {
			include[id] = true
		}
	}

	ids := make([]int, 0, len(include))
	for id := range include {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	expanded := make([]models.ScoredChunk, 0, len(ids))
	for _, id := range ids {
		if hit, ok := hits[id]; ok {
			expanded = append(expanded, hit)
			continue
		}
		expanded = append(expanded, models.ScoredChunk{Chunk: idx.chunks[id], IsContext: true})
	}
	return expanded
}

// Size returns the number of stored vectors.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Chunks returns the stored chunk records in ID order.
func (idx *Index) Chunks() []models.Chunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]models.Chunk(nil), idx.chunks...)
}
