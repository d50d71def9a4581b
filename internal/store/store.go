// Package store owns the document library: for every ingested document it
// keeps the chunk records, extracted metadata, and a similarity index, backed
// by a SQLite catalog and per-document index artifacts on disk.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// IndexBuildError reports a failure to build or persist a document's index.
// The document is not registered when this is returned.
type IndexBuildError struct {
	DocumentID string
	Err        error
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("failed to build index for document %s: %v", e.DocumentID, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return e.Err }

type record struct {
	info  models.DocumentInfo
	index *vector.Index
}

// Store is the in-memory registry of documents with their indices. All
// mutations go through the catalog and index artifacts first; a document
// appears in the registry only once fully durable.
type Store struct {
	catalog  *Catalog
	embedder embedding.Embedder
	indexDir string
	logger   *zap.Logger

	mu    sync.RWMutex
	docs  map[string]*record
	order []string // insertion order of document IDs
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load warnings and debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store over the given catalog. Index artifacts are
// written under indexDir, one pair of files per document.
func NewStore(catalog *Catalog, embedder embedding.Embedder, indexDir string, opts ...Option) *Store {
	s := &Store{
		catalog:  catalog,
		embedder: embedder,
		indexDir: indexDir,
		logger:   zap.NewNop(),
		docs:     make(map[string]*record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// indexPath returns the artifact path prefix for a document's index.
func (s *Store) indexPath(docID string) string {
	return filepath.Join(s.indexDir, docID)
}

// Has reports whether a document with the given ID is registered.
func (s *Store) Has(docID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[docID]
	return ok
}

// Document returns the registered info for a document.
func (s *Store) Document(docID string) (models.DocumentInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[docID]
	if !ok {
		return models.DocumentInfo{}, false
	}
	return rec.info, true
}

// Chunks returns a document's chunk records in ID order.
func (s *Store) Chunks(docID string) ([]models.Chunk, bool) {
	s.mu.RLock()
	rec, ok := s.docs[docID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return rec.index.Chunks(), true
}

// AddDocument builds a fresh index over the chunks, persists the artifact
// and catalog row, and registers the document. On any failure nothing is
// registered and an *IndexBuildError is returned; partially written disk
// state is left for the next ingest of the same content to overwrite.
func (s *Store) AddDocument(ctx context.Context, docID string, meta models.DocumentMetadata, chunks []models.Chunk) (models.DocumentInfo, error) {
	s.mu.RLock()
	_, exists := s.docs[docID]
	s.mu.RUnlock()
	if exists {
		return models.DocumentInfo{}, fmt.Errorf("document already registered: %s", docID)
	}

	idx := vector.NewIndex(s.embedder, vector.WithLogger(s.logger))
	if err := idx.Build(ctx, chunks); err != nil {
		return models.DocumentInfo{}, &IndexBuildError{DocumentID: docID, Err: err}
	}
	if err := idx.Save(s.indexPath(docID)); err != nil {
		return models.DocumentInfo{}, &IndexBuildError{DocumentID: docID, Err: err}
	}

	info := models.DocumentInfo{
		ID:         docID,
		Metadata:   meta,
		ChunkCount: len(chunks),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.catalog.SaveDocument(ctx, info, chunks); err != nil {
		return models.DocumentInfo{}, &IndexBuildError{DocumentID: docID, Err: fmt.Errorf("catalog write: %w", err)}
	}

	s.mu.Lock()
	s.docs[docID] = &record{info: info, index: idx}
	s.order = append(s.order, docID)
	s.mu.Unlock()

	s.logger.Info("document indexed",
		zap.String("document_id", docID),
		zap.Int("chunks", len(chunks)),
	)
	return info, nil
}

// SearchDocument runs a similarity query against one document's index. An
// unknown document ID yields an empty result, not an error.
func (s *Store) SearchDocument(ctx context.Context, docID, query string, k int, scoreThreshold float64) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	rec, ok := s.docs[docID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return rec.index.Search(ctx, query, k, scoreThreshold)
}

// ExpandWithContext widens search hits for a document with their neighboring
// chunks. Unknown document IDs yield nil.
func (s *Store) ExpandWithContext(docID string, results []models.ScoredChunk, window int) []models.ScoredChunk {
	s.mu.RLock()
	rec, ok := s.docs[docID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return rec.index.ExpandWithContext(results, window)
}

// SearchAllDocuments fans the query out to every document index in parallel
// and returns per-document results for documents with at least one hit.
func (s *Store) SearchAllDocuments(ctx context.Context, query string, k int, scoreThreshold float64) (map[string][]models.ScoredChunk, error) {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	type docResult struct {
		docID string
		hits  []models.ScoredChunk
		err   error
	}
	resultCh := make(chan docResult, len(ids))

	var wg sync.WaitGroup
	for _, docID := range ids {
		wg.Add(1)
		go func(docID string) {
			defer wg.Done()
			hits, err := s.SearchDocument(ctx, docID, query, k, scoreThreshold)
			resultCh <- docResult{docID: docID, hits: hits, err: err}
		}(docID)
	}
	wg.Wait()
	close(resultCh)

	results := make(map[string][]models.ScoredChunk)
	for r := range resultCh {
		if r.err != nil {
			return nil, fmt.Errorf("search document %s: %w", r.docID, r.err)
		}
		if len(r.hits) > 0 {
			results[r.docID] = r.hits
		}
	}
	return results, nil
}

// GetDocumentList returns a snapshot of registered documents in insertion
// order.
func (s *Store) GetDocumentList() []models.DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.DocumentInfo, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.docs[id].info)
	}
	return list
}

// Count returns the number of registered documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Load restores the registry from the catalog and index artifacts. Documents
// whose artifact is missing or corrupt are skipped with a warning; they need
// a re-upload to become searchable again. Safe to call once at startup,
// before the store is shared.
func (s *Store) Load(ctx context.Context) error {
	infos, err := s.catalog.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list catalog documents: %w", err)
	}

	for _, info := range infos {
		idx := vector.NewIndex(s.embedder, vector.WithLogger(s.logger))
		if err := idx.Load(s.indexPath(info.ID)); err != nil {
			s.logger.Warn("skipping document with unloadable index",
				zap.String("document_id", info.ID),
				zap.Error(err),
			)
			continue
		}
		s.mu.Lock()
		s.docs[info.ID] = &record{info: info, index: idx}
		s.order = append(s.order, info.ID)
		s.mu.Unlock()
	}

	s.logger.Info("document store loaded",
		zap.Int("documents", len(s.order)),
		zap.Int("cataloged", len(infos)),
	)
	return nil
}

// Close releases the catalog connection.
func (s *Store) Close() error {
	return s.catalog.Close()
}
