// Package qa orchestrates the question answering pipeline: document
// ingestion, retrieval over per-document indices, and grounded answer
// generation with conversational session state.
package qa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/docid"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/generator"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/store"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Sentinel errors returned by orchestrator operations.
var (
	// ErrNoDocumentSelected is returned when an operation needs a current
	// document and the session has none.
	ErrNoDocumentSelected = errors.New("no document selected")

	// ErrNotFound is returned when a named document is not registered.
	ErrNotFound = errors.New("document not found")

	// ErrNoRelevantContext is returned when retrieval finds no chunk above
	// the similarity threshold for a question.
	ErrNoRelevantContext = errors.New("no relevant information found in the document")
)

// Canned responses used when the generation backend is unavailable. Answer
// operations degrade rather than fail: retrieval already succeeded, so the
// caller still gets sources.
const (
	degradedAnswer  = "I apologize, but I'm unable to generate an answer at this time. Please try rephrasing your question or check your connection."
	degradedSummary = "Unable to generate summary at this time."
)

// sourcePreviewLen caps the preview text attached to each cited source.
const sourcePreviewLen = 100

// Config holds the retrieval and generation tunables of the orchestrator.
type Config struct {
	// TopK is how many chunks retrieval returns per question.
	TopK int
	// ScoreThreshold is the minimum similarity for a retrieved chunk.
	ScoreThreshold float64
	// ContextWindow is how many neighboring chunks on each side of a hit
	// are pulled into the prompt context.
	ContextWindow int
	// MaxContextChunks caps how many chunks, after window expansion, feed
	// the answer prompt.
	MaxContextChunks int
	// SummaryChunks is how many leading chunks feed a document summary.
	SummaryChunks int
	// MaxTokens and Temperature are passed through to the generator.
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the standard retrieval settings.
func DefaultConfig() Config {
	return Config{
		TopK:             5,
		ScoreThreshold:   0.3,
		ContextWindow:    2,
		MaxContextChunks: generator.MaxPromptChunks,
		SummaryChunks:    10,
		MaxTokens:        512,
		Temperature:      0.7,
	}
}

// Orchestrator wires extraction, chunking, the document store, and the
// generator into the question answering operations. It holds no session
// state; callers pass a Session explicitly.
type Orchestrator struct {
	store     *store.Store
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	generator generator.Generator
	cfg       Config
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator over the given components.
func NewOrchestrator(st *store.Store, gen generator.Generator, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:     st,
		extractor: extract.NewExtractor(),
		chunker:   chunker.NewChunker(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap),
		generator: gen,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetChunker replaces the default chunker, for configured chunk sizes.
func (o *Orchestrator) SetChunker(c *chunker.Chunker) { o.chunker = c }

// Upload ingests a document from raw bytes. The document ID is derived from
// the content, so uploading byte-identical content again selects the
// existing document and reports IsNew false instead of re-indexing. A new
// document becomes the session's current document and clears its history.
func (o *Orchestrator) Upload(ctx context.Context, sess *Session, filename string, content []byte, titleOverride string) (models.UploadResult, error) {
	id := docid.FromContent(filename, content)

	if o.store.Has(id) {
		o.logger.Info("document already indexed", zap.String("document_id", id))
		sess.setCurrent(id)
		info, _ := o.store.Document(id)
		return models.UploadResult{
			DocumentID: id,
			IsNew:      false,
			Title:      info.Metadata.Title,
			PageCount:  info.Metadata.PageCount,
			ChunkCount: info.ChunkCount,
			Message:    "Document already processed",
		}, nil
	}

	text, meta, err := o.extractor.ExtractBytes(content, filename)
	if err != nil {
		return models.UploadResult{}, err
	}
	if titleOverride != "" {
		meta.Title = titleOverride
	}

	cleaned := chunker.Preprocess(text)
	chunks := o.chunker.Chunk(cleaned)
	if len(chunks) == 0 {
		return models.UploadResult{}, fmt.Errorf("document %s has no indexable text", filename)
	}

	info, err := o.store.AddDocument(ctx, id, meta, chunks)
	if err != nil {
		return models.UploadResult{}, err
	}

	sess.setCurrent(id)
	sess.ClearHistory()

	return models.UploadResult{
		DocumentID: id,
		IsNew:      true,
		Title:      info.Metadata.Title,
		PageCount:  info.Metadata.PageCount,
		ChunkCount: info.ChunkCount,
		TotalChars: len(cleaned),
		Message:    "Document processed successfully",
	}, nil
}

// Select makes an already registered document the session's current
// document and clears the session history. Returns ErrNotFound for an
// unknown ID.
func (o *Orchestrator) Select(sess *Session, docID string) (models.DocumentInfo, error) {
	info, ok := o.store.Document(docID)
	if !ok {
		return models.DocumentInfo{}, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	sess.setCurrent(docID)
	sess.ClearHistory()
	return info, nil
}

// Ask answers a question against the session's current document: retrieve,
// expand with neighboring chunks, generate, cite sources. Returns
// ErrNoDocumentSelected without a current document and ErrNoRelevantContext
// when nothing scores above the threshold. Generator failures do not fail
// the question; the result carries a canned answer and Degraded true.
func (o *Orchestrator) Ask(ctx context.Context, sess *Session, question string) (models.AnswerResult, error) {
	docID := sess.CurrentDocument()
	if docID == "" {
		return models.AnswerResult{}, ErrNoDocumentSelected
	}
	return o.AskDocument(ctx, sess, docID, question)
}

// AskDocument answers a question against a specific document.
func (o *Orchestrator) AskDocument(ctx context.Context, sess *Session, docID, question string) (models.AnswerResult, error) {
	info, ok := o.store.Document(docID)
	if !ok {
		return models.AnswerResult{}, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}

	hits, err := o.store.SearchDocument(ctx, docID, question, o.cfg.TopK, o.cfg.ScoreThreshold)
	if err != nil {
		return models.AnswerResult{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(hits) == 0 {
		return models.AnswerResult{}, fmt.Errorf("%w: %s", ErrNoRelevantContext, docID)
	}

	expanded := o.store.ExpandWithContext(docID, hits, o.cfg.ContextWindow)
	maxChunks := o.cfg.MaxContextChunks
	if maxChunks <= 0 {
		maxChunks = generator.MaxPromptChunks
	}
	contextChunks := capContext(hits, expanded, maxChunks)

	title := documentTitle(info)
	result := models.AnswerResult{
		Question:          question,
		DocumentID:        docID,
		DocumentTitle:     title,
		Sources:           buildSources(hits),
		ContextChunksUsed: len(contextChunks),
		ModelUsed:         o.generator.Model(),
		Timestamp:         time.Now().UTC(),
	}

	prompt := generator.BuildAnswerPrompt(question, title, contextChunks)
	answer, genErr := o.generator.Generate(ctx, prompt, generator.Options{
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if genErr != nil {
		o.logger.Error("answer generation failed, degrading",
			zap.String("document_id", docID),
			zap.Error(genErr),
		)
		result.Answer = degradedAnswer
		result.Degraded = true
		result.FollowUpQuestions = generator.FallbackFollowUps()
	} else {
		result.Answer = strings.TrimSpace(answer)
		result.FollowUpQuestions = o.followUps(ctx, question, result.Answer)
	}

	sess.appendHistory(models.ConversationEntry{
		Question:   question,
		Answer:     result.Answer,
		Timestamp:  result.Timestamp,
		DocumentID: docID,
	})
	return result, nil
}

// followUps generates follow-up questions for a completed exchange, falling
// back to generic ones when generation fails or yields nothing parseable.
func (o *Orchestrator) followUps(ctx context.Context, question, answer string) []string {
	prompt := generator.BuildFollowUpPrompt(question, answer)
	response, err := o.generator.Generate(ctx, prompt, generator.Options{
		MaxTokens:   150,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		o.logger.Warn("follow-up generation failed", zap.Error(err))
		return generator.FallbackFollowUps()
	}
	if questions := generator.ParseFollowUps("1." + response); len(questions) > 0 {
		return questions
	}
	return generator.FallbackFollowUps()
}

// Summarize produces a summary of a document from its leading chunks. An
// empty docID uses the session's current document. Generator failures
// degrade to a canned summary.
func (o *Orchestrator) Summarize(ctx context.Context, sess *Session, docID string) (models.SummaryResult, error) {
	if docID == "" {
		docID = sess.CurrentDocument()
	}
	if docID == "" {
		return models.SummaryResult{}, ErrNoDocumentSelected
	}
	info, ok := o.store.Document(docID)
	if !ok {
		return models.SummaryResult{}, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}

	chunks, _ := o.store.Chunks(docID)
	n := len(chunks)
	if n > o.cfg.SummaryChunks {
		n = o.cfg.SummaryChunks
	}
	texts := make([]string, n)
	for i := 0; i < n; i++ {
		texts[i] = chunks[i].Text
	}

	title := documentTitle(info)
	result := models.SummaryResult{
		DocumentID:  docID,
		Title:       title,
		Metadata:    info.Metadata,
		ChunksUsed:  n,
		TotalChunks: info.ChunkCount,
	}

	prompt := generator.BuildSummaryPrompt(title, strings.Join(texts, " "))
	summary, err := o.generator.Generate(ctx, prompt, generator.Options{
		MaxTokens:   200,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		o.logger.Error("summary generation failed, degrading",
			zap.String("document_id", docID),
			zap.Error(err),
		)
		result.Summary = degradedSummary
		return result, nil
	}
	result.Summary = strings.TrimSpace(summary)
	return result, nil
}

// Search runs a retrieval-only query. With a docID it searches that one
// document; otherwise it fans out across all documents and reports those
// with at least one hit.
func (o *Orchestrator) Search(ctx context.Context, query, docID string) (models.SearchResponse, error) {
	start := time.Now()
	results := make(map[string][]models.ScoredChunk)

	if docID != "" {
		hits, err := o.store.SearchDocument(ctx, docID, query, o.cfg.TopK, o.cfg.ScoreThreshold)
		if err != nil {
			return models.SearchResponse{}, err
		}
		if len(hits) > 0 {
			results[docID] = hits
		}
	} else {
		var err error
		results, err = o.store.SearchAllDocuments(ctx, query, o.cfg.TopK, o.cfg.ScoreThreshold)
		if err != nil {
			return models.SearchResponse{}, err
		}
	}

	total := 0
	for _, hits := range results {
		total += len(hits)
	}
	return models.SearchResponse{
		Query:        query,
		Results:      results,
		TotalMatches: total,
		QueryTime:    time.Since(start).Milliseconds(),
	}, nil
}

// Documents returns the registered documents in insertion order.
func (o *Orchestrator) Documents() []models.DocumentInfo {
	return o.store.GetDocumentList()
}

// Stats summarizes the system state for one session.
type Stats struct {
	TotalDocuments  int    `json:"total_documents"`
	TotalChunks     int    `json:"total_chunks"`
	CurrentDocument string `json:"current_document,omitempty"`
	HistoryLength   int    `json:"history_length"`
	Model           string `json:"model"`
}

// Stats reports document counts and the session's current state.
func (o *Orchestrator) Stats(sess *Session) Stats {
	docs := o.store.GetDocumentList()
	totalChunks := 0
	for _, d := range docs {
		totalChunks += d.ChunkCount
	}
	return Stats{
		TotalDocuments:  len(docs),
		TotalChunks:     totalChunks,
		CurrentDocument: sess.CurrentDocument(),
		HistoryLength:   sess.HistoryLen(),
		Model:           o.generator.Model(),
	}
}

// documentTitle resolves the display title for prompts and results.
func documentTitle(info models.DocumentInfo) string {
	if info.Metadata.Title != "" {
		return info.Metadata.Title
	}
	return "Document"
}

// capContext bounds the prompt context at max chunks without evicting the
// ranked hits: hits are seeded first in rank order, remaining slots are
// filled with expansion neighbors, and the result comes back in ascending
// chunk order for the prompt.
func capContext(hits, expanded []models.ScoredChunk, max int) []models.ScoredChunk {
	if max <= 0 || len(expanded) <= max {
		return expanded
	}
	picked := make(map[int]bool, max)
	capped := make([]models.ScoredChunk, 0, max)
	for _, h := range hits {
		if len(capped) == max {
			break
		}
		if !picked[h.ID] {
			picked[h.ID] = true
			capped = append(capped, h)
		}
	}
	for _, c := range expanded {
		if len(capped) == max {
			break
		}
		if !picked[c.ID] {
			picked[c.ID] = true
			capped = append(capped, c)
		}
	}
	sort.Slice(capped, func(i, j int) bool { return capped[i].ID < capped[j].ID })
	return capped
}

// buildSources cites the top hits with truncated previews.
func buildSources(hits []models.ScoredChunk) []models.Source {
	n := len(hits)
	if n > 3 {
		n = 3
	}
	sources := make([]models.Source, 0, n)
	for _, hit := range hits[:n] {
		sources = append(sources, models.Source{
			ChunkID:         hit.ID,
			SimilarityScore: hit.Score,
			Preview:         utils.Truncate(hit.Text, sourcePreviewLen),
		})
	}
	return sources
}
