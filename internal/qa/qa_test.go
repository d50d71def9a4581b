package qa

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generator"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/store"
)

// scriptGenerator returns queued responses in order, repeating the last one.
type scriptGenerator struct {
	responses []string
	prompts   []string
	err       error
}

func (g *scriptGenerator) Generate(_ context.Context, prompt string, _ generator.Options) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "generated", nil
	}
	r := g.responses[0]
	if len(g.responses) > 1 {
		g.responses = g.responses[1:]
	}
	return r, nil
}

func (g *scriptGenerator) Model() string { return "script-model" }

func testConfig() Config {
	cfg := DefaultConfig()
	// The mock embedder only guarantees identical text embeds identically,
	// so retrieval in tests matches on exact chunk text.
	cfg.ScoreThreshold = 0.99
	return cfg
}

func newOrchestrator(t *testing.T, gen generator.Generator) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	catalog, err := store.NewCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewStore(catalog, embedding.NewMockEmbedder(16), filepath.Join(dir, "indices"))
	t.Cleanup(func() { st.Close() })
	return NewOrchestrator(st, gen, testConfig(), zap.NewNop())
}

// docContent is long enough to survive preprocessing and yield one chunk.
const docContent = "Photosynthesis converts light energy into chemical energy stored in glucose molecules inside plant cells."

func uploadTestDoc(t *testing.T, o *Orchestrator, sess *Session) string {
	t.Helper()
	res, err := o.Upload(context.Background(), sess, "biology.txt", []byte(docContent), "")
	if err != nil {
		t.Fatal(err)
	}
	return res.DocumentID
}

func TestUpload_newDocument(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	sess := NewSession()

	res, err := o.Upload(context.Background(), sess, "biology.txt", []byte(docContent), "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsNew {
		t.Error("first upload should be new")
	}
	if res.ChunkCount < 1 {
		t.Errorf("chunk count = %d", res.ChunkCount)
	}
	if res.Title != "biology" {
		t.Errorf("title = %q", res.Title)
	}
	if sess.CurrentDocument() != res.DocumentID {
		t.Error("upload should select the document")
	}
}

func TestUpload_idempotent(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	sess := NewSession()

	first, err := o.Upload(context.Background(), sess, "biology.txt", []byte(docContent), "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Upload(context.Background(), sess, "biology.txt", []byte(docContent), "")
	if err != nil {
		t.Fatal(err)
	}
	if second.IsNew {
		t.Error("re-upload of identical content should not be new")
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("ids differ: %q vs %q", first.DocumentID, second.DocumentID)
	}
	if o.Stats(sess).TotalDocuments != 1 {
		t.Error("re-upload must not create a second document")
	}
}

func TestUpload_titleOverride(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	sess := NewSession()
	res, err := o.Upload(context.Background(), sess, "biology.txt", []byte(docContent), "Intro to Biology")
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "Intro to Biology" {
		t.Errorf("title = %q", res.Title)
	}
}

func TestAsk_noDocumentSelected(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	_, err := o.Ask(context.Background(), NewSession(), "anything?")
	if !errors.Is(err, ErrNoDocumentSelected) {
		t.Fatalf("err = %v, want ErrNoDocumentSelected", err)
	}
}

func TestAsk_answersWithSourcesAndFollowUps(t *testing.T) {
	gen := &scriptGenerator{responses: []string{
		"Photosynthesis stores energy as glucose.",
		" What pigments absorb the light?\n2. Where does the glucose go afterwards?\n3. How do plants regulate this process?",
	}}
	o := newOrchestrator(t, gen)
	sess := NewSession()
	docID := uploadTestDoc(t, o, sess)

	res, err := o.Ask(context.Background(), sess, docContent)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "Photosynthesis stores energy as glucose." {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.Degraded {
		t.Error("successful generation must not be degraded")
	}
	if res.DocumentID != docID || res.DocumentTitle != "biology" {
		t.Errorf("attribution = %q / %q", res.DocumentID, res.DocumentTitle)
	}
	if res.ModelUsed != "script-model" {
		t.Errorf("model = %q", res.ModelUsed)
	}
	if len(res.Sources) == 0 || len(res.Sources) > 3 {
		t.Fatalf("sources = %d, want 1..3", len(res.Sources))
	}
	if len(res.Sources[0].Preview) > sourcePreviewLen+3 {
		t.Errorf("preview too long: %d chars", len(res.Sources[0].Preview))
	}
	if len(res.FollowUpQuestions) != 3 {
		t.Fatalf("follow-ups = %v", res.FollowUpQuestions)
	}
	if res.FollowUpQuestions[0] != "What pigments absorb the light?" {
		t.Errorf("first follow-up = %q", res.FollowUpQuestions[0])
	}
	if sess.HistoryLen() != 1 {
		t.Errorf("history length = %d, want 1", sess.HistoryLen())
	}
	if len(gen.prompts) == 0 || !strings.Contains(gen.prompts[0], "[Context 1]") {
		t.Error("answer prompt should carry labeled context")
	}
}

func TestAsk_noRelevantContext(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	sess := NewSession()
	uploadTestDoc(t, o, sess)

	_, err := o.Ask(context.Background(), sess, "completely unrelated question about archery")
	if !errors.Is(err, ErrNoRelevantContext) {
		t.Fatalf("err = %v, want ErrNoRelevantContext", err)
	}
	if sess.HistoryLen() != 0 {
		t.Error("failed questions must not enter history")
	}
}

func TestAsk_generatorFailureDegrades(t *testing.T) {
	gen := &scriptGenerator{err: errors.New("backend down")}
	o := newOrchestrator(t, gen)
	sess := NewSession()
	uploadTestDoc(t, o, sess)

	res, err := o.Ask(context.Background(), sess, docContent)
	if err != nil {
		t.Fatalf("generator failure must not propagate: %v", err)
	}
	if !res.Degraded {
		t.Error("result should be marked degraded")
	}
	if res.Answer != degradedAnswer {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.Sources) == 0 {
		t.Error("degraded answers still cite retrieved sources")
	}
	if len(res.FollowUpQuestions) != 3 {
		t.Errorf("degraded follow-ups = %v", res.FollowUpQuestions)
	}
	if sess.HistoryLen() != 1 {
		t.Error("degraded exchanges still enter history")
	}
}

func TestSelect(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	sess := NewSession()
	docID := uploadTestDoc(t, o, sess)

	if _, err := o.Select(sess, "missing_doc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if _, err := o.Ask(context.Background(), sess, docContent); err != nil {
		t.Fatal(err)
	}
	info, err := o.Select(sess, docID)
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != docID {
		t.Errorf("selected = %q", info.ID)
	}
	if sess.HistoryLen() != 0 {
		t.Error("selecting a document should clear history")
	}
}

func TestSummarize(t *testing.T) {
	gen := &scriptGenerator{responses: []string{"A summary of photosynthesis."}}
	o := newOrchestrator(t, gen)
	sess := NewSession()
	docID := uploadTestDoc(t, o, sess)

	res, err := o.Summarize(context.Background(), sess, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.DocumentID != docID || res.Summary != "A summary of photosynthesis." {
		t.Errorf("summary = %+v", res)
	}
	if res.ChunksUsed < 1 || res.ChunksUsed > res.TotalChunks {
		t.Errorf("chunks used = %d of %d", res.ChunksUsed, res.TotalChunks)
	}
}

func TestSummarize_errors(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	sess := NewSession()

	if _, err := o.Summarize(context.Background(), sess, ""); !errors.Is(err, ErrNoDocumentSelected) {
		t.Fatalf("err = %v, want ErrNoDocumentSelected", err)
	}
	if _, err := o.Summarize(context.Background(), sess, "missing_doc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSummarize_generatorFailureDegrades(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{err: errors.New("backend down")})
	sess := NewSession()
	uploadTestDoc(t, o, sess)

	res, err := o.Summarize(context.Background(), sess, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary != degradedSummary {
		t.Errorf("summary = %q", res.Summary)
	}
}

func TestSearch_allDocuments(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	sess := NewSession()
	docID := uploadTestDoc(t, o, sess)
	other := "Mitochondria are organelles that produce adenosine triphosphate through cellular respiration pathways."
	if _, err := o.Upload(context.Background(), sess, "cells.txt", []byte(other), ""); err != nil {
		t.Fatal(err)
	}

	res, err := o.Search(context.Background(), docContent, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalMatches < 1 {
		t.Fatal("expected at least one match")
	}
	if _, ok := res.Results[docID]; !ok {
		t.Errorf("results missing %q: %v", docID, res.Results)
	}
}

func TestSearch_singleDocument(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	sess := NewSession()
	docID := uploadTestDoc(t, o, sess)

	res, err := o.Search(context.Background(), docContent, docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("results = %v", res.Results)
	}
	if res.Results[docID][0].Score < 0.99 {
		t.Errorf("score = %f", res.Results[docID][0].Score)
	}
}

func TestStats(t *testing.T) {
	o := newOrchestrator(t, &scriptGenerator{})
	sess := NewSession()
	docID := uploadTestDoc(t, o, sess)

	stats := o.Stats(sess)
	if stats.TotalDocuments != 1 || stats.CurrentDocument != docID {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalChunks < 1 {
		t.Errorf("total chunks = %d", stats.TotalChunks)
	}
	if stats.Model != "script-model" {
		t.Errorf("model = %q", stats.Model)
	}
}

func TestSessionHistory_limit(t *testing.T) {
	sess := NewSession()
	gen := &scriptGenerator{}
	o := newOrchestrator(t, gen)
	uploadTestDoc(t, o, sess)

	for i := 0; i < 4; i++ {
		if _, err := o.Ask(context.Background(), sess, docContent); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(sess.History(2)); got != 2 {
		t.Errorf("limited history = %d, want 2", got)
	}
	if got := len(sess.History(0)); got != 4 {
		t.Errorf("full history = %d, want 4", got)
	}
}

// plantedEmbedder returns fixed vectors for known texts, so a test can place
// retrieval hits at chosen chunk ids with chosen scores. Unknown text embeds
// orthogonally to every planted vector.
type plantedEmbedder struct {
	vectors map[string][]float32
}

func (e *plantedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return append([]float32(nil), v...), nil
	}
	return []float32{0, 0, 1, 0}, nil
}

func (e *plantedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *plantedEmbedder) Dimensions() int { return 4 }
func (e *plantedEmbedder) ModelID() string { return "planted" }
func (e *plantedEmbedder) Close() error    { return nil }

// Hits far apart in the document must both reach the generator: window
// expansion around ids 0 and 10 yields six chunks, and capping to five must
// keep the rank-1 hit rather than the five lowest ids.
func TestAskDocument_topHitSurvivesContextCap(t *testing.T) {
	question := "Which section holds the verdict?"
	chunks := make([]models.Chunk, 11)
	vectors := map[string][]float32{
		question: {1, 0, 0, 0},
	}
	for i := range chunks {
		text := fmt.Sprintf("Section %02d of the report covers routine findings.", i)
		chunks[i] = models.Chunk{ID: i, Text: text, StartPos: i * 50, EndPos: (i + 1) * 50, Length: 50}
	}
	vectors[chunks[0].Text] = []float32{0.5, 0.866, 0, 0}
	vectors[chunks[10].Text] = []float32{0.9, 0.436, 0, 0}

	dir := t.TempDir()
	catalog, err := store.NewCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewStore(catalog, &plantedEmbedder{vectors: vectors}, filepath.Join(dir, "indices"))
	t.Cleanup(func() { st.Close() })
	const docID = "report_0a1b2c3d4e5f"
	if _, err := st.AddDocument(context.Background(), docID, models.DocumentMetadata{Title: "Report"}, chunks); err != nil {
		t.Fatal(err)
	}

	gen := &scriptGenerator{responses: []string{"The verdict is in section ten."}}
	o := NewOrchestrator(st, gen, DefaultConfig(), zap.NewNop())

	res, err := o.AskDocument(context.Background(), NewSession(), docID, question)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Sources) == 0 || res.Sources[0].ChunkID != 10 {
		t.Fatalf("top source = %+v, want chunk 10", res.Sources)
	}
	if len(gen.prompts) == 0 {
		t.Fatal("no prompt captured")
	}
	prompt := gen.prompts[0]
	if got := strings.Count(prompt, "[Context "); got != 5 {
		t.Errorf("prompt context blocks = %d, want 5", got)
	}
	if !strings.Contains(prompt, chunks[10].Text) {
		t.Error("rank-1 chunk missing from the prompt context")
	}
	if !strings.Contains(prompt, chunks[0].Text) {
		t.Error("second hit missing from the prompt context")
	}
	if res.ContextChunksUsed != 5 {
		t.Errorf("context chunks used = %d, want 5", res.ContextChunksUsed)
	}
}

func TestCapContext(t *testing.T) {
	sc := func(id int, score float64, ctx bool) models.ScoredChunk {
		return models.ScoredChunk{Chunk: models.Chunk{ID: id}, Score: score, IsContext: ctx}
	}
	hits := []models.ScoredChunk{sc(10, 0.9, false), sc(0, 0.5, false)}
	expanded := []models.ScoredChunk{
		sc(0, 0.5, false), sc(1, 0, true), sc(2, 0, true),
		sc(8, 0, true), sc(9, 0, true), sc(10, 0.9, false),
	}

	got := capContext(hits, expanded, 5)
	ids := make([]int, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	want := []int{0, 1, 2, 8, 10}
	if len(ids) != len(want) {
		t.Fatalf("capped ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("capped ids = %v, want %v", ids, want)
		}
	}

	// Under the cap nothing is dropped or reordered.
	if got := capContext(hits, expanded, 10); len(got) != len(expanded) {
		t.Errorf("uncapped length = %d, want %d", len(got), len(expanded))
	}
}
