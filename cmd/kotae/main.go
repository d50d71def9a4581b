// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generator"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/qa"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/store"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "upload":
		runUpload()
	case "ask":
		runAsk()
	case "search":
		runSearch()
	case "summary":
		runSummary()
	case "list":
		runList()
	case "history":
		runHistory()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Store.Load(context.Background()); err != nil {
		logger.Fatal("Failed to load document store", zap.Error(err))
	}

	srv := server.NewServer(components.Orchestrator, cfg, logger)

	var watchCancel context.CancelFunc
	if cfg.Watch.Enabled {
		session := qa.NewSession()
		watchSvc := watcher.NewWatcher(
			cfg.Storage.UploadsDir,
			cfg.Watch.Extensions,
			func(path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					logger.Warn("watch read file failed", zap.String("path", path), zap.Error(err))
					return
				}
				if _, err := components.Orchestrator.Upload(context.Background(), session, path, content, ""); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		var watchCtx context.Context
		watchCtx, watchCancel = context.WithCancel(context.Background())
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
		defer watchSvc.Stop()
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchCancel != nil {
		watchCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	title := fs.String("title", "", "document title override")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae upload [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	if _, err := fw.Write(content); err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	if *title != "" {
		_ = mw.WriteField("title", *title)
	}
	_ = mw.Close()

	resp, err := http.Post(*serverURL+"/api/v1/documents", mw.FormDataContentType(), &buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Upload failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var result models.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	if result.IsNew {
		fmt.Printf("Indexed %s (%d chunks): %s\n", result.Title, result.ChunkCount, result.DocumentID)
	} else {
		fmt.Printf("Already indexed: %s\n", result.DocumentID)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	docID := fs.String("document", "", "document ID (default: current document)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))

	body, _ := json.Marshal(map[string]string{"question": question, "document_id": *docID})
	resp, err := http.Post(*serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Ask failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var result models.AnswerResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	fmt.Println(result.Answer)
	if result.Degraded {
		fmt.Println("\n(generation backend unavailable; sources below are still valid)")
	}
	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.Sources {
			fmt.Printf("  [chunk %d, score %.2f] %s\n", src.ChunkID, src.SimilarityScore, src.Preview)
		}
	}
	if len(result.FollowUpQuestions) > 0 {
		fmt.Println("\nFollow-up questions:")
		for i, q := range result.FollowUpQuestions {
			fmt.Printf("  %d. %s\n", i+1, q)
		}
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	docID := fs.String("document", "", "document ID (default: all documents)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae search [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	body, _ := json.Marshal(map[string]string{"query": query, "document_id": *docID})
	resp, err := http.Post(*serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Search failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var result models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	if result.TotalMatches == 0 {
		fmt.Println("No matches.")
		return
	}
	for id, hits := range result.Results {
		fmt.Printf("%s:\n", id)
		for _, hit := range hits {
			fmt.Printf("  [chunk %d, score %.2f] %s\n", hit.ID, hit.Score, utils.Truncate(hit.Text, 120))
		}
	}
	fmt.Printf("\n%d match(es) in %dms\n", result.TotalMatches, result.QueryTime)
}

func runSummary() {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae summary [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	resp, err := http.Get(*serverURL + "/api/v1/documents/" + docID + "/summary")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Summary failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var result models.SummaryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s (%d of %d chunks)\n\n%s\n", result.Title, result.ChunksUsed, result.TotalChunks, result.Summary)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/documents")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var out struct {
		Documents []models.DocumentInfo `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	if len(out.Documents) == 0 {
		fmt.Println("No documents.")
		return
	}
	for _, doc := range out.Documents {
		fmt.Printf("%s  %-30s  %d chunks\n", doc.ID, doc.Metadata.Title, doc.ChunkCount)
	}
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 10, "number of exchanges to show")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/history?limit=%d", *serverURL, *limit))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "History failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var out struct {
		History []models.ConversationEntry `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	if len(out.History) == 0 {
		fmt.Println("No history.")
		return
	}
	for _, entry := range out.History {
		fmt.Printf("Q: %s\nA: %s\n\n", entry.Question, utils.Truncate(entry.Answer, 200))
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Stats failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var pretty bytes.Buffer
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(pretty.String())
}

// Components holds initialized services for server mode.
type Components struct {
	Store        *store.Store
	Embedder     embedding.Embedder
	Orchestrator *qa.Orchestrator
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	catalog, err := store.NewCatalog(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	embedder, err := embedding.New(embedding.FactoryConfig{
		Provider:   embedding.Provider(cfg.Embedding.Provider),
		ModelPath:  cfg.Embedding.ModelPath,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
	})
	if err != nil {
		logger.Warn("embedder init failed, falling back to mock embedder", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	st := store.NewStore(catalog, embedder, cfg.Storage.IndexDir, store.WithLogger(logger))

	gen := generator.NewOllamaGenerator(generator.OllamaConfig{
		BaseURL: cfg.Generator.BaseURL,
		Model:   cfg.Generator.Model,
		Timeout: time.Duration(cfg.Generator.TimeoutSeconds) * time.Second,
	})

	orch := qa.NewOrchestrator(st, gen, qa.Config{
		TopK:             cfg.Retrieval.TopK,
		ScoreThreshold:   cfg.Retrieval.ScoreThreshold,
		ContextWindow:    cfg.Retrieval.ContextWindow,
		MaxContextChunks: cfg.Retrieval.MaxContextChunks,
		SummaryChunks:    cfg.Retrieval.SummaryChunks,
		MaxTokens:        cfg.Generator.MaxTokens,
		Temperature:      cfg.Generator.Temperature,
	}, logger)
	orch.SetChunker(chunker.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap))

	return &Components{
		Store:        st,
		Embedder:     embedder,
		Orchestrator: orch,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Document Q&A over your own files

Usage:
  kotae server [flags]              Start the HTTP server
  kotae upload [flags] <file>       Upload and index a document
  kotae ask [flags] <question>      Ask a question about the current document
  kotae search [flags] <query>      Find relevant passages
  kotae summary [flags] <doc-id>    Summarize a document
  kotae list [flags]                List indexed documents
  kotae history [flags]             Show recent Q&A history
  kotae stats [flags]               Show system statistics
  kotae version                     Show version
  kotae help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Client Flags (upload, ask, search, summary, list, history, stats):
  --server string    Server URL (default: http://localhost:8080)
  --document string  Document ID to target (ask, search)
  --output string    Output format: text or json (ask, search)

Examples:
  kotae server
  kotae upload --title "Biology 101" lecture-notes.pdf
  kotae ask what is photosynthesis
  kotae ask --output json "what is photosynthesis?"
  kotae search chlorophyll
  kotae summary biology-101_a1b2c3d4e5f6
  kotae list`)
}
