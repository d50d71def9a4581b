package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/qa"
	"github.com/hyperjump/kotae/internal/store"
)

// maxUploadBytes bounds multipart upload memory before spilling to disk.
const maxUploadBytes = 64 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	title := r.FormValue("title")

	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	result, err := s.orchestrator.Upload(r.Context(), s.session, header.Filename, content, title)
	if err != nil {
		var extErr *extract.ExtractionError
		if errors.As(err, &extErr) {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusCreated
	if !result.IsNew {
		status = http.StatusOK
	}
	s.respondJSON(w, status, result)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": s.orchestrator.Documents(),
	})
}

func (s *Server) handleSelectDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := s.orchestrator.Select(s.session, id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": info.ID,
		"title":       info.Metadata.Title,
		"status":      "selected",
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.orchestrator.Summarize(r.Context(), s.session, id)
	if err != nil {
		if errors.Is(err, qa.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("summary failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type askRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	s.logger.Debug("ask request", zap.String("question", req.Question), zap.String("document_id", req.DocumentID))
	var (
		result interface{}
		err    error
	)
	if req.DocumentID != "" {
		result, err = s.orchestrator.AskDocument(r.Context(), s.session, req.DocumentID, req.Question)
	} else {
		result, err = s.orchestrator.Ask(r.Context(), s.session, req.Question)
	}
	if err != nil {
		switch {
		case errors.Is(err, qa.ErrNoDocumentSelected):
			s.respondError(w, http.StatusBadRequest, "no document selected; upload or select a document first")
		case errors.Is(err, qa.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, qa.ErrNoRelevantContext):
			s.respondError(w, http.StatusNotFound, "no relevant information found in the document")
		default:
			s.logger.Error("ask failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Query      string `json:"query"`
	DocumentID string `json:"document_id,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.String("document_id", req.DocumentID))
	response, err := s.orchestrator.Search(r.Context(), req.Query, req.DocumentID)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.session.History(limit),
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.session.ClearHistory()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.orchestrator.Stats(s.session)
	resp := map[string]interface{}{
		"total_documents":  stats.TotalDocuments,
		"total_chunks":     stats.TotalChunks,
		"current_document": stats.CurrentDocument,
		"history_length":   stats.HistoryLength,
		"model":            stats.Model,
	}
	if s.config != nil {
		diskBytes, err := store.DiskUsageBytes(
			s.config.Storage.DatabasePath,
			s.config.Storage.IndexDir,
		)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
		resp["config"] = map[string]interface{}{
			"chunk_size":         s.config.Chunking.Size,
			"chunk_overlap":      s.config.Chunking.Overlap,
			"top_k":              s.config.Retrieval.TopK,
			"score_threshold":    s.config.Retrieval.ScoreThreshold,
			"context_window":     s.config.Retrieval.ContextWindow,
			"max_context_chunks": s.config.Retrieval.MaxContextChunks,
			"database_path":      s.config.Storage.DatabasePath,
			"index_dir":          s.config.Storage.IndexDir,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
