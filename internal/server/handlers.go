package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/search"
	"go.uber.org/zap"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ask request", zap.String("query", req.Query), zap.Int("top_k", req.TopK), zap.Int("history", len(req.History)))

	var conv *models.Conversation
	if len(req.History) > 0 {
		conv = &models.Conversation{Messages: append([]models.Message(nil), req.History...)}
	}

	s.askMu.Lock()
	answer, err := s.assistant.Ask(r.Context(), req.Query, conv, rag.WithTopK(req.TopK))
	s.askMu.Unlock()
	if err != nil {
		s.respondRetrievalError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.retriever.Retrieve(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.respondRetrievalError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("limit", req.Limit))
	response, err := s.retriever.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.respondRetrievalError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.logger.Error("status: collection stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cfg := s.config
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"collection": stats,
		"config": map[string]interface{}{
			"index_location":      cfg.Storage.IndexLocation,
			"index_name":          cfg.Storage.IndexName,
			"chunk_size":          cfg.Ingest.ChunkSize,
			"chunk_overlap":       cfg.Ingest.Overlap(),
			"top_k":               cfg.Retrieval.TopK,
			"embedding_provider":  cfg.Embedding.Provider,
			"embedding_model":     cfg.Embedding.Model,
			"generation_provider": cfg.Generation.Provider,
			"generation_model":    cfg.Generation.Model,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondRetrievalError(w http.ResponseWriter, err error) {
	if errors.Is(err, search.ErrEmptyQuery) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("retrieval failed", zap.Error(err))
	status := http.StatusInternalServerError
	var re *search.RetrievalError
	if errors.As(err, &re) {
		status = http.StatusBadGateway
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
