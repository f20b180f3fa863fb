package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.metrics.searchDuration.Observe(time.Since(start).Seconds()) }()

	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.metrics.searchRequests.WithLabelValues(outcomeBadRequest).Inc()
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top_k", query.TopK))
	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			s.metrics.searchRequests.WithLabelValues(outcomeBadRequest).Inc()
		} else {
			s.metrics.searchRequests.WithLabelValues(outcomeError).Inc()
			s.logger.Error("search failed", zap.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}
	if response.Total == 0 {
		s.metrics.searchRequests.WithLabelValues(outcomeEmpty).Inc()
	} else {
		s.metrics.searchRequests.WithLabelValues(outcomeOK).Inc()
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "position must be an integer")
		return
	}
	chunk, err := s.engine.Chunk(position)
	if err != nil {
		if errors.Is(err, models.ErrOutOfRange) {
			s.respondError(w, http.StatusNotFound, "chunk not found")
			return
		}
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, chunk)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"index": s.engine.Stats(),
	}
	if s.store != nil {
		resp["store_dir"] = s.store.Dir()
		if diskBytes, err := s.store.Usage(); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	if s.catalog != nil {
		rec, err := s.catalog.LatestBuild(r.Context())
		switch {
		case err == nil:
			resp["latest_build"] = rec
		case !errors.Is(err, storage.ErrBuildNotFound):
			s.logger.Warn("status: catalog lookup failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Reload(r.Context())
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "loaded",
		"generation": m.Generation,
		"chunks":     m.Count,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuery), errors.Is(err, models.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrEmbeddingUnavailable), errors.Is(err, models.ErrIndexNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
