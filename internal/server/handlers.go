package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/openmeetings/meetsearch/internal/models"
	"github.com/openmeetings/meetsearch/internal/search"
	"github.com/openmeetings/meetsearch/internal/storage"
	"github.com/openmeetings/meetsearch/internal/urlstate"
	"go.uber.org/zap"
)

const (
	msgConnectivity    = "Unable to connect to server. Try again later."
	msgMeetingNotFound = "could not retrieve meeting"
)

// searchResponse is a settled search state plus the canonical query string for it.
type searchResponse struct {
	models.SearchState
	Query string `json:"query"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := urlstate.Decode(r.URL.Query(), s.location)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("keyphrase", req.Keyphrase))

	c := s.newController()
	defer c.Close()
	c.Load(req)
	c.Wait()
	if err := c.Err(); err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondEngineError(w, err)
		return
	}
	st := c.State()
	s.respondJSON(w, http.StatusOK, searchResponse{SearchState: st, Query: urlstate.EncodeState(st).Encode()})
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()
	if timeout := s.config.Search.QueryTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	m, err := search.GetMeeting(ctx, s.backend, id)
	if err != nil {
		s.logger.Debug("meeting lookup failed", zap.String("id", id), zap.Error(err))
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"backend": s.config.Engine.Backend,
	}
	if loader, ok := s.backend.(engine.Loader); ok {
		if n, err := loader.Count(r.Context()); err == nil {
			resp["meetings"] = n
		} else {
			resp["status"] = "degraded"
			resp["error"] = err.Error()
		}
	}
	if fp, ok := s.backend.(interface {
		Footprint() (storage.Footprint, error)
	}); ok {
		if usage, err := fp.Footprint(); err == nil {
			resp["disk_usage_bytes"] = usage.Total()
		}
	}
	resp["sessions"] = s.sessions.len()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) newController(opts ...search.Option) *search.Controller {
	base := []search.Option{
		search.WithLogger(s.logger),
		search.WithDebounce(s.config.Search.Debounce),
		search.WithQueryTimeout(s.config.Search.QueryTimeout),
	}
	return search.NewController(s.backend, append(base, opts...)...)
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound, msgMeetingNotFound
	case errors.Is(err, engine.ErrConnectivity):
		return http.StatusBadGateway, msgConnectivity
	case errors.Is(err, engine.ErrMalformedResponse), errors.Is(err, engine.ErrMissingFacet):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, engine.ErrInvalidQuery):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	s.respondError(w, status, msg)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
