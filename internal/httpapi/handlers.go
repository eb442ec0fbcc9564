package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/domain"
	"github.com/avolkov/webtracker/internal/tracker"
)

const defaultLogPage = 10

type addPayload struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Type      string            `json:"type"`
	Interval  int               `json:"interval"`
	UserID    string            `json:"user_id"`
	Headers   map[string]string `json:"headers,omitempty"`
	Frequency *int              `json:"frequency,omitempty"`
	Period    string            `json:"period,omitempty"`
}

type updatePayload struct {
	Name      *string           `json:"name,omitempty"`
	URL       *string           `json:"url,omitempty"`
	Type      *string           `json:"type,omitempty"`
	Interval  *int              `json:"interval,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Frequency *int              `json:"frequency,omitempty"`
	Period    *string           `json:"period,omitempty"`
}

func (s *Server) handleAddResource(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.Name == "" || p.URL == "" || p.UserID == "" {
		httpError(w, http.StatusBadRequest, "name, url and user_id are required")
		return
	}
	if p.Interval < 1 {
		httpError(w, http.StatusBadRequest, "interval must be >= 1")
		return
	}

	res, err := s.Tracker.AddResource(r.Context(), domain.Resource{
		Name:      p.Name,
		URL:       p.URL,
		Type:      domain.ProbeType(p.Type),
		Interval:  p.Interval,
		UserID:    p.UserID,
		Headers:   p.Headers,
		Frequency: p.Frequency,
		Period:    p.Period,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.Logger.Info("api_resource_added",
		zap.Int64("id", res.ID),
		zap.String("name", res.Name),
	)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "resource": res})
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r)
	if !ok {
		return
	}
	var p updatePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpError(w, http.StatusBadRequest, "bad payload")
		return
	}

	patch := tracker.Patch{
		Name:      p.Name,
		URL:       p.URL,
		Interval:  p.Interval,
		Headers:   p.Headers,
		Frequency: p.Frequency,
		Period:    p.Period,
	}
	if p.Type != nil {
		t := domain.ProbeType(*p.Type)
		patch.Type = &t
	}

	res, err := s.Tracker.UpdateResource(r.Context(), id, patch, p.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "resource": res})
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		var body struct {
			UserID string `json:"user_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		userID = body.UserID
	}

	if err := s.Tracker.DeleteResource(r.Context(), id, userID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	res, err := s.Tracker.ResourcesByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if res == nil {
		res = []domain.Resource{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r)
	if !ok {
		return
	}
	limit := defaultLogPage
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	logs, err := s.Tracker.Logs(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.Log{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// ---- helpers ----

func resourceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "resourceID"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid resource id")
		return 0, false
	}
	return id, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFoundOrForbidden):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidResourceType):
		httpError(w, http.StatusBadRequest, err.Error())
	case strings.Contains(err.Error(), "already exists"):
		httpError(w, http.StatusConflict, err.Error())
	case strings.Contains(err.Error(), "interval must be"):
		httpError(w, http.StatusBadRequest, err.Error())
	default:
		s.Logger.Error("api_internal_error", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
