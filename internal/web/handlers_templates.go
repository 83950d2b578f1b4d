package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
	"github.com/go-chi/chi/v5"
)

// defaultListLimit caps the popular and recent lists.
const defaultListLimit = 5

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// handleListTemplates returns every template, or with ?headers=a,b only the
// templates matching those headers, best first.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("headers"); raw != "" {
		headers := strings.Split(raw, ",")
		for i := range headers {
			headers[i] = strings.TrimSpace(headers[i])
		}
		matches, err := s.service.Templates().FindMatching(r.Context(), headers)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
		return
	}

	templates, err := s.service.Templates().List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// handleCreateTemplate saves a new template.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req mapping.Template
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.Templates().Create(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleGetTemplate returns one template.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.Templates().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTemplate applies a partial update.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var p mapping.Patch
	if err := decodeJSON(r, &p); err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.Templates().Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleDeleteTemplate removes a template.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Templates().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUseTemplate records a use of a template.
func (s *Server) handleUseTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.Templates().Use(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handlePopularTemplates returns the most used templates.
func (s *Server) handlePopularTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := s.service.Templates().Popular(r.Context(), parseIntParam(r, "limit", defaultListLimit))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": ts})
}

// handleRecentTemplates returns the most recently used templates.
func (s *Server) handleRecentTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := s.service.Templates().Recent(r.Context(), parseIntParam(r, "limit", defaultListLimit))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": ts})
}

// handleTemplateSuggestions reviews the template library.
func (s *Server) handleTemplateSuggestions(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.Templates().UsageSuggestions(r.Context(), time.Now())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}
