package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
)

type suggestRequest struct {
	Headers    []string   `json:"headers"`
	SampleData [][]string `json:"sampleData"`
}

// handleSuggestMappings suggests a system field for each header.
func (s *Server) handleSuggestMappings(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	suggestions, err := s.service.SuggestMappings(r.Context(), req.Headers, req.SampleData)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

type mappingsRequest struct {
	Mappings []mapping.Mapping `json:"mappings"`
}

// handleValidateMappings checks a mapping set.
func (s *Server) handleValidateMappings(w http.ResponseWriter, r *http.Request) {
	var req mappingsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Mapper().ValidateMappings(req.Mappings))
}

type applyRequest struct {
	Headers  []string          `json:"headers"`
	Rows     [][]string        `json:"rows"`
	Mappings []mapping.Mapping `json:"mappings"`
}

// handleApplyMapping converts rows to records without validating them.
func (s *Server) handleApplyMapping(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(req.Headers) == 0 {
		s.respondError(w, r, mapping.ErrHeadersMissing)
		return
	}

	records := s.service.Mapper().ApplyMapping(req.Headers, req.Rows, req.Mappings)
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}
