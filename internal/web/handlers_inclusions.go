package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetimport/internal/inclusions"
)

type inclusionsRequest struct {
	Items []string         `json:"items"`
	Style inclusions.Style `json:"style,omitempty"`
	Merge bool             `json:"merge,omitempty"`
}

// handleProcessInclusions cleans and scores raw inclusion lines.
func (s *Server) handleProcessInclusions(w http.ResponseWriter, r *http.Request) {
	var req inclusionsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.service.ProcessInclusions(req.Items))
}

// handleFormatInclusions renders the valid lines for display, optionally
// merging near-duplicates first. Style defaults to bullets.
func (s *Server) handleFormatInclusions(w http.ResponseWriter, r *http.Request) {
	var req inclusionsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	items := s.service.ProcessInclusions(req.Items).Items
	if req.Merge {
		items = inclusions.MergeSimilarInclusions(items)
	}
	style := req.Style
	if style == "" {
		style = inclusions.StyleBullet
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":  inclusions.FormatForDisplay(items, style),
		"items": items,
	})
}
