package web

import (
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
)

// defaultMaxUpload applies when the server config leaves the size unset.
const defaultMaxUpload = 20 << 20

// openUpload returns the multipart "file" field, capped at the configured
// upload size. The caller closes the file.
func (s *Server) openUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	limit := s.cfg.Server.MaxUploadSize
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, nil, badRequest(err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, &core.UserError{Technical: err, User: msgNoFile}
	}
	return file, header, nil
}

// handleAnalyze runs the full pipeline over an uploaded .xlsx workbook.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.openUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	logging.FromContext(r.Context()).Debug("analysing workbook", "file", header.Filename, "size", header.Size)

	res, err := s.service.AnalyzeWorkbook(r.Context(), file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleImport maps and validates an uploaded CSV file. The optional
// "templateId" form field selects a saved template.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.openUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	logging.FromContext(r.Context()).Debug("importing csv", "file", header.Filename, "size", header.Size)

	res, err := s.service.ImportCSV(r.Context(), file, r.FormValue("templateId"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type classifyRequest struct {
	Text   string   `json:"text,omitempty"`
	Values []string `json:"values,omitempty"`
}

type classifiedValue struct {
	Value string `json:"value"`
	classify.Token
}

// handleClassify classifies one text or a list of values.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if req.Values == nil {
		writeJSON(w, http.StatusOK, s.service.Classify(req.Text))
		return
	}
	out := make([]classifiedValue, len(req.Values))
	for i, v := range req.Values {
		out[i] = classifiedValue{Value: v, Token: s.service.Classify(v)}
	}
	writeJSON(w, http.StatusOK, out)
}
