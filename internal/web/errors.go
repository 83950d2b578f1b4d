package web

// errors.go turns handler errors into JSON responses.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. Error is mapped via core.MapError to a user message and code
//  4. The code picks the HTTP status
//  5. Technical error is logged with the request id for correlation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// Request errors raised by the web layer itself.
var (
	msgBadRequest = core.UserMessage{
		Message: "The request could not be read",
		Action:  "Check the request body and try again",
		Code:    "REQ001",
	}
	msgTooLarge = core.UserMessage{
		Message: "The uploaded file is too large",
		Action:  "Split the file or remove unused sheets and try again",
		Code:    "REQ002",
	}
	msgNoFile = core.UserMessage{
		Message: "No file was uploaded",
		Action:  "Attach the file in the \"file\" form field",
		Code:    "REQ003",
	}
)

func badRequest(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &core.UserError{Technical: err, User: msgTooLarge}
	}
	return &core.UserError{Technical: err, User: msgBadRequest}
}

// statusFor maps a user message code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case "TPL001":
		return http.StatusNotFound
	case "REQ002":
		return http.StatusRequestEntityTooLarge
	case "PRC001":
		return http.StatusUnprocessableEntity
	case "SRV001", "SRV002":
		return http.StatusServiceUnavailable
	case "SRV003":
		return http.StatusGatewayTimeout
	case "DICT001", "ERR000":
		return http.StatusInternalServerError
	}
	switch {
	case strings.HasPrefix(code, "TPL"), strings.HasPrefix(code, "IMP"), strings.HasPrefix(code, "REQ"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.MapError(err)
	status := statusFor(msg.Code)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as the response body. Encoding errors are logged
// since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err)
	}
	return nil
}
