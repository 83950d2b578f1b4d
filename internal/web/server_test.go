package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/config"
	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/mapping"
	"github.com/JonMunkholm/sheetimport/internal/templatestore"
	"github.com/xuri/excelize/v2"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
			MaxUploadSize:  1 << 20,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	return NewServer(core.NewService(templatestore.NewMemory(), core.DefaultOptions()), cfg)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, s *Server, path, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if content != nil {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %d: %v", rec.Code, err)
	}
	return v
}

func xlsx(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue("Sheet1", cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["available"] != float64(core.DefaultMaxConcurrent) {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{APIKeys: []string{"secret-key"}, RequireAPIKey: true}
	s := newTestServer(t, cfg)

	if rec := do(t, s, http.MethodGet, "/api/templates", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}

	if rec := do(t, s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without key", rec.Code)
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, testConfig())

	book := xlsx(t, [][]string{
		{"Accommodation", "January", "February"},
		{"Hotel", "€150", "€160"},
	})
	rec := upload(t, s, "/api/analyze", "rates.xlsx", book, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	res := decode[core.WorkbookAnalysis](t, rec)
	if len(res.Sheets) != 1 {
		t.Fatalf("len(Sheets) = %d, want 1", len(res.Sheets))
	}
	if got := res.Sheets[0].Pricing.Summary.TotalEntries; got != 2 {
		t.Errorf("TotalEntries = %d, want 2", got)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		content  []byte
		wantCode int
		wantErr  string
	}{
		{"no file", nil, http.StatusBadRequest, "REQ003"},
		{"not a workbook", []byte("plain text"), http.StatusBadRequest, "IMP002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, s, "/api/analyze", "rates.xlsx", tt.content, nil)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.wantErr {
				t.Errorf("code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestImport(t *testing.T) {
	s := newTestServer(t, testConfig())

	csv := []byte("Month,Price\nJanuary,€100\nFebruary,-5\n")
	rec := upload(t, s, "/api/import", "rates.csv", csv, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	res := decode[core.ImportResult](t, rec)
	if res.Source != core.SourceSuggested {
		t.Errorf("Source = %q, want suggested", res.Source)
	}
	if res.Validation.InvalidRows != 1 {
		t.Errorf("InvalidRows = %d, want 1", res.Validation.InvalidRows)
	}

	rec = upload(t, s, "/api/import", "rates.csv", csv, map[string]string{"templateId": "missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown template status = %d, want 404", rec.Code)
	}
}

func TestClassify(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodPost, "/api/classify", map[string]any{"text": "January"})
	if got := decode[map[string]any](t, rec)["type"]; got != "month" {
		t.Errorf("type = %v, want month", got)
	}

	rec = do(t, s, http.MethodPost, "/api/classify", map[string]any{"values": []string{"€120", ""}})
	got := decode[[]map[string]any](t, rec)
	if len(got) != 2 || got[0]["type"] != "price" || got[1]["type"] != "empty" {
		t.Errorf("values = %v", got)
	}

	rec = do(t, s, http.MethodPost, "/api/classify", map[string]any{"unknown": true})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rec.Code)
	}
}

func TestMappings(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodPost, "/api/mappings/suggest", map[string]any{
		"headers":    []string{"Month", "Price"},
		"sampleData": [][]string{{"January", "€100"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("suggest status = %d", rec.Code)
	}
	suggestions := decode[struct {
		Suggestions []mapping.Suggestion `json:"suggestions"`
	}](t, rec).Suggestions
	if len(suggestions) != 2 {
		t.Fatalf("len(suggestions) = %d, want 2", len(suggestions))
	}

	mappings := []mapping.Mapping{
		{ExcelColumn: "Month", SystemField: "month", DataType: mapping.TypeString},
	}
	rec = do(t, s, http.MethodPost, "/api/mappings/validate", map[string]any{"mappings": mappings})
	v := decode[mapping.Validation](t, rec)
	if v.IsValid {
		t.Error("validation without price mapping IsValid = true")
	}

	rec = do(t, s, http.MethodPost, "/api/mappings/apply", map[string]any{
		"headers":  []string{"Month"},
		"rows":     [][]string{{"March"}},
		"mappings": mappings,
	})
	records := decode[struct {
		Records []map[string]any `json:"records"`
	}](t, rec).Records
	if len(records) != 1 || records[0]["month"] != "March" {
		t.Errorf("records = %v", records)
	}

	rec = do(t, s, http.MethodPost, "/api/mappings/apply", map[string]any{"mappings": mappings})
	if got := decode[ErrorResponse](t, rec).Code; got != "IMP001" {
		t.Errorf("apply without headers code = %q, want IMP001", got)
	}
}

func TestInclusions(t *testing.T) {
	s := newTestServer(t, testConfig())

	items := []string{"• Daily breakfast", "- Free WiFi", "x"}
	rec := do(t, s, http.MethodPost, "/api/inclusions/process", map[string]any{"items": items})
	body := decode[map[string]any](t, rec)
	if valid, _ := body["valid"].([]any); len(valid) != 2 {
		t.Errorf("valid = %v, want 2 items", body["valid"])
	}

	rec = do(t, s, http.MethodPost, "/api/inclusions/format", map[string]any{"items": items, "style": "numbered"})
	text := decode[map[string]any](t, rec)["text"]
	if text != "1. Daily breakfast\n2. Free WiFi" {
		t.Errorf("text = %q", text)
	}
}

func TestTemplatesLifecycle(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodPost, "/api/templates", mapping.Template{
		Name: "Partner",
		Mappings: []mapping.Mapping{
			{ExcelColumn: "Month", SystemField: "month", DataType: mapping.TypeString},
		},
		ApplicablePatterns: []string{"^month$", "price"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decode[mapping.Template](t, rec)
	if created.ID == "" {
		t.Fatal("created template has no id")
	}

	rec = do(t, s, http.MethodGet, "/api/templates?headers=Month,Price%20(EUR)", nil)
	matches := decode[struct {
		Matches []mapping.TemplateMatch `json:"matches"`
	}](t, rec).Matches
	if len(matches) != 1 || matches[0].Template.ID != created.ID {
		t.Errorf("matches = %+v", matches)
	}

	rec = do(t, s, http.MethodPost, "/api/templates/"+created.ID+"/use", nil)
	if got := decode[mapping.Template](t, rec).UseCount; got != 1 {
		t.Errorf("UseCount = %d, want 1", got)
	}

	rec = do(t, s, http.MethodGet, "/api/templates/recent", nil)
	recent := decode[struct {
		Templates []mapping.Template `json:"templates"`
	}](t, rec).Templates
	if len(recent) != 1 {
		t.Errorf("recent = %d templates, want 1", len(recent))
	}

	name := "Partner B"
	rec = do(t, s, http.MethodPut, "/api/templates/"+created.ID, mapping.Patch{Name: &name})
	if got := decode[mapping.Template](t, rec).Name; got != name {
		t.Errorf("updated name = %q, want %q", got, name)
	}

	if rec = do(t, s, http.MethodDelete, "/api/templates/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	rec = do(t, s, http.MethodGet, "/api/templates/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec).Code; got != "TPL001" {
		t.Errorf("code = %q, want TPL001", got)
	}
}

func TestCreateTemplate_Invalid(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name    string
		tpl     mapping.Template
		wantErr string
	}{
		{"no name", mapping.Template{}, "TPL002"},
		{"bad pattern", mapping.Template{Name: "x", ApplicablePatterns: []string{"("}}, "TPL003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/templates", tt.tpl)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.wantErr {
				t.Errorf("code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"TPL001", http.StatusNotFound},
		{"TPL002", http.StatusBadRequest},
		{"IMP004", http.StatusBadRequest},
		{"REQ002", http.StatusRequestEntityTooLarge},
		{"PRC001", http.StatusUnprocessableEntity},
		{"SRV001", http.StatusServiceUnavailable},
		{"SRV003", http.StatusGatewayTimeout},
		{"ERR000", http.StatusInternalServerError},
		{"AUTH001", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := statusFor(tt.code); got != tt.want {
				t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxUploadSize = 64
	s := newTestServer(t, cfg)

	rec := upload(t, s, "/api/import", "big.csv", []byte(strings.Repeat("a,b\n", 100)), nil)
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 413 or 400", rec.Code)
	}
}
