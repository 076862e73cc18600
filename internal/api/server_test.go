package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/translit"
	"github.com/FocuswithJustin/strutils/core/value"
)

func testConfig() Config {
	return Config{Addr: "127.0.0.1:0", MaxBodyBytes: 1 << 16, Metrics: true}
}

func newTestHandler(t *testing.T, cfg Config) (http.Handler, *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := NewServer(cfg, plugins.NewLoader(), nil)
	return s.Handler(ctx), s
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestRunCommand(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())
	const path = "/v1/commands/str%20deunicode"

	t.Run("tagged input", func(t *testing.T) {
		w := do(t, h, http.MethodPost, path, "application/json",
			`{"input":{"type":"string","val":"A…C","span":{"start":0,"end":5}},"head":{"start":8,"end":21}}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body)
		}
		got := decode[RunResponse](t, w).Value
		if s, _ := got.AsString(); s != "A...C" {
			t.Errorf("value = %v, want A...C", got.Val)
		}
		if got.Span != (value.Span{Start: 8, End: 21}) {
			t.Errorf("span = %+v, want head span", got.Span)
		}
	})

	t.Run("raw input", func(t *testing.T) {
		w := do(t, h, http.MethodPost, path, "application/json", `{"raw":"café"}`)
		got := decode[RunResponse](t, w).Value
		if s, _ := got.AsString(); s != "cafe" {
			t.Errorf("value = %v, want cafe", got.Val)
		}
	})

	t.Run("type mismatch is a value", func(t *testing.T) {
		w := do(t, h, http.MethodPost, path, "application/json",
			`{"input":{"type":"int","val":5,"span":{"start":0,"end":1}},"head":{"start":4,"end":17}}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		got := decode[RunResponse](t, w).Value
		if !got.IsError() {
			t.Fatalf("value type = %s, want error", got.Type)
		}
		labels := got.Error.Labels
		if len(labels) != 2 || labels[0].Text != "only string input data is supported" || labels[1].Text != "input type: int" {
			t.Errorf("labels = %+v", labels)
		}
		if labels[0].Span != (value.Span{Start: 4, End: 17}) || labels[1].Span != (value.Span{Start: 0, End: 1}) {
			t.Errorf("label spans = %+v, %+v", labels[0].Span, labels[1].Span)
		}
	})

	tests := []struct {
		name string
		path string
		body string
		want int
		code string
	}{
		{"bad json", path, `{"input":`, http.StatusBadRequest, "INVALID_JSON"},
		{"unknown value type", path, `{"input":{"type":"duration","val":1}}`, http.StatusBadRequest, "INVALID_JSON"},
		{"no input", path, `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"input and raw", path, `{"input":{"type":"string","val":"x"},"raw":"y"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown command", "/v1/commands/str%20shout", `{"raw":"x"}`, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, tt.path, "application/json", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
			if got := decode[ErrorResponse](t, w).Error.Code; got != tt.code {
				t.Errorf("error code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestDeunicodeEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	w := do(t, h, http.MethodPost, "/v1/deunicode", "text/plain; charset=utf-8", "Straße Привет A…C")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if got := w.Body.String(); got != "Strasse Privet A...C" {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	if w := do(t, h, http.MethodPost, "/v1/deunicode", "", ""); w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("empty body: status %d, body %q", w.Code, w.Body)
	}
	if w := do(t, h, http.MethodPost, "/v1/deunicode", "application/json", `"x"`); w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("json body status = %d, want 415", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/v1/deunicode", "text/plain", "\xff\xfe"); w.Code != http.StatusBadRequest {
		t.Errorf("invalid UTF-8 status = %d, want 400", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/v1/deunicode", "", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 8
	h, _ := newTestHandler(t, cfg)

	w := do(t, h, http.MethodPost, "/v1/deunicode", "text/plain", strings.Repeat("é", 10))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
	w = do(t, h, http.MethodPost, "/v1/commands/str%20deunicode", "application/json", `{"raw":"0123456789"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestTableEndpoints(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())
	m := translit.Default()

	info := decode[TableInfo](t, do(t, h, http.MethodGet, "/v1/table", "", ""))
	if info.Digest != m.Digest() || info.Codepoints != m.Codepoints() || info.Ranges != m.Len() {
		t.Errorf("table info = %+v", info)
	}

	tests := []struct {
		path        string
		codepoint   string
		mapped      bool
		replacement string
	}{
		{"/v1/table/U+00E9", "U+00E9", true, "e"},
		{"/v1/table/%C3%A9", "U+00E9", true, "e"},
		{"/v1/table/A", "U+0041", false, ""},
	}
	for _, tt := range tests {
		w := do(t, h, http.MethodGet, tt.path, "", "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: status %d", tt.path, w.Code)
			continue
		}
		got := decode[LookupResult](t, w)
		if got.Codepoint != tt.codepoint || got.Mapped != tt.mapped || got.Replacement != tt.replacement {
			t.Errorf("%s: got %+v", tt.path, got)
		}
	}

	w := do(t, h, http.MethodGet, "/v1/table/U+ZZ", "", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad codepoint status = %d, want 400", w.Code)
	}
}

func TestListCommands(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())
	w := do(t, h, http.MethodGet, "/v1/commands", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[struct {
		Plugins []PluginInfo `json:"plugins"`
	}](t, w)

	for _, p := range got.Plugins {
		if p.ID != "command.strutils" {
			continue
		}
		if !p.Embedded || len(p.Commands) != 1 || p.Commands[0].Name != "str deunicode" {
			t.Errorf("strutils plugin = %+v", p)
		}
		return
	}
	t.Errorf("command.strutils not listed in %+v", got.Plugins)
}

func TestHealthAndRoot(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	w := do(t, h, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK || decode[map[string]string](t, w)["status"] != "ok" {
		t.Errorf("healthz: %d %s", w.Code, w.Body)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Request-ID"); got == "" {
		t.Error("missing X-Request-ID")
	}

	root := decode[map[string]any](t, do(t, h, http.MethodGet, "/", "", ""))
	if root["table_digest"] != translit.Default().Digest() {
		t.Errorf("root = %+v", root)
	}

	w = do(t, h, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound || decode[ErrorResponse](t, w).Error.Code != "NOT_FOUND" {
		t.Errorf("unknown route: %d %s", w.Code, w.Body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())
	do(t, h, http.MethodPost, "/v1/deunicode", "text/plain", "café")

	w := do(t, h, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	for _, want := range []string{
		`strutils_command_runs_total{command="str deunicode",output="string"} 1`,
		`strutils_transliterated_bytes_total 5`,
		`strutils_http_requests_total{code="200",method="POST",route="/v1/deunicode"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics = false
	h, s := newTestHandler(t, cfg)
	if s.Metrics() != nil {
		t.Error("metrics collectors created while disabled")
	}
	if w := do(t, h, http.MethodGet, "/metrics", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("/metrics status = %d, want 404", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/v1/deunicode", "text/plain", "é"); w.Body.String() != "e" {
		t.Errorf("deunicode without metrics = %q", w.Body)
	}
}

func TestAuthAndRateLimitWiring(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = AuthConfig{Enabled: true, APIKey: "0123456789abcdef"}
	cfg.RateLimit = RateLimiterConfig{RequestsPerMinute: 1, BurstSize: 3}
	h, _ := newTestHandler(t, cfg)

	if w := do(t, h, http.MethodGet, "/v1/table", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/table", nil)
	req.Header.Set(APIKeyHeader, "0123456789abcdef")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", w.Code)
	}

	// the unauthorised request and the authorised one both spent a token
	do(t, h, http.MethodGet, "/healthz", "", "")
	if w := do(t, h, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("fourth request status = %d, want 429", w.Code)
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://example.org"}
	h, _ := newTestHandler(t, cfg)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/v1/deunicode", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := preflight("https://example.org")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://example.org" {
		t.Errorf("allowed preflight: %d %v", w.Code, w.Header())
	}
	if w := preflight("https://evil.example"); w.Code != http.StatusForbidden {
		t.Errorf("foreign preflight status = %d, want 403", w.Code)
	}
}
