package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/FocuswithJustin/strutils/core/command"
	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/translit/tbl"
	"github.com/FocuswithJustin/strutils/core/value"
	"github.com/FocuswithJustin/strutils/internal/commands/strutils"
)

// RunRequest is the body of POST /v1/commands/{name}. Input holds a value
// in its tagged encoding; Raw holds plain JSON converted to a value.
// Exactly one of them must be set.
type RunRequest struct {
	Input *value.Value    `json:"input,omitempty"`
	Raw   json.RawMessage `json:"raw,omitempty"`
	Head  *value.Span     `json:"head,omitempty"`
}

// RunResponse carries the command's output value. Error values are
// outputs too and come back with status 200.
type RunResponse struct {
	Value value.Value `json:"value"`
}

// PluginInfo describes one loaded plugin and its commands.
type PluginInfo struct {
	ID       string              `json:"id"`
	Version  string              `json:"version"`
	Kind     string              `json:"kind"`
	Embedded bool                `json:"embedded"`
	Commands []command.Signature `json:"commands"`
}

// TableInfo summarises the transliteration table in use.
type TableInfo struct {
	Digest      string `json:"digest"`
	Ranges      int    `json:"ranges"`
	Codepoints  int    `json:"codepoints"`
	Placeholder string `json:"placeholder"`
}

// LookupResult is the table entry for one codepoint.
type LookupResult struct {
	Codepoint   string `json:"codepoint"`
	Char        string `json:"char"`
	Mapped      bool   `json:"mapped"`
	Replacement string `json:"replacement"`
	Output      string `json:"output"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"name":         "strutils",
		"host_version": plugins.HostVersion,
		"table_digest": s.engine.Mapping().Digest(),
		"endpoints": []string{
			"GET /healthz",
			"GET /v1/commands",
			"POST /v1/commands/{name}",
			"POST /v1/deunicode",
			"GET /v1/table",
			"GET /v1/table/{codepoint}",
			"GET /v1/stream",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.signatures.Get(r.Context())
	if err != nil {
		respondRunError(w, err)
		return
	}
	out := make([]PluginInfo, 0, len(loaded))
	for _, pc := range loaded {
		out = append(out, PluginInfo{
			ID:       pc.Plugin.ID(),
			Version:  pc.Plugin.Manifest.Version,
			Kind:     pc.Plugin.Manifest.Kind,
			Embedded: pc.Plugin.Embedded() || plugins.HasEmbeddedPlugin(pc.Plugin.ID()),
			Commands: pc.Signatures,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"plugins": out})
}

func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondRunError(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body: "+err.Error())
		return
	}
	input, err := req.value()
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	head := value.Unknown
	if req.Head != nil {
		head = *req.Head
	}

	out, err := s.loader.Run(r.Context(), name, input, head)
	if err != nil {
		respondRunError(w, err)
		return
	}
	s.metrics.observeCommand(name, out)
	respondJSON(w, http.StatusOK, RunResponse{Value: out})
}

func (req *RunRequest) value() (value.Value, error) {
	switch {
	case req.Input != nil && len(req.Raw) > 0:
		return value.Value{}, errors.New("set either input or raw, not both")
	case req.Input != nil:
		return *req.Input, nil
	case len(req.Raw) > 0:
		return value.FromJSON(req.Raw, value.Unknown)
	}
	return value.Value{}, errors.New("input or raw is required")
}

func (s *Server) handleDeunicode(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || !strings.HasPrefix(mt, "text/") {
			respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Expected a text/* body")
			return
		}
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondRunError(w, err)
		return
	}
	if !utf8.Valid(body) {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Body is not valid UTF-8")
		return
	}

	out, err := s.loader.Run(r.Context(), strutils.DeunicodeName, value.String(string(body), value.Unknown), value.Unknown)
	if err != nil {
		respondRunError(w, err)
		return
	}
	s.metrics.observeCommand(strutils.DeunicodeName, out)
	text, ok := out.AsString()
	if !ok {
		respondError(w, http.StatusUnprocessableEntity, "COMMAND_ERROR", out.Display())
		return
	}
	s.metrics.observeTransliterated(len(body))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func (s *Server) handleTableInfo(w http.ResponseWriter, r *http.Request) {
	m := s.engine.Mapping()
	respondJSON(w, http.StatusOK, TableInfo{
		Digest:      m.Digest(),
		Ranges:      m.Len(),
		Codepoints:  m.Codepoints(),
		Placeholder: s.engine.Placeholder(),
	})
}

func (s *Server) handleTableLookup(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "codepoint")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	c, err := tbl.ParseRune(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_CODEPOINT", err.Error())
		return
	}
	repl, ok := s.engine.Mapping().Lookup(c)
	respondJSON(w, http.StatusOK, LookupResult{
		Codepoint:   tbl.FormatCodepoint(c),
		Char:        string(c),
		Mapped:      ok,
		Replacement: repl,
		Output:      s.engine.String(string(c)),
	})
}
