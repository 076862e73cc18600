package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/translit"
	"github.com/FocuswithJustin/strutils/core/value"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(plugins.NewLoader(), nil, "test")
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("result = %+v, want one content item", res)
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want text", res.Content[0])
	}
	return tc.Text
}

func TestDeunicodeTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		in   string
		want string
	}{
		{"A…C", "A...C"},
		{"café", "cafe"},
		{"", ""},
		{"Привет", "Privet"},
	}
	for _, tt := range tests {
		res, err := s.handleDeunicode(ctx, callRequest(ToolDeunicode, map[string]any{"text": tt.in}))
		if err != nil {
			t.Fatalf("handleDeunicode(%q) error = %v", tt.in, err)
		}
		if res.IsError {
			t.Errorf("handleDeunicode(%q) is an error result", tt.in)
		}
		if got := resultText(t, res); got != tt.want {
			t.Errorf("handleDeunicode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeunicodeToolRejectsNonStrings(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		arg  any
		want string
	}{
		{float64(5), "int"},
		{float64(2), "int"},
		{2.5, "float"},
		{true, "bool"},
		{[]any{"a"}, "list"},
		{map[string]any{"k": "v"}, "record"},
		{nil, "nothing"},
	}
	for _, tt := range tests {
		res, err := s.handleDeunicode(ctx, callRequest(ToolDeunicode, map[string]any{"text": tt.arg}))
		if err != nil {
			t.Fatalf("handleDeunicode(%v) error = %v", tt.arg, err)
		}
		want := "Input type not supported: only string input data is supported, got " + tt.want
		if got := resultText(t, res); !res.IsError || got != want {
			t.Errorf("handleDeunicode(%v) = %q (error %v), want %q", tt.arg, got, res.IsError, want)
		}
	}

	res, err := s.handleDeunicode(ctx, callRequest(ToolDeunicode, map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); !res.IsError || !strings.Contains(got, "text") {
		t.Errorf("missing argument = %q (error %v)", got, res.IsError)
	}
}

// The tool sees numbers after mcp-go decoded them to float64; the name it
// reports must match what the CLI and HTTP surfaces report for the same JSON.
func TestArgTypeNameMatchesFromJSON(t *testing.T) {
	for _, src := range []string{`5`, `2.0`, `2.5`, `-1e2`, `1e300`, `true`, `null`, `[1]`, `{"a":1}`} {
		var arg any
		if err := json.Unmarshal([]byte(src), &arg); err != nil {
			t.Fatal(err)
		}
		v, err := value.FromJSON([]byte(src), value.Unknown)
		if err != nil {
			t.Fatalf("FromJSON(%s) error = %v", src, err)
		}
		if got := argTypeName(arg); got != v.TypeName() {
			t.Errorf("argTypeName(%s) = %s, FromJSON says %s", src, got, v.TypeName())
		}
	}
}

func TestRunCommandTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleRunCommand(ctx, callRequest(ToolRunCommand, map[string]any{
		"name": "str deunicode", "input": `"Straße"`,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); res.IsError || got != `"Strasse"` {
		t.Errorf("run_command = %q (error %v)", got, res.IsError)
	}

	// a type mismatch comes back as a tool error carrying the message
	res, err = s.handleRunCommand(ctx, callRequest(ToolRunCommand, map[string]any{
		"name": "str deunicode", "input": `5`,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); !res.IsError || got != "Error: Input type not supported." {
		t.Errorf("mismatch = %q (error %v)", got, res.IsError)
	}

	for _, args := range []map[string]any{
		{"name": "str nope", "input": `"x"`},
		{"name": "str deunicode", "input": `{`},
		{"input": `"x"`},
	} {
		res, err := s.handleRunCommand(ctx, callRequest(ToolRunCommand, args))
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsError {
			t.Errorf("args %v succeeded, want tool error", args)
		}
	}
}

func TestProtocolRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	send := func(msg string) string {
		t.Helper()
		resp := s.MCPServer().HandleMessage(ctx, json.RawMessage(msg))
		data, err := json.Marshal(resp)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		return string(data)
	}

	initResp := send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`)
	var out map[string]any
	if err := json.Unmarshal([]byte(initResp), &out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out["result"]; !ok {
		t.Fatalf("initialize = %s, want a result", initResp)
	}

	list := send(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	for _, name := range []string{`"str_deunicode"`, `"run_command"`} {
		if !strings.Contains(list, name) {
			t.Errorf("tools/list = %s, missing %s", list, name)
		}
	}

	call := send(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"str_deunicode","arguments":{"text":"A…C"}}}`)
	if !strings.Contains(call, `"A...C"`) {
		t.Errorf("tools/call = %s", call)
	}

	read := send(`{"jsonrpc":"2.0","id":4,"method":"resources/read","params":{"uri":"strutils://table"}}`)
	if !strings.Contains(read, translit.Default().Digest()) {
		t.Errorf("resources/read = %s, missing digest", read)
	}
}
