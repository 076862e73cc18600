package plugins

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/value"
	"github.com/FocuswithJustin/strutils/plugins/ipc"
)

// scriptPlugin writes script as the entrypoint of an external command
// plugin in a fresh directory.
func scriptPlugin(t *testing.T, script string) *Plugin {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "plugin.sh"), script)
	return &Plugin{
		Manifest: &Manifest{
			PluginID:     "command.script",
			Version:      "1.0.0",
			Kind:         "command",
			Entrypoint:   "plugin.sh",
			Capabilities: Capabilities{Commands: []string{"str reverse"}},
		},
		Path: dir,
	}
}

func TestExecuteExternalPlugin(t *testing.T) {
	ClearEmbeddedRegistry()
	p := scriptPlugin(t, `#!/bin/sh
read input
id=$(echo "$input" | sed 's/.*"id":"\([^"]*\)".*/\1/')
echo "{\"id\":\"$id\",\"status\":\"ok\",\"result\":{\"type\":\"string\",\"val\":\"olleh\",\"span\":{\"start\":1,\"end\":2}}}"
`)

	resp, err := ExecutePlugin(context.Background(), p, NewRunRequest("str reverse", value.String("hello", value.Unknown), value.Span{Start: 1, End: 2}))
	if err != nil {
		t.Fatalf("ExecutePlugin() error = %v", err)
	}
	if resp.ID == "" {
		t.Error("response did not echo the generated request ID")
	}
	got, err := ParseRunResult(resp)
	if err != nil {
		t.Fatalf("ParseRunResult() error = %v", err)
	}
	if s, _ := got.AsString(); s != "olleh" {
		t.Errorf("result = %+v", got)
	}

	l := NewLoader()
	l.Add(p)
	got, err = l.Run(context.Background(), "str reverse", value.String("hello", value.Unknown), value.Unknown)
	if err != nil || got.Val != "olleh" {
		t.Errorf("Loader.Run() = %+v, %v", got, err)
	}
}

func TestExternalPluginEnv(t *testing.T) {
	ClearEmbeddedRegistry()
	t.Setenv("STRUTILS_TABLE_PLACEHOLDER", "#")
	SetPluginEnv("STRUTILS_TABLE_PLACEHOLDER=?", "STRUTILS_TABLE_OVERLAYS=/srv/extra.tbl")
	t.Cleanup(func() { SetPluginEnv() })

	p := scriptPlugin(t, `#!/bin/sh
read input
echo "{\"status\":\"ok\",\"result\":{\"type\":\"string\",\"val\":\"$STRUTILS_TABLE_PLACEHOLDER $STRUTILS_TABLE_OVERLAYS\"}}"
`)
	resp, err := ExecutePlugin(context.Background(), p, NewRunRequest("str reverse", value.String("x", value.Unknown), value.Unknown))
	if err != nil {
		t.Fatalf("ExecutePlugin() error = %v", err)
	}
	got, err := ParseRunResult(resp)
	if err != nil {
		t.Fatalf("ParseRunResult() error = %v", err)
	}
	if got.Val != "? /srv/extra.tbl" {
		t.Errorf("plugin saw %q, want the host's table settings", got.Val)
	}

	env := PluginEnv()
	env[0] = "changed"
	if PluginEnv()[0] == "changed" {
		t.Error("PluginEnv() returned the shared slice")
	}
}

func TestExecuteExternalPluginErrorResponse(t *testing.T) {
	ClearEmbeddedRegistry()
	p := scriptPlugin(t, `#!/bin/sh
read input
echo '{"status":"error","error":"command \"str nope\" not found","code":"not_found"}'
`)
	resp, err := ExecutePlugin(context.Background(), p, NewRunRequest("str nope", value.Nothing(value.Unknown), value.Unknown))
	if err != nil {
		t.Fatal(err)
	}
	_, err = ParseRunResult(resp)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("ParseRunResult() error = %v, want not found", err)
	}
}

func TestExecuteExternalPluginFailures(t *testing.T) {
	ClearEmbeddedRegistry()
	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		want    string
	}{
		{
			name:    "timeout",
			script:  "#!/bin/sh\nexec sleep 10\n",
			timeout: 200 * time.Millisecond,
			want:    "timed out",
		},
		{
			name:    "exit status",
			script:  "#!/bin/sh\necho 'table missing' >&2\nexit 3\n",
			timeout: 5 * time.Second,
			want:    "table missing",
		},
		{
			name:    "invalid json",
			script:  "#!/bin/sh\nread input\necho 'not valid json'\n",
			timeout: 5 * time.Second,
			want:    "plugin response",
		},
		{
			name:    "wrong id",
			script:  "#!/bin/sh\nread input\necho '{\"id\":\"someone-else\",\"status\":\"ok\"}'\n",
			timeout: 5 * time.Second,
			want:    "someone-else",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scriptPlugin(t, tt.script)
			_, err := ExecutePluginWithTimeout(context.Background(), p, NewMetadataRequest(), tt.timeout)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestExecutePluginRejectsUnsafeEntrypoint(t *testing.T) {
	ClearEmbeddedRegistry()
	p := scriptPlugin(t, "#!/bin/sh\necho '{\"status\":\"ok\"}'\n")
	p.Manifest.Entrypoint = "../plugin.sh"
	_, err := ExecutePlugin(context.Background(), p, NewMetadataRequest())
	if !errors.Is(err, ErrInvalidPluginPath) {
		t.Errorf("ExecutePlugin() error = %v, want ErrInvalidPluginPath", err)
	}
}

func TestEmbeddedPreferredWhenExternalDisabled(t *testing.T) {
	registerReverse(t)
	t.Cleanup(DisableExternalPlugins)

	p := scriptPlugin(t, "#!/bin/sh\nread input\necho '{\"status\":\"ok\",\"result\":{\"name\":\"external\"}}'\n")
	p.Manifest.PluginID = "command.reverse"

	DisableExternalPlugins()
	resp, err := ExecutePlugin(context.Background(), p, NewMetadataRequest())
	if err != nil {
		t.Fatal(err)
	}
	meta, err := ParseMetadataResult(resp)
	if err != nil || meta.Name != "reverse" {
		t.Errorf("disabled: metadata = %+v, %v; want embedded", meta, err)
	}

	EnableExternalPlugins()
	resp, err = ExecutePlugin(context.Background(), p, NewMetadataRequest())
	if err != nil {
		t.Fatal(err)
	}
	meta, err = ParseMetadataResult(resp)
	if err != nil || meta.Name != "external" {
		t.Errorf("enabled: metadata = %+v, %v; want external", meta, err)
	}
}

func TestResponseError(t *testing.T) {
	tests := []struct {
		resp *IPCResponse
		want error
	}{
		{&IPCResponse{Status: ipc.StatusOK}, nil},
		{&IPCResponse{Status: ipc.StatusError, Code: ipc.CodeInvalidInput, Error: "bad"}, apperrors.ErrInvalidInput},
		{&IPCResponse{Status: ipc.StatusError, Code: ipc.CodeUnsupported, Error: "bad"}, apperrors.ErrUnsupported},
		{&IPCResponse{Status: ipc.StatusError, Code: ipc.CodeNotFound, Error: "bad"}, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		err := ResponseError(tt.resp)
		if tt.want == nil {
			if err != nil {
				t.Errorf("ResponseError(ok) = %v", err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("ResponseError(%s) = %v, want %v", tt.resp.Code, err, tt.want)
		}
	}

	err := ResponseError(&IPCResponse{Status: ipc.StatusError, Error: "boom"})
	if err == nil || err.Error() != "plugin error: boom" {
		t.Errorf("ResponseError(internal) = %v", err)
	}
}
