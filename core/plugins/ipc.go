package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/strutils/core/command"
	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/selfcheck"
	"github.com/FocuswithJustin/strutils/core/value"
	"github.com/FocuswithJustin/strutils/internal/logging"
	"github.com/FocuswithJustin/strutils/plugins/ipc"
)

// IPCRequest is the request sent to a plugin.
type IPCRequest = ipc.Request

// IPCResponse is a plugin's reply.
type IPCResponse = ipc.Response

// DefaultTimeout bounds one external plugin call.
const DefaultTimeout = 30 * time.Second

var externalPluginsEnabled atomic.Bool

var (
	pluginEnvMu sync.RWMutex
	pluginEnv   []string
)

// SetPluginEnv sets KEY=value entries added to every external plugin's
// environment on top of the host's own. Later entries win.
func SetPluginEnv(env ...string) {
	pluginEnvMu.Lock()
	defer pluginEnvMu.Unlock()
	pluginEnv = slices.Clone(env)
}

// PluginEnv returns the entries set with SetPluginEnv.
func PluginEnv() []string {
	pluginEnvMu.RLock()
	defer pluginEnvMu.RUnlock()
	return slices.Clone(pluginEnv)
}

// EnableExternalPlugins allows loading and running plugin executables.
func EnableExternalPlugins() {
	externalPluginsEnabled.Store(true)
}

// DisableExternalPlugins restricts the host to embedded plugins.
func DisableExternalPlugins() {
	externalPluginsEnabled.Store(false)
}

// ExternalPluginsEnabled reports whether external plugins may run.
func ExternalPluginsEnabled() bool {
	return externalPluginsEnabled.Load()
}

// ExecutePlugin runs req with DefaultTimeout.
func ExecutePlugin(ctx context.Context, p *Plugin, req *IPCRequest) (*IPCResponse, error) {
	return ExecutePluginWithTimeout(ctx, p, req, DefaultTimeout)
}

// ExecutePluginWithTimeout runs req against p. An external plugin runs as a
// subprocess when external plugins are enabled or no embedded plugin has
// its ID; otherwise the embedded handler answers. Requests without an ID
// get a fresh one.
func ExecutePluginWithTimeout(ctx context.Context, p *Plugin, req *IPCRequest, timeout time.Duration) (*IPCResponse, error) {
	if req.ID == "" {
		r := *req
		r.ID = uuid.NewString()
		req = &r
	}

	if !p.Embedded() && (ExternalPluginsEnabled() || !HasEmbeddedPlugin(p.ID())) {
		return executeExternal(ctx, p, req, timeout)
	}

	resp, err := ExecuteEmbeddedPlugin(p.ID(), req)
	if resp == nil && err == nil {
		return nil, apperrors.NewNotFound("embedded plugin", p.ID())
	}
	return resp, err
}

// executeExternal starts the plugin, writes req as one line on its stdin
// and reads the first response line from its stdout.
func executeExternal(ctx context.Context, p *Plugin, req *IPCRequest, timeout time.Duration) (*IPCResponse, error) {
	entrypoint, err := p.SecureEntrypointPath()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(err, "encode request")
	}
	data = append(data, '\n')

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, entrypoint)
	cmd.Dir = p.Path
	cmd.Env = append(os.Environ(), PluginEnv()...)
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("plugin %s timed out after %v", p.ID(), timeout)
		logging.PluginError(p.ID(), req.Command, err)
		return nil, err
	}
	if err != nil {
		logging.PluginError(p.ID(), req.Command, err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("plugin %s failed: %w (stderr: %s)", p.ID(), err, strings.TrimSpace(stderr.String()))
	}
	logging.Debug("plugin_call", "plugin_id", p.ID(), "command", req.Command,
		"duration_ms", time.Since(start).Milliseconds())

	var resp IPCResponse
	if err := json.NewDecoder(&stdout).Decode(&resp); err != nil {
		return nil, &apperrors.ParseError{Format: "JSON", Path: p.ID(), Message: "plugin response: " + err.Error(), Err: err}
	}
	if resp.ID != "" && resp.ID != req.ID {
		return nil, fmt.Errorf("plugin %s answered request %q with id %q", p.ID(), req.ID, resp.ID)
	}
	return &resp, nil
}

// NewMetadataRequest asks for plugin metadata.
func NewMetadataRequest() *IPCRequest {
	return &IPCRequest{Command: ipc.CommandMetadata}
}

// NewSignatureRequest asks for every command signature.
func NewSignatureRequest() *IPCRequest {
	return &IPCRequest{Command: ipc.CommandSignature}
}

// NewSelfcheckRequest asks the plugin to run its examples.
func NewSelfcheckRequest() *IPCRequest {
	return &IPCRequest{Command: ipc.CommandSelfcheck}
}

// NewRunRequest runs command name on input. head is the span of the
// command name at the call site.
func NewRunRequest(name string, input value.Value, head value.Span) *IPCRequest {
	return &IPCRequest{
		Command: ipc.CommandRun,
		Args: map[string]interface{}{
			"name":  name,
			"input": input,
			"head":  head,
		},
	}
}

// ResponseError converts an error response into a Go error that matches
// the sentinel implied by its code. It returns nil for success.
func ResponseError(resp *IPCResponse) error {
	if resp.Status != ipc.StatusError {
		return nil
	}
	var sentinel error
	switch resp.Code {
	case ipc.CodeNotFound:
		sentinel = apperrors.ErrNotFound
	case ipc.CodeInvalidInput:
		sentinel = apperrors.ErrInvalidInput
	case ipc.CodeUnsupported:
		sentinel = apperrors.ErrUnsupported
	default:
		return fmt.Errorf("plugin error: %s", resp.Error)
	}
	return fmt.Errorf("plugin error: %s: %w", resp.Error, sentinel)
}

// decodeResult re-encodes resp.Result into dst. Embedded plugins return Go
// values and external ones decoded JSON; both end up the same.
func decodeResult(resp *IPCResponse, what string, dst interface{}) error {
	if err := ResponseError(resp); err != nil {
		return err
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return apperrors.Wrapf(err, "re-marshal %s result", what)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &apperrors.ParseError{Format: "JSON", Message: what + " result: " + err.Error(), Err: err}
	}
	return nil
}

// ParseRunResult extracts the value a run request produced.
func ParseRunResult(resp *IPCResponse) (value.Value, error) {
	var v value.Value
	err := decodeResult(resp, "run", &v)
	return v, err
}

// ParseSignatureResult extracts command signatures.
func ParseSignatureResult(resp *IPCResponse) ([]command.Signature, error) {
	var sigs []command.Signature
	err := decodeResult(resp, "signature", &sigs)
	return sigs, err
}

// ParseMetadataResult extracts plugin metadata.
func ParseMetadataResult(resp *IPCResponse) (*ipc.Metadata, error) {
	var meta ipc.Metadata
	if err := decodeResult(resp, "metadata", &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ParseSelfcheckResult extracts a selfcheck report.
func ParseSelfcheckResult(resp *IPCResponse) (*selfcheck.Report, error) {
	var report selfcheck.Report
	if err := decodeResult(resp, "selfcheck", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Run finds the plugin providing name and runs it on input. Input the
// command rejects comes back as an error value, not a Go error.
func (l *Loader) Run(ctx context.Context, name string, input value.Value, head value.Span) (value.Value, error) {
	p, err := l.FindCommand(name)
	if err != nil {
		return value.Value{}, err
	}

	start := time.Now()
	resp, err := ExecutePluginWithTimeout(ctx, p, NewRunRequest(name, input, head), l.Timeout())
	if err != nil {
		return value.Value{}, err
	}
	out, err := ParseRunResult(resp)
	if err != nil {
		return value.Value{}, err
	}
	logging.CommandRun(ctx, name, input.TypeName(), out.TypeName(), time.Since(start))
	return out, nil
}
