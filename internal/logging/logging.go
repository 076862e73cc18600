// Package logging configures the process-wide slog logger and provides the
// structured events the host, the plugins and the servers emit.
//
// Output goes to stderr: plugin binaries reserve stdout for the protocol.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level is a slog level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the handler.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

type contextKey struct{}

var defaultLogger *slog.Logger

func init() {
	InitLoggerTo(os.Stderr, LevelInfo, FormatText)
}

// ParseLevel accepts debug, info, warn (or warning) and error, in any case.
// Empty means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat accepts text or json. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q", s)
}

// InitLoggerTo replaces the global logger with one writing to w. Times are
// RFC 3339 at second precision.
func InitLoggerTo(w io.Writer, level Level, format Format) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	}
	defaultLogger = slog.New(h)
	slog.SetDefault(defaultLogger)
}

// WithRequestID stores id in ctx for FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// RequestID returns the request ID stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// FromContext returns the global logger, tagged with the request ID when
// ctx carries one.
func FromContext(ctx context.Context) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		return defaultLogger.With("request_id", id)
	}
	return defaultLogger
}

func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// HTTPRequest logs one served request.
func HTTPRequest(ctx context.Context, method, path, remoteAddr string, status, bytes int, duration time.Duration) {
	FromContext(ctx).Info("http_request",
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"status_code", status,
		"bytes", bytes,
		"duration_ms", duration.Milliseconds(),
	)
}

// PluginLoading logs a plugin being added to a loader.
func PluginLoading(pluginID, version, kind string, args ...any) {
	defaultLogger.Info("plugin_loading",
		append([]any{"plugin_id", pluginID, "version", version, "kind", kind}, args...)...)
}

// PluginError logs a plugin that failed to load or run.
func PluginError(pluginID, operation string, err error, args ...any) {
	defaultLogger.Error("plugin_error",
		append([]any{"plugin_id", pluginID, "operation", operation, "error", err.Error()}, args...)...)
}

// CommandRun logs one command invocation at debug level.
func CommandRun(ctx context.Context, command, inputType, outputType string, duration time.Duration) {
	FromContext(ctx).Debug("command_run",
		"command", command,
		"input_type", inputType,
		"output_type", outputType,
		"duration_us", duration.Microseconds(),
	)
}

// TableLoaded logs a compiled transliteration table.
func TableLoaded(digest string, ranges, codepoints int, overlays []string) {
	defaultLogger.Info("table_loaded",
		"digest", digest,
		"ranges", ranges,
		"codepoints", codepoints,
		"overlays", overlays,
	)
}

// ServerStartup logs a server beginning to accept work.
func ServerStartup(serverType, protocol, addr string, args ...any) {
	defaultLogger.Info("server_startup",
		append([]any{"server_type", serverType, "protocol", protocol, "addr", addr}, args...)...)
}

// StreamEvent logs a websocket stream opening or closing.
func StreamEvent(ctx context.Context, event string, frames int, args ...any) {
	FromContext(ctx).Info("stream_event",
		append([]any{"event", event, "frames", frames}, args...)...)
}

// SecurityEvent logs a rejected or security-relevant action at warn level.
func SecurityEvent(event, component string, args ...any) {
	defaultLogger.Warn("security_event",
		append([]any{"event", event, "component", component}, args...)...)
}
