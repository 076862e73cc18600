package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/translit"
)

func dialStream(t *testing.T, cfg Config, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(NewServer(cfg, plugins.NewLoader(), nil).Handler(ctx))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func TestStream(t *testing.T) {
	conn, _, err := dialStream(t, testConfig(), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	frames := []string{"café", "plain", "", "A…C Straße"}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("WriteMessage(%q) error = %v", f, err)
		}
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, f := range frames {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if kind != websocket.TextMessage {
			t.Errorf("frame kind = %d, want text", kind)
		}
		if want := translit.String(f); string(data) != want {
			t.Errorf("frame %q answered %q, want %q", f, data, want)
		}
	}
}

func TestStreamClosesOnBadFrames(t *testing.T) {
	tests := []struct {
		name string
		kind int
		data []byte
		code int
	}{
		{"binary", websocket.BinaryMessage, []byte{1, 2}, websocket.CloseUnsupportedData},
		{"invalid utf-8", websocket.TextMessage, []byte{0xff, 'a'}, websocket.CloseInvalidFramePayloadData},
		{"too large", websocket.TextMessage, []byte(strings.Repeat("x", 64)), websocket.CloseMessageTooBig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxBodyBytes = 32
			conn, _, err := dialStream(t, cfg, nil)
			if err != nil {
				t.Fatalf("Dial() error = %v", err)
			}
			if err := conn.WriteMessage(tt.kind, tt.data); err != nil {
				t.Fatalf("WriteMessage() error = %v", err)
			}
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err = conn.ReadMessage()
			if !websocket.IsCloseError(err, tt.code) {
				t.Errorf("ReadMessage() error = %v, want close %d", err, tt.code)
			}
		})
	}
}

func TestStreamRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = RateLimiterConfig{RequestsPerMinute: 1, BurstSize: 2}
	conn, _, err := dialStream(t, cfg, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 2; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("é")); err != nil {
			t.Fatal(err)
		}
		if _, data, err := conn.ReadMessage(); err != nil || string(data) != "e" {
			t.Fatalf("frame %d = %q, %v", i, data, err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("é")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("third frame error = %v, want policy violation", err)
	}
}

func TestStreamOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://app.example"}

	_, resp, err := dialStream(t, cfg, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("expected handshake failure for unlisted origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	if _, _, err := dialStream(t, cfg, http.Header{"Origin": {"https://app.example"}}); err != nil {
		t.Errorf("listed origin: %v", err)
	}
}

func TestStreamRequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = AuthConfig{Enabled: true, APIKey: "secret"}

	if _, resp, err := dialStream(t, cfg, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no key: err = %v, resp = %v", err, resp)
	}
	if _, _, err := dialStream(t, cfg, http.Header{APIKeyHeader: {"secret"}}); err != nil {
		t.Errorf("with key: %v", err)
	}
}
