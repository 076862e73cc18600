package api

import (
	"io"
	"net/http"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/strutils/internal/logging"
)

const (
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 54 * time.Second
	streamWriteWait  = 10 * time.Second
	// streamFrameLimit bounds one incoming frame when MaxBodyBytes is unset.
	streamFrameLimit = 1 << 16
)

// streamUpgrader accepts browser clients whose origin passes the CORS
// list. Clients that send no Origin header are not browsers and pass.
func (s *Server) streamUpgrader() *websocket.Upgrader {
	origins := s.cfg.AllowedOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 || slices.Contains(origins, origin) {
				return true
			}
			logging.SecurityEvent("stream_origin_rejected", "api", "origin", origin)
			return false
		},
	}
}

// handleStream upgrades to a websocket and answers every text frame with
// its transliteration, in order. Binary frames, invalid UTF-8 and frames
// over the rate limit close the connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.streamUpgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered with an HTTP error
		logging.FromContext(r.Context()).Debug("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = streamFrameLimit
	}
	conn.SetReadLimit(limit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, done)

	var bucket *tokenBucket
	if rl := s.cfg.RateLimit; rl.RequestsPerMinute > 0 {
		burst := rl.BurstSize
		if burst <= 0 {
			burst = defaultBurst
		}
		bucket = newTokenBucket(float64(burst), float64(rl.RequestsPerMinute)/60, time.Now())
	}

	ctx := r.Context()
	logging.StreamEvent(ctx, "stream_opened", 0, "remote_addr", clientIP(r))
	frames := 0
	var out []byte
	for {
		kind, rd, err := conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.FromContext(ctx).Warn("stream closed unexpectedly", "error", err)
			}
			break
		}
		if kind != websocket.TextMessage {
			closeStream(conn, websocket.CloseUnsupportedData, "text frames only")
			break
		}
		if bucket != nil {
			if ok, _, _ := bucket.take(time.Now()); !ok {
				logging.SecurityEvent("stream_rate_limited", "api", "remote_addr", clientIP(r))
				closeStream(conn, websocket.ClosePolicyViolation, "rate limit exceeded")
				break
			}
		}
		data, err := io.ReadAll(rd)
		if err != nil {
			// over the read limit; gorilla has already sent the close frame
			break
		}
		if !utf8.Valid(data) {
			closeStream(conn, websocket.CloseInvalidFramePayloadData, "frame is not valid UTF-8")
			break
		}

		out = s.engine.AppendString(out[:0], string(data))
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			break
		}
		frames++
		s.metrics.observeTransliterated(len(data))
	}
	logging.StreamEvent(ctx, "stream_closed", frames)
}

func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
