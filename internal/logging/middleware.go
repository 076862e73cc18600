package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// NewRequestID returns a fresh request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// RequestIDMiddleware reuses the client's X-Request-ID or assigns one, echoes
// it in the response and stores it in the request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// RequestLogger logs every request once it has been served.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequest(r.Context(), r.Method, r.URL.Path, r.RemoteAddr, status, ww.BytesWritten(), time.Since(start))
	})
}

// CombinedMiddleware is RequestIDMiddleware followed by RequestLogger.
func CombinedMiddleware(next http.Handler) http.Handler {
	return RequestIDMiddleware(RequestLogger(next))
}
