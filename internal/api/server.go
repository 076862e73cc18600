// Package api is the HTTP adapter: it exposes the plugin host's commands
// and the transliteration table over a small JSON API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FocuswithJustin/strutils/core/docgen"
	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/translit"
	"github.com/FocuswithJustin/strutils/internal/cache"
	"github.com/FocuswithJustin/strutils/internal/logging"
)

const (
	// shutdownTimeout bounds graceful shutdown once the context is done.
	shutdownTimeout = 10 * time.Second
	// signatureTTL is how long plugin signatures are reused before the
	// plugins are asked again.
	signatureTTL = 30 * time.Second
)

// Server serves the HTTP API.
type Server struct {
	cfg     Config
	loader  *plugins.Loader
	engine  *translit.Engine
	metrics *Metrics

	signatures *cache.TTL[[]docgen.PluginCommands]
}

// NewServer returns a server running commands through loader. engine backs
// the table endpoints; nil means the built-in tables.
func NewServer(cfg Config, loader *plugins.Loader, engine *translit.Engine) *Server {
	if engine == nil {
		engine = translit.DefaultEngine()
	}
	s := &Server{cfg: cfg, loader: loader, engine: engine}
	s.signatures = cache.NewTTL[[]docgen.PluginCommands](signatureTTL, s.loadSignatures)
	if cfg.Metrics {
		s.metrics = NewMetrics()
	}
	return s
}

func (s *Server) loadSignatures(ctx context.Context) ([]docgen.PluginCommands, error) {
	loaded := docgen.NewGenerator(s.loader, "").LoadSignatures(ctx)
	// a cancelled request may have skipped plugins
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// Metrics returns the server's collectors, nil when metrics are off.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler builds the router. ctx bounds background work such as the rate
// limiter's sweeper.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logging.CombinedMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORS(s.cfg.AllowedOrigins))
	r.Use(SecurityHeaders)
	r.Use(s.metrics.Middleware)
	if s.cfg.RateLimit.RequestsPerMinute > 0 {
		r.Use(NewRateLimiter(ctx, s.cfg.RateLimit).Middleware)
	}
	r.Use(AuthMiddleware(s.cfg.Auth))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.MaxBodyBytes > 0 {
			r.Use(middleware.RequestSize(s.cfg.MaxBodyBytes))
		}
		r.Get("/commands", s.handleListCommands)
		r.Post("/commands/{name}", s.handleRunCommand)
		r.Post("/deunicode", s.handleDeunicode)
		r.Get("/table", s.handleTableInfo)
		r.Get("/table/{codepoint}", s.handleTableLookup)
		r.Get("/stream", s.handleStream)
	})
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := ValidateAuthConfig(s.cfg.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}
	if s.cfg.Auth.Enabled {
		logging.SecurityEvent("authentication_configured", "api", "enabled", true)
	} else {
		logging.Warn("HTTP authentication disabled", "recommendation", "set an API key when binding beyond localhost")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.ServerStartup("rest_api", "http", s.cfg.Addr,
			"metrics", s.metrics != nil,
			"rate_limit", s.cfg.RateLimit.RequestsPerMinute)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
