// Package server exposes a composer session over a JSON HTTP API and keeps it
// in sync with changes made to the state database by other processes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/querycomposer/internal/composer"
	"github.com/leapstack-labs/querycomposer/internal/registry"
	"github.com/leapstack-labs/querycomposer/internal/store"
	"golang.org/x/sync/errgroup"
)

// StateReader reads persisted composer state.
type StateReader interface {
	Get(ctx context.Context, key string) (string, error)
	GetExecution(ctx context.Context, id string) (*store.Execution, error)
}

// Config holds configuration for the server.
type Config struct {
	Addr    string
	Session *composer.Session
	Engines *registry.EngineRegistry
	State   StateReader
	// Key is the session's store key, used when re-reading the query.
	Key string
	// StatePath is the database file watched for external changes.
	StatePath string
	Watch     bool
	// SessionSecret signs the browser cookie. A random key is used when
	// empty, so cookies do not survive a restart.
	SessionSecret string
	Logger        *slog.Logger
}

// Server serves one composer session.
type Server struct {
	addr      string
	session   *composer.Session
	engines   *registry.EngineRegistry
	state     StateReader
	key       string
	statePath string
	watch     bool
	cookies   *sessions.CookieStore
	logger    *slog.Logger
}

// New creates a server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}
	cookies := sessions.NewCookieStore(secret)
	cookies.MaxAge(86400 * 30) // 30 days
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		addr:      cfg.Addr,
		session:   cfg.Session,
		engines:   cfg.Engines,
		state:     cfg.State,
		key:       cfg.Key,
		statePath: cfg.StatePath,
		watch:     cfg.Watch,
		cookies:   cookies,
		logger:    cfg.Logger,
	}
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/query", s.getQuery)
		r.Put("/query", s.putQuery)
		r.Put("/selection", s.putSelection)
		r.Get("/engines", s.listEngines)
		r.Put("/engine", s.putEngine)
		r.Post("/run", s.run)
		r.Delete("/execution", s.closeExecution)
		r.Post("/clear", s.clear)
		r.Post("/format", s.format)
		r.Get("/search/options", s.getSearchOptions)
		r.Post("/search", s.search)
		r.Delete("/search", s.clearSearch)
		r.Post("/replace", s.replace)
		r.Post("/docs", s.createDocument)
		r.Post("/udf", s.insertUDF)
		r.Get("/keymap", s.getKeymap)
		r.Post("/keys", s.pressKey)
		r.Get("/executions/{id}", s.getExecution)
		r.Get("/updates", s.updates)
	})
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting composer server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.statePath != "" && s.statePath != ":memory:" {
		eg.Go(func() error {
			return s.watchState(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down composer server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
