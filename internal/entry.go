// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/gazette/internal/api"
	"github.com/starford/gazette/internal/mcpserver"
	"github.com/starford/gazette/internal/metrics"
	"github.com/starford/gazette/internal/models"
	"github.com/starford/gazette/internal/newsservice"
	"github.com/starford/gazette/internal/parser"
	"github.com/starford/gazette/internal/sse"
	"github.com/starford/gazette/internal/storage"
	"github.com/starford/gazette/internal/token"
	"github.com/starford/gazette/internal/web"
)

func newApplication(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// openCatalog opens the configured provider, builds the repository and
// imports the seed directory when the catalog is empty.
func openCatalog(ctx context.Context, cfg *Config, logger *slog.Logger, onEvent newsservice.EventFunc) (storage.Provider, *newsservice.Service, error) {
	store, err := storage.Open(ctx, cfg.Storage.Options(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	svc, err := newsservice.New(ctx, store,
		newsservice.WithLogger(logger),
		newsservice.WithEvents(onEvent),
	)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("init stories: %w", err)
	}

	if cfg.Seed.Dir != "" && svc.Size() == 0 {
		seed(ctx, svc, cfg.Seed.Dir, logger)
	}
	return store, svc, nil
}

func seed(ctx context.Context, svc *newsservice.Service, dir string, logger *slog.Logger) {
	stories, err := parser.LoadDir(dir, logger)
	if err != nil {
		logger.Warn("seed import skipped", slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	for _, st := range stories {
		if _, err := svc.Create(ctx, st); err != nil {
			logger.Warn("seed story rejected",
				slog.String("headline", st.Headline),
				slog.String("error", err.Error()))
		}
	}
	logger.Info("seeded stories", slog.String("dir", dir), slog.Int("count", svc.Size()))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("seed_dir", cfg.Seed.Dir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	m := metrics.New()
	broker := sse.NewBroker(2*time.Second, sse.WithClientGauge(m.SSEClients))
	defer broker.Close()

	store, svc, err := openCatalog(ctx, cfg, logger, func(kind string, pos int, st models.Story) {
		m.StoryMutated(kind)
		broker.PublishStoryEvent(kind, sse.StoryChange{Position: pos, ID: st.ID, Headline: st.Headline})
	})
	if err != nil {
		return err
	}
	defer store.Close()
	m.SetStories(svc.Size())

	tokens := token.New(cfg.Auth.Secret, token.WithTTL(cfg.Auth.TokenTTL))
	sessions := web.NewSessions(cfg.Web.SessionSecret, cfg.Web.CookieName, cfg.Web.SecureCookie)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "stories": svc.Size()})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	// Mount API routes under /api, the HTML application at the root.
	r.Mount("/api", api.NewRouter(svc, tokens, api.Options{
		Base:           "/api",
		Events:         broker,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		LoginRate:      cfg.Auth.LoginRate,
		LoginBurst:     cfg.Auth.LoginBurst,
		OnAuth:         m.AuthResult,
	}))
	r.Mount("/", web.NewHandler(svc, sessions, logger).Routes())

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload on external edits of the story file.
	if f, ok := store.(*storage.JSONFile); ok && cfg.Storage.Watch {
		g.Go(func() error {
			return storage.Watch(gCtx, f, logger, func(ctx context.Context) error {
				if err := svc.Reload(ctx); err != nil {
					return err
				}
				m.StoreReloaded()
				m.SetStories(svc.Size())
				broker.Publish(sse.Event{Type: sse.TypeCatalogUpdated, Data: map[string]int{"stories": svc.Size()}})
				return nil
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr unless
// WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	actor, err := cfg.MCP.Actor()
	if err != nil {
		return err
	}
	if app.actor != nil {
		actor = *app.actor
	}

	store, svc, err := openCatalog(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("MCP server starting",
		slog.String("user", actor.Username),
		slog.String("role", actor.Role.String()),
		slog.Int("stories", svc.Size()))

	return mcpserver.New(svc, actor, app.version).ServeStdio()
}
