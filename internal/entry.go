// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/photolog/internal/api"
	"github.com/starford/photolog/internal/capture"
	"github.com/starford/photolog/internal/gallery"
	"github.com/starford/photolog/internal/mcpserver"
	"github.com/starford/photolog/internal/prefs"
	"github.com/starford/photolog/internal/share"
	"github.com/starford/photolog/internal/sse"
	"github.com/starford/photolog/internal/storage"
)

// runtime is the set of long-lived components both front ends share.
type runtime struct {
	logger  *slog.Logger
	store   *storage.FS
	kv      prefs.Store
	gallery *gallery.Manager
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// start builds the logger, stores and manager, and loads the collection.
// broker may be nil; it is then neither observer nor share target.
func (a *application) start(ctx context.Context, broker *sse.Broker) (*runtime, error) {
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", a.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("media_path", cfg.Media.Path),
		slog.String("prefs_driver", cfg.Prefs.Driver),
		slog.String("share_mode", cfg.Share.Mode),
		slog.String("capture_inbox", cfg.Capture.Inbox),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Media.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Media.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	logger.Info("Media directory ready", slog.String("path", store.Root()))

	kv, err := prefs.Open(cfg.Prefs.Driver, cfg.Prefs.DSN)
	if err != nil {
		return nil, fmt.Errorf("init prefs: %w", err)
	}

	opts := []gallery.Option{
		gallery.WithLogger(logger),
		gallery.WithIndexKey(cfg.Prefs.Key),
		gallery.WithShareText(cfg.Share.Text),
	}
	if dev := newDevice(cfg.Capture, logger); dev != nil {
		opts = append(opts, gallery.WithDevice(dev))
	}
	if sharer := newSharer(cfg.Share, broker); sharer != nil {
		opts = append(opts, gallery.WithSharer(sharer))
	}
	if broker != nil {
		opts = append(opts, gallery.WithObserver(broker.PublishPhotoEvent))
	}

	m := gallery.New(store, kv, opts...)
	// A failed load would let the next capture overwrite the stored index,
	// so startup stops here instead.
	if err := m.Load(ctx); err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("load photo index: %w", err)
	}
	logger.Info("Photo index loaded", slog.Int("entries", len(m.Entries())))

	return &runtime{logger: logger, store: store, kv: kv, gallery: m}, nil
}

func newDevice(cfg CaptureConfig, logger *slog.Logger) capture.Device {
	if cfg.Inbox == "" {
		return nil
	}
	return &capture.Inbox{Dir: cfg.Inbox, Wait: cfg.Wait, Logger: logger}
}

func newSharer(cfg ShareConfig, broker *sse.Broker) share.Sharer {
	switch cfg.Mode {
	case ShareModeCommand:
		if len(cfg.Command) > 0 {
			return share.Command{Name: cfg.Command[0], Args: cfg.Command[1:]}
		}
	case ShareModeEvents:
		if broker != nil {
			return broker
		}
	}
	return nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := app.start(ctx, broker)
	if err != nil {
		return err
	}
	defer rt.kv.Close()
	logger := rt.logger

	apiRouter := api.NewRouter(rt.gallery, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, logger)
	media := api.NewMediaHandler(rt.store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, _, err := rt.kv.Get(req.Context(), cfg.Prefs.Key); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"prefs unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Captured assets are served without auth so previews render in <img>.
	r.Get("/media/{filename}", media.ServeFile)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Logs go to stderr unless redirected.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	rt, err := app.start(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.kv.Close()

	if app.config.Share.Mode == ShareModeEvents {
		rt.logger.Warn("share mode \"events\" has no listeners over stdio; share_photo will fail")
	}

	srv := mcpserver.New(rt.gallery, app.version)
	rt.logger.Info("Starting MCP server on stdio")
	if err := srv.ServeStdio(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
