package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/at-ishikawa/recall/internal/bootstrap"
	"github.com/at-ishikawa/recall/internal/config"
	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/server"
	"github.com/at-ishikawa/recall/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loadConfig() > %w", err)
	}
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	app := bootstrap.New()
	ctx := context.Background()

	s, closer, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("store.Open() > %w", err)
	}
	app.AddCloser(closer)

	handler, err := newHandler(cfg, s, logger)
	if err != nil {
		return errors.Join(err, app.Shutdown(ctx))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.AddShutdownHook(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	return app.Run(ctx, func(ctx context.Context) error {
		logger.InfoContext(ctx, "starting server", slog.String("addr", srv.Addr), slog.String("backend", cfg.Store.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("srv.ListenAndServe() > %w", err)
		}
		return nil
	})
}

// newHandler serves the review service over Connect, gRPC and gRPC-Web,
// including HTTP/2 without TLS.
func newHandler(cfg *config.Config, s review.Store, logger *slog.Logger) (http.Handler, error) {
	svc := review.NewService(s, logger, review.Options{
		MaxAttempts: cfg.Review.MaxAttempts,
		RetryDelay:  cfg.Review.RetryDelay,
	})
	reviewHandler, err := server.NewReviewHandler(svc, logger)
	if err != nil {
		return nil, fmt.Errorf("server.NewReviewHandler() > %w", err)
	}
	path, h := server.NewReviewServiceHandler(reviewHandler,
		connect.WithInterceptors(server.NewLoggingInterceptor(logger)),
	)

	mux := http.NewServeMux()
	mux.Handle(path, h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return server.CORSMiddleware(h2c.NewHandler(mux, &http2.Server{}), cfg.Server.CORS.AllowedOrigins), nil
}

func loadConfig() (*config.Config, error) {
	configFile := os.Getenv("RECALL_CONFIG")
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
	}))
}
