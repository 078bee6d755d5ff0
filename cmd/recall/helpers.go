package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/at-ishikawa/recall/internal/config"
	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/store"
)

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	return loader.Load()
}

// openService opens the configured store and the review service on top of it.
// The caller must close the returned closer once done.
func openService(ctx context.Context) (*review.Service, store.Store, io.Closer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	s, closer, err := store.Open(ctx, cfg, slog.Default())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store.Open() > %w", err)
	}
	svc := review.NewService(s, slog.Default(), review.Options{
		MaxAttempts: cfg.Review.MaxAttempts,
		RetryDelay:  cfg.Review.RetryDelay,
	})
	return svc, s, closer, nil
}
