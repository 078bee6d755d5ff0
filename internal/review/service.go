// Package review orchestrates review events: it reads a scheduling record, runs
// the scheduler and writes the result back with optimistic concurrency.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/at-ishikawa/recall/internal/scheduler"
	"github.com/at-ishikawa/recall/internal/statistics"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 20 * time.Millisecond
)

// Options tunes conflict retries. Zero values fall back to the defaults.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// Service records reviews against a Store.
type Service struct {
	store       Store
	log         *slog.Logger
	maxAttempts uint
	retryDelay  time.Duration
}

// NewService creates a Service.
func NewService(store Store, log *slog.Logger, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Service{
		store:       store,
		log:         log,
		maxAttempts: uint(opts.MaxAttempts),
		retryDelay:  opts.RetryDelay,
	}
}

// RecordReview applies a rating label ("hard", "good" or "easy") to the card.
// Unknown labels are scheduled with scheduler.NeutralQuality.
func (s *Service) RecordReview(ctx context.Context, userID, cardID, label string, now time.Time) (*scheduler.Record, error) {
	if _, err := scheduler.ParseRating(label); err != nil {
		s.log.WarnContext(ctx, "unknown rating label, using neutral quality",
			slog.String("user_id", userID),
			slog.String("card_id", cardID),
			slog.String("rating", label),
			slog.Int("quality", int(scheduler.NeutralQuality)),
		)
	}
	return s.review(ctx, userID, cardID, label, scheduler.QualityForLabel(label), now)
}

// RecordQuality applies an SM-2 quality directly, for callers that grade on the 0..5 scale.
func (s *Service) RecordQuality(ctx context.Context, userID, cardID string, q scheduler.Quality, now time.Time) (*scheduler.Record, error) {
	return s.review(ctx, userID, cardID, scheduler.LabelForQuality(q), q, now)
}

func (s *Service) review(ctx context.Context, userID, cardID, label string, q scheduler.Quality, now time.Time) (*scheduler.Record, error) {
	if userID == "" || cardID == "" {
		return nil, fmt.Errorf("%w: user and card are required", scheduler.ErrInvalidRecord)
	}

	var updated *scheduler.Record
	err := retry.Do(
		func() error {
			rec, err := s.reviewOnce(ctx, userID, cardID, label, q, now)
			if err != nil {
				return err
			}
			updated = rec
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.maxAttempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.log.DebugContext(ctx, "retrying review after conflict",
				slog.String("user_id", userID),
				slog.String("card_id", cardID),
				slog.Int("attempt", int(n)+1),
				slog.Any("error", err),
			)
		}),
	)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: %d attempts: %w", ErrTransient, s.maxAttempts, err)
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "card reviewed",
		slog.String("user_id", userID),
		slog.String("card_id", cardID),
		slog.String("rating", label),
		slog.Int("quality", int(q)),
		slog.Int("interval_days", updated.IntervalDays),
		slog.Float64("ease_factor", updated.EaseFactor),
	)
	return updated, nil
}

func (s *Service) reviewOnce(ctx context.Context, userID, cardID, label string, q scheduler.Quality, now time.Time) (*scheduler.Record, error) {
	current, err := s.store.GetRecord(ctx, userID, cardID)
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", userID, cardID, err)
	}
	if current == nil {
		fresh := scheduler.NewRecord(userID, cardID)
		current = &fresh
	}

	next, err := scheduler.Apply(*current, label, q, now)
	if err != nil {
		return nil, fmt.Errorf("apply review to %s/%s: %w", userID, cardID, err)
	}
	if err := s.store.PutRecord(ctx, &next); err != nil {
		return nil, fmt.Errorf("put record %s/%s: %w", userID, cardID, err)
	}
	return &next, nil
}

// Record returns the scheduling record of a card, or the default record when it was never reviewed.
func (s *Service) Record(ctx context.Context, userID, cardID string) (*scheduler.Record, error) {
	rec, err := s.store.GetRecord(ctx, userID, cardID)
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", userID, cardID, err)
	}
	if rec == nil {
		fresh := scheduler.NewRecord(userID, cardID)
		return &fresh, nil
	}
	return rec, nil
}

// DueCards returns the cards of a set that are due at now, in the given order.
func (s *Service) DueCards(ctx context.Context, userID string, cardIDs []string, now time.Time) ([]string, error) {
	records, err := s.store.GetRecords(ctx, userID, cardIDs)
	if err != nil {
		return nil, fmt.Errorf("get records of %s: %w", userID, err)
	}
	return scheduler.SelectDueCards(cardIDs, records, now), nil
}

// Progress summarizes the study state of a set of cards.
func (s *Service) Progress(ctx context.Context, userID string, cardIDs []string, now time.Time) (statistics.SetProgress, error) {
	records, err := s.store.GetRecords(ctx, userID, cardIDs)
	if err != nil {
		return statistics.SetProgress{}, fmt.Errorf("get records of %s: %w", userID, err)
	}
	return statistics.NewSetProgress(cardIDs, records, now), nil
}
