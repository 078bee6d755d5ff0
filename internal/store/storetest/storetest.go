// Package storetest holds the behavior every review.Store implementation must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
)

// Run exercises a store created by newStore. Every subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) review.Store) {
	t.Helper()

	t.Run("missing record", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetRecord(context.Background(), "u1", "nope")
		require.NoError(t, err)
		assert.Nil(t, got)

		all, err := s.GetRecords(context.Background(), "u1", []string{"nope"})
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Date(2025, 5, 4, 10, 20, 30, 0, time.UTC)

		rec := reviewed(t, scheduler.NewRecord("u1", "c1"), "easy", now)
		require.NoError(t, s.PutRecord(ctx, &rec))
		assert.Equal(t, int64(1), rec.Version)

		got, err := s.GetRecord(ctx, "u1", "c1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assertSameRecord(t, rec, *got)
		require.Len(t, got.History, 1)
		assert.Equal(t, "easy", got.History[0].Rating)
		assert.Equal(t, scheduler.Quality(5), got.History[0].Quality)
		assert.True(t, now.Equal(got.History[0].ReviewedAt))
		require.NotNil(t, got.NextReviewAt)
		assert.True(t, now.AddDate(0, 0, got.IntervalDays).Equal(*got.NextReviewAt))

		second := reviewed(t, *got, "good", now.Add(30*time.Hour))
		require.NoError(t, s.PutRecord(ctx, &second))
		assert.Equal(t, int64(2), second.Version)

		got, err = s.GetRecord(ctx, "u1", "c1")
		require.NoError(t, err)
		assertSameRecord(t, second, *got)
		require.Len(t, got.History, 2)
		assert.Equal(t, []int{1, 2}, []int{got.History[0].Seq, got.History[1].Seq})
		assert.Equal(t, "good", got.History[1].Rating)
	})

	t.Run("sub-microsecond review time reads back as returned", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		svc := review.NewService(s, nil, review.Options{RetryDelay: time.Millisecond})
		now := time.Date(2025, 5, 4, 10, 20, 30, 123456789, time.UTC)

		returned, err := svc.RecordReview(ctx, "u1", "c1", "good", now)
		require.NoError(t, err)

		got, err := s.GetRecord(ctx, "u1", "c1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assertSameRecord(t, *returned, *got)
		require.Len(t, got.History, 1)
		assert.True(t, returned.History[0].ReviewedAt.Equal(got.History[0].ReviewedAt))
		assert.Zero(t, got.LastReviewedAt.Nanosecond()%int(scheduler.TimePrecision))
	})

	t.Run("bulk read", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

		for _, id := range []string{"a", "b"} {
			rec := reviewed(t, scheduler.NewRecord("u1", id), "good", now)
			require.NoError(t, s.PutRecord(ctx, &rec))
		}
		other := reviewed(t, scheduler.NewRecord("u2", "c"), "good", now)
		require.NoError(t, s.PutRecord(ctx, &other))

		got, err := s.GetRecords(ctx, "u1", []string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got["a"].CardID)
		assert.Equal(t, "u1", got["b"].UserID)
		assert.Equal(t, 1, got["a"].TimesReviewed)
		require.NotNil(t, got["a"].NextReviewAt)
		assert.True(t, now.Add(24*time.Hour).Equal(*got["a"].NextReviewAt))

		empty, err := s.GetRecords(ctx, "u1", nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

		first := reviewed(t, scheduler.NewRecord("u1", "c1"), "good", now)
		require.NoError(t, s.PutRecord(ctx, &first))

		dup := reviewed(t, scheduler.NewRecord("u1", "c1"), "hard", now)
		assert.ErrorIs(t, s.PutRecord(ctx, &dup), review.ErrConflict)

		loaded, err := s.GetRecord(ctx, "u1", "c1")
		require.NoError(t, err)
		a := reviewed(t, *loaded, "good", now.Add(time.Hour))
		b := reviewed(t, *loaded, "hard", now.Add(time.Hour))
		require.NoError(t, s.PutRecord(ctx, &a))
		assert.ErrorIs(t, s.PutRecord(ctx, &b), review.ErrConflict)

		got, err := s.GetRecord(ctx, "u1", "c1")
		require.NoError(t, err)
		assertSameRecord(t, a, *got)
		assert.Len(t, got.History, 2)
	})

	t.Run("concurrent reviews lose no update", func(t *testing.T) {
		s := newStore(t)
		svc := review.NewService(s, nil, review.Options{MaxAttempts: 50, RetryDelay: time.Millisecond})
		now := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.RecordReview(context.Background(), "u1", "c1", "good", now)
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		got, err := s.GetRecord(context.Background(), "u1", "c1")
		require.NoError(t, err)
		assert.Equal(t, n, got.TimesReviewed)
		assert.Len(t, got.History, n)
		assert.Equal(t, int64(n), got.Version)
	})
}

func reviewed(t *testing.T, rec scheduler.Record, label string, now time.Time) scheduler.Record {
	t.Helper()
	next, err := scheduler.Apply(rec, label, scheduler.QualityForLabel(label), now)
	require.NoError(t, err)
	return next
}

func assertSameRecord(t *testing.T, want, got scheduler.Record) {
	t.Helper()
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.CardID, got.CardID)
	assert.InDelta(t, want.EaseFactor, got.EaseFactor, 1e-9)
	assert.Equal(t, want.Repetitions, got.Repetitions)
	assert.Equal(t, want.IntervalDays, got.IntervalDays)
	assert.Equal(t, want.TimesReviewed, got.TimesReviewed)
	assert.Equal(t, want.Version, got.Version)
	if assert.NotNil(t, got.NextReviewAt) && want.NextReviewAt != nil {
		assert.True(t, want.NextReviewAt.Equal(*got.NextReviewAt), "next review %s, got %s", want.NextReviewAt, got.NextReviewAt)
	}
	if assert.NotNil(t, got.LastReviewedAt) && want.LastReviewedAt != nil {
		assert.True(t, want.LastReviewedAt.Equal(*got.LastReviewedAt))
	}
}
