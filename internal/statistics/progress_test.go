package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/at-ishikawa/recall/internal/scheduler"
)

func TestNewSetProgress(t *testing.T) {
	now := time.Date(2025, 4, 10, 18, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}

	records := map[string]*scheduler.Record{
		"young": {
			CardID: "young", EaseFactor: 2.5, Repetitions: 2, IntervalDays: 6, TimesReviewed: 2,
			NextReviewAt: at(5 * 24 * time.Hour), LastReviewedAt: at(-time.Hour),
		},
		"mature": {
			CardID: "mature", EaseFactor: 2.6, Repetitions: 3, IntervalDays: 16, TimesReviewed: 3,
			NextReviewAt: at(-time.Minute), LastReviewedAt: at(-24 * time.Hour),
		},
		"mastered": {
			CardID: "mastered", EaseFactor: 2.7, Repetitions: 5, IntervalDays: 45, TimesReviewed: 6,
			NextReviewAt: at(30 * 24 * time.Hour), LastReviewedAt: at(-15 * 24 * time.Hour),
		},
	}

	got := NewSetProgress([]string{"young", "mature", "mastered", "new", "young"}, records, now)

	assert.Equal(t, SetProgress{
		Total:   4,
		Studied: 3,
		Due:     2,
		Categories: map[scheduler.Category]int{
			scheduler.CategoryLearning: 0,
			scheduler.CategoryYoung:    1,
			scheduler.CategoryMature:   1,
			scheduler.CategoryMastered: 1,
		},
		TotalReviews:  11,
		StreakDays:    2,
		LastStudiedAt: at(-time.Hour),
	}, got)
}

func TestNewSetProgress_Empty(t *testing.T) {
	got := NewSetProgress(nil, nil, time.Now())
	assert.Equal(t, 0, got.Total)
	assert.Equal(t, 0, got.StreakDays)
	assert.Nil(t, got.LastStudiedAt)
	assert.Len(t, got.Categories, 4)
}

func TestStreakDays(t *testing.T) {
	now := time.Date(2025, 4, 10, 1, 0, 0, 0, time.UTC)
	day := func(n int) time.Time {
		return now.AddDate(0, 0, -n)
	}

	tests := []struct {
		name      string
		studiedAt []time.Time
		want      int
	}{
		{name: "nothing studied", want: 0},
		{name: "today only", studiedAt: []time.Time{day(0)}, want: 1},
		{name: "three days in a row", studiedAt: []time.Time{day(2), day(0), day(1), day(1)}, want: 3},
		{name: "gap breaks the streak", studiedAt: []time.Time{day(0), day(2), day(3)}, want: 1},
		{name: "not studied today", studiedAt: []time.Time{day(1), day(2)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StreakDays(tt.studiedAt, now))
		})
	}
}
