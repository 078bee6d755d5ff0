package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/at-ishikawa/recall/internal/scheduler"
)

func mustParseDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func entry(seq int, q scheduler.Quality, date string) scheduler.HistoryEntry {
	return scheduler.HistoryEntry{Seq: seq, Rating: scheduler.LabelForQuality(q), Quality: q, ReviewedAt: mustParseDate(date)}
}

func TestCalculateStatistics(t *testing.T) {
	records := []*scheduler.Record{
		{
			UserID: "u1", CardID: "c1",
			History: []scheduler.HistoryEntry{
				entry(1, 4, "2025-01-15"),
				entry(2, 5, "2025-01-16"),
				entry(3, 2, "2025-02-01"),
				entry(4, 4, "2025-02-02"),
			},
		},
		{
			UserID: "u1", CardID: "c2",
			History: []scheduler.HistoryEntry{
				entry(1, 2, "2025-01-20"),
				entry(2, 5, "2025-02-03"),
				entry(3, 4, "2025-02-10"),
			},
		},
		nil,
	}

	tests := []struct {
		name              string
		year              int
		month             int
		expectedPeriods   []ReviewStatistics
		expectedAggregate AggregateStatistics
	}{
		{
			name: "all periods",
			expectedPeriods: []ReviewStatistics{
				{Period: "2025-02", LearnedCount: 2, LearnedUnique: 2, ReviewCount: 1, ReviewUnique: 1, LapseCount: 1},
				{Period: "2025-01", LearnedCount: 1, LearnedUnique: 1, ReviewCount: 1, ReviewUnique: 1, LapseCount: 1},
			},
			expectedAggregate: AggregateStatistics{LearnedCount: 3, LearnedUnique: 2, ReviewCount: 2, ReviewUnique: 2, LapseCount: 2},
		},
		{
			name:  "filtered by month",
			year:  2025,
			month: 1,
			expectedPeriods: []ReviewStatistics{
				{Period: "2025-01", LearnedCount: 1, LearnedUnique: 1, ReviewCount: 1, ReviewUnique: 1, LapseCount: 1},
			},
			expectedAggregate: AggregateStatistics{LearnedCount: 1, LearnedUnique: 1, ReviewCount: 1, ReviewUnique: 1, LapseCount: 1},
		},
		{
			name:              "no matching year",
			year:              2024,
			expectedPeriods:   []ReviewStatistics{},
			expectedAggregate: AggregateStatistics{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateStatistics(records, tt.year, tt.month)
			assert.Equal(t, tt.expectedPeriods, got.Periods)
			assert.Equal(t, tt.expectedAggregate, got.Aggregate)
		})
	}
}
