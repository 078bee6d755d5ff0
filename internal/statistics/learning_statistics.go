package statistics

import (
	"fmt"
	"sort"

	"github.com/at-ishikawa/recall/internal/scheduler"
)

// ReviewStatistics holds statistics for a time period.
type ReviewStatistics struct {
	Period        string // "2025-01"
	LearnedCount  int    // first passing review of a card, or the first one after a lapse
	LearnedUnique int
	ReviewCount   int // passing reviews of cards already learned
	ReviewUnique  int
	LapseCount    int // failing reviews
}

// AggregateStatistics holds totals across all periods with global unique counts.
type AggregateStatistics struct {
	LearnedCount  int
	LearnedUnique int
	ReviewCount   int
	ReviewUnique  int
	LapseCount    int
}

// StatisticsResult holds both per-period and aggregate statistics.
type StatisticsResult struct {
	Periods   []ReviewStatistics
	Aggregate AggregateStatistics
}

type periodData struct {
	learnedTotal  int
	learnedUnique map[string]struct{}
	reviewTotal   int
	reviewUnique  map[string]struct{}
	lapses        int
}

// CalculateStatistics walks the review histories of records and counts events per month.
// year and month filter the periods (0 means no filter).
func CalculateStatistics(records []*scheduler.Record, year, month int) StatisticsResult {
	stats := make(map[string]*periodData)
	globalLearned := make(map[string]struct{})
	globalReviewed := make(map[string]struct{})
	var lapses int

	for _, rec := range records {
		if rec == nil {
			continue
		}
		cardKey := rec.Key().String()
		learned := false
		for _, entry := range rec.History {
			passed := entry.Quality.Passed()
			wasLearned := learned
			learned = passed

			if entry.ReviewedAt.IsZero() {
				continue
			}
			at := entry.ReviewedAt.UTC()
			if !matchesFilter(at.Year(), int(at.Month()), year, month) {
				continue
			}

			period := fmt.Sprintf("%d-%02d", at.Year(), int(at.Month()))
			ensurePeriodExists(stats, period)
			data := stats[period]
			switch {
			case !passed:
				data.lapses++
				lapses++
			case !wasLearned:
				data.learnedTotal++
				data.learnedUnique[cardKey] = struct{}{}
				globalLearned[cardKey] = struct{}{}
			default:
				data.reviewTotal++
				data.reviewUnique[cardKey] = struct{}{}
				globalReviewed[cardKey] = struct{}{}
			}
		}
	}

	result := buildResult(stats, globalLearned, globalReviewed)
	result.Aggregate.LapseCount = lapses
	return result
}

func ensurePeriodExists(stats map[string]*periodData, period string) {
	if stats[period] == nil {
		stats[period] = &periodData{
			learnedUnique: make(map[string]struct{}),
			reviewUnique:  make(map[string]struct{}),
		}
	}
}

func matchesFilter(logYear, logMonth, filterYear, filterMonth int) bool {
	if filterYear == 0 {
		return true
	}
	if logYear != filterYear {
		return false
	}
	if filterMonth == 0 {
		return true
	}
	return logMonth == filterMonth
}

func buildResult(stats map[string]*periodData, globalLearned, globalReviewed map[string]struct{}) StatisticsResult {
	periods := make([]ReviewStatistics, 0, len(stats))

	var totalLearned, totalReviews int
	for period, data := range stats {
		periods = append(periods, ReviewStatistics{
			Period:        period,
			LearnedCount:  data.learnedTotal,
			LearnedUnique: len(data.learnedUnique),
			ReviewCount:   data.reviewTotal,
			ReviewUnique:  len(data.reviewUnique),
			LapseCount:    data.lapses,
		})
		totalLearned += data.learnedTotal
		totalReviews += data.reviewTotal
	}

	// Newest first
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Period > periods[j].Period
	})

	return StatisticsResult{
		Periods: periods,
		Aggregate: AggregateStatistics{
			LearnedCount:  totalLearned,
			LearnedUnique: len(globalLearned),
			ReviewCount:   totalReviews,
			ReviewUnique:  len(globalReviewed),
		},
	}
}
