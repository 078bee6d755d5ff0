// Package statistics summarizes scheduling records for progress displays.
package statistics

import (
	"time"

	"github.com/at-ishikawa/recall/internal/scheduler"
)

// SetProgress is the study state of one set of cards for one user.
type SetProgress struct {
	Total         int                        `json:"total"`
	Studied       int                        `json:"studied"`
	Due           int                        `json:"due"`
	Categories    map[scheduler.Category]int `json:"categories"`
	TotalReviews  int                        `json:"total_reviews"`
	StreakDays    int                        `json:"streak_days"`
	LastStudiedAt *time.Time                 `json:"last_studied_at,omitempty"`
}

// NewSetProgress builds the progress of cardIDs from their records.
// Cards without a record count as not studied and due.
func NewSetProgress(cardIDs []string, records map[string]*scheduler.Record, now time.Time) SetProgress {
	progress := SetProgress{
		Categories: make(map[scheduler.Category]int, len(scheduler.Categories())),
	}
	for _, c := range scheduler.Categories() {
		progress.Categories[c] = 0
	}

	seen := make(map[string]bool, len(cardIDs))
	var studiedAt []time.Time
	for _, id := range cardIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		progress.Total++

		rec := records[id]
		if scheduler.IsDue(rec, now) {
			progress.Due++
		}
		if rec == nil || rec.TimesReviewed == 0 {
			continue
		}
		progress.Studied++
		progress.TotalReviews += rec.TimesReviewed
		progress.Categories[scheduler.CategoryOf(rec.IntervalDays)]++
		if rec.LastReviewedAt != nil {
			studiedAt = append(studiedAt, *rec.LastReviewedAt)
			if progress.LastStudiedAt == nil || rec.LastReviewedAt.After(*progress.LastStudiedAt) {
				t := rec.LastReviewedAt.UTC()
				progress.LastStudiedAt = &t
			}
		}
	}
	progress.StreakDays = StreakDays(studiedAt, now)
	return progress
}

// StreakDays counts consecutive UTC days, ending today, on which something was studied.
// A streak that ended yesterday is already broken.
func StreakDays(studiedAt []time.Time, now time.Time) int {
	days := make(map[string]bool, len(studiedAt))
	for _, t := range studiedAt {
		days[t.UTC().Format(time.DateOnly)] = true
	}

	streak := 0
	day := now.UTC()
	for days[day.Format(time.DateOnly)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
