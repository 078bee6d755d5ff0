package scheduler

import (
	"fmt"
	"math"
	"time"
)

// MaxIntervalDays caps the review interval at a century.
const MaxIntervalDays = 36500

// TimePrecision is the finest review time every store keeps exactly.
const TimePrecision = time.Microsecond

// Advance runs one SM-2 step for the given recall quality and returns the updated record.
// It only changes EaseFactor, Repetitions and IntervalDays; the input is not modified.
//
// A failing recall (quality < 3) resets repetitions and interval but keeps the ease factor.
// A passing recall moves the ease factor by the SM-2 delta, never below MinEaseFactor, and grows
// the interval 1, 6, then floor(interval * ease), capped at MaxIntervalDays.
func Advance(rec Record, q Quality) (Record, error) {
	if !q.IsValid() {
		return rec, fmt.Errorf("%w: quality %d out of range %d..%d", ErrInvalidRecord, int(q), MinQuality, MaxQuality)
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}

	next := rec.Clone()
	if !q.Passed() {
		next.Repetitions = 0
		next.IntervalDays = 1
		return next, nil
	}

	next.EaseFactor = nextEaseFactor(rec.EaseFactor, q)
	switch rec.Repetitions {
	case 0:
		next.IntervalDays = 1
	case 1:
		next.IntervalDays = 6
	default:
		next.IntervalDays = int(math.Min(math.Floor(float64(rec.IntervalDays)*next.EaseFactor), MaxIntervalDays))
	}
	next.Repetitions = rec.Repetitions + 1
	return next, nil
}

// nextEaseFactor applies ef + (0.1 - d*(0.08 + d*0.02)) with d = 5-q.
// The explicit conversions keep the compiler from fusing multiply-adds,
// which would change the last bits on some architectures.
func nextEaseFactor(ef float64, q Quality) float64 {
	d := float64(MaxQuality - q)
	inner := 0.08 + float64(d*0.02)
	delta := 0.1 - float64(d*inner)
	return math.Max(MinEaseFactor, ef+delta)
}

// Apply records one review of rec at now: it advances the SM-2 state, schedules the next
// review interval days after now, appends the history entry and bumps the review counter.
// now is truncated to TimePrecision.
func Apply(rec Record, label string, q Quality, now time.Time) (Record, error) {
	next, err := Advance(rec, q)
	if err != nil {
		return rec, err
	}

	now = now.UTC().Truncate(TimePrecision)
	due := now.AddDate(0, 0, next.IntervalDays)
	reviewed := now
	next.NextReviewAt = &due
	next.LastReviewedAt = &reviewed
	next.TimesReviewed = rec.TimesReviewed + 1
	next.History = append(next.History, HistoryEntry{
		Seq:        next.TimesReviewed,
		Rating:     label,
		Quality:    q,
		ReviewedAt: now,
	})
	return next, nil
}
