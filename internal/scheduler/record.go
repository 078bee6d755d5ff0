// Package scheduler implements SM-2 spaced-repetition scheduling over per-card records.
package scheduler

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
)

// Key identifies a scheduling record.
type Key struct {
	UserID string
	CardID string
}

func (k Key) String() string {
	return k.UserID + "/" + k.CardID
}

// HistoryEntry is one review in the append-only audit trail of a record.
type HistoryEntry struct {
	Seq        int       `json:"seq" yaml:"seq"`
	Rating     string    `json:"rating" yaml:"rating"`
	Quality    Quality   `json:"quality" yaml:"quality"`
	ReviewedAt time.Time `json:"reviewed_at" yaml:"reviewed_at"`
}

// Record holds the scheduling state of one card for one user.
type Record struct {
	UserID         string         `json:"user_id"`
	CardID         string         `json:"card_id"`
	EaseFactor     float64        `json:"ease_factor"`
	Repetitions    int            `json:"repetitions"`
	IntervalDays   int            `json:"interval_days"`
	NextReviewAt   *time.Time     `json:"next_review_at"`
	LastReviewedAt *time.Time     `json:"last_reviewed_at"`
	TimesReviewed  int            `json:"times_reviewed"`
	History        []HistoryEntry `json:"history,omitempty"`

	// Version is the optimistic concurrency token owned by stores.
	// Zero means the record has never been persisted.
	Version int64 `json:"version"`
}

// NewRecord returns the record of a card that has never been reviewed.
func NewRecord(userID, cardID string) Record {
	return Record{
		UserID:     userID,
		CardID:     cardID,
		EaseFactor: DefaultEaseFactor,
	}
}

// Key returns the identity of the record.
func (r Record) Key() Key {
	return Key{UserID: r.UserID, CardID: r.CardID}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (r Record) Clone() Record {
	c := r
	if r.NextReviewAt != nil {
		t := *r.NextReviewAt
		c.NextReviewAt = &t
	}
	if r.LastReviewedAt != nil {
		t := *r.LastReviewedAt
		c.LastReviewedAt = &t
	}
	if r.History != nil {
		c.History = make([]HistoryEntry, len(r.History))
		copy(c.History, r.History)
	}
	return c
}

// Validate checks the fields the interval algorithm depends on.
func (r Record) Validate() error {
	if math.IsNaN(r.EaseFactor) || r.EaseFactor < MinEaseFactor {
		return fmt.Errorf("%w: ease factor %v is below %v", ErrInvalidRecord, r.EaseFactor, MinEaseFactor)
	}
	if r.Repetitions < 0 {
		return fmt.Errorf("%w: negative repetitions %d", ErrInvalidRecord, r.Repetitions)
	}
	if r.IntervalDays < 0 {
		return fmt.Errorf("%w: negative interval %d", ErrInvalidRecord, r.IntervalDays)
	}
	if r.Repetitions >= 2 && r.IntervalDays < 1 {
		return fmt.Errorf("%w: interval %d after %d repetitions", ErrInvalidRecord, r.IntervalDays, r.Repetitions)
	}
	return nil
}
