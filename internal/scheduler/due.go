package scheduler

import (
	"sort"
	"strings"
	"time"
)

// storedTimeLayouts are the formats stores have been observed to write.
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// IsDue reports whether a card must be reviewed at now.
// A card without a record, or whose record was never scheduled, is always due.
func IsDue(rec *Record, now time.Time) bool {
	if rec == nil || rec.NextReviewAt == nil {
		return true
	}
	return !rec.NextReviewAt.UTC().After(now.UTC())
}

// SelectDue returns the sorted card IDs of the records due at now.
func SelectDue(records []*Record, now time.Time) []string {
	seen := make(map[string]bool, len(records))
	due := make([]string, 0, len(records))
	for _, rec := range records {
		if rec == nil || seen[rec.CardID] {
			continue
		}
		seen[rec.CardID] = true
		if IsDue(rec, now) {
			due = append(due, rec.CardID)
		}
	}
	sort.Strings(due)
	return due
}

// SelectDueCards returns the cards of a set that are due at now, in the order given.
// Cards missing from records have never been studied and are due.
func SelectDueCards(cardIDs []string, records map[string]*Record, now time.Time) []string {
	seen := make(map[string]bool, len(cardIDs))
	due := make([]string, 0, len(cardIDs))
	for _, id := range cardIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if IsDue(records[id], now) {
			due = append(due, id)
		}
	}
	return due
}

// ParseReviewTime parses a stored next-review timestamp into UTC.
// Empty or unparseable values return nil, which IsDue treats as due.
func ParseReviewTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range storedTimeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// FormatReviewTime is the inverse of ParseReviewTime for text-based stores.
func FormatReviewTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
