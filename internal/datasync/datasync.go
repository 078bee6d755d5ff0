// Package datasync copies scheduling records from one store to another.
package datasync

import (
	"context"
	"fmt"
	"io"

	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
)

// SyncResult tracks counts for each sync outcome.
type SyncResult struct {
	RecordsNew     int
	RecordsSkipped int
	RecordsUpdated int
	HistoryCopied  int
}

// SyncOptions controls sync behavior.
type SyncOptions struct {
	DryRun bool
	// UpdateExisting overwrites destination records that have fewer reviews than the source.
	UpdateExisting bool
}

// Syncer reads every record of a source store and writes it to a destination store.
type Syncer struct {
	source      review.Lister
	destination review.Store
	writer      io.Writer
}

// NewSyncer creates a new Syncer.
func NewSyncer(source review.Lister, destination review.Store, writer io.Writer) *Syncer {
	return &Syncer{
		source:      source,
		destination: destination,
		writer:      writer,
	}
}

// Sync copies the source records. Destination records are only replaced when
// UpdateExisting is set and the source has seen more reviews.
func (s *Syncer) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	records, err := s.source.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source records: %w", err)
	}

	result := &SyncResult{}
	for _, src := range records {
		existing, err := s.destination.GetRecord(ctx, src.UserID, src.CardID)
		if err != nil {
			return nil, fmt.Errorf("get destination record %s: %w", src.Key(), err)
		}

		var copied int
		switch {
		case existing == nil:
			rec := src.Clone()
			rec.Version = 0
			copied = len(rec.History)
			if !opts.DryRun {
				if err := s.destination.PutRecord(ctx, &rec); err != nil {
					return nil, fmt.Errorf("create destination record %s: %w", src.Key(), err)
				}
			}
			_, _ = fmt.Fprintf(s.writer, "  [NEW]  %s (%d reviews)\n", src.Key(), src.TimesReviewed)
			result.RecordsNew++

		case opts.UpdateExisting && src.TimesReviewed > existing.TimesReviewed:
			rec := src.Clone()
			rec.Version = existing.Version
			copied = newEntries(rec.History, existing.History)
			if !opts.DryRun {
				if err := s.destination.PutRecord(ctx, &rec); err != nil {
					return nil, fmt.Errorf("update destination record %s: %w", src.Key(), err)
				}
			}
			_, _ = fmt.Fprintf(s.writer, "  [UPDATE]  %s (%d -> %d reviews)\n", src.Key(), existing.TimesReviewed, src.TimesReviewed)
			result.RecordsUpdated++

		default:
			_, _ = fmt.Fprintf(s.writer, "  [SKIP]  %s\n", src.Key())
			result.RecordsSkipped++
		}
		result.HistoryCopied += copied
	}
	return result, nil
}

func newEntries(source, destination []scheduler.HistoryEntry) int {
	last := 0
	for _, h := range destination {
		if h.Seq > last {
			last = h.Seq
		}
	}
	n := 0
	for _, h := range source {
		if h.Seq > last {
			n++
		}
	}
	return n
}
