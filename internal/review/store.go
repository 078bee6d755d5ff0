package review

import (
	"context"
	"errors"

	"github.com/at-ishikawa/recall/internal/scheduler"
)

//go:generate mockgen -source=store.go -destination=../mocks/review/mock_store.go -package=mock_review

var (
	// ErrConflict is returned by a Store when a record changed since it was read.
	ErrConflict = errors.New("review: record changed concurrently")

	// ErrTransient is returned when conflicts persist after every retry.
	ErrTransient = errors.New("review: transient failure, try again")
)

// Store persists scheduling records.
//
// PutRecord must compare rec.Version with the stored version and fail with an
// error matching ErrConflict when they differ; version 0 means the record must
// not exist yet. On success the store increments rec.Version.
type Store interface {
	GetRecord(ctx context.Context, userID, cardID string) (*scheduler.Record, error)
	GetRecords(ctx context.Context, userID string, cardIDs []string) (map[string]*scheduler.Record, error)
	PutRecord(ctx context.Context, rec *scheduler.Record) error
}

// Lister is implemented by stores that can enumerate every record with its history.
type Lister interface {
	ListRecords(ctx context.Context) ([]*scheduler.Record, error)
}
