// Package memstore keeps scheduling records in process memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
)

var (
	_ review.Store  = (*Store)(nil)
	_ review.Lister = (*Store)(nil)
)

// Store is a concurrency-safe in-memory review.Store.
type Store struct {
	mu      sync.RWMutex
	records map[scheduler.Key]scheduler.Record
}

// New creates an empty Store.
func New() *Store {
	return &Store{records: make(map[scheduler.Key]scheduler.Record)}
}

// GetRecord returns a copy of the record, or nil if the card was never reviewed.
func (s *Store) GetRecord(_ context.Context, userID, cardID string) (*scheduler.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[scheduler.Key{UserID: userID, CardID: cardID}]
	if !ok {
		return nil, nil
	}
	c := rec.Clone()
	return &c, nil
}

// GetRecords returns the records of the given cards without their history.
func (s *Store) GetRecords(_ context.Context, userID string, cardIDs []string) (map[string]*scheduler.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*scheduler.Record, len(cardIDs))
	for _, id := range cardIDs {
		rec, ok := s.records[scheduler.Key{UserID: userID, CardID: id}]
		if !ok {
			continue
		}
		c := rec.Clone()
		c.History = nil
		result[id] = &c
	}
	return result, nil
}

// PutRecord stores rec if its version matches the stored one.
func (s *Store) PutRecord(_ context.Context, rec *scheduler.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	var stored int64
	if current, ok := s.records[key]; ok {
		stored = current.Version
	}
	if stored != rec.Version {
		return fmt.Errorf("%w: %s at version %d, got %d", review.ErrConflict, key, stored, rec.Version)
	}

	rec.Version++
	s.records[key] = rec.Clone()
	return nil
}

// ListRecords returns every record ordered by user and card.
func (s *Store) ListRecords(_ context.Context) ([]*scheduler.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*scheduler.Record, 0, len(s.records))
	for _, rec := range s.records {
		c := rec.Clone()
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UserID != result[j].UserID {
			return result[i].UserID < result[j].UserID
		}
		return result[i].CardID < result[j].CardID
	})
	return result, nil
}
