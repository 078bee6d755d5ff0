// Package yamlstore keeps scheduling records in one YAML file per user.
package yamlstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
)

var (
	_ review.Store  = (*Store)(nil)
	_ review.Lister = (*Store)(nil)
)

type userFile struct {
	UserID string                 `yaml:"user_id"`
	Cards  map[string]*cardRecord `yaml:"cards"`
}

// cardRecord keeps timestamps as text so a hand-edited file with a broken date
// still loads; such cards are treated as due.
type cardRecord struct {
	EaseFactor     float64                  `yaml:"ease_factor"`
	Repetitions    int                      `yaml:"repetitions"`
	IntervalDays   int                      `yaml:"interval_days"`
	NextReviewAt   string                   `yaml:"next_review_at,omitempty"`
	LastReviewedAt string                   `yaml:"last_reviewed_at,omitempty"`
	TimesReviewed  int                      `yaml:"times_reviewed"`
	Version        int64                    `yaml:"version"`
	History        []scheduler.HistoryEntry `yaml:"history,omitempty"`
}

// Store is a review.Store over a directory of YAML files.
// Writes are serialized within the process; the files are not meant to be shared between processes.
type Store struct {
	directory string
	log       *slog.Logger
	mu        sync.Mutex
}

// New creates a Store writing to directory, creating it if needed.
func New(directory string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll(%s) > %w", directory, err)
	}
	return &Store{directory: directory, log: log}, nil
}

func (s *Store) path(userID string) string {
	return filepath.Join(s.directory, url.PathEscape(userID)+".yml")
}

func (s *Store) load(userID string) (userFile, error) {
	f, err := readYamlFileOrZero[userFile](s.path(userID))
	if err != nil {
		return f, err
	}
	if f.Cards == nil {
		f.Cards = make(map[string]*cardRecord)
	}
	f.UserID = userID
	return f, nil
}

// GetRecord returns the record of a card, or nil if it was never reviewed.
func (s *Store) GetRecord(_ context.Context, userID, cardID string) (*scheduler.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load(userID)
	if err != nil {
		return nil, fmt.Errorf("load records of %s: %w", userID, err)
	}
	card, ok := f.Cards[cardID]
	if !ok {
		return nil, nil
	}
	rec := s.toRecord(userID, cardID, card)
	return &rec, nil
}

// GetRecords returns the records of the given cards without their history.
func (s *Store) GetRecords(_ context.Context, userID string, cardIDs []string) (map[string]*scheduler.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load(userID)
	if err != nil {
		return nil, fmt.Errorf("load records of %s: %w", userID, err)
	}
	result := make(map[string]*scheduler.Record, len(cardIDs))
	for _, id := range cardIDs {
		card, ok := f.Cards[id]
		if !ok {
			continue
		}
		rec := s.toRecord(userID, id, card)
		rec.History = nil
		result[id] = &rec
	}
	return result, nil
}

// PutRecord rewrites the user's file if rec.Version matches the stored version.
func (s *Store) PutRecord(_ context.Context, rec *scheduler.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load(rec.UserID)
	if err != nil {
		return fmt.Errorf("load records of %s: %w", rec.UserID, err)
	}

	var stored int64
	if current, ok := f.Cards[rec.CardID]; ok {
		stored = current.Version
	}
	if stored != rec.Version {
		return fmt.Errorf("%w: %s at version %d, got %d", review.ErrConflict, rec.Key(), stored, rec.Version)
	}

	card := fromRecord(*rec)
	card.Version = rec.Version + 1
	f.Cards[rec.CardID] = card
	if err := writeYamlFile(s.path(rec.UserID), f); err != nil {
		return fmt.Errorf("write records of %s: %w", rec.UserID, err)
	}
	rec.Version = card.Version
	return nil
}

// ListRecords returns every record in the directory ordered by user and card.
func (s *Store) ListRecords(_ context.Context) ([]*scheduler.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := listYamlFiles(s.directory)
	if err != nil {
		return nil, err
	}

	var result []*scheduler.Record
	for _, path := range paths {
		f, err := readYamlFile[userFile](path)
		if err != nil {
			return nil, err
		}
		userID := f.UserID
		if userID == "" {
			userID, err = url.PathUnescape(strings.TrimSuffix(filepath.Base(path), ".yml"))
			if err != nil {
				return nil, fmt.Errorf("url.PathUnescape(%s) > %w", path, err)
			}
		}
		for cardID, card := range f.Cards {
			rec := s.toRecord(userID, cardID, card)
			result = append(result, &rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UserID != result[j].UserID {
			return result[i].UserID < result[j].UserID
		}
		return result[i].CardID < result[j].CardID
	})
	return result, nil
}

func (s *Store) toRecord(userID, cardID string, card *cardRecord) scheduler.Record {
	rec := scheduler.Record{
		UserID:         userID,
		CardID:         cardID,
		EaseFactor:     card.EaseFactor,
		Repetitions:    card.Repetitions,
		IntervalDays:   card.IntervalDays,
		NextReviewAt:   scheduler.ParseReviewTime(card.NextReviewAt),
		LastReviewedAt: scheduler.ParseReviewTime(card.LastReviewedAt),
		TimesReviewed:  card.TimesReviewed,
		Version:        card.Version,
	}
	if card.NextReviewAt != "" && rec.NextReviewAt == nil {
		s.log.Warn("unparseable next_review_at, treating card as due",
			slog.String("user_id", userID),
			slog.String("card_id", cardID),
			slog.String("next_review_at", card.NextReviewAt),
		)
	}
	if len(card.History) > 0 {
		rec.History = make([]scheduler.HistoryEntry, len(card.History))
		for i, h := range card.History {
			h.ReviewedAt = h.ReviewedAt.UTC()
			rec.History[i] = h
		}
	}
	return rec
}

func fromRecord(rec scheduler.Record) *cardRecord {
	card := &cardRecord{
		EaseFactor:     rec.EaseFactor,
		Repetitions:    rec.Repetitions,
		IntervalDays:   rec.IntervalDays,
		NextReviewAt:   scheduler.FormatReviewTime(rec.NextReviewAt),
		LastReviewedAt: scheduler.FormatReviewTime(rec.LastReviewedAt),
		TimesReviewed:  rec.TimesReviewed,
		History:        make([]scheduler.HistoryEntry, len(rec.History)),
	}
	for i, h := range rec.History {
		h.ReviewedAt = h.ReviewedAt.UTC()
		card.History[i] = h
	}
	return card
}
