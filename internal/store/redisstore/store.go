// Package redisstore keeps scheduling records in Redis.
//
// Each record is a JSON document under <prefix>:record:<user>:<card> with its
// history in a list beside it. Writes use WATCH/MULTI on the record key.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/at-ishikawa/recall/internal/config"
	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
)

var (
	_ review.Store  = (*Store)(nil)
	_ review.Lister = (*Store)(nil)
)

// document is the stored form of a record without its history.
type document struct {
	EaseFactor     float64 `json:"ease_factor"`
	Repetitions    int     `json:"repetitions"`
	IntervalDays   int     `json:"interval_days"`
	NextReviewAt   string  `json:"next_review_at,omitempty"`
	LastReviewedAt string  `json:"last_reviewed_at,omitempty"`
	TimesReviewed  int     `json:"times_reviewed"`
	Version        int64   `json:"version"`
}

// Store is a review.Store over Redis. Writes are checked with WATCH/MULTI on the record key.
type Store struct {
	rdb    *goredis.Client
	prefix string
	log    *slog.Logger
}

// Open connects to the configured Redis server and verifies it answers.
func Open(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// New creates a Store whose keys start with prefix.
func New(rdb *goredis.Client, prefix string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{rdb: rdb, prefix: prefix, log: log.With("store", "redis")}
}

func (s *Store) key(parts ...string) string {
	escaped := make([]string, 0, len(parts)+1)
	if s.prefix != "" {
		escaped = append(escaped, s.prefix)
	}
	for i, p := range parts {
		if i == 0 {
			escaped = append(escaped, p)
			continue
		}
		escaped = append(escaped, url.QueryEscape(p))
	}
	return strings.Join(escaped, ":")
}

func (s *Store) recordKey(userID, cardID string) string {
	return s.key("record", userID, cardID)
}

func (s *Store) historyKey(userID, cardID string) string {
	return s.key("history", userID, cardID)
}

func (s *Store) cardsKey(userID string) string {
	return s.key("cards", userID)
}

func (s *Store) usersKey() string {
	return s.key("users")
}

// GetRecord returns the record with its history, or nil if the card was never reviewed.
func (s *Store) GetRecord(ctx context.Context, userID, cardID string) (*scheduler.Record, error) {
	raw, err := s.rdb.Get(ctx, s.recordKey(userID, cardID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET %s/%s: %w", userID, cardID, err)
	}
	rec, err := s.decode(userID, cardID, raw)
	if err != nil {
		return nil, err
	}

	entries, err := s.rdb.LRange(ctx, s.historyKey(userID, cardID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE %s/%s: %w", userID, cardID, err)
	}
	history, err := decodeHistory(entries)
	if err != nil {
		return nil, fmt.Errorf("decode history of %s/%s: %w", userID, cardID, err)
	}
	rec.History = history
	return rec, nil
}

// GetRecords returns the records of the given cards with one MGET, without their history.
func (s *Store) GetRecords(ctx context.Context, userID string, cardIDs []string) (map[string]*scheduler.Record, error) {
	result := make(map[string]*scheduler.Record, len(cardIDs))
	if len(cardIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(cardIDs))
	for i, id := range cardIDs {
		keys[i] = s.recordKey(userID, id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis MGET: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := s.decode(userID, cardIDs[i], raw)
		if err != nil {
			return nil, err
		}
		result[cardIDs[i]] = rec
	}
	return result, nil
}

// PutRecord writes rec if its version matches the stored one. A concurrent
// write to the same record between WATCH and EXEC is reported as a conflict.
func (s *Store) PutRecord(ctx context.Context, rec *scheduler.Record) error {
	recordKey := s.recordKey(rec.UserID, rec.CardID)
	historyKey := s.historyKey(rec.UserID, rec.CardID)
	next := rec.Version + 1

	txf := func(tx *goredis.Tx) error {
		var stored int64
		raw, err := tx.Get(ctx, recordKey).Result()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return fmt.Errorf("redis GET %s: %w", rec.Key(), err)
		default:
			var doc document
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return fmt.Errorf("decode record %s: %w", rec.Key(), err)
			}
			stored = doc.Version
		}
		if stored != rec.Version {
			return fmt.Errorf("%w: %s at version %d, got %d", review.ErrConflict, rec.Key(), stored, rec.Version)
		}

		storedHistory, err := tx.LLen(ctx, historyKey).Result()
		if err != nil {
			return fmt.Errorf("redis LLEN %s: %w", rec.Key(), err)
		}
		var appended []any
		for _, h := range rec.History {
			if int64(h.Seq) <= storedHistory {
				continue
			}
			h.ReviewedAt = h.ReviewedAt.UTC()
			b, err := json.Marshal(h)
			if err != nil {
				return fmt.Errorf("encode history of %s: %w", rec.Key(), err)
			}
			appended = append(appended, string(b))
		}

		doc := toDocument(*rec)
		doc.Version = next
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.Key(), err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, recordKey, body, 0)
			if len(appended) > 0 {
				pipe.RPush(ctx, historyKey, appended...)
			}
			pipe.SAdd(ctx, s.cardsKey(rec.UserID), rec.CardID)
			pipe.SAdd(ctx, s.usersKey(), rec.UserID)
			return nil
		})
		return err
	}

	if err := s.rdb.Watch(ctx, txf, recordKey); err != nil {
		if errors.Is(err, goredis.TxFailedErr) {
			return fmt.Errorf("%w: %s changed during write", review.ErrConflict, rec.Key())
		}
		return err
	}
	rec.Version = next
	return nil
}

// ListRecords returns every record with its history, ordered by user and card.
func (s *Store) ListRecords(ctx context.Context) ([]*scheduler.Record, error) {
	users, err := s.rdb.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMEMBERS users: %w", err)
	}
	sort.Strings(users)

	var result []*scheduler.Record
	for _, userID := range users {
		cards, err := s.rdb.SMembers(ctx, s.cardsKey(userID)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis SMEMBERS cards of %s: %w", userID, err)
		}
		sort.Strings(cards)
		for _, cardID := range cards {
			rec, err := s.GetRecord(ctx, userID, cardID)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				result = append(result, rec)
			}
		}
	}
	return result, nil
}

func (s *Store) decode(userID, cardID, raw string) (*scheduler.Record, error) {
	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode record %s/%s: %w", userID, cardID, err)
	}
	rec := scheduler.Record{
		UserID:         userID,
		CardID:         cardID,
		EaseFactor:     doc.EaseFactor,
		Repetitions:    doc.Repetitions,
		IntervalDays:   doc.IntervalDays,
		NextReviewAt:   scheduler.ParseReviewTime(doc.NextReviewAt),
		LastReviewedAt: scheduler.ParseReviewTime(doc.LastReviewedAt),
		TimesReviewed:  doc.TimesReviewed,
		Version:        doc.Version,
	}
	if doc.NextReviewAt != "" && rec.NextReviewAt == nil {
		s.log.Warn("unparseable next_review_at, treating card as due",
			slog.String("user_id", userID),
			slog.String("card_id", cardID),
			slog.String("next_review_at", doc.NextReviewAt),
		)
	}
	return &rec, nil
}

func toDocument(rec scheduler.Record) document {
	return document{
		EaseFactor:     rec.EaseFactor,
		Repetitions:    rec.Repetitions,
		IntervalDays:   rec.IntervalDays,
		NextReviewAt:   scheduler.FormatReviewTime(rec.NextReviewAt),
		LastReviewedAt: scheduler.FormatReviewTime(rec.LastReviewedAt),
		TimesReviewed:  rec.TimesReviewed,
		Version:        rec.Version,
	}
}

func decodeHistory(entries []string) ([]scheduler.HistoryEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	history := make([]scheduler.HistoryEntry, len(entries))
	for i, raw := range entries {
		if err := json.Unmarshal([]byte(raw), &history[i]); err != nil {
			return nil, err
		}
		history[i].ReviewedAt = history[i].ReviewedAt.UTC()
	}
	return history, nil
}
