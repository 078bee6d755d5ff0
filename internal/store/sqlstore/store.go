// Package sqlstore keeps scheduling records in MySQL or SQLite.
//
// Hot scheduling fields live in scheduling_records and every review appends a
// row to review_history. Writes are compare-and-swap on the version column.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/at-ishikawa/recall/internal/database"
	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
)

var (
	_ review.Store  = (*Store)(nil)
	_ review.Lister = (*Store)(nil)
)

const mysqlDuplicateEntry = 1062

const recordColumns = "user_id, card_id, ease_factor, repetitions, interval_days, next_review_at, last_reviewed_at, times_reviewed, version"

var historyColumns = []string{"user_id", "card_id", "seq", "rating", "quality", "reviewed_at"}

type recordRow struct {
	UserID         string         `db:"user_id"`
	CardID         string         `db:"card_id"`
	EaseFactor     float64        `db:"ease_factor"`
	Repetitions    int            `db:"repetitions"`
	IntervalDays   int            `db:"interval_days"`
	NextReviewAt   sql.NullString `db:"next_review_at"`
	LastReviewedAt sql.NullString `db:"last_reviewed_at"`
	TimesReviewed  int            `db:"times_reviewed"`
	Version        int64          `db:"version"`
}

type historyRow struct {
	UserID     string `db:"user_id"`
	CardID     string `db:"card_id"`
	Seq        int    `db:"seq"`
	Rating     string `db:"rating"`
	Quality    int    `db:"quality"`
	ReviewedAt string `db:"reviewed_at"`
}

// Store is a review.Store over a SQL database migrated with database.Migrate.
type Store struct {
	db      *sqlx.DB
	dialect database.Dialect
	log     *slog.Logger
}

// New creates a Store. db must use the driver named by dialect.
func New(db *sqlx.DB, dialect database.Dialect, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, dialect: dialect, log: log}
}

// timeArg converts a timestamp into the value the dialect stores.
// MySQL keeps DATETIME(6) columns, SQLite keeps RFC 3339 text.
func (s *Store) timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	if s.dialect == database.DialectSQLite {
		return scheduler.FormatReviewTime(t)
	}
	return t.UTC()
}

// GetRecord returns the record with its history, or nil if the card was never reviewed.
func (s *Store) GetRecord(ctx context.Context, userID, cardID string) (*scheduler.Record, error) {
	var row recordRow
	query := "SELECT " + recordColumns + " FROM scheduling_records WHERE user_id = ? AND card_id = ?"
	if err := s.db.GetContext(ctx, &row, query, userID, cardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext(scheduling_records) > %w", err)
	}

	var history []historyRow
	query = "SELECT " + strings.Join(historyColumns, ", ") + " FROM review_history WHERE user_id = ? AND card_id = ? ORDER BY seq"
	if err := s.db.SelectContext(ctx, &history, query, userID, cardID); err != nil {
		return nil, fmt.Errorf("db.SelectContext(review_history) > %w", err)
	}

	rec := s.toRecord(row)
	rec.History = s.toHistory(history)
	return &rec, nil
}

// GetRecords returns the records of the given cards in one query, without their history.
func (s *Store) GetRecords(ctx context.Context, userID string, cardIDs []string) (map[string]*scheduler.Record, error) {
	result := make(map[string]*scheduler.Record, len(cardIDs))
	if len(cardIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In("SELECT "+recordColumns+" FROM scheduling_records WHERE user_id = ? AND card_id IN (?)", userID, cardIDs)
	if err != nil {
		return nil, fmt.Errorf("build scheduling records query: %w", err)
	}
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext(scheduling_records) > %w", err)
	}
	for _, row := range rows {
		rec := s.toRecord(row)
		result[row.CardID] = &rec
	}
	return result, nil
}

// PutRecord writes rec if its version matches the stored one and appends the
// history entries the database does not have yet.
func (s *Store) PutRecord(ctx context.Context, rec *scheduler.Record) error {
	err := database.RunInTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if rec.Version == 0 {
			if err := s.insertRecord(ctx, tx, rec); err != nil {
				return err
			}
		} else if err := s.updateRecord(ctx, tx, rec); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, rec)
	})
	if err != nil {
		return err
	}
	rec.Version++
	return nil
}

func (s *Store) insertRecord(ctx context.Context, tx *sqlx.Tx, rec *scheduler.Record) error {
	query := "INSERT INTO scheduling_records (" + recordColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := tx.ExecContext(ctx, query,
		rec.UserID, rec.CardID, rec.EaseFactor, rec.Repetitions, rec.IntervalDays,
		s.timeArg(rec.NextReviewAt), s.timeArg(rec.LastReviewedAt), rec.TimesReviewed, rec.Version+1,
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s already exists", review.ErrConflict, rec.Key())
		}
		return fmt.Errorf("tx.ExecContext(insert scheduling_records) > %w", err)
	}
	return nil
}

func (s *Store) updateRecord(ctx context.Context, tx *sqlx.Tx, rec *scheduler.Record) error {
	query := `UPDATE scheduling_records
SET ease_factor = ?, repetitions = ?, interval_days = ?, next_review_at = ?, last_reviewed_at = ?, times_reviewed = ?, version = version + 1
WHERE user_id = ? AND card_id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query,
		rec.EaseFactor, rec.Repetitions, rec.IntervalDays,
		s.timeArg(rec.NextReviewAt), s.timeArg(rec.LastReviewedAt), rec.TimesReviewed,
		rec.UserID, rec.CardID, rec.Version,
	)
	if err != nil {
		return fmt.Errorf("tx.ExecContext(update scheduling_records) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("result.RowsAffected() > %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s is no longer at version %d", review.ErrConflict, rec.Key(), rec.Version)
	}
	return nil
}

func (s *Store) appendHistory(ctx context.Context, tx *sqlx.Tx, rec *scheduler.Record) error {
	if len(rec.History) == 0 {
		return nil
	}

	var lastSeq int
	query := "SELECT COALESCE(MAX(seq), 0) FROM review_history WHERE user_id = ? AND card_id = ?"
	if err := tx.GetContext(ctx, &lastSeq, query, rec.UserID, rec.CardID); err != nil {
		return fmt.Errorf("tx.GetContext(review_history) > %w", err)
	}

	var args []any
	rowCount := 0
	for _, h := range rec.History {
		if h.Seq <= lastSeq {
			continue
		}
		reviewedAt := h.ReviewedAt
		args = append(args, rec.UserID, rec.CardID, h.Seq, h.Rating, int(h.Quality), s.timeArg(&reviewedAt))
		rowCount++
	}
	if rowCount == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, buildMultiRowInsert("review_history", historyColumns, rowCount), args...); err != nil {
		return fmt.Errorf("tx.ExecContext(insert review_history) > %w", err)
	}
	return nil
}

// ListRecords returns every record with its history, ordered by user and card.
func (s *Store) ListRecords(ctx context.Context) ([]*scheduler.Record, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+recordColumns+" FROM scheduling_records ORDER BY user_id, card_id"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(scheduling_records) > %w", err)
	}
	var history []historyRow
	query := "SELECT " + strings.Join(historyColumns, ", ") + " FROM review_history ORDER BY user_id, card_id, seq"
	if err := s.db.SelectContext(ctx, &history, query); err != nil {
		return nil, fmt.Errorf("db.SelectContext(review_history) > %w", err)
	}

	byKey := make(map[scheduler.Key][]historyRow)
	for _, h := range history {
		key := scheduler.Key{UserID: h.UserID, CardID: h.CardID}
		byKey[key] = append(byKey[key], h)
	}

	result := make([]*scheduler.Record, 0, len(rows))
	for _, row := range rows {
		rec := s.toRecord(row)
		rec.History = s.toHistory(byKey[rec.Key()])
		result = append(result, &rec)
	}
	return result, nil
}

func (s *Store) toRecord(row recordRow) scheduler.Record {
	rec := scheduler.Record{
		UserID:         row.UserID,
		CardID:         row.CardID,
		EaseFactor:     row.EaseFactor,
		Repetitions:    row.Repetitions,
		IntervalDays:   row.IntervalDays,
		NextReviewAt:   scheduler.ParseReviewTime(row.NextReviewAt.String),
		LastReviewedAt: scheduler.ParseReviewTime(row.LastReviewedAt.String),
		TimesReviewed:  row.TimesReviewed,
		Version:        row.Version,
	}
	if row.NextReviewAt.String != "" && rec.NextReviewAt == nil {
		s.log.Warn("unparseable next_review_at, treating card as due",
			slog.String("user_id", row.UserID),
			slog.String("card_id", row.CardID),
			slog.String("next_review_at", row.NextReviewAt.String),
		)
	}
	return rec
}

func (s *Store) toHistory(rows []historyRow) []scheduler.HistoryEntry {
	if len(rows) == 0 {
		return nil
	}
	history := make([]scheduler.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := scheduler.HistoryEntry{
			Seq:     row.Seq,
			Rating:  row.Rating,
			Quality: scheduler.Quality(row.Quality),
		}
		if t := scheduler.ParseReviewTime(row.ReviewedAt); t != nil {
			entry.ReviewedAt = *t
		} else {
			s.log.Warn("unparseable reviewed_at in history",
				slog.String("user_id", row.UserID),
				slog.String("card_id", row.CardID),
				slog.Int("seq", row.Seq),
			)
		}
		history = append(history, entry)
	}
	return history
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func buildMultiRowInsert(table string, columns []string, rowCount int) string {
	placeholder := "(" + strings.Repeat("?, ", len(columns)-1) + "?)"
	values := strings.Repeat(placeholder+", ", rowCount-1) + placeholder
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(columns, ", "), values)
}
