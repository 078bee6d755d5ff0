package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/recall/internal/database"
	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
	"github.com/at-ishikawa/recall/internal/store/storetest"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DialectSQLite))
	return New(db, database.DialectSQLite, nil)
}

func TestStore_SQLite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) review.Store {
		return newSQLiteStore(t)
	})
}

func TestStore_SQLiteMalformedTimestampIsDue(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec, err := scheduler.Apply(scheduler.NewRecord("u1", "c1"), "good", 4, now)
	require.NoError(t, err)
	require.NoError(t, s.PutRecord(ctx, &rec))

	_, err = s.db.ExecContext(ctx, "UPDATE scheduling_records SET next_review_at = 'someday' WHERE card_id = 'c1'")
	require.NoError(t, err)

	got, err := s.GetRecords(ctx, "u1", []string{"c1"})
	require.NoError(t, err)
	require.Contains(t, got, "c1")
	assert.Nil(t, got["c1"].NextReviewAt)
	assert.True(t, scheduler.IsDue(got["c1"], now))
}

func TestStore_SQLiteListRecords(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, key := range []scheduler.Key{{UserID: "u2", CardID: "x"}, {UserID: "u1", CardID: "b"}, {UserID: "u1", CardID: "a"}} {
		rec, err := scheduler.Apply(scheduler.NewRecord(key.UserID, key.CardID), "easy", 5, now)
		require.NoError(t, err)
		require.NoError(t, s.PutRecord(ctx, &rec))
	}

	got, err := s.ListRecords(ctx)
	require.NoError(t, err)
	var keys []string
	for _, rec := range got {
		keys = append(keys, rec.Key().String())
		assert.Len(t, rec.History, 1)
	}
	assert.Equal(t, []string{"u1/a", "u1/b", "u2/x"}, keys)
}

func newMySQLMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "mysql"), database.DialectMySQL, nil), mock
}

var recordMockColumns = []string{"user_id", "card_id", "ease_factor", "repetitions", "interval_days", "next_review_at", "last_reviewed_at", "times_reviewed", "version"}

func TestStore_GetRecord(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		want      *scheduler.Record
		wantErr   bool
	}{
		{
			name: "found with history",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM scheduling_records WHERE user_id = ? AND card_id = ?")).
					WithArgs("u1", "c1").
					WillReturnRows(sqlmock.NewRows(recordMockColumns).
						AddRow("u1", "c1", 2.6, 1, 1, "2025-06-02T12:00:00Z", "2025-06-01T12:00:00Z", 1, 1))
				mock.ExpectQuery(regexp.QuoteMeta("FROM review_history WHERE user_id = ? AND card_id = ? ORDER BY seq")).
					WithArgs("u1", "c1").
					WillReturnRows(sqlmock.NewRows([]string{"user_id", "card_id", "seq", "rating", "quality", "reviewed_at"}).
						AddRow("u1", "c1", 1, "easy", 5, "2025-06-01T12:00:00Z"))
			},
			want: &scheduler.Record{
				UserID:         "u1",
				CardID:         "c1",
				EaseFactor:     2.6,
				Repetitions:    1,
				IntervalDays:   1,
				NextReviewAt:   timePtr(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)),
				LastReviewedAt: timePtr(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
				TimesReviewed:  1,
				History: []scheduler.HistoryEntry{
					{Seq: 1, Rating: "easy", Quality: 5, ReviewedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
				},
				Version: 1,
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM scheduling_records WHERE")).
					WithArgs("u1", "c1").
					WillReturnRows(sqlmock.NewRows(recordMockColumns))
			},
		},
		{
			name: "query error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM scheduling_records WHERE")).
					WithArgs("u1", "c1").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMySQLMock(t)
			tt.setupMock(mock)

			got, err := s.GetRecord(context.Background(), "u1", "c1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_GetRecords(t *testing.T) {
	t.Run("one query for many cards", func(t *testing.T) {
		s, mock := newMySQLMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM scheduling_records WHERE user_id = ? AND card_id IN (?, ?, ?)")).
			WithArgs("u1", "a", "b", "c").
			WillReturnRows(sqlmock.NewRows(recordMockColumns).
				AddRow("u1", "a", 2.5, 1, 1, "2025-06-02T12:00:00Z", "2025-06-01T12:00:00Z", 1, 1).
				AddRow("u1", "c", 2.5, 0, 0, nil, nil, 0, 1))

		got, err := s.GetRecords(context.Background(), "u1", []string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got["a"].IntervalDays)
		assert.Nil(t, got["c"].NextReviewAt)
		assert.Nil(t, got["a"].History)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no cards skips the query", func(t *testing.T) {
		s, mock := newMySQLMock(t)
		got, err := s.GetRecords(context.Background(), "u1", nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_PutRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first, err := scheduler.Apply(scheduler.NewRecord("u1", "c1"), "good", 4, now)
	require.NoError(t, err)
	stored := first
	stored.Version = 1
	second, err := scheduler.Apply(stored, "easy", 5, now.Add(24*time.Hour))
	require.NoError(t, err)
	// DATETIME(6) keeps microseconds, so nothing finer may reach the driver.
	micro := time.Date(2025, 6, 1, 12, 0, 0, 123456000, time.UTC)
	precise, err := scheduler.Apply(scheduler.NewRecord("u1", "c1"), "good", 4, micro.Add(789*time.Nanosecond))
	require.NoError(t, err)

	tests := []struct {
		name         string
		rec          scheduler.Record
		setupMock    func(mock sqlmock.Sqlmock)
		wantVersion  int64
		wantConflict bool
		wantErr      bool
	}{
		{
			name: "inserts a new record",
			rec:  first,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scheduling_records")).
					WithArgs("u1", "c1", sqlmock.AnyArg(), 1, 1, now.Add(24*time.Hour), now, 1, int64(1)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(seq), 0) FROM review_history")).
					WithArgs("u1", "c1").
					WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_history (user_id, card_id, seq, rating, quality, reviewed_at) VALUES (?, ?, ?, ?, ?, ?)")).
					WithArgs("u1", "c1", 1, "good", 4, now).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			wantVersion: 1,
		},
		{
			name: "writes review times at microsecond precision",
			rec:  precise,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scheduling_records")).
					WithArgs("u1", "c1", sqlmock.AnyArg(), 1, 1, micro.Add(24*time.Hour), micro, 1, int64(1)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(seq), 0) FROM review_history")).
					WithArgs("u1", "c1").
					WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_history")).
					WithArgs("u1", "c1", 1, "good", 4, micro).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			wantVersion: 1,
		},
		{
			name: "duplicate insert is a conflict",
			rec:  first,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scheduling_records")).
					WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
				mock.ExpectRollback()
			},
			wantVersion:  0,
			wantConflict: true,
		},
		{
			name: "updates at the expected version and appends new history only",
			rec:  second,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("UPDATE scheduling_records")).
					WithArgs(sqlmock.AnyArg(), 2, 6, now.Add(7*24*time.Hour), now.Add(24*time.Hour), 2, "u1", "c1", int64(1)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(seq), 0) FROM review_history")).
					WithArgs("u1", "c1").
					WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_history")).
					WithArgs("u1", "c1", 2, "easy", 5, now.Add(24*time.Hour)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			wantVersion: 2,
		},
		{
			name: "stale version is a conflict",
			rec:  second,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("UPDATE scheduling_records")).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			wantVersion:  1,
			wantConflict: true,
		},
		{
			name: "driver error is not a conflict",
			rec:  second,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("UPDATE scheduling_records")).
					WillReturnError(errors.New("lost connection"))
				mock.ExpectRollback()
			},
			wantVersion: 1,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMySQLMock(t)
			tt.setupMock(mock)

			rec := tt.rec.Clone()
			err := s.PutRecord(context.Background(), &rec)
			switch {
			case tt.wantConflict:
				assert.ErrorIs(t, err, review.ErrConflict)
			case tt.wantErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, review.ErrConflict)
			default:
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantVersion, rec.Version)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
