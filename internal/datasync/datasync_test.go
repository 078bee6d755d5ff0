package datasync

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_review "github.com/at-ishikawa/recall/internal/mocks/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
	"github.com/at-ishikawa/recall/internal/store/memstore"
)

func reviewedRecord(t *testing.T, userID, cardID string, labels ...string) *scheduler.Record {
	t.Helper()
	rec := scheduler.NewRecord(userID, cardID)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, label := range labels {
		var err error
		rec, err = scheduler.Apply(rec, label, scheduler.QualityForLabel(label), now)
		require.NoError(t, err)
		now = *rec.NextReviewAt
	}
	rec.Version = 7
	return &rec
}

func TestSyncer_Sync(t *testing.T) {
	tests := []struct {
		name       string
		opts       SyncOptions
		setup      func(source *mock_review.MockLister, dest *mock_review.MockStore)
		want       *SyncResult
		wantOutput string
		wantErr    bool
	}{
		{
			name: "new record is created at version zero",
			setup: func(source *mock_review.MockLister, dest *mock_review.MockStore) {
				source.EXPECT().ListRecords(gomock.Any()).Return([]*scheduler.Record{reviewedRecord(t, "u1", "c1", "good", "easy")}, nil)
				dest.EXPECT().GetRecord(gomock.Any(), "u1", "c1").Return(nil, nil)
				dest.EXPECT().PutRecord(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, rec *scheduler.Record) error {
						assert.Equal(t, int64(0), rec.Version)
						assert.Equal(t, 2, rec.TimesReviewed)
						assert.Len(t, rec.History, 2)
						return nil
					})
			},
			want:       &SyncResult{RecordsNew: 1, HistoryCopied: 2},
			wantOutput: "  [NEW]  u1/c1 (2 reviews)\n",
		},
		{
			name: "existing record is skipped when UpdateExisting is false",
			setup: func(source *mock_review.MockLister, dest *mock_review.MockStore) {
				source.EXPECT().ListRecords(gomock.Any()).Return([]*scheduler.Record{reviewedRecord(t, "u1", "c1", "good", "easy")}, nil)
				dest.EXPECT().GetRecord(gomock.Any(), "u1", "c1").Return(reviewedRecord(t, "u1", "c1", "good"), nil)
			},
			want:       &SyncResult{RecordsSkipped: 1},
			wantOutput: "  [SKIP]  u1/c1\n",
		},
		{
			name: "behind destination is updated at its own version",
			opts: SyncOptions{UpdateExisting: true},
			setup: func(source *mock_review.MockLister, dest *mock_review.MockStore) {
				existing := reviewedRecord(t, "u1", "c1", "good")
				existing.Version = 3
				source.EXPECT().ListRecords(gomock.Any()).Return([]*scheduler.Record{reviewedRecord(t, "u1", "c1", "good", "easy", "hard")}, nil)
				dest.EXPECT().GetRecord(gomock.Any(), "u1", "c1").Return(existing, nil)
				dest.EXPECT().PutRecord(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, rec *scheduler.Record) error {
						assert.Equal(t, int64(3), rec.Version)
						assert.Equal(t, 3, rec.TimesReviewed)
						return nil
					})
			},
			want:       &SyncResult{RecordsUpdated: 1, HistoryCopied: 2},
			wantOutput: "  [UPDATE]  u1/c1 (1 -> 3 reviews)\n",
		},
		{
			name: "destination ahead is kept even with UpdateExisting",
			opts: SyncOptions{UpdateExisting: true},
			setup: func(source *mock_review.MockLister, dest *mock_review.MockStore) {
				source.EXPECT().ListRecords(gomock.Any()).Return([]*scheduler.Record{reviewedRecord(t, "u1", "c1", "good")}, nil)
				dest.EXPECT().GetRecord(gomock.Any(), "u1", "c1").Return(reviewedRecord(t, "u1", "c1", "good", "good"), nil)
			},
			want:       &SyncResult{RecordsSkipped: 1},
			wantOutput: "  [SKIP]  u1/c1\n",
		},
		{
			name: "dry run does not write",
			opts: SyncOptions{DryRun: true},
			setup: func(source *mock_review.MockLister, dest *mock_review.MockStore) {
				source.EXPECT().ListRecords(gomock.Any()).Return([]*scheduler.Record{reviewedRecord(t, "u1", "c1", "good")}, nil)
				dest.EXPECT().GetRecord(gomock.Any(), "u1", "c1").Return(nil, nil)
			},
			want:       &SyncResult{RecordsNew: 1, HistoryCopied: 1},
			wantOutput: "  [NEW]  u1/c1 (1 reviews)\n",
		},
		{
			name: "list error",
			setup: func(source *mock_review.MockLister, dest *mock_review.MockStore) {
				source.EXPECT().ListRecords(gomock.Any()).Return(nil, errors.New("db down"))
			},
			wantErr: true,
		},
		{
			name: "write error",
			setup: func(source *mock_review.MockLister, dest *mock_review.MockStore) {
				source.EXPECT().ListRecords(gomock.Any()).Return([]*scheduler.Record{reviewedRecord(t, "u1", "c1", "good")}, nil)
				dest.EXPECT().GetRecord(gomock.Any(), "u1", "c1").Return(nil, nil)
				dest.EXPECT().PutRecord(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			source := mock_review.NewMockLister(ctrl)
			dest := mock_review.NewMockStore(ctrl)
			tt.setup(source, dest)

			var buf bytes.Buffer
			got, err := NewSyncer(source, dest, &buf).Sync(context.Background(), tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOutput, buf.String())
		})
	}
}

func TestSyncer_SyncBetweenMemoryStores(t *testing.T) {
	ctx := context.Background()
	source := memstore.New()
	for _, rec := range []*scheduler.Record{
		reviewedRecord(t, "u1", "a", "good", "good"),
		reviewedRecord(t, "u2", "b", "hard"),
	} {
		rec.Version = 0
		require.NoError(t, source.PutRecord(ctx, rec))
	}
	dest := memstore.New()

	var buf bytes.Buffer
	got, err := NewSyncer(source, dest, &buf).Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, &SyncResult{RecordsNew: 2, HistoryCopied: 3}, got)

	copied, err := dest.GetRecord(ctx, "u1", "a")
	require.NoError(t, err)
	require.NotNil(t, copied)
	assert.Equal(t, 6, copied.IntervalDays)
	assert.Equal(t, int64(1), copied.Version)
	assert.Len(t, copied.History, 2)

	again, err := NewSyncer(source, dest, &buf).Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, &SyncResult{RecordsSkipped: 2}, again)
}
