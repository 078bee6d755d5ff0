package server

import (
	"time"

	"github.com/at-ishikawa/recall/internal/scheduler"
	"github.com/at-ishikawa/recall/internal/statistics"
)

type RecordReviewRequest struct {
	UserID string `json:"user_id" validate:"required"`
	CardID string `json:"card_id" validate:"required"`
	// Rating is one of hard, good or easy.
	Rating string `json:"rating" validate:"required"`
	// ReviewedAt defaults to the server time.
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

type RecordReviewResponse struct {
	Record   *scheduler.Record  `json:"record"`
	Category scheduler.Category `json:"category"`
}

type ListDueCardsRequest struct {
	UserID  string     `json:"user_id" validate:"required"`
	CardIDs []string   `json:"card_ids" validate:"dive,required"`
	Now     *time.Time `json:"now,omitempty"`
}

type ListDueCardsResponse struct {
	CardIDs []string `json:"card_ids"`
}

type GetRecordRequest struct {
	UserID string `json:"user_id" validate:"required"`
	CardID string `json:"card_id" validate:"required"`
}

type GetRecordResponse struct {
	Record   *scheduler.Record  `json:"record"`
	Category scheduler.Category `json:"category"`
	Due      bool               `json:"due"`
}

type GetProgressRequest struct {
	UserID  string     `json:"user_id" validate:"required"`
	CardIDs []string   `json:"card_ids" validate:"dive,required"`
	Now     *time.Time `json:"now,omitempty"`
}

type GetProgressResponse struct {
	Progress statistics.SetProgress `json:"progress"`
}
