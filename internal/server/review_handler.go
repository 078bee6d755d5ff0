// Package server exposes the review service over the Connect protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/genproto/googleapis/rpc/errdetails"

	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/scheduler"
)

// ReviewHandler implements ReviewServiceHandler on top of review.Service.
type ReviewHandler struct {
	service   *review.Service
	log       *slog.Logger
	validator *requestValidator
	now       func() time.Time
}

var _ ReviewServiceHandler = (*ReviewHandler)(nil)

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(service *review.Service, log *slog.Logger) (*ReviewHandler, error) {
	if log == nil {
		log = slog.Default()
	}
	v, err := newRequestValidator()
	if err != nil {
		return nil, fmt.Errorf("newRequestValidator() > %w", err)
	}
	return &ReviewHandler{
		service:   service,
		log:       log,
		validator: v,
		now:       time.Now,
	}, nil
}

func (h *ReviewHandler) timeOrNow(t *time.Time) time.Time {
	if t != nil {
		return t.UTC()
	}
	return h.now().UTC()
}

// RecordReview applies one rating to a card. Unlike the service, it rejects unknown ratings.
func (h *ReviewHandler) RecordReview(
	ctx context.Context,
	req *connect.Request[RecordReviewRequest],
) (*connect.Response[RecordReviewResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	rating, err := scheduler.ParseRating(req.Msg.Rating)
	if err != nil {
		return nil, invalidArgument(err.Error(), &errdetails.BadRequest_FieldViolation{
			Field:       "rating",
			Description: fmt.Sprintf("rating must be one of %v", scheduler.Ratings()),
		})
	}

	rec, err := h.service.RecordReview(ctx, req.Msg.UserID, req.Msg.CardID, rating.String(), h.timeOrNow(req.Msg.ReviewedAt))
	if err != nil {
		return nil, h.toConnectError(ctx, "record review", err)
	}
	return connect.NewResponse(&RecordReviewResponse{
		Record:   rec,
		Category: scheduler.CategoryOf(rec.IntervalDays),
	}), nil
}

// ListDueCards returns the requested cards that are due, in request order.
func (h *ReviewHandler) ListDueCards(
	ctx context.Context,
	req *connect.Request[ListDueCardsRequest],
) (*connect.Response[ListDueCardsResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	due, err := h.service.DueCards(ctx, req.Msg.UserID, req.Msg.CardIDs, h.timeOrNow(req.Msg.Now))
	if err != nil {
		return nil, h.toConnectError(ctx, "list due cards", err)
	}
	if due == nil {
		due = []string{}
	}
	return connect.NewResponse(&ListDueCardsResponse{CardIDs: due}), nil
}

// GetRecord returns the scheduling record of a card with its history.
func (h *ReviewHandler) GetRecord(
	ctx context.Context,
	req *connect.Request[GetRecordRequest],
) (*connect.Response[GetRecordResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	rec, err := h.service.Record(ctx, req.Msg.UserID, req.Msg.CardID)
	if err != nil {
		return nil, h.toConnectError(ctx, "get record", err)
	}
	return connect.NewResponse(&GetRecordResponse{
		Record:   rec,
		Category: scheduler.CategoryOf(rec.IntervalDays),
		Due:      scheduler.IsDue(rec, h.now()),
	}), nil
}

// GetProgress summarizes a set of cards.
func (h *ReviewHandler) GetProgress(
	ctx context.Context,
	req *connect.Request[GetProgressRequest],
) (*connect.Response[GetProgressResponse], error) {
	if err := h.validator.check(req.Msg); err != nil {
		return nil, err
	}
	progress, err := h.service.Progress(ctx, req.Msg.UserID, req.Msg.CardIDs, h.timeOrNow(req.Msg.Now))
	if err != nil {
		return nil, h.toConnectError(ctx, "get progress", err)
	}
	return connect.NewResponse(&GetProgressResponse{Progress: progress}), nil
}

func (h *ReviewHandler) toConnectError(ctx context.Context, op string, err error) *connect.Error {
	var code connect.Code
	switch {
	case errors.Is(err, scheduler.ErrInvalidRating):
		code = connect.CodeInvalidArgument
	case errors.Is(err, review.ErrTransient):
		code = connect.CodeAborted
	case errors.Is(err, scheduler.ErrInvalidRecord):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	default:
		code = connect.CodeInternal
		h.log.ErrorContext(ctx, op+" failed", slog.Any("error", err))
	}
	return connect.NewError(code, fmt.Errorf("%s: %w", op, err))
}
