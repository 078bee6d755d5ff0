package server

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ReviewServiceName is the fully-qualified name of the review service.
const ReviewServiceName = "recall.v1.ReviewService"

const (
	ReviewServiceRecordReviewProcedure = "/recall.v1.ReviewService/RecordReview"
	ReviewServiceListDueCardsProcedure = "/recall.v1.ReviewService/ListDueCards"
	ReviewServiceGetRecordProcedure    = "/recall.v1.ReviewService/GetRecord"
	ReviewServiceGetProgressProcedure  = "/recall.v1.ReviewService/GetProgress"
)

// ReviewServiceHandler is the server side of the review service.
type ReviewServiceHandler interface {
	RecordReview(context.Context, *connect.Request[RecordReviewRequest]) (*connect.Response[RecordReviewResponse], error)
	ListDueCards(context.Context, *connect.Request[ListDueCardsRequest]) (*connect.Response[ListDueCardsResponse], error)
	GetRecord(context.Context, *connect.Request[GetRecordRequest]) (*connect.Response[GetRecordResponse], error)
	GetProgress(context.Context, *connect.Request[GetProgressRequest]) (*connect.Response[GetProgressResponse], error)
}

// NewReviewServiceHandler builds an HTTP handler serving svc with the JSON codec.
// It returns the path on which to mount the handler.
func NewReviewServiceHandler(svc ReviewServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	recordReview := connect.NewUnaryHandler(ReviewServiceRecordReviewProcedure, svc.RecordReview, opts...)
	listDueCards := connect.NewUnaryHandler(ReviewServiceListDueCardsProcedure, svc.ListDueCards, opts...)
	getRecord := connect.NewUnaryHandler(ReviewServiceGetRecordProcedure, svc.GetRecord, opts...)
	getProgress := connect.NewUnaryHandler(ReviewServiceGetProgressProcedure, svc.GetProgress, opts...)

	return "/" + ReviewServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ReviewServiceRecordReviewProcedure:
			recordReview.ServeHTTP(w, r)
		case ReviewServiceListDueCardsProcedure:
			listDueCards.ServeHTTP(w, r)
		case ReviewServiceGetRecordProcedure:
			getRecord.ServeHTTP(w, r)
		case ReviewServiceGetProgressProcedure:
			getProgress.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ReviewServiceClient calls a review service over HTTP.
type ReviewServiceClient struct {
	recordReview *connect.Client[RecordReviewRequest, RecordReviewResponse]
	listDueCards *connect.Client[ListDueCardsRequest, ListDueCardsResponse]
	getRecord    *connect.Client[GetRecordRequest, GetRecordResponse]
	getProgress  *connect.Client[GetProgressRequest, GetProgressResponse]
}

// NewReviewServiceClient creates a client for the service at baseURL.
func NewReviewServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ReviewServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &ReviewServiceClient{
		recordReview: connect.NewClient[RecordReviewRequest, RecordReviewResponse](httpClient, baseURL+ReviewServiceRecordReviewProcedure, opts...),
		listDueCards: connect.NewClient[ListDueCardsRequest, ListDueCardsResponse](httpClient, baseURL+ReviewServiceListDueCardsProcedure, opts...),
		getRecord:    connect.NewClient[GetRecordRequest, GetRecordResponse](httpClient, baseURL+ReviewServiceGetRecordProcedure, opts...),
		getProgress:  connect.NewClient[GetProgressRequest, GetProgressResponse](httpClient, baseURL+ReviewServiceGetProgressProcedure, opts...),
	}
}

func (c *ReviewServiceClient) RecordReview(ctx context.Context, req *connect.Request[RecordReviewRequest]) (*connect.Response[RecordReviewResponse], error) {
	return c.recordReview.CallUnary(ctx, req)
}

func (c *ReviewServiceClient) ListDueCards(ctx context.Context, req *connect.Request[ListDueCardsRequest]) (*connect.Response[ListDueCardsResponse], error) {
	return c.listDueCards.CallUnary(ctx, req)
}

func (c *ReviewServiceClient) GetRecord(ctx context.Context, req *connect.Request[GetRecordRequest]) (*connect.Response[GetRecordResponse], error) {
	return c.getRecord.CallUnary(ctx, req)
}

func (c *ReviewServiceClient) GetProgress(ctx context.Context, req *connect.Request[GetProgressRequest]) (*connect.Response[GetProgressResponse], error) {
	return c.getProgress.CallUnary(ctx, req)
}
