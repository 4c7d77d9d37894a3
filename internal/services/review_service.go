package services

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/lifecycle"
	"github.com/Wirlhawk/skillswap-sub000/internal/messaging"
	"github.com/Wirlhawk/skillswap-sub000/internal/metrics"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
	"github.com/Wirlhawk/skillswap-sub000/internal/session"
	"github.com/Wirlhawk/skillswap-sub000/internal/validation"
)

type reviewInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"min=10,max=500"`
}

// SellerRating summarizes a seller's reviews
type SellerRating struct {
	SellerID uuid.UUID `json:"seller_id"`
	Count    int64     `json:"count"`
	Average  float64   `json:"average"`
}

// ReviewService handles order reviews
type ReviewService struct {
	base
}

// NewReviewService creates a new review service
func NewReviewService(deps Dependencies) *ReviewService {
	return &ReviewService{base: newBase(deps)}
}

// CreateReview records the client's single review of a finished order
func (s *ReviewService) CreateReview(ctx context.Context, sess *session.Session, orderID uuid.UUID, rating int, comment string) (*models.Review, error) {
	segment := s.Tracer.StartSegment(ctx, "create-review")
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}
	in := reviewInput{Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	repos := s.Store.Repos()
	order, err := repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if lifecycle.RoleOf(order, userID) != lifecycle.RoleClient {
		return nil, apperrors.Authorization("only the order's client can review it")
	}
	if order.Status != models.OrderStatusDone {
		return nil, apperrors.State("orders can be reviewed once they are %s, this one is %s", models.OrderStatusDone, order.Status)
	}

	exists, err := repos.Reviews.ExistsForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict("order %s has already been reviewed", order.OrderNumber)
	}

	review := &models.Review{
		OrderID:   orderID,
		SellerID:  order.SellerID,
		ClientID:  &userID,
		ServiceID: order.ServiceID,
		Rating:    in.Rating,
		Comment:   in.Comment,
	}
	// The unique index on order_id catches a concurrent insert
	if err := repos.Reviews.Create(ctx, review); err != nil {
		if apperrors.KindOf(err) == apperrors.KindConflict {
			return nil, apperrors.Conflict("order %s has already been reviewed", order.OrderNumber).WithCause(err)
		}
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	metrics.ReviewsCreated.WithLabelValues(strconv.Itoa(review.Rating)).Inc()
	log.Info().
		Str("order_id", orderID.String()).
		Str("review_id", review.ID.String()).
		Int("rating", review.Rating).
		Msg("Review created")

	s.publish(ctx, messaging.NewEvent(messaging.EventReviewCreated, orderID, userID, string(order.Status)).
		With("rating", strconv.Itoa(review.Rating)))

	return review, nil
}

// GetOrderReview returns the order's review, or nil when it has none
func (s *ReviewService) GetOrderReview(ctx context.Context, orderID uuid.UUID) (*models.Review, error) {
	return optional(s.Store.Repos().Reviews.GetByOrder(ctx, orderID))
}

// GetSellerRating averages a seller's ratings, rounded to one decimal
func (s *ReviewService) GetSellerRating(ctx context.Context, sellerID uuid.UUID) (*SellerRating, error) {
	count, average, err := s.Store.Repos().Reviews.SellerRating(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return &SellerRating{
		SellerID: sellerID,
		Count:    count,
		Average:  math.Round(average*10) / 10,
	}, nil
}
