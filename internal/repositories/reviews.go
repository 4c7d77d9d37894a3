package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// ReviewRepository provides access to order reviews
type ReviewRepository interface {
	// Create inserts a review; a second review for the same order is a conflict
	Create(ctx context.Context, review *models.Review) error
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Review, error)
	ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	SellerRating(ctx context.Context, sellerID uuid.UUID) (count int64, average float64, err error)
}

// DeliveryDraftRepository provides access to saved delivery drafts
type DeliveryDraftRepository interface {
	// Upsert stores the draft, replacing any earlier draft for the order
	Upsert(ctx context.Context, draft *models.DeliveryDraft) error
	// GetByOrder returns nil without error when no draft is saved
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryDraft, error)
	DeleteByOrder(ctx context.Context, orderID uuid.UUID) error
}

type reviewRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	err := r.db.WithContext(ctx).Create(review).Error
	return translate(err, "review", "failed to create review")
}

func (r *reviewRepository) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.readOnlyDB.WithContext(ctx).First(&review, "order_id = ?", orderID).Error
	if err != nil {
		return nil, translate(err, "review", "failed to get review by order")
	}
	return &review, nil
}

func (r *reviewRepository) ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Review{}).Where("order_id = ?", orderID).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check for review")
	}
	return count > 0, nil
}

type ratingRow struct {
	Count   int64
	Average float64
}

func (r *reviewRepository) SellerRating(ctx context.Context, sellerID uuid.UUID) (int64, float64, error) {
	var row ratingRow
	err := r.readOnlyDB.WithContext(ctx).Model(&models.Review{}).
		Select("COUNT(*) AS count, COALESCE(AVG(rating), 0) AS average").
		Where("seller_id = ?", sellerID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to compute seller rating")
	}
	return row.Count, row.Average, nil
}

type draftRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func (r *draftRepository) Upsert(ctx context.Context, draft *models.DeliveryDraft) error {
	draft.UpdatedAt = r.db.NowFunc()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"seller_id", "message", "mark_as_complete", "files", "updated_at"}),
	}).Create(draft).Error
	return translate(err, "delivery draft", "failed to save delivery draft")
}

func (r *draftRepository) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryDraft, error) {
	var drafts []models.DeliveryDraft
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Limit(1).Find(&drafts).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get delivery draft")
	}
	if len(drafts) == 0 {
		return nil, nil
	}
	return &drafts[0], nil
}

func (r *draftRepository) DeleteByOrder(ctx context.Context, orderID uuid.UUID) error {
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.DeliveryDraft{}).Error
	if err != nil {
		return errors.Wrap(err, "failed to delete delivery draft")
	}
	return nil
}
