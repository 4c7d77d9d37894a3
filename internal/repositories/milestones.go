package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// MilestoneRepository provides access to order milestones
type MilestoneRepository interface {
	Create(ctx context.Context, milestone *models.Milestone) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Milestone, error)
	CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.Milestone, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// SetPositions writes each milestone's Position
	SetPositions(ctx context.Context, milestones []models.Milestone) error
}

type milestoneRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func (r *milestoneRepository) Create(ctx context.Context, milestone *models.Milestone) error {
	err := r.db.WithContext(ctx).Create(milestone).Error
	return translate(err, "milestone", "failed to create milestone")
}

func (r *milestoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var milestone models.Milestone
	err := r.readOnlyDB.WithContext(ctx).First(&milestone, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "milestone", "failed to get milestone by ID")
	}
	return &milestone, nil
}

func (r *milestoneRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := r.readOnlyDB.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&milestones).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list milestones")
	}
	return milestones, nil
}

func (r *milestoneRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Milestone{}).Where("order_id = ?", orderID).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count milestones")
	}
	return count, nil
}

func (r *milestoneRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.Milestone, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = r.db.NowFunc()

	res := r.db.WithContext(ctx).Model(&models.Milestone{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, translate(res.Error, "milestone", "failed to update milestone")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("milestone %s not found", id)
	}

	var milestone models.Milestone
	if err := r.db.WithContext(ctx).First(&milestone, "id = ?", id).Error; err != nil {
		return nil, translate(err, "milestone", "failed to reload milestone")
	}
	return &milestone, nil
}

func (r *milestoneRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Milestone{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete milestone")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("milestone %s not found", id)
	}
	return nil
}

func (r *milestoneRepository) SetPositions(ctx context.Context, milestones []models.Milestone) error {
	now := r.db.NowFunc()
	for _, m := range milestones {
		err := r.db.WithContext(ctx).Model(&models.Milestone{}).
			Where("id = ?", m.ID).
			Updates(map[string]interface{}{"position": m.Position, "updated_at": now}).Error
		if err != nil {
			return errors.Wrapf(err, "failed to set position of milestone %s", m.ID)
		}
	}
	return nil
}
