package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// MessageRepository provides access to an order's communication log
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Message, error)
}

// AttachmentRepository provides access to delivered files
type AttachmentRepository interface {
	CreateBatch(ctx context.Context, attachments []models.Attachment) error
	// ListByOrder returns the order's attachments; publicOnly hides files the seller kept private
	ListByOrder(ctx context.Context, orderID uuid.UUID, publicOnly bool) ([]models.Attachment, error)
}

type messageRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	err := r.db.WithContext(ctx).Create(message).Error
	return translate(err, "message", "failed to create message")
}

func (r *messageRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.readOnlyDB.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	return messages, nil
}

type attachmentRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func (r *attachmentRepository) CreateBatch(ctx context.Context, attachments []models.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Create(&attachments).Error
	return translate(err, "attachment", "failed to create attachments")
}

func (r *attachmentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID, publicOnly bool) ([]models.Attachment, error) {
	q := r.readOnlyDB.WithContext(ctx).Where("order_id = ?", orderID)
	if publicOnly {
		q = q.Where("is_public = ?", true)
	}

	var attachments []models.Attachment
	if err := q.Order("created_at ASC").Find(&attachments).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list attachments")
	}
	return attachments, nil
}
