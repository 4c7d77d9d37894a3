package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// UserRepository provides access to marketplace accounts
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ServiceRepository provides access to seller listings
type ServiceRepository interface {
	Create(ctx context.Context, service *models.Service) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
}

type userRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	return translate(err, "user", "failed to create user")
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.readOnlyDB.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "user", "failed to get user by ID")
	}
	return &user, nil
}

type serviceRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func (r *serviceRepository) Create(ctx context.Context, service *models.Service) error {
	err := r.db.WithContext(ctx).Create(service).Error
	return translate(err, "service", "failed to create service")
}

func (r *serviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var service models.Service
	err := r.readOnlyDB.WithContext(ctx).First(&service, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "service", "failed to get service by ID")
	}
	return &service, nil
}
