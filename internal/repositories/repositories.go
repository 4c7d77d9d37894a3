package repositories

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
)

// Repositories groups the repositories bound to one pair of connections or to one transaction
type Repositories struct {
	Users       UserRepository
	Services    ServiceRepository
	Orders      OrderRepository
	Milestones  MilestoneRepository
	Messages    MessageRepository
	Attachments AttachmentRepository
	Reviews     ReviewRepository
	Drafts      DeliveryDraftRepository
}

func newRepositories(db, readOnlyDB *gorm.DB) *Repositories {
	return &Repositories{
		Users:       &userRepository{db: db, readOnlyDB: readOnlyDB},
		Services:    &serviceRepository{db: db, readOnlyDB: readOnlyDB},
		Orders:      &orderRepository{db: db, readOnlyDB: readOnlyDB},
		Milestones:  &milestoneRepository{db: db, readOnlyDB: readOnlyDB},
		Messages:    &messageRepository{db: db, readOnlyDB: readOnlyDB},
		Attachments: &attachmentRepository{db: db, readOnlyDB: readOnlyDB},
		Reviews:     &reviewRepository{db: db, readOnlyDB: readOnlyDB},
		Drafts:      &draftRepository{db: db, readOnlyDB: readOnlyDB},
	}
}

// Store hands out repositories and runs transactions
type Store interface {
	// Repos returns repositories that write to the primary and read from the replica
	Repos() *Repositories
	// Transaction runs fn with repositories bound to one transaction. Reads inside fn
	// see the transaction's writes.
	Transaction(ctx context.Context, fn func(r *Repositories) error) error
}

// GormStore implements Store on gorm
type GormStore struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
	repos      *Repositories
}

// NewStore creates a store over the write and read-only databases
func NewStore(db *gorm.DB, readOnlyDB *gorm.DB) *GormStore {
	if readOnlyDB == nil {
		readOnlyDB = db
	}
	return &GormStore{
		db:         db,
		readOnlyDB: readOnlyDB,
		repos:      newRepositories(db, readOnlyDB),
	}
}

// Repos implements Store
func (s *GormStore) Repos() *Repositories {
	return s.repos
}

// Transaction implements Store
func (s *GormStore) Transaction(ctx context.Context, fn func(r *Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx, tx))
	})
}

// translate maps gorm errors to application errors and wraps the rest
func translate(err error, entity string, format string, args ...interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound("%s not found", entity).WithCause(err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.Conflict("%s already exists", entity).WithCause(err)
	default:
		return errors.Wrap(err, fmt.Sprintf(format, args...))
	}
}
