package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/cache"
	"github.com/Wirlhawk/skillswap-sub000/internal/lifecycle"
	"github.com/Wirlhawk/skillswap-sub000/internal/messaging"
	"github.com/Wirlhawk/skillswap-sub000/internal/metrics"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
	"github.com/Wirlhawk/skillswap-sub000/internal/repositories"
	"github.com/Wirlhawk/skillswap-sub000/internal/session"
	"github.com/Wirlhawk/skillswap-sub000/internal/tracing"
)

// Indexer keeps the order search index current
type Indexer interface {
	IndexOrder(ctx context.Context, order *models.Order) error
}

// Publisher emits order lifecycle events
type Publisher interface {
	Publish(ctx context.Context, event messaging.Event) error
}

// StatsCache caches order statistics per scope
type StatsCache interface {
	GetStats(ctx context.Context, userID *uuid.UUID) (*models.OrderStats, bool, error)
	SetStats(ctx context.Context, userID *uuid.UUID, stats *models.OrderStats) error
	InvalidateStats(ctx context.Context, userIDs ...uuid.UUID) error
}

// BlobStore stores uploaded file contents
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// NoopIndexer discards documents
type NoopIndexer struct{}

// IndexOrder implements Indexer
func (NoopIndexer) IndexOrder(context.Context, *models.Order) error { return nil }

// NoopPublisher discards events
type NoopPublisher struct{}

// Publish implements Publisher
func (NoopPublisher) Publish(context.Context, messaging.Event) error { return nil }

// Dependencies are the collaborators shared by the order services. Only Store is
// required; Blobs is required by the delivery service.
type Dependencies struct {
	Store     repositories.Store
	Cache     StatsCache
	Indexer   Indexer
	Publisher Publisher
	Blobs     BlobStore
	Tracer    tracing.Tracer
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Cache == nil {
		d.Cache = cache.NewDisabledCache()
	}
	if d.Indexer == nil {
		d.Indexer = NoopIndexer{}
	}
	if d.Publisher == nil {
		d.Publisher = NoopPublisher{}
	}
	if d.Tracer == nil {
		d.Tracer = tracing.NewNoopTracer()
	}
	return d
}

// base holds the side effects every mutation shares
type base struct {
	Dependencies
}

func newBase(deps Dependencies) base {
	return base{Dependencies: deps.withDefaults()}
}

// orderChanged reindexes the order, drops the cached stats of both participants and
// publishes the event. Failures are logged; the mutation has already committed.
func (b *base) orderChanged(ctx context.Context, order *models.Order, event messaging.Event) {
	if order != nil {
		if err := b.Indexer.IndexOrder(ctx, order); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("Failed to index order")
			b.Tracer.RecordError(ctx, err)
		}
		b.invalidateStats(ctx, order)
	}
	b.publish(ctx, event)
}

func (b *base) invalidateStats(ctx context.Context, order *models.Order) {
	var ids []uuid.UUID
	if order.ClientID != nil {
		ids = append(ids, *order.ClientID)
	}
	if order.SellerID != nil {
		ids = append(ids, *order.SellerID)
	}
	if err := b.Cache.InvalidateStats(ctx, ids...); err != nil {
		log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("Failed to invalidate order stats")
	}
}

func (b *base) publish(ctx context.Context, event messaging.Event) {
	err := b.Publisher.Publish(ctx, event)
	metrics.RecordEvent(string(event.Type), err)
	if err != nil {
		log.Warn().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("order_id", event.OrderID.String()).
			Msg("Failed to publish order event")
		b.Tracer.RecordError(ctx, err)
	}
}

// requireSession returns the caller's id or an authentication error
func requireSession(sess *session.Session) (uuid.UUID, error) {
	if sess == nil || sess.UserID() == uuid.Nil {
		return uuid.Nil, apperrors.Authentication("sign in to continue")
	}
	return sess.UserID(), nil
}

// sellerGate loads an order and checks the caller is its seller and that allowed
// holds for the order's capabilities
func sellerGate(
	ctx context.Context,
	repos *repositories.Repositories,
	userID uuid.UUID,
	orderID uuid.UUID,
	action string,
	allowed func(lifecycle.CapabilitySet) bool,
) (*models.Order, error) {
	order, err := repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	role := lifecycle.RoleOf(order, userID)
	if role != lifecycle.RoleSeller {
		return nil, apperrors.Authorization("only the seller can %s", action)
	}
	if !allowed(lifecycle.Capabilities(order.Status, role, false)) {
		return nil, apperrors.State("cannot %s while the order is %s", action, order.Status)
	}
	return order, nil
}

// isNotFound reports whether err is an application not-found error
func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
