package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Wirlhawk/skillswap-sub000/config"
	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/database/databasetest"
	"github.com/Wirlhawk/skillswap-sub000/internal/messaging"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
	"github.com/Wirlhawk/skillswap-sub000/internal/repositories"
	"github.com/Wirlhawk/skillswap-sub000/internal/session"
	"github.com/Wirlhawk/skillswap-sub000/internal/storage"
)

// MockIndexer records indexed orders
type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexOrder(ctx context.Context, order *models.Order) error {
	args := m.Called(order.ID)
	return args.Error(0)
}

// MockPublisher records published event types
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event messaging.Event) error {
	args := m.Called(event.Type)
	return args.Error(0)
}

type env struct {
	t         *testing.T
	ctx       context.Context
	db        *gorm.DB
	store     *repositories.GormStore
	indexer   *MockIndexer
	publisher *MockPublisher
	blobs     *storage.LocalStore
	deps      Dependencies

	client   models.User
	seller   models.User
	stranger models.User
	service  models.Service

	orders     *OrderService
	milestones *MilestoneService
	deliveries *DeliveryService
	reviews    *ReviewService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := databasetest.New(t)
	blobs, err := storage.NewLocalStore(config.StorageConfig{RootDir: t.TempDir()})
	require.NoError(t, err)

	e := &env{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		store:     repositories.NewStore(db, db),
		indexer:   new(MockIndexer),
		publisher: new(MockPublisher),
		blobs:     blobs,
	}
	e.indexer.On("IndexOrder", mock.Anything).Return(nil).Maybe()
	e.publisher.On("Publish", mock.Anything).Return(nil).Maybe()

	e.deps = Dependencies{
		Store:     e.store,
		Indexer:   e.indexer,
		Publisher: e.publisher,
		Blobs:     e.blobs,
	}
	e.orders = NewOrderService(e.deps)
	e.milestones = NewMilestoneService(e.deps)
	e.deliveries = NewDeliveryService(e.deps)
	e.reviews = NewReviewService(e.deps)

	repos := e.store.Repos()
	e.client = models.User{Name: "Cleo Client", Email: "cleo@example.com"}
	e.seller = models.User{Name: "Sam Seller", Email: "sam@example.com"}
	e.stranger = models.User{Name: "Otto Outsider", Email: "otto@example.com"}
	for _, u := range []*models.User{&e.client, &e.seller, &e.stranger} {
		require.NoError(t, repos.Users.Create(e.ctx, u))
	}

	e.service = models.Service{SellerID: e.seller.ID, Title: "Logo design", Price: 100000, DeliveryDays: 5}
	require.NoError(t, repos.Services.Create(e.ctx, &e.service))

	return e
}

func sessionFor(u models.User) *session.Session {
	return &session.Session{
		User:      session.User{ID: u.ID, Name: u.Name},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func (e *env) asClient() *session.Session   { return sessionFor(e.client) }
func (e *env) asSeller() *session.Session   { return sessionFor(e.seller) }
func (e *env) asStranger() *session.Session { return sessionFor(e.stranger) }

// order places an order as the client and moves it to status
func (e *env) order(status models.OrderStatus) *models.Order {
	e.t.Helper()

	order, err := e.orders.CreateOrder(e.ctx, e.asClient(), CreateOrderRequest{
		SellerID:     e.seller.ID,
		ServiceID:    e.service.ID,
		Requirements: "A bold logo for a coffee shop",
		TotalPrice:   100000,
	})
	require.NoError(e.t, err)

	if status == models.OrderStatusPending {
		return order
	}
	order, err = e.orders.StartProgress(e.ctx, e.asSeller(), order.ID)
	require.NoError(e.t, err)

	switch status {
	case models.OrderStatusDone:
		order, err = e.store.Repos().Orders.TransitionStatus(e.ctx, order.ID, models.OrderStatusInProgress, models.OrderStatusDone)
	case models.OrderStatusCancelled:
		order, err = e.orders.CancelOrder(e.ctx, e.asClient(), order.ID)
	}
	require.NoError(e.t, err)
	return order
}

func requireKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperrors.KindOf(err), err.Error())
}

func ptr[T any](v T) *T {
	return &v
}

func newID() uuid.UUID {
	return uuid.New()
}
