package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/database/databasetest"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

type fixture struct {
	store   *GormStore
	client  models.User
	seller  models.User
	service models.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := databasetest.New(t)
	f := &fixture{store: NewStore(db, db)}
	ctx := context.Background()
	repos := f.store.Repos()

	f.client = models.User{Name: "Cleo Client", Email: "cleo@example.com"}
	f.seller = models.User{Name: "Sam Seller", Email: "sam@example.com"}
	require.NoError(t, repos.Users.Create(ctx, &f.client))
	require.NoError(t, repos.Users.Create(ctx, &f.seller))

	f.service = models.Service{SellerID: f.seller.ID, Title: "Logo design", Price: 100000, DeliveryDays: 5}
	require.NoError(t, repos.Services.Create(ctx, &f.service))

	return f
}

func (f *fixture) order(t *testing.T, status models.OrderStatus, price int64) *models.Order {
	t.Helper()

	order := &models.Order{
		OrderNumber:  "ORD-" + uuid.NewString(),
		ClientID:     &f.client.ID,
		SellerID:     &f.seller.ID,
		ServiceID:    &f.service.ID,
		Requirements: "A bold logo",
		TotalPrice:   price,
		Status:       status,
	}
	require.NoError(t, f.store.Repos().Orders.Create(context.Background(), order))
	return order
}

func TestOrderCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.order(t, models.OrderStatusPending, 100000)
	require.NotEqual(t, uuid.Nil, order.ID)

	got, err := f.store.Repos().Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.OrderNumber, got.OrderNumber)
	require.Equal(t, models.OrderStatusPending, got.Status)
	require.Equal(t, f.client.ID, *got.ClientID)

	_, err = f.store.Repos().Orders.GetByID(ctx, uuid.New())
	require.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestOrderNumberIsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.order(t, models.OrderStatusPending, 100)
	dup := &models.Order{OrderNumber: order.OrderNumber, Requirements: "x", TotalPrice: 1, Status: models.OrderStatusPending}

	err := f.store.Repos().Orders.Create(ctx, dup)
	require.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestOrderList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	pending := f.order(t, models.OrderStatusPending, 100)
	f.order(t, models.OrderStatusDone, 200)

	other := models.User{Name: "Olga", Email: "olga@example.com"}
	require.NoError(t, repos.Users.Create(ctx, &other))
	foreign := &models.Order{
		OrderNumber:  "ORD-foreign",
		ClientID:     &other.ID,
		Requirements: "Something else",
		TotalPrice:   300,
		Status:       models.OrderStatusPending,
	}
	require.NoError(t, repos.Orders.Create(ctx, foreign))

	all, err := repos.Orders.List(ctx, OrderFilter{}, 20, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	status := models.OrderStatusPending
	list, err := repos.Orders.List(ctx, OrderFilter{Status: &status, ClientID: &f.client.ID}, 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, pending.ID, list[0].ID)

	// Orders without a seller never match a seller filter
	list, err = repos.Orders.List(ctx, OrderFilter{SellerID: &f.seller.ID}, 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = repos.Orders.List(ctx, OrderFilter{ServiceID: &f.service.ID}, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	future := time.Now().Add(time.Hour)
	list, err = repos.Orders.List(ctx, OrderFilter{From: &future}, 20, 0)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestOrderUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	order := f.order(t, models.OrderStatusPending, 100)

	updated, err := repos.Orders.Update(ctx, order.ID, map[string]interface{}{"requirements": "Make it blue"})
	require.NoError(t, err)
	require.Equal(t, "Make it blue", updated.Requirements)
	require.False(t, updated.UpdatedAt.Before(order.UpdatedAt))

	_, err = repos.Orders.Update(ctx, uuid.New(), map[string]interface{}{"requirements": "x"})
	require.True(t, errors.Is(err, apperrors.ErrNotFound))

	// An empty field set still stamps updated_at
	_, err = repos.Orders.Update(ctx, order.ID, nil)
	require.NoError(t, err)
}

func TestOrderTransitionStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	order := f.order(t, models.OrderStatusPending, 100)

	moved, err := repos.Orders.TransitionStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusInProgress)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusInProgress, moved.Status)

	// Stale expectation
	_, err = repos.Orders.TransitionStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled)
	require.True(t, errors.Is(err, apperrors.ErrState))

	_, err = repos.Orders.TransitionStatus(ctx, uuid.New(), models.OrderStatusPending, models.OrderStatusCancelled)
	require.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestOrderStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	empty, err := repos.Orders.Stats(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, models.OrderStats{}, *empty)

	f.order(t, models.OrderStatusPending, 100)
	f.order(t, models.OrderStatusInProgress, 200)
	f.order(t, models.OrderStatusDone, 300)
	f.order(t, models.OrderStatusDone, 401)
	f.order(t, models.OrderStatusCancelled, 500)

	stats, err := repos.Orders.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalOrders)
	assert.Equal(t, int64(1), stats.PendingOrders)
	assert.Equal(t, int64(1), stats.InProgressOrders)
	assert.Equal(t, int64(2), stats.CompletedOrders)
	assert.Equal(t, int64(1), stats.CancelledOrders)
	assert.Equal(t, int64(701), stats.TotalRevenue)
	assert.Equal(t, int64(300), stats.AverageOrderValue)

	mine, err := repos.Orders.Stats(ctx, &f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), mine.TotalOrders)

	stranger := uuid.New()
	none, err := repos.Orders.Stats(ctx, &stranger)
	require.NoError(t, err)
	assert.Equal(t, int64(0), none.TotalOrders)
	assert.Equal(t, int64(0), none.AverageOrderValue)
}

func TestTransactionRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.order(t, models.OrderStatusInProgress, 100)
	boom := errors.New("boom")

	err := f.store.Transaction(ctx, func(r *Repositories) error {
		m := &models.Milestone{OrderID: order.ID, Title: "Sketch", Status: models.MilestoneStatusPending, EstimatedDate: time.Now()}
		require.NoError(t, r.Milestones.Create(ctx, m))
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := f.store.Repos().Milestones.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestMilestoneRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	order := f.order(t, models.OrderStatusInProgress, 100)

	var ids []uuid.UUID
	for i, title := range []string{"Sketch", "Draft", "Final"} {
		m := &models.Milestone{OrderID: order.ID, Title: title, Status: models.MilestoneStatusPending, EstimatedDate: time.Now(), Position: i}
		require.NoError(t, repos.Milestones.Create(ctx, m))
		ids = append(ids, m.ID)
	}

	count, err := repos.Milestones.CountByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	list, err := repos.Milestones.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	list[0].Position, list[2].Position = 2, 0
	require.NoError(t, repos.Milestones.SetPositions(ctx, list))

	list, err = repos.Milestones.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, ids[2], list[0].ID)
	require.Equal(t, ids[0], list[2].ID)

	updated, err := repos.Milestones.Update(ctx, ids[1], map[string]interface{}{"status": models.MilestoneStatusCompleted})
	require.NoError(t, err)
	require.Equal(t, models.MilestoneStatusCompleted, updated.Status)

	require.NoError(t, repos.Milestones.Delete(ctx, ids[1]))
	err = repos.Milestones.Delete(ctx, ids[1])
	require.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = repos.Milestones.GetByID(ctx, ids[1])
	require.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestReviewUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	order := f.order(t, models.OrderStatusDone, 100)

	exists, err := repos.Reviews.ExistsForOrder(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, exists)

	review := &models.Review{OrderID: order.ID, SellerID: &f.seller.ID, ClientID: &f.client.ID, Rating: 4, Comment: "Great work overall"}
	require.NoError(t, repos.Reviews.Create(ctx, review))

	exists, err = repos.Reviews.ExistsForOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, exists)

	dup := &models.Review{OrderID: order.ID, Rating: 5, Comment: "Trying again here"}
	err = repos.Reviews.Create(ctx, dup)
	require.True(t, errors.Is(err, apperrors.ErrConflict))

	count, avg, err := repos.Reviews.SellerRating(ctx, f.seller.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.InDelta(t, 4.0, avg, 0.001)
}

func TestDeliveryDraftUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	order := f.order(t, models.OrderStatusInProgress, 100)

	none, err := repos.Drafts.GetByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Nil(t, none)

	require.NoError(t, repos.Drafts.Upsert(ctx, &models.DeliveryDraft{OrderID: order.ID, SellerID: f.seller.ID, Message: "first", Files: []byte("[]")}))
	require.NoError(t, repos.Drafts.Upsert(ctx, &models.DeliveryDraft{OrderID: order.ID, SellerID: f.seller.ID, Message: "second", MarkAsComplete: true, Files: []byte("[]")}))

	draft, err := repos.Drafts.GetByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, draft)
	require.Equal(t, "second", draft.Message)
	require.True(t, draft.MarkAsComplete)

	require.NoError(t, repos.Drafts.DeleteByOrder(ctx, order.ID))
	draft, err = repos.Drafts.GetByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Nil(t, draft)
}

func TestMessagesAndAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	order := f.order(t, models.OrderStatusInProgress, 100)

	msg := &models.Message{OrderID: order.ID, SenderID: &f.seller.ID, Content: "Here you go"}
	require.NoError(t, repos.Messages.Create(ctx, msg))

	require.NoError(t, repos.Attachments.CreateBatch(ctx, []models.Attachment{
		{OrderID: order.ID, MessageID: &msg.ID, Filename: "logo.png", URL: "/files/logo.png", Size: 10, MimeType: "image/png", IsPublic: true},
		{OrderID: order.ID, MessageID: &msg.ID, Filename: "source.ai", URL: "/files/source.ai", Size: 20, MimeType: "application/postscript", IsPublic: false},
	}))
	require.NoError(t, repos.Attachments.CreateBatch(ctx, nil))

	messages, err := repos.Messages.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	all, err := repos.Attachments.ListByOrder(ctx, order.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	public, err := repos.Attachments.ListByOrder(ctx, order.ID, true)
	require.NoError(t, err)
	require.Len(t, public, 1)
	require.Equal(t, "logo.png", public[0].Filename)
}
