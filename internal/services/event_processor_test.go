package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Wirlhawk/skillswap-sub000/internal/messaging"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

func TestHandleEventReindexesOrder(t *testing.T) {
	e := newEnv(t)
	order := e.order(models.OrderStatusInProgress)

	indexer := new(MockIndexer)
	indexer.On("IndexOrder", order.ID).Return(nil).Once()
	deps := e.deps
	deps.Indexer = indexer
	processor := NewEventProcessor(deps, 10)

	event := messaging.NewEvent(messaging.EventDeliveryCompleted, order.ID, e.seller.ID, string(models.OrderStatusDone)).
		With("client_id", e.client.ID.String())
	require.NoError(t, processor.HandleEvent(e.ctx, event))
	indexer.AssertExpectations(t)
}

func TestHandleEventSkipsUnknownOrder(t *testing.T) {
	e := newEnv(t)
	indexer := new(MockIndexer)
	deps := e.deps
	deps.Indexer = indexer
	processor := NewEventProcessor(deps, 10)

	err := processor.HandleEvent(e.ctx, messaging.NewEvent(messaging.EventOrderUpdated, newID(), newID(), ""))
	require.NoError(t, err)
	indexer.AssertNotCalled(t, "IndexOrder", mock.Anything)
}

func TestHandleEventReturnsIndexFailure(t *testing.T) {
	e := newEnv(t)
	order := e.order(models.OrderStatusPending)

	indexer := new(MockIndexer)
	indexer.On("IndexOrder", order.ID).Return(errors.New("cluster red"))
	deps := e.deps
	deps.Indexer = indexer
	processor := NewEventProcessor(deps, 10)

	err := processor.HandleEvent(e.ctx, messaging.NewEvent(messaging.EventOrderCreated, order.ID, e.client.ID, ""))
	require.Error(t, err)
}

func TestReindex(t *testing.T) {
	e := newEnv(t)
	since := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		order := e.order(models.OrderStatusPending)
		// Spread updated_at so every batch advances the watermark
		_, err := e.store.Repos().Orders.Update(e.ctx, order.ID, map[string]interface{}{})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	indexer := new(MockIndexer)
	indexer.On("IndexOrder", mock.Anything).Return(nil)
	deps := e.deps
	deps.Indexer = indexer
	processor := NewEventProcessor(deps, 2)

	watermark, count, err := processor.Reindex(e.ctx, since)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 5)
	assert.True(t, watermark.After(since))

	_, again, err := processor.Reindex(e.ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, again)
}

func TestReindexPagesThroughSharedTimestamp(t *testing.T) {
	e := newEnv(t)
	ids := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, e.order(models.OrderStatusPending).ID)
	}
	stamp := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	require.NoError(t, e.db.Model(&models.Order{}).Where("id IN ?", ids).Update("updated_at", stamp).Error)

	indexer := new(MockIndexer)
	indexer.On("IndexOrder", mock.Anything).Return(nil)
	deps := e.deps
	deps.Indexer = indexer
	processor := NewEventProcessor(deps, 2)

	watermark, count, err := processor.Reindex(e.ctx, stamp)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.True(t, watermark.Equal(stamp))

	indexed := map[uuid.UUID]bool{}
	for _, call := range indexer.Calls {
		indexed[call.Arguments.Get(0).(uuid.UUID)] = true
	}
	for _, id := range ids {
		assert.True(t, indexed[id], "order %s was not reindexed", id)
	}
}
