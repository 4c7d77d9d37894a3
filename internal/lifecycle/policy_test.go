package lifecycle

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

func TestCapabilities(t *testing.T) {
	tests := []struct {
		name        string
		status      models.OrderStatus
		role        Role
		hasReviewed bool
		want        CapabilitySet
	}{
		{
			name:   "pending seller can start or cancel",
			status: models.OrderStatusPending,
			role:   RoleSeller,
			want:   CapabilitySet{CanCancel: true, CanStartProgress: true},
		},
		{
			name:   "pending client can only cancel",
			status: models.OrderStatusPending,
			role:   RoleClient,
			want:   CapabilitySet{CanCancel: true},
		},
		{
			name:   "in progress seller works on the order",
			status: models.OrderStatusInProgress,
			role:   RoleSeller,
			want:   CapabilitySet{CanCancel: true, CanAccessMilestone: true, CanAccessDeliver: true},
		},
		{
			name:   "in progress client",
			status: models.OrderStatusInProgress,
			role:   RoleClient,
			want:   CapabilitySet{CanCancel: true},
		},
		{
			name:   "done client may review",
			status: models.OrderStatusDone,
			role:   RoleClient,
			want:   CapabilitySet{CanReview: true},
		},
		{
			name:        "done client already reviewed",
			status:      models.OrderStatusDone,
			role:        RoleClient,
			hasReviewed: true,
			want:        CapabilitySet{},
		},
		{
			name:   "done seller",
			status: models.OrderStatusDone,
			role:   RoleSeller,
			want:   CapabilitySet{},
		},
		{
			name:   "cancelled",
			status: models.OrderStatusCancelled,
			role:   RoleClient,
			want:   CapabilitySet{},
		},
		{
			name:   "unknown status",
			status: models.OrderStatus("Archived"),
			role:   RoleSeller,
			want:   CapabilitySet{},
		},
		{
			name:   "unknown role",
			status: models.OrderStatusPending,
			role:   Role("admin"),
			want:   CapabilitySet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Capabilities(tt.status, tt.role, tt.hasReviewed)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.CanApprove)
		})
	}
}

func TestRoleOf(t *testing.T) {
	client := uuid.New()
	seller := uuid.New()
	order := &models.Order{ClientID: &client, SellerID: &seller}

	require.Equal(t, RoleClient, RoleOf(order, client))
	require.Equal(t, RoleSeller, RoleOf(order, seller))
	require.Equal(t, RoleNone, RoleOf(order, uuid.New()))
	require.Equal(t, RoleNone, RoleOf(order, uuid.Nil))
	require.Equal(t, RoleNone, RoleOf(nil, client))

	// Orders whose participants were removed keep no role
	orphan := &models.Order{}
	require.Equal(t, RoleNone, RoleOf(orphan, client))
}

func TestCanTransition(t *testing.T) {
	statuses := []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusInProgress,
		models.OrderStatusDone,
		models.OrderStatusCancelled,
	}

	allowed := map[[2]models.OrderStatus]bool{
		{models.OrderStatusPending, models.OrderStatusInProgress}:   true,
		{models.OrderStatusPending, models.OrderStatusCancelled}:    true,
		{models.OrderStatusInProgress, models.OrderStatusDone}:      true,
		{models.OrderStatusInProgress, models.OrderStatusCancelled}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[[2]models.OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.True(t, IsTerminal(models.OrderStatusDone))
	assert.True(t, IsTerminal(models.OrderStatusCancelled))
	assert.False(t, IsTerminal(models.OrderStatusPending))
}

func TestTones(t *testing.T) {
	assert.Equal(t, OrderTone(models.OrderStatusDone), MilestoneTone(models.MilestoneStatusCompleted))
	assert.Equal(t, OrderTone(models.OrderStatusInProgress), MilestoneTone(models.MilestoneStatusInProgress))
	assert.Equal(t, OrderTone(models.OrderStatusCancelled), MilestoneTone(models.MilestoneStatusCancelled))
	assert.Equal(t, ToneNeutral, OrderTone(models.OrderStatus("unknown")))
}
