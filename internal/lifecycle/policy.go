// Package lifecycle holds the order status policy: which actions a caller may take
// for an order in a given status, and which status changes are allowed at all.
// Everything here is pure; the services, the HTTP API and tests all read the same table.
package lifecycle

import (
	"github.com/google/uuid"

	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// Role is the caller's relation to an order
type Role string

// Roles
const (
	RoleSeller Role = "seller"
	RoleClient Role = "client"
	RoleNone   Role = ""
)

// CapabilitySet lists the actions enabled for an order
type CapabilitySet struct {
	CanCancel          bool `json:"can_cancel"`
	CanApprove         bool `json:"can_approve"`
	CanStartProgress   bool `json:"can_start_progress"`
	CanAccessMilestone bool `json:"can_access_milestone"`
	CanAccessDeliver   bool `json:"can_access_deliver"`
	CanReview          bool `json:"can_review"`
}

// Capabilities returns the actions a caller with role may take on an order in status.
// Unknown statuses and roles get the empty set. CanApprove is never granted: there is
// no client approval step before an order reaches Done.
func Capabilities(status models.OrderStatus, role Role, hasReviewed bool) CapabilitySet {
	if role != RoleSeller && role != RoleClient {
		return CapabilitySet{}
	}

	seller := role == RoleSeller

	switch status {
	case models.OrderStatusPending:
		return CapabilitySet{
			CanCancel:        true,
			CanStartProgress: seller,
		}
	case models.OrderStatusInProgress:
		return CapabilitySet{
			CanCancel:          true,
			CanAccessMilestone: seller,
			CanAccessDeliver:   seller,
		}
	case models.OrderStatusDone:
		return CapabilitySet{
			CanReview: !seller && !hasReviewed,
		}
	default:
		return CapabilitySet{}
	}
}

// RoleOf returns the role userID holds on order
func RoleOf(order *models.Order, userID uuid.UUID) Role {
	switch {
	case order == nil || userID == uuid.Nil:
		return RoleNone
	case order.IsSeller(userID):
		return RoleSeller
	case order.IsClient(userID):
		return RoleClient
	default:
		return RoleNone
	}
}

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusInProgress, models.OrderStatusCancelled},
	models.OrderStatusInProgress: {models.OrderStatusDone, models.OrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
// Done and Cancelled are terminal.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no status change can leave status
func IsTerminal(status models.OrderStatus) bool {
	return len(transitions[status]) == 0
}
