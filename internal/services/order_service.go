package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/lifecycle"
	"github.com/Wirlhawk/skillswap-sub000/internal/messaging"
	"github.com/Wirlhawk/skillswap-sub000/internal/metrics"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
	"github.com/Wirlhawk/skillswap-sub000/internal/repositories"
	"github.com/Wirlhawk/skillswap-sub000/internal/session"
	"github.com/Wirlhawk/skillswap-sub000/internal/validation"
	"github.com/Wirlhawk/skillswap-sub000/internal/workflow"
)

// Listing limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

const orderNumberAttempts = 3

// CreateOrderRequest is a client's checkout of a seller's service
type CreateOrderRequest struct {
	SellerID        uuid.UUID  `json:"seller_id" validate:"required"`
	ServiceID       uuid.UUID  `json:"service_id" validate:"required"`
	Requirements    string     `json:"requirements" validate:"notblank,max=5000"`
	AdditionalNotes *string    `json:"additional_notes,omitempty" validate:"omitempty,max=2000"`
	TotalPrice      int64      `json:"total_price" validate:"gt=0"`
	DeliveryDate    *time.Time `json:"delivery_date,omitempty"`
}

// OrderUpdate holds the order fields to change; nil fields are left alone
type OrderUpdate struct {
	Requirements    *string             `json:"requirements,omitempty" validate:"omitempty,notblank,max=5000"`
	AdditionalNotes *string             `json:"additional_notes,omitempty" validate:"omitempty,max=2000"`
	TotalPrice      *int64              `json:"total_price,omitempty" validate:"omitempty,gt=0"`
	Status          *models.OrderStatus `json:"status,omitempty"`
	DeliveryDate    *time.Time          `json:"delivery_date,omitempty"`
}

func (u OrderUpdate) fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if u.Requirements != nil {
		fields["requirements"] = strings.TrimSpace(*u.Requirements)
	}
	if u.AdditionalNotes != nil {
		fields["additional_notes"] = *u.AdditionalNotes
	}
	if u.TotalPrice != nil {
		fields["total_price"] = *u.TotalPrice
	}
	if u.DeliveryDate != nil {
		fields["delivery_date"] = u.DeliveryDate.UTC()
	}
	return fields
}

// OrderCapabilities is what the caller may do with an order right now
type OrderCapabilities struct {
	Role   lifecycle.Role     `json:"role"`
	Status models.OrderStatus `json:"status"`
	Tone   lifecycle.Tone     `json:"tone"`
	lifecycle.CapabilitySet
}

type messageInput struct {
	Content string `json:"content" validate:"notblank,max=2000"`
}

// OrderService handles order business logic
type OrderService struct {
	base
	now func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(deps Dependencies) *OrderService {
	return &OrderService{base: newBase(deps), now: time.Now}
}

// CreateOrder places an order for the session user as client
func (s *OrderService) CreateOrder(ctx context.Context, sess *session.Session, req CreateOrderRequest) (*models.Order, error) {
	segment := s.Tracer.StartSegment(ctx, "create-order")
	defer segment.End()

	clientID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.SellerID == clientID {
		return nil, apperrors.ValidationFields("invalid order", map[string]string{
			"seller_id": "you cannot order your own service",
		})
	}

	repos := s.Store.Repos()
	service, err := repos.Services.GetByID(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if service.SellerID != req.SellerID {
		return nil, apperrors.ValidationFields("invalid order", map[string]string{
			"service_id": "service is not offered by this seller",
		})
	}

	order := &models.Order{
		ClientID:        &clientID,
		SellerID:        &req.SellerID,
		ServiceID:       &req.ServiceID,
		Requirements:    strings.TrimSpace(req.Requirements),
		AdditionalNotes: req.AdditionalNotes,
		TotalPrice:      req.TotalPrice,
		Status:          models.OrderStatusPending,
		DeliveryDate:    req.DeliveryDate,
	}

	// The random suffix can collide within the same millisecond
	for attempt := 1; ; attempt++ {
		order.ID = uuid.Nil
		order.OrderNumber = GenerateOrderNumber(s.now())
		err = repos.Orders.Create(ctx, order)
		if err == nil || !errors.Is(err, apperrors.ErrConflict) || attempt == orderNumberAttempts {
			break
		}
	}
	if err != nil {
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	log.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Int64("total_price", order.TotalPrice).
		Msg("Order created")

	s.orderChanged(ctx, order, messaging.NewEvent(messaging.EventOrderCreated, order.ID, clientID, string(order.Status)).
		With("order_number", order.OrderNumber))

	return order, nil
}

// GenerateOrderNumber formats ORD-{year}-{last 6 digits of unix millis}-{3 random digits}
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%06d-%03d", now.Year(), now.UnixMilli()%1000000, rand.Intn(1000))
}

// GetOrderByID returns the order page read model. A missing order or seller yields nil
// without error.
func (s *OrderService) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*models.OrderWithDetails, error) {
	segment := s.Tracer.StartSegment(ctx, "get-order")
	defer segment.End()

	repos := s.Store.Repos()
	order, err := repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if order.SellerID == nil {
		return nil, nil
	}

	seller, err := repos.Users.GetByID(ctx, *order.SellerID)
	if err != nil {
		if isNotFound(err) {
			log.Debug().Str("order_id", orderID.String()).Msg("Order seller is gone")
			return nil, nil
		}
		return nil, err
	}

	details := &models.OrderWithDetails{Order: *order, Seller: seller}

	if order.ClientID != nil {
		if details.Client, err = optional(repos.Users.GetByID(ctx, *order.ClientID)); err != nil {
			return nil, err
		}
	}
	if order.ServiceID != nil {
		if details.Service, err = optional(repos.Services.GetByID(ctx, *order.ServiceID)); err != nil {
			return nil, err
		}
	}

	if details.Messages, err = repos.Messages.ListByOrder(ctx, orderID); err != nil {
		return nil, err
	}
	if details.Attachments, err = repos.Attachments.ListByOrder(ctx, orderID, false); err != nil {
		return nil, err
	}
	if details.Milestones, err = repos.Milestones.ListByOrder(ctx, orderID); err != nil {
		return nil, err
	}
	details.Progress = workflow.Progress(details.Milestones)

	if details.HasReviewed, err = repos.Reviews.ExistsForOrder(ctx, orderID); err != nil {
		return nil, err
	}

	return details, nil
}

// optional turns a not-found lookup into a nil value
func optional[T any](v *T, err error) (*T, error) {
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// ListOrders lists orders matching every set filter, newest first
func (s *OrderService) ListOrders(ctx context.Context, filter repositories.OrderFilter, limit, offset int) ([]models.Order, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.ValidationFields("invalid filter", map[string]string{
			"status": fmt.Sprintf("unknown status %q", *filter.Status),
		})
	}

	return s.Store.Repos().Orders.List(ctx, filter, limit, offset)
}

// UpdateOrder changes order fields for one of its participants. A status change must
// follow the lifecycle and is gated like the matching action.
func (s *OrderService) UpdateOrder(ctx context.Context, sess *session.Session, orderID uuid.UUID, upd OrderUpdate) (*models.Order, error) {
	segment := s.Tracer.StartSegment(ctx, "update-order")
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(upd); err != nil {
		return nil, err
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, apperrors.ValidationFields("invalid order update", map[string]string{
			"status": fmt.Sprintf("unknown status %q", *upd.Status),
		})
	}

	var (
		updated *models.Order
		from    models.OrderStatus
	)
	err = s.Store.Transaction(ctx, func(r *repositories.Repositories) error {
		order, err := r.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		role := lifecycle.RoleOf(order, userID)
		if role == lifecycle.RoleNone {
			return apperrors.Authorization("only the order's client or seller can update it")
		}

		from = order.Status
		if upd.Status != nil && *upd.Status != order.Status {
			if !lifecycle.CanTransition(order.Status, *upd.Status) {
				return apperrors.State("cannot move an order from %s to %s", order.Status, *upd.Status)
			}
			if err := authorizeStatusChange(order, role, *upd.Status); err != nil {
				return err
			}
			if _, err := r.Orders.TransitionStatus(ctx, orderID, order.Status, *upd.Status); err != nil {
				return err
			}
		}

		updated, err = r.Orders.Update(ctx, orderID, upd.fields())
		return err
	})
	if err != nil {
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	eventType := messaging.EventOrderUpdated
	if updated.Status != from {
		metrics.RecordTransition(string(from), string(updated.Status))
		eventType = messaging.EventOrderStatusChanged
	}
	s.orderChanged(ctx, updated, messaging.NewEvent(eventType, updated.ID, userID, string(updated.Status)))

	return updated, nil
}

// GetOrderStats aggregates orders, across everyone when userID is nil
func (s *OrderService) GetOrderStats(ctx context.Context, userID *uuid.UUID) (*models.OrderStats, error) {
	stats, found, err := s.Cache.GetStats(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read cached order stats")
	}
	if found {
		return stats, nil
	}

	stats, err = s.Store.Repos().Orders.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.Cache.SetStats(ctx, userID, stats); err != nil {
		log.Warn().Err(err).Msg("Failed to cache order stats")
	}
	return stats, nil
}

// StartProgress lets the seller begin work on a pending order
func (s *OrderService) StartProgress(ctx context.Context, sess *session.Session, orderID uuid.UUID) (*models.Order, error) {
	return s.act(ctx, sess, orderID, models.OrderStatusInProgress)
}

// CancelOrder lets either participant cancel an order that is not finished
func (s *OrderService) CancelOrder(ctx context.Context, sess *session.Session, orderID uuid.UUID) (*models.Order, error) {
	return s.act(ctx, sess, orderID, models.OrderStatusCancelled)
}

// ApproveOrder would let the client accept a delivery. No status grants it.
func (s *OrderService) ApproveOrder(ctx context.Context, sess *session.Session, orderID uuid.UUID) (*models.Order, error) {
	return s.act(ctx, sess, orderID, models.OrderStatusDone)
}

type statusAction struct {
	name  string
	check func(lifecycle.Role, lifecycle.CapabilitySet) error
}

// statusActions gates every participant-driven move into a status. Approving is never
// granted, so Done is only reached by a delivery marked complete.
var statusActions = map[models.OrderStatus]statusAction{
	models.OrderStatusInProgress: {"start progress", func(role lifecycle.Role, caps lifecycle.CapabilitySet) error {
		if role != lifecycle.RoleSeller {
			return apperrors.Authorization("only the seller can start progress")
		}
		if !caps.CanStartProgress {
			return apperrors.ErrState
		}
		return nil
	}},
	models.OrderStatusCancelled: {"cancel", func(role lifecycle.Role, caps lifecycle.CapabilitySet) error {
		if role == lifecycle.RoleNone {
			return apperrors.Authorization("only the order's client or seller can cancel it")
		}
		if !caps.CanCancel {
			return apperrors.ErrState
		}
		return nil
	}},
	models.OrderStatusDone: {"approve", func(role lifecycle.Role, caps lifecycle.CapabilitySet) error {
		if role == lifecycle.RoleNone {
			return apperrors.Authorization("only the order's client or seller can approve it")
		}
		if !caps.CanApprove {
			return apperrors.ErrState
		}
		return nil
	}},
}

// authorizeStatusChange applies the capability table for role to a move from the
// order's current status into to
func authorizeStatusChange(order *models.Order, role lifecycle.Role, to models.OrderStatus) error {
	action, ok := statusActions[to]
	if !ok {
		return apperrors.State("cannot move an order back to %s", to)
	}
	if err := action.check(role, lifecycle.Capabilities(order.Status, role, false)); err != nil {
		if apperrors.KindOf(err) == apperrors.KindState {
			return apperrors.State("cannot %s while the order is %s", action.name, order.Status)
		}
		return err
	}
	return nil
}

// act runs a capability-gated status change
func (s *OrderService) act(ctx context.Context, sess *session.Session, orderID uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	segment := s.Tracer.StartSegment(ctx, "order-"+strings.ReplaceAll(statusActions[to].name, " ", "-"))
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}

	repos := s.Store.Repos()
	order, err := repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	role := lifecycle.RoleOf(order, userID)
	if err := authorizeStatusChange(order, role, to); err != nil {
		return nil, err
	}

	updated, err := repos.Orders.TransitionStatus(ctx, orderID, order.Status, to)
	if err != nil {
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	metrics.RecordTransition(string(order.Status), string(updated.Status))
	log.Info().
		Str("order_id", orderID.String()).
		Str("from", string(order.Status)).
		Str("to", string(updated.Status)).
		Str("role", string(role)).
		Msg("Order status changed")

	s.orderChanged(ctx, updated, messaging.NewEvent(messaging.EventOrderStatusChanged, orderID, userID, string(updated.Status)).
		With("from", string(order.Status)))

	return updated, nil
}

// GetCapabilities reports the caller's role and allowed actions on an order
func (s *OrderService) GetCapabilities(ctx context.Context, sess *session.Session, orderID uuid.UUID) (*OrderCapabilities, error) {
	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}

	repos := s.Store.Repos()
	order, err := repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	reviewed, err := repos.Reviews.ExistsForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	role := lifecycle.RoleOf(order, userID)
	return &OrderCapabilities{
		Role:          role,
		Status:        order.Status,
		Tone:          lifecycle.OrderTone(order.Status),
		CapabilitySet: lifecycle.Capabilities(order.Status, role, reviewed),
	}, nil
}

// SendMessage appends a participant's message to the order's communication log
func (s *OrderService) SendMessage(ctx context.Context, sess *session.Session, orderID uuid.UUID, content string) (*models.Message, error) {
	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}
	in := messageInput{Content: strings.TrimSpace(content)}
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	repos := s.Store.Repos()
	order, err := repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if lifecycle.RoleOf(order, userID) == lifecycle.RoleNone {
		return nil, apperrors.Authorization("only the order's client or seller can send messages")
	}

	message := &models.Message{OrderID: orderID, SenderID: &userID, Content: in.Content}
	if err := repos.Messages.Create(ctx, message); err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.NewEvent(messaging.EventMessageSent, orderID, userID, string(order.Status)).
		With("message_id", message.ID.String()))

	return message, nil
}
