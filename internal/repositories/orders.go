package repositories

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// OrderFilter narrows an order listing. Unset fields are not applied.
type OrderFilter struct {
	Status    *models.OrderStatus
	ClientID  *uuid.UUID
	SellerID  *uuid.UUID
	ServiceID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

// OrderRepository provides access to orders
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, error)
	// Update applies fields and stamps updated_at
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.Order, error)
	// TransitionStatus moves an order from one status to another, failing with a state
	// error when the stored status is no longer from
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error)
	Stats(ctx context.Context, userID *uuid.UUID) (*models.OrderStats, error)
	// ListUpdatedSince pages orders by (updated_at, id) after the given cursor.
	// A nil afterID starts at since itself.
	ListUpdatedSince(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]models.Order, error)
}

type orderRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	return translate(err, "order", "failed to create order")
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.readOnlyDB.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "order", "failed to get order by ID")
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, error) {
	q := r.readOnlyDB.WithContext(ctx).Model(&models.Order{})

	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
	}
	if filter.SellerID != nil {
		q = q.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.ServiceID != nil {
		q = q.Where("service_id = ?", *filter.ServiceID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var orders []models.Order
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	return orders, nil
}

func (r *orderRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.Order, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = r.db.NowFunc()

	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, translate(res.Error, "order", "failed to update order")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("order %s not found", id)
	}

	return r.reload(ctx, id)
}

func (r *orderRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": r.db.NowFunc(),
		})
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to update order status")
	}

	if res.RowsAffected == 0 {
		current, err := r.reload(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.State("order is %s, expected %s", current.Status, from)
	}

	return r.reload(ctx, id)
}

// reload reads from the write database so the caller sees its own update
func (r *orderRepository) reload(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "order", "failed to reload order")
	}
	return &order, nil
}

type statsRow struct {
	TotalOrders      int64
	PendingOrders    int64
	InProgressOrders int64
	CompletedOrders  int64
	CancelledOrders  int64
	TotalRevenue     float64
	AverageValue     float64
}

func (r *orderRepository) Stats(ctx context.Context, userID *uuid.UUID) (*models.OrderStats, error) {
	q := r.readOnlyDB.WithContext(ctx).Model(&models.Order{}).Select(
		"COUNT(*) AS total_orders, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_orders, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS in_progress_orders, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_orders, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS cancelled_orders, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN total_price ELSE 0 END), 0) AS total_revenue, "+
			"COALESCE(AVG(total_price), 0) AS average_value",
		models.OrderStatusPending,
		models.OrderStatusInProgress,
		models.OrderStatusDone,
		models.OrderStatusCancelled,
		models.OrderStatusDone,
	)

	if userID != nil {
		q = q.Where("client_id = ? OR seller_id = ?", *userID, *userID)
	}

	var row statsRow
	if err := q.Scan(&row).Error; err != nil {
		return nil, errors.Wrap(err, "failed to compute order stats")
	}

	return &models.OrderStats{
		TotalOrders:       row.TotalOrders,
		PendingOrders:     row.PendingOrders,
		InProgressOrders:  row.InProgressOrders,
		CompletedOrders:   row.CompletedOrders,
		CancelledOrders:   row.CancelledOrders,
		TotalRevenue:      int64(math.Round(row.TotalRevenue)),
		AverageOrderValue: int64(math.Round(row.AverageValue)),
	}, nil
}

func (r *orderRepository) ListUpdatedSince(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.readOnlyDB.WithContext(ctx).
		Where("updated_at > ? OR (updated_at = ? AND id > ?)", since, since, afterID).
		Order("updated_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list updated orders")
	}
	return orders, nil
}
