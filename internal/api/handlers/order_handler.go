package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/lifecycle"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
	"github.com/Wirlhawk/skillswap-sub000/internal/repositories"
	"github.com/Wirlhawk/skillswap-sub000/internal/search"
	"github.com/Wirlhawk/skillswap-sub000/internal/services"
	"github.com/Wirlhawk/skillswap-sub000/internal/session"
	"github.com/Wirlhawk/skillswap-sub000/internal/tracing"
)

// OrderSearcher runs full-text order searches scoped to a participant
type OrderSearcher interface {
	SearchOrders(ctx context.Context, text string, participant uuid.UUID, limit int) ([]search.OrderDocument, error)
}

// OrderHandler handles order HTTP requests
type OrderHandler struct {
	orders *services.OrderService
	search OrderSearcher
	tracer tracing.Tracer
	// globalStats allows scope=all on the stats endpoint
	globalStats bool
}

// NewOrderHandler creates a new order handler. searcher may be nil when search is disabled.
func NewOrderHandler(orders *services.OrderService, searcher OrderSearcher, tracer tracing.Tracer, globalStats bool) *OrderHandler {
	return &OrderHandler{
		orders:      orders,
		search:      searcher,
		tracer:      tracer,
		globalStats: globalStats,
	}
}

// RegisterRoutes registers the handler's routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	orders.POST("", h.HandleCreateOrder)
	orders.GET("", h.HandleListOrders)
	orders.GET("/search", h.HandleSearchOrders)
	orders.GET("/stats", h.HandleGetStats)
	orders.GET("/:id", h.HandleGetOrder)
	orders.PATCH("/:id", h.HandleUpdateOrder)
	orders.GET("/:id/capabilities", h.HandleGetCapabilities)
	orders.POST("/:id/start", h.lifecycleAction("start", h.orders.StartProgress))
	orders.POST("/:id/cancel", h.lifecycleAction("cancel", h.orders.CancelOrder))
	orders.POST("/:id/approve", h.lifecycleAction("approve", h.orders.ApproveOrder))
	orders.POST("/:id/messages", h.HandleSendMessage)
}

// HandleCreateOrder places an order for the caller
func (h *OrderHandler) HandleCreateOrder(c *gin.Context) {
	ctx := c.Request.Context()
	defer h.tracer.StartSegment(ctx, "orders.create").End()

	var req services.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.CreateOrder(ctx, currentSession(c), req)
	if err != nil {
		h.tracer.RecordError(ctx, err)
		WriteError(c, err)
		return
	}

	h.tracer.AddAttribute(ctx, "order_id", order.ID.String())
	c.JSON(http.StatusCreated, order)
}

// HandleListOrders lists the caller's orders as client or as seller
func (h *OrderHandler) HandleListOrders(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	q := newQueryParser(c)
	filter := repositories.OrderFilter{
		ServiceID: q.uuidValue("service_id"),
		From:      q.timeValue("from"),
		To:        q.timeValue("to"),
	}
	limit := q.intValue("limit", services.DefaultListLimit)
	offset := q.intValue("offset", 0)

	userID := sess.UserID()
	switch c.DefaultQuery("role", string(lifecycle.RoleClient)) {
	case string(lifecycle.RoleClient):
		filter.ClientID = &userID
	case string(lifecycle.RoleSeller):
		filter.SellerID = &userID
	default:
		q.fields["role"] = "must be client or seller"
	}
	if status := c.Query("status"); status != "" {
		s := models.OrderStatus(status)
		filter.Status = &s
	}
	if !q.ok() {
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), filter, limit, offset)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"limit":  limit,
		"offset": offset,
	})
}

// HandleSearchOrders runs a full-text search over the caller's orders
func (h *OrderHandler) HandleSearchOrders(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "search is not available", Code: "SERVICE_UNAVAILABLE"})
		return
	}

	q := newQueryParser(c)
	limit := q.intValue("limit", services.DefaultListLimit)
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		q.fields["q"] = "is required"
	}
	if !q.ok() {
		return
	}
	if limit > services.MaxListLimit {
		limit = services.MaxListLimit
	}

	ctx := c.Request.Context()
	defer h.tracer.StartSegment(ctx, "orders.search").End()

	docs, err := h.search.SearchOrders(ctx, text, sess.UserID(), limit)
	if err != nil {
		h.tracer.RecordError(ctx, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": docs})
}

// HandleGetStats returns order statistics for the caller, or across all orders when
// global stats are enabled
func (h *OrderHandler) HandleGetStats(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	var userID *uuid.UUID
	switch c.DefaultQuery("scope", "mine") {
	case "mine":
		id := sess.UserID()
		userID = &id
	case "all":
		if !h.globalStats {
			WriteError(c, apperrors.Authorization("marketplace-wide statistics are not available"))
			return
		}
	default:
		WriteError(c, apperrors.ValidationFields("invalid query parameters", map[string]string{"scope": "must be mine or all"}))
		return
	}

	stats, err := h.orders.GetOrderStats(c.Request.Context(), userID)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HandleGetOrder returns an order with its conversation, files and milestones.
// A client only sees the attachments the seller made public.
func (h *OrderHandler) HandleGetOrder(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	details, err := h.orders.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	if details == nil {
		WriteError(c, apperrors.NotFound("order %s not found", id))
		return
	}

	switch lifecycle.RoleOf(&details.Order, sess.UserID()) {
	case lifecycle.RoleNone:
		WriteError(c, apperrors.Authorization("only the order's client or seller can view it"))
		return
	case lifecycle.RoleClient:
		details.Attachments = publicOnly(details.Attachments)
	}

	c.JSON(http.StatusOK, details)
}

func publicOnly(attachments []models.Attachment) []models.Attachment {
	out := make([]models.Attachment, 0, len(attachments))
	for _, a := range attachments {
		if a.IsPublic {
			out = append(out, a)
		}
	}
	return out
}

// HandleUpdateOrder applies a partial update to an order
func (h *OrderHandler) HandleUpdateOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var upd services.OrderUpdate
	if !bindJSON(c, &upd) {
		return
	}

	order, err := h.orders.UpdateOrder(c.Request.Context(), currentSession(c), id, upd)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// HandleGetCapabilities reports what the caller may do with an order
func (h *OrderHandler) HandleGetCapabilities(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	caps, err := h.orders.GetCapabilities(c.Request.Context(), currentSession(c), id)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, caps)
}

type orderAction func(ctx context.Context, sess *session.Session, orderID uuid.UUID) (*models.Order, error)

func (h *OrderHandler) lifecycleAction(name string, action orderAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		defer h.tracer.StartSegment(ctx, "orders."+name).End()

		order, err := action(ctx, currentSession(c), id)
		if err != nil {
			h.tracer.RecordError(ctx, err)
			WriteError(c, err)
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// HandleSendMessage appends a message to the order's conversation
func (h *OrderHandler) HandleSendMessage(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.orders.SendMessage(c.Request.Context(), currentSession(c), id, req.Content)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}
