package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/lifecycle"
	"github.com/Wirlhawk/skillswap-sub000/internal/services"
)

// ReviewHandler handles review HTTP requests
type ReviewHandler struct {
	reviews *services.ReviewService
	orders  *services.OrderService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviews *services.ReviewService, orders *services.OrderService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, orders: orders}
}

// RegisterRoutes registers the handler's routes
func (h *ReviewHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders/:id/review", h.HandleCreateReview)
	rg.GET("/orders/:id/review", h.HandleGetReview)
	rg.GET("/sellers/:id/rating", h.HandleGetSellerRating)
}

type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// HandleCreateReview records the client's review of a completed order
func (h *ReviewHandler) HandleCreateReview(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req createReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	review, err := h.reviews.CreateReview(c.Request.Context(), currentSession(c), id, req.Rating, req.Comment)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// HandleGetReview returns an order's review, or null when it has none
func (h *ReviewHandler) HandleGetReview(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	caps, err := h.orders.GetCapabilities(ctx, currentSession(c), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	if caps.Role == lifecycle.RoleNone {
		WriteError(c, apperrors.Authorization("only the order's client or seller can view its review"))
		return
	}

	review, err := h.reviews.GetOrderReview(ctx, id)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"review": review})
}

// HandleGetSellerRating returns a seller's review count and average rating
func (h *ReviewHandler) HandleGetSellerRating(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	rating, err := h.reviews.GetSellerRating(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, rating)
}
