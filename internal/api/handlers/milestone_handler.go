package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/lifecycle"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
	"github.com/Wirlhawk/skillswap-sub000/internal/services"
	"github.com/Wirlhawk/skillswap-sub000/internal/tracing"
	"github.com/Wirlhawk/skillswap-sub000/internal/workflow"
)

// MilestoneHandler handles milestone HTTP requests
type MilestoneHandler struct {
	milestones *services.MilestoneService
	orders     *services.OrderService
	tracer     tracing.Tracer
}

// NewMilestoneHandler creates a new milestone handler
func NewMilestoneHandler(milestones *services.MilestoneService, orders *services.OrderService, tracer tracing.Tracer) *MilestoneHandler {
	return &MilestoneHandler{
		milestones: milestones,
		orders:     orders,
		tracer:     tracer,
	}
}

// RegisterRoutes registers the handler's routes
func (h *MilestoneHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/orders/:id/milestones", h.HandleListMilestones)
	rg.POST("/orders/:id/milestones", h.HandleCreateMilestone)
	rg.POST("/orders/:id/milestones/commit", h.HandleCommitChanges)
	rg.PATCH("/milestones/:id", h.HandleUpdateMilestone)
	rg.DELETE("/milestones/:id", h.HandleDeleteMilestone)
	rg.POST("/milestones/:id/reorder", h.HandleReorderMilestone)
}

// milestoneView is a milestone with its display tone
type milestoneView struct {
	models.Milestone
	Tone lifecycle.Tone `json:"tone"`
}

func milestoneViews(list []models.Milestone) []milestoneView {
	out := make([]milestoneView, len(list))
	for i, m := range list {
		out[i] = milestoneView{Milestone: m, Tone: lifecycle.MilestoneTone(m.Status)}
	}
	return out
}

// HandleListMilestones returns an order's milestones and its progress
func (h *MilestoneHandler) HandleListMilestones(c *gin.Context) {
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
		WriteError(c, apperrors.Authorization("only the order's client or seller can view milestones"))
		return
	}

	list, err := h.milestones.ListMilestones(ctx, id)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"milestones": milestoneViews(list),
		"progress":   workflow.Progress(list),
	})
}

// HandleCreateMilestone appends a milestone to an order
func (h *MilestoneHandler) HandleCreateMilestone(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var in workflow.MilestoneInput
	if !bindJSON(c, &in) {
		return
	}

	m, err := h.milestones.CreateMilestone(c.Request.Context(), currentSession(c), id, in)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, milestoneView{Milestone: *m, Tone: lifecycle.MilestoneTone(m.Status)})
}

type commitRequest struct {
	Changes []workflow.MilestoneChange `json:"changes"`
}

// HandleCommitChanges applies a batch of milestone edits atomically
func (h *MilestoneHandler) HandleCommitChanges(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req commitRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	defer h.tracer.StartSegment(ctx, "milestones.commit").End()
	h.tracer.AddAttribute(ctx, "changes", len(req.Changes))

	result, err := h.milestones.CommitChanges(ctx, currentSession(c), id, req.Changes)
	if err != nil {
		h.tracer.RecordError(ctx, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"milestones": milestoneViews(result.Milestones),
		"id_map":     result.IDMap,
		"progress":   workflow.Progress(result.Milestones),
	})
}

// HandleUpdateMilestone applies a partial update to a milestone
func (h *MilestoneHandler) HandleUpdateMilestone(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var upd workflow.MilestoneUpdate
	if !bindJSON(c, &upd) {
		return
	}

	m, err := h.milestones.UpdateMilestone(c.Request.Context(), currentSession(c), id, upd)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, milestoneView{Milestone: *m, Tone: lifecycle.MilestoneTone(m.Status)})
}

// HandleDeleteMilestone removes a milestone
func (h *MilestoneHandler) HandleDeleteMilestone(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.milestones.DeleteMilestone(c.Request.Context(), currentSession(c), id); err != nil {
		WriteError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type reorderRequest struct {
	Position *int `json:"position"`
}

// HandleReorderMilestone moves a milestone to a new position
func (h *MilestoneHandler) HandleReorderMilestone(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Position == nil {
		WriteError(c, apperrors.ValidationFields("validation failed", map[string]string{"position": "is required"}))
		return
	}

	list, err := h.milestones.ReorderMilestone(c.Request.Context(), currentSession(c), id, *req.Position)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"milestones": milestoneViews(list)})
}
