package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/services"
	"github.com/Wirlhawk/skillswap-sub000/internal/tracing"
	"github.com/Wirlhawk/skillswap-sub000/internal/workflow"
)

// Multipart form fields of a delivery
const (
	formMessage        = "message"
	formMarkAsComplete = "mark_as_complete"
	formFiles          = "files"
	formDescriptions   = "descriptions"
	formPublic         = "public"
	formStagedFiles    = "staged_files"
)

// DefaultMaxUploadBytes caps a single delivered file when no limit is configured
const DefaultMaxUploadBytes int64 = 25 << 20

// DeliveryHandler handles delivery submission and draft HTTP requests
type DeliveryHandler struct {
	deliveries     *services.DeliveryService
	tracer         tracing.Tracer
	maxUploadBytes int64
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(deliveries *services.DeliveryService, tracer tracing.Tracer, maxUploadBytes int64) *DeliveryHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &DeliveryHandler{
		deliveries:     deliveries,
		tracer:         tracer,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers the handler's routes
func (h *DeliveryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders/:id/delivery", h.HandleSubmitDelivery)
	rg.PUT("/orders/:id/delivery/draft", h.HandleSaveDraft)
	rg.GET("/orders/:id/delivery/draft", h.HandleLoadDraft)
}

// HandleSubmitDelivery submits the seller's delivery from a multipart form
func (h *DeliveryHandler) HandleSubmitDelivery(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	defer h.tracer.StartSegment(ctx, "delivery.submit").End()

	draft, err := h.readDraft(c, id)
	if err != nil {
		WriteError(c, err)
		return
	}
	h.tracer.AddAttribute(ctx, "files", len(draft.Files))

	result, err := h.deliveries.SubmitDelivery(ctx, currentSession(c), id, draft)
	if err != nil {
		h.tracer.RecordError(ctx, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// HandleSaveDraft stores the seller's delivery draft without submitting it
func (h *DeliveryHandler) HandleSaveDraft(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	draft, err := h.readDraft(c, id)
	if err != nil {
		WriteError(c, err)
		return
	}

	saved, err := h.deliveries.SaveDraft(c.Request.Context(), currentSession(c), id, draft)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"draft": saved})
}

// HandleLoadDraft returns the seller's saved draft, or null when there is none
func (h *DeliveryHandler) HandleLoadDraft(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	draft, err := h.deliveries.LoadDraft(c.Request.Context(), currentSession(c), id)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// stagedFileRef keeps a file of the saved draft in the submitted form
type stagedFileRef struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// readDraft builds a delivery draft from the multipart form. Files already staged on
// the saved draft are referenced by id through the staged_files field.
func (h *DeliveryHandler) readDraft(c *gin.Context, orderID uuid.UUID) (*workflow.DeliveryDraft, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.Validation("expected a multipart form").WithCause(err)
	}

	draft := &workflow.DeliveryDraft{Message: formValue(form, formMessage, 0)}
	if raw := formValue(form, formMarkAsComplete, 0); raw != "" {
		mark, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, apperrors.ValidationFields("invalid form", map[string]string{formMarkAsComplete: "must be a boolean"})
		}
		draft.MarkAsComplete = mark
	}

	if raw := formValue(form, formStagedFiles, 0); raw != "" {
		kept, err := h.keptFiles(c, orderID, raw)
		if err != nil {
			return nil, err
		}
		draft.Files = kept
	}

	headers := form.File[formFiles]
	uploads := make([]workflow.FileUpload, 0, len(headers))
	for _, fh := range headers {
		upload, err := h.readUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}

	first := len(draft.Files)
	draft.AddFiles(uploads)
	for i := range uploads {
		fileID := draft.Files[first+i].ID
		if desc := formValue(form, formDescriptions, i); desc != "" {
			if err := draft.UpdateDescription(fileID, desc); err != nil {
				return nil, err
			}
		}
		if public := formValue(form, formPublic, i); public != "" {
			visible, err := strconv.ParseBool(public)
			if err != nil {
				return nil, apperrors.ValidationFields("invalid form", map[string]string{formPublic: "must be a boolean"})
			}
			if !visible {
				if err := draft.ToggleVisibility(fileID); err != nil {
					return nil, err
				}
			}
		}
	}

	return draft, nil
}

// keptFiles resolves staged file references against the seller's saved draft
func (h *DeliveryHandler) keptFiles(c *gin.Context, orderID uuid.UUID, raw string) ([]workflow.DraftFile, error) {
	var refs []stagedFileRef
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, apperrors.ValidationFields("invalid form", map[string]string{formStagedFiles: "must be a JSON array"}).WithCause(err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	saved, err := h.deliveries.LoadDraft(c.Request.Context(), currentSession(c), orderID)
	if err != nil {
		return nil, err
	}
	staged := map[string]workflow.DraftFile{}
	if saved != nil {
		for _, f := range saved.Files {
			staged[f.ID] = f
		}
	}

	kept := make([]workflow.DraftFile, 0, len(refs))
	for _, ref := range refs {
		f, ok := staged[ref.ID]
		if !ok {
			return nil, apperrors.ValidationFields("invalid form", map[string]string{formStagedFiles: "unknown staged file " + ref.ID})
		}
		f.Description = ref.Description
		f.IsPublic = ref.IsPublic
		kept = append(kept, f)
	}
	return kept, nil
}

func (h *DeliveryHandler) readUpload(fh *multipart.FileHeader) (workflow.FileUpload, error) {
	if fh.Size > h.maxUploadBytes {
		return workflow.FileUpload{}, apperrors.ValidationFields("file too large", map[string]string{
			formFiles: fh.Filename + " exceeds the upload limit",
		})
	}

	f, err := fh.Open()
	if err != nil {
		return workflow.FileUpload{}, apperrors.Validation("failed to read uploaded file").WithCause(err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Str("filename", fh.Filename).Msg("Failed to close uploaded file")
		}
	}()

	content, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return workflow.FileUpload{}, apperrors.Validation("failed to read uploaded file").WithCause(err)
	}
	if int64(len(content)) > h.maxUploadBytes {
		return workflow.FileUpload{}, apperrors.ValidationFields("file too large", map[string]string{
			formFiles: fh.Filename + " exceeds the upload limit",
		})
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(content)
	}

	return workflow.FileUpload{
		Filename: fh.Filename,
		Size:     int64(len(content)),
		MimeType: mimeType,
		Content:  content,
	}, nil
}

// formValue returns the i-th value of a form field, or "" when missing
func formValue(form *multipart.Form, key string, i int) string {
	values := form.Value[key]
	if i >= len(values) {
		return ""
	}
	return values[i]
}
