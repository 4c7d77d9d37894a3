package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

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
	"github.com/Wirlhawk/skillswap-sub000/internal/storage"
	"github.com/Wirlhawk/skillswap-sub000/internal/workflow"
)

const deliverWork = "deliver work"

func canDeliver(caps lifecycle.CapabilitySet) bool { return caps.CanAccessDeliver }

// DeliveryResult is what a submitted delivery persisted
type DeliveryResult struct {
	Order       *models.Order       `json:"order"`
	Message     *models.Message     `json:"message,omitempty"`
	Attachments []models.Attachment `json:"attachments"`
}

// DeliveryService handles delivery submission and drafts
type DeliveryService struct {
	base
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(deps Dependencies) *DeliveryService {
	return &DeliveryService{base: newBase(deps)}
}

// SubmitDelivery persists a seller's delivery. File contents go to blob storage first,
// then the message, the attachments and the optional move to Done commit together.
// The draft passed in is never modified, so a failed submit can be retried as is.
func (s *DeliveryService) SubmitDelivery(ctx context.Context, sess *session.Session, orderID uuid.UUID, draft *workflow.DeliveryDraft) (*DeliveryResult, error) {
	segment := s.Tracer.StartSegment(ctx, "submit-delivery")
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, apperrors.Validation("delivery is empty")
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	order, err := sellerGate(ctx, s.Store.Repos(), userID, orderID, deliverWork, canDeliver)
	if err != nil {
		return nil, err
	}

	staged, uploaded, err := s.stage(ctx, draft, "orders/"+orderID.String())
	if err != nil {
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	result := &DeliveryResult{Order: order}
	err = s.Store.Transaction(ctx, func(r *repositories.Repositories) error {
		var messageID *uuid.UUID
		if text := strings.TrimSpace(staged.Message); text != "" {
			message := &models.Message{OrderID: orderID, SenderID: &userID, Content: text}
			if err := r.Messages.Create(ctx, message); err != nil {
				return err
			}
			result.Message = message
			messageID = &message.ID
		}

		result.Attachments = make([]models.Attachment, 0, len(staged.Files))
		for _, f := range staged.Files {
			result.Attachments = append(result.Attachments, models.Attachment{
				OrderID:     orderID,
				MessageID:   messageID,
				UploaderID:  &userID,
				Filename:    f.Filename,
				URL:         f.URL,
				Size:        f.Size,
				MimeType:    f.MimeType,
				Description: f.Description,
				IsPublic:    f.IsPublic,
			})
		}
		if err := r.Attachments.CreateBatch(ctx, result.Attachments); err != nil {
			return err
		}

		if staged.MarkAsComplete {
			done, err := r.Orders.TransitionStatus(ctx, orderID, order.Status, models.OrderStatusDone)
			if err != nil {
				return err
			}
			result.Order = done
		}

		return r.Drafts.DeleteByOrder(ctx, orderID)
	})
	if err != nil {
		s.discard(ctx, uploaded)
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	metrics.DeliveriesSubmitted.WithLabelValues(strconv.FormatBool(staged.MarkAsComplete)).Inc()
	if staged.MarkAsComplete {
		metrics.RecordTransition(string(order.Status), string(result.Order.Status))
	}
	log.Info().
		Str("order_id", orderID.String()).
		Int("files", len(result.Attachments)).
		Bool("mark_as_complete", staged.MarkAsComplete).
		Msg("Delivery submitted")

	s.orderChanged(ctx, result.Order, messaging.NewEvent(messaging.EventDeliverySubmitted, orderID, userID, string(result.Order.Status)).
		With("files", strconv.Itoa(len(result.Attachments))))
	if staged.MarkAsComplete && result.Order.ClientID != nil {
		s.publish(ctx, messaging.NewEvent(messaging.EventDeliveryCompleted, orderID, userID, string(result.Order.Status)).
			With("client_id", result.Order.ClientID.String()))
	}

	return result, nil
}

// SaveDraft stores the seller's draft for later without touching the order status.
// It returns the draft with every file staged.
func (s *DeliveryService) SaveDraft(ctx context.Context, sess *session.Session, orderID uuid.UUID, draft *workflow.DeliveryDraft) (*workflow.DeliveryDraft, error) {
	segment := s.Tracer.StartSegment(ctx, "save-delivery-draft")
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		draft = &workflow.DeliveryDraft{}
	}

	repos := s.Store.Repos()
	if _, err := sellerGate(ctx, repos, userID, orderID, deliverWork, canDeliver); err != nil {
		return nil, err
	}

	previous, err := repos.Drafts.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	staged, uploaded, err := s.stage(ctx, draft, "drafts/"+orderID.String())
	if err != nil {
		return nil, err
	}

	files, err := staged.MarshalFiles()
	if err != nil {
		s.discard(ctx, uploaded)
		return nil, err
	}

	row := &models.DeliveryDraft{
		OrderID:        orderID,
		SellerID:       userID,
		Message:        staged.Message,
		MarkAsComplete: staged.MarkAsComplete,
		Files:          files,
	}
	if err := repos.Drafts.Upsert(ctx, row); err != nil {
		s.discard(ctx, uploaded)
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	if previous != nil {
		s.discard(ctx, droppedKeys(previous, staged))
	}

	log.Debug().Str("order_id", orderID.String()).Int("files", len(staged.Files)).Msg("Delivery draft saved")
	return staged, nil
}

// LoadDraft returns the seller's saved draft, or nil when there is none
func (s *DeliveryService) LoadDraft(ctx context.Context, sess *session.Session, orderID uuid.UUID) (*workflow.DeliveryDraft, error) {
	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}

	repos := s.Store.Repos()
	order, err := repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if lifecycle.RoleOf(order, userID) != lifecycle.RoleSeller {
		return nil, apperrors.Authorization("only the seller can open the delivery draft")
	}

	row, err := repos.Drafts.GetByOrder(ctx, orderID)
	if err != nil || row == nil {
		return nil, err
	}

	files, err := workflow.UnmarshalFiles(row.Files)
	if err != nil {
		return nil, err
	}
	return &workflow.DeliveryDraft{
		Files:          files,
		Message:        row.Message,
		MarkAsComplete: row.MarkAsComplete,
	}, nil
}

// stage writes every unstaged file of a copy of draft under prefix. It returns the
// copy and the keys written by this call.
func (s *DeliveryService) stage(ctx context.Context, draft *workflow.DeliveryDraft, prefix string) (*workflow.DeliveryDraft, []string, error) {
	staged := draft.Clone()

	var uploaded []string
	for i := range staged.Files {
		f := &staged.Files[i]
		if f.Staged() {
			continue
		}
		if f.Content == nil {
			s.discard(ctx, uploaded)
			return nil, nil, apperrors.ValidationFields("invalid file", map[string]string{
				"files": f.Filename + " has no content",
			})
		}
		if s.Blobs == nil {
			return nil, nil, errors.New("blob storage is not configured")
		}

		key := fmt.Sprintf("%s/%s-%s", prefix, f.ID, storage.SafeName(f.Filename))
		url, err := s.Blobs.Put(ctx, key, f.Content)
		if err != nil {
			s.discard(ctx, uploaded)
			return nil, nil, errors.Wrapf(err, "failed to upload %s", f.Filename)
		}
		uploaded = append(uploaded, key)

		f.Key = key
		f.URL = url
		f.Size = int64(len(f.Content))
		f.Content = nil
	}
	return staged, uploaded, nil
}

// droppedKeys lists the blobs of a saved draft that the replacing draft no longer keeps
func droppedKeys(previous *models.DeliveryDraft, next *workflow.DeliveryDraft) []string {
	files, err := workflow.UnmarshalFiles(previous.Files)
	if err != nil {
		log.Warn().Err(err).Str("order_id", previous.OrderID.String()).Msg("Failed to read previous draft files")
		return nil
	}

	kept := make(map[string]bool, len(next.Files))
	for _, f := range next.Files {
		kept[f.Key] = true
	}

	var dropped []string
	for _, f := range files {
		if f.Key != "" && !kept[f.Key] {
			dropped = append(dropped, f.Key)
		}
	}
	return dropped
}

// discard removes blobs written for a delivery that did not persist, or that a
// saved draft dropped
func (s *DeliveryService) discard(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.Blobs.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to remove orphaned blob")
		}
	}
}
