package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
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

const manageMilestones = "manage milestones"

func canManageMilestones(caps lifecycle.CapabilitySet) bool { return caps.CanAccessMilestone }

// CommitResult is the outcome of a milestone batch
type CommitResult struct {
	Milestones []models.Milestone `json:"milestones"`
	// IDMap maps the temp ids of created milestones to their persisted ids
	IDMap map[string]uuid.UUID `json:"id_map"`
}

// MilestoneService handles milestone business logic
type MilestoneService struct {
	base
	now func() time.Time
}

// NewMilestoneService creates a new milestone service
func NewMilestoneService(deps Dependencies) *MilestoneService {
	return &MilestoneService{base: newBase(deps), now: time.Now}
}

// ListMilestones returns an order's milestones by position
func (s *MilestoneService) ListMilestones(ctx context.Context, orderID uuid.UUID) ([]models.Milestone, error) {
	return s.Store.Repos().Milestones.ListByOrder(ctx, orderID)
}

// CreateMilestone appends a milestone to an order in progress
func (s *MilestoneService) CreateMilestone(ctx context.Context, sess *session.Session, orderID uuid.UUID, in workflow.MilestoneInput) (*models.Milestone, error) {
	segment := s.Tracer.StartSegment(ctx, "create-milestone")
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	var milestone *models.Milestone
	err = s.Store.Transaction(ctx, func(r *repositories.Repositories) error {
		if _, err := sellerGate(ctx, r, userID, orderID, manageMilestones, canManageMilestones); err != nil {
			return err
		}
		milestone, err = s.create(ctx, r, orderID, in)
		return err
	})
	if err != nil {
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	metrics.MilestoneChanges.WithLabelValues(string(workflow.ChangeCreate)).Inc()
	log.Info().
		Str("order_id", orderID.String()).
		Str("milestone_id", milestone.ID.String()).
		Int("position", milestone.Position).
		Msg("Milestone created")

	s.milestonesChanged(ctx, orderID, userID, 1)
	return milestone, nil
}

func (s *MilestoneService) create(ctx context.Context, r *repositories.Repositories, orderID uuid.UUID, in workflow.MilestoneInput) (*models.Milestone, error) {
	count, err := r.Milestones.CountByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.MilestoneStatusPending
	}

	milestone := &models.Milestone{
		OrderID:       orderID,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Status:        status,
		EstimatedDate: in.EstimatedDate.UTC(),
		Position:      int(count),
	}
	if status == models.MilestoneStatusCompleted {
		now := s.now().UTC()
		milestone.CompletedDate = &now
	}

	if err := r.Milestones.Create(ctx, milestone); err != nil {
		return nil, err
	}
	return milestone, nil
}

// UpdateMilestone edits a milestone. Completing it stamps the completed date.
func (s *MilestoneService) UpdateMilestone(ctx context.Context, sess *session.Session, id uuid.UUID, upd workflow.MilestoneUpdate) (*models.Milestone, error) {
	segment := s.Tracer.StartSegment(ctx, "update-milestone")
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(upd); err != nil {
		return nil, err
	}

	var updated *models.Milestone
	err = s.Store.Transaction(ctx, func(r *repositories.Repositories) error {
		current, err := r.Milestones.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := sellerGate(ctx, r, userID, current.OrderID, manageMilestones, canManageMilestones); err != nil {
			return err
		}
		updated, err = r.Milestones.Update(ctx, id, s.updateFields(upd))
		return err
	})
	if err != nil {
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	metrics.MilestoneChanges.WithLabelValues(string(workflow.ChangeUpdate)).Inc()
	log.Info().
		Str("order_id", updated.OrderID.String()).
		Str("milestone_id", id.String()).
		Str("status", string(updated.Status)).
		Msg("Milestone updated")

	s.milestonesChanged(ctx, updated.OrderID, userID, 1)
	return updated, nil
}

func (s *MilestoneService) updateFields(u workflow.MilestoneUpdate) map[string]interface{} {
	fields := map[string]interface{}{}
	if u.Title != nil {
		fields["title"] = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.EstimatedDate != nil {
		fields["estimated_date"] = u.EstimatedDate.UTC()
	}
	if u.Status != nil {
		fields["status"] = *u.Status
	}

	switch {
	case u.Status != nil && *u.Status == models.MilestoneStatusCompleted:
		fields["completed_date"] = s.now().UTC()
	case u.ClearCompletedDate:
		fields["completed_date"] = nil
	}
	return fields
}

// DeleteMilestone removes a milestone and closes the gap in its siblings' positions
func (s *MilestoneService) DeleteMilestone(ctx context.Context, sess *session.Session, id uuid.UUID) error {
	segment := s.Tracer.StartSegment(ctx, "delete-milestone")
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return err
	}

	var orderID uuid.UUID
	err = s.Store.Transaction(ctx, func(r *repositories.Repositories) error {
		current, err := r.Milestones.GetByID(ctx, id)
		if err != nil {
			return err
		}
		orderID = current.OrderID
		if _, err := sellerGate(ctx, r, userID, orderID, manageMilestones, canManageMilestones); err != nil {
			return err
		}
		if err := r.Milestones.Delete(ctx, id); err != nil {
			return err
		}
		return renumber(ctx, r, orderID)
	})
	if err != nil {
		s.Tracer.RecordError(ctx, err)
		return err
	}

	metrics.MilestoneChanges.WithLabelValues(string(workflow.ChangeDelete)).Inc()
	log.Info().Str("order_id", orderID.String()).Str("milestone_id", id.String()).Msg("Milestone deleted")

	s.milestonesChanged(ctx, orderID, userID, 1)
	return nil
}

// ReorderMilestone moves a milestone to newPosition and renumbers the whole list
func (s *MilestoneService) ReorderMilestone(ctx context.Context, sess *session.Session, id uuid.UUID, newPosition int) ([]models.Milestone, error) {
	segment := s.Tracer.StartSegment(ctx, "reorder-milestone")
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}

	var (
		orderID uuid.UUID
		list    []models.Milestone
	)
	err = s.Store.Transaction(ctx, func(r *repositories.Repositories) error {
		current, err := r.Milestones.GetByID(ctx, id)
		if err != nil {
			return err
		}
		orderID = current.OrderID
		if _, err := sellerGate(ctx, r, userID, orderID, manageMilestones, canManageMilestones); err != nil {
			return err
		}
		list, err = reorder(ctx, r, orderID, id, newPosition)
		return err
	})
	if err != nil {
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	metrics.MilestoneChanges.WithLabelValues(string(workflow.ChangeReorder)).Inc()
	s.milestonesChanged(ctx, orderID, userID, 1)
	return list, nil
}

func reorder(ctx context.Context, r *repositories.Repositories, orderID, id uuid.UUID, newPosition int) ([]models.Milestone, error) {
	current, err := r.Milestones.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	list, err := workflow.Reorder(current, id, newPosition)
	if err != nil {
		return nil, err
	}
	if err := r.Milestones.SetPositions(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// renumber rewrites positions as 0..n-1 in the current order
func renumber(ctx context.Context, r *repositories.Repositories, orderID uuid.UUID) error {
	list, err := r.Milestones.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}

	var moved []models.Milestone
	for i := range list {
		if list[i].Position != i {
			list[i].Position = i
			moved = append(moved, list[i])
		}
	}
	return r.Milestones.SetPositions(ctx, moved)
}

// CommitChanges applies a milestone batch in one transaction. Ids may refer to temp ids
// created earlier in the batch. Any failure leaves the order's milestones untouched.
func (s *MilestoneService) CommitChanges(ctx context.Context, sess *session.Session, orderID uuid.UUID, changes []workflow.MilestoneChange) (*CommitResult, error) {
	segment := s.Tracer.StartSegment(ctx, "commit-milestones")
	defer segment.End()

	userID, err := requireSession(sess)
	if err != nil {
		return nil, err
	}
	for i := range changes {
		if err := validateChange(i, changes[i]); err != nil {
			return nil, err
		}
	}

	result := &CommitResult{IDMap: map[string]uuid.UUID{}}
	err = s.Store.Transaction(ctx, func(r *repositories.Repositories) error {
		if _, err := sellerGate(ctx, r, userID, orderID, manageMilestones, canManageMilestones); err != nil {
			return err
		}

		for i, change := range changes {
			if err := s.apply(ctx, r, orderID, change, result.IDMap); err != nil {
				log.Debug().
					Err(err).
					Str("order_id", orderID.String()).
					Int("change", i).
					Str("kind", string(change.Kind)).
					Msg("Milestone batch rejected")
				return err
			}
		}

		if err := renumber(ctx, r, orderID); err != nil {
			return err
		}
		result.Milestones, err = r.Milestones.ListByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		s.Tracer.RecordError(ctx, err)
		return nil, err
	}

	for _, change := range changes {
		metrics.MilestoneChanges.WithLabelValues(string(change.Kind)).Inc()
	}
	log.Info().
		Str("order_id", orderID.String()).
		Int("changes", len(changes)).
		Int("created", len(result.IDMap)).
		Msg("Milestone batch committed")

	if len(changes) > 0 {
		s.milestonesChanged(ctx, orderID, userID, len(changes))
	}
	return result, nil
}

func validateChange(i int, change workflow.MilestoneChange) error {
	if err := validation.ValidateStruct(change); err != nil {
		return err
	}

	field := "changes[" + strconv.Itoa(i) + "]"
	switch change.Kind {
	case workflow.ChangeCreate:
		if change.Create == nil || !workflow.IsTempID(change.ID) {
			return apperrors.ValidationFields("invalid milestone change", map[string]string{
				field: "create needs a temp id and milestone fields",
			})
		}
		return validation.ValidateStruct(*change.Create)
	case workflow.ChangeUpdate:
		if change.Update == nil {
			return apperrors.ValidationFields("invalid milestone change", map[string]string{
				field: "update needs milestone fields",
			})
		}
		return validation.ValidateStruct(*change.Update)
	}
	return nil
}

func (s *MilestoneService) apply(ctx context.Context, r *repositories.Repositories, orderID uuid.UUID, change workflow.MilestoneChange, ids map[string]uuid.UUID) error {
	if change.Kind == workflow.ChangeCreate {
		if _, taken := ids[change.ID]; taken {
			return apperrors.Conflict("milestone %s is created twice", change.ID)
		}
		created, err := s.create(ctx, r, orderID, *change.Create)
		if err != nil {
			return err
		}
		ids[change.ID] = created.ID
		return nil
	}

	id, err := resolveID(ctx, r, orderID, change.ID, ids)
	if err != nil {
		return err
	}

	switch change.Kind {
	case workflow.ChangeUpdate:
		_, err = r.Milestones.Update(ctx, id, s.updateFields(*change.Update))
	case workflow.ChangeDelete:
		if err = r.Milestones.Delete(ctx, id); err == nil {
			err = renumber(ctx, r, orderID)
		}
	case workflow.ChangeReorder:
		_, err = reorder(ctx, r, orderID, id, change.Position)
	}
	return err
}

// resolveID maps a temp or persisted id to a milestone of the order
func resolveID(ctx context.Context, r *repositories.Repositories, orderID uuid.UUID, raw string, ids map[string]uuid.UUID) (uuid.UUID, error) {
	if workflow.IsTempID(raw) {
		id, ok := ids[raw]
		if !ok {
			return uuid.Nil, apperrors.NotFound("milestone %s not found", raw)
		}
		return id, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NotFound("milestone %s not found", raw)
	}
	milestone, err := r.Milestones.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if milestone.OrderID != orderID {
		return uuid.Nil, apperrors.NotFound("milestone %s not found", raw)
	}
	return id, nil
}

func (s *MilestoneService) milestonesChanged(ctx context.Context, orderID, actorID uuid.UUID, changes int) {
	s.publish(ctx, messaging.NewEvent(messaging.EventMilestonesChanged, orderID, actorID, "").
		With("changes", strconv.Itoa(changes)))
}
