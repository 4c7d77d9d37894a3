package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// TempIDPrefix marks milestone ids that exist only in a draft
const TempIDPrefix = "temp-"

// NewTempID returns a fresh draft-only milestone id
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was issued by NewTempID
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// MilestoneInput holds the fields of a new milestone
type MilestoneInput struct {
	Title         string                 `json:"title" validate:"notblank,max=100"`
	Description   *string                `json:"description,omitempty" validate:"omitempty,max=500"`
	Status        models.MilestoneStatus `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	EstimatedDate time.Time              `json:"estimated_date" validate:"required"`
}

// MilestoneUpdate holds the fields to change on a milestone; nil fields are left alone
type MilestoneUpdate struct {
	Title              *string                 `json:"title,omitempty" validate:"omitempty,notblank,max=100"`
	Description        *string                 `json:"description,omitempty" validate:"omitempty,max=500"`
	Status             *models.MilestoneStatus `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	EstimatedDate      *time.Time              `json:"estimated_date,omitempty"`
	ClearCompletedDate bool                    `json:"clear_completed_date,omitempty"`
}

// Empty reports whether the update changes nothing
func (u MilestoneUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && u.EstimatedDate == nil && !u.ClearCompletedDate
}

// merge layers next over u
func (u MilestoneUpdate) merge(next MilestoneUpdate) MilestoneUpdate {
	if next.Title != nil {
		u.Title = next.Title
	}
	if next.Description != nil {
		u.Description = next.Description
	}
	if next.Status != nil {
		u.Status = next.Status
	}
	if next.EstimatedDate != nil {
		u.EstimatedDate = next.EstimatedDate
	}
	if next.ClearCompletedDate {
		u.ClearCompletedDate = true
	}
	return u
}

// ChangeKind tags a pending milestone change
type ChangeKind string

// Change kinds
const (
	ChangeCreate  ChangeKind = "create"
	ChangeUpdate  ChangeKind = "update"
	ChangeDelete  ChangeKind = "delete"
	ChangeReorder ChangeKind = "reorder"
)

// MilestoneChange is one tagged operation in a milestone batch. ID may be a temp id
// issued for a create earlier in the same batch.
type MilestoneChange struct {
	Kind     ChangeKind       `json:"kind" validate:"required,oneof=create update delete reorder"`
	ID       string           `json:"id" validate:"required"`
	Create   *MilestoneInput  `json:"create,omitempty"`
	Update   *MilestoneUpdate `json:"update,omitempty"`
	Position int              `json:"position,omitempty"`
}

// DraftMilestone is a milestone as shown while a draft is open
type DraftMilestone struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   *string                `json:"description,omitempty"`
	Status        models.MilestoneStatus `json:"status"`
	EstimatedDate time.Time              `json:"estimated_date"`
}

// Temp reports whether the milestone has not been persisted yet
func (m DraftMilestone) Temp() bool {
	return IsTempID(m.ID)
}

func (m *DraftMilestone) apply(u MilestoneUpdate) {
	if u.Title != nil {
		m.Title = *u.Title
	}
	if u.Description != nil {
		m.Description = u.Description
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.EstimatedDate != nil {
		m.EstimatedDate = *u.EstimatedDate
	}
}

// MilestoneDraft tracks local edits to an order's milestones until they are committed
// as one batch or discarded. It is not safe for concurrent use.
type MilestoneDraft struct {
	original []DraftMilestone
	items    []DraftMilestone
	creates  map[string]MilestoneInput
	updates  map[string]MilestoneUpdate
}

// NewMilestoneDraft opens a draft over the persisted milestones
func NewMilestoneDraft(persisted []models.Milestone) *MilestoneDraft {
	list := make([]models.Milestone, len(persisted))
	copy(list, persisted)
	SortByPosition(list)

	original := make([]DraftMilestone, 0, len(list))
	for _, m := range list {
		original = append(original, DraftMilestone{
			ID:            m.ID.String(),
			Title:         m.Title,
			Description:   m.Description,
			Status:        m.Status,
			EstimatedDate: m.EstimatedDate,
		})
	}

	d := &MilestoneDraft{original: original}
	d.Discard()
	return d
}

// Items returns the milestones in their draft order
func (d *MilestoneDraft) Items() []DraftMilestone {
	out := make([]DraftMilestone, len(d.items))
	copy(out, d.items)
	return out
}

// Add appends a new milestone and returns its temp id
func (d *MilestoneDraft) Add(in MilestoneInput) string {
	if in.Status == "" {
		in.Status = models.MilestoneStatusPending
	}

	id := NewTempID()
	d.creates[id] = in
	d.items = append(d.items, DraftMilestone{
		ID:            id,
		Title:         in.Title,
		Description:   in.Description,
		Status:        in.Status,
		EstimatedDate: in.EstimatedDate,
	})
	return id
}

// Edit changes fields of a draft or persisted milestone
func (d *MilestoneDraft) Edit(id string, u MilestoneUpdate) error {
	i := d.index(id)
	if i < 0 {
		return apperrors.NotFound("milestone %s not found", id)
	}

	d.items[i].apply(u)

	if in, ok := d.creates[id]; ok {
		in.Title = d.items[i].Title
		in.Description = d.items[i].Description
		in.Status = d.items[i].Status
		in.EstimatedDate = d.items[i].EstimatedDate
		d.creates[id] = in
		return nil
	}

	d.updates[id] = d.updates[id].merge(u)
	return nil
}

// Remove drops a milestone. Temp milestones vanish without leaving a change behind.
func (d *MilestoneDraft) Remove(id string) error {
	i := d.index(id)
	if i < 0 {
		return apperrors.NotFound("milestone %s not found", id)
	}

	d.items = append(d.items[:i], d.items[i+1:]...)
	delete(d.creates, id)
	delete(d.updates, id)
	return nil
}

// Move places a milestone at position, shifting the others
func (d *MilestoneDraft) Move(id string, position int) error {
	i := d.index(id)
	if i < 0 {
		return apperrors.NotFound("milestone %s not found", id)
	}
	if position < 0 || position >= len(d.items) {
		return apperrors.ValidationFields("invalid position", map[string]string{
			"position": "must be between 0 and the number of milestones minus one",
		})
	}

	d.items = move(d.items, i, position)
	return nil
}

// Dirty reports whether the draft differs from the persisted milestones
func (d *MilestoneDraft) Dirty() bool {
	return len(d.Changes()) > 0
}

// Discard throws away every local edit
func (d *MilestoneDraft) Discard() {
	d.items = make([]DraftMilestone, len(d.original))
	copy(d.items, d.original)
	d.creates = map[string]MilestoneInput{}
	d.updates = map[string]MilestoneUpdate{}
}

// Changes returns the batch that turns the persisted milestones into the draft.
// Deletes come first, then updates and creates, then the reorders needed to reach the
// draft order. Applied in sequence against the persisted list they reproduce Items.
func (d *MilestoneDraft) Changes() []MilestoneChange {
	var changes []MilestoneChange

	kept := make(map[string]bool, len(d.items))
	for _, it := range d.items {
		kept[it.ID] = true
	}

	sim := make([]string, 0, len(d.items))
	for _, o := range d.original {
		if !kept[o.ID] {
			changes = append(changes, MilestoneChange{Kind: ChangeDelete, ID: o.ID})
			continue
		}
		sim = append(sim, o.ID)
	}

	for _, o := range d.original {
		u, ok := d.updates[o.ID]
		if !ok || u.Empty() || !kept[o.ID] {
			continue
		}
		changes = append(changes, MilestoneChange{Kind: ChangeUpdate, ID: o.ID, Update: &u})
	}

	for _, it := range d.items {
		in, ok := d.creates[it.ID]
		if !ok {
			continue
		}
		changes = append(changes, MilestoneChange{Kind: ChangeCreate, ID: it.ID, Create: &in})
		sim = append(sim, it.ID)
	}

	for target, it := range d.items {
		if sim[target] == it.ID {
			continue
		}
		from := indexOf(sim, it.ID)
		sim = move(sim, from, target)
		changes = append(changes, MilestoneChange{Kind: ChangeReorder, ID: it.ID, Position: target})
	}

	return changes
}

func (d *MilestoneDraft) index(id string) int {
	for i := range d.items {
		if d.items[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOf(ids []string, id string) int {
	for i := range ids {
		if ids[i] == id {
			return i
		}
	}
	return -1
}

func move[T any](list []T, from, to int) []T {
	item := list[from]
	out := make([]T, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out
}
