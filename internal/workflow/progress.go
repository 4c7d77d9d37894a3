// Package workflow holds the order workflow state that lives outside the database:
// progress and ordering rules for milestones, the batched milestone draft and the
// delivery draft a seller composes before submitting.
package workflow

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// Progress returns the rounded share of completed milestones, 0 when there are none
func Progress(milestones []models.Milestone) int {
	if len(milestones) == 0 {
		return 0
	}

	completed := 0
	for _, m := range milestones {
		if m.Status == models.MilestoneStatusCompleted {
			completed++
		}
	}

	return int(math.Round(float64(completed) * 100 / float64(len(milestones))))
}

// SortByPosition orders milestones by position, breaking ties by creation time
func SortByPosition(milestones []models.Milestone) {
	sort.SliceStable(milestones, func(i, j int) bool {
		if milestones[i].Position != milestones[j].Position {
			return milestones[i].Position < milestones[j].Position
		}
		return milestones[i].CreatedAt.Before(milestones[j].CreatedAt)
	})
}

// Reorder moves the milestone with id to newPosition and renumbers every milestone
// to its index. The input slice is not modified.
func Reorder(milestones []models.Milestone, id uuid.UUID, newPosition int) ([]models.Milestone, error) {
	list := make([]models.Milestone, len(milestones))
	copy(list, milestones)
	SortByPosition(list)

	from := -1
	for i := range list {
		if list[i].ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return nil, apperrors.NotFound("milestone %s not found", id)
	}
	if newPosition < 0 || newPosition >= len(list) {
		return nil, apperrors.ValidationFields("invalid position", map[string]string{
			"position": "must be between 0 and the number of milestones minus one",
		})
	}

	moved := list[from]
	list = append(list[:from], list[from+1:]...)
	list = append(list[:newPosition], append([]models.Milestone{moved}, list[newPosition:]...)...)

	Renumber(list)
	return list, nil
}

// Renumber assigns each milestone its slice index as position
func Renumber(milestones []models.Milestone) {
	for i := range milestones {
		milestones[i].Position = i
	}
}
