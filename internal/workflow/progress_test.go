package workflow

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

func milestonesWith(statuses ...models.MilestoneStatus) []models.Milestone {
	list := make([]models.Milestone, len(statuses))
	for i, s := range statuses {
		list[i] = models.Milestone{ID: uuid.New(), Status: s, Position: i}
	}
	return list
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name       string
		milestones []models.Milestone
		want       int
	}{
		{"no milestones", nil, 0},
		{"none completed", milestonesWith(models.MilestoneStatusPending, models.MilestoneStatusInProgress), 0},
		{"one of three", milestonesWith(models.MilestoneStatusCompleted, models.MilestoneStatusPending, models.MilestoneStatusPending), 33},
		{"two of three rounds up", milestonesWith(models.MilestoneStatusCompleted, models.MilestoneStatusCompleted, models.MilestoneStatusPending), 67},
		{"half", milestonesWith(models.MilestoneStatusCompleted, models.MilestoneStatusCancelled), 50},
		{"all", milestonesWith(models.MilestoneStatusCompleted, models.MilestoneStatusCompleted), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Progress(tt.milestones))
		})
	}
}

func TestReorder(t *testing.T) {
	list := milestonesWith(
		models.MilestoneStatusPending,
		models.MilestoneStatusPending,
		models.MilestoneStatusPending,
		models.MilestoneStatusPending,
	)

	for from := range list {
		for to := range list {
			got, err := Reorder(list, list[from].ID, to)
			require.NoError(t, err)
			require.Len(t, got, len(list))

			seen := map[uuid.UUID]bool{}
			for i, m := range got {
				assert.Equal(t, i, m.Position)
				seen[m.ID] = true
			}
			assert.Len(t, seen, len(list))
			assert.Equal(t, list[from].ID, got[to].ID)
		}
	}

	// Input stays untouched
	for i, m := range list {
		assert.Equal(t, i, m.Position)
	}
}

func TestReorderMovesForward(t *testing.T) {
	list := milestonesWith(models.MilestoneStatusPending, models.MilestoneStatusPending, models.MilestoneStatusPending)

	got, err := Reorder(list, list[0].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{list[1].ID, list[2].ID, list[0].ID}, []uuid.UUID{got[0].ID, got[1].ID, got[2].ID})
}

func TestReorderErrors(t *testing.T) {
	list := milestonesWith(models.MilestoneStatusPending, models.MilestoneStatusPending)

	_, err := Reorder(list, uuid.New(), 0)
	require.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = Reorder(list, list[0].ID, 2)
	require.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = Reorder(list, list[0].ID, -1)
	require.True(t, errors.Is(err, apperrors.ErrValidation))
}
