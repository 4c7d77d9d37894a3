package lifecycle

import "github.com/Wirlhawk/skillswap-sub000/internal/models"

// Tone is the display treatment for a status badge
type Tone string

// Tones
const (
	ToneNeutral Tone = "neutral"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
)

// Order and milestone statuses share one table so the two never drift apart.
var tones = map[string]Tone{
	string(models.OrderStatusPending):        ToneNeutral,
	string(models.OrderStatusInProgress):     ToneInfo,
	string(models.OrderStatusDone):           ToneSuccess,
	string(models.OrderStatusCancelled):      ToneDanger,
	string(models.MilestoneStatusPending):    ToneNeutral,
	string(models.MilestoneStatusInProgress): ToneInfo,
	string(models.MilestoneStatusCompleted):  ToneSuccess,
	string(models.MilestoneStatusCancelled):  ToneDanger,
}

// OrderTone returns the badge tone for an order status
func OrderTone(status models.OrderStatus) Tone {
	return toneFor(string(status))
}

// MilestoneTone returns the badge tone for a milestone status
func MilestoneTone(status models.MilestoneStatus) Tone {
	return toneFor(string(status))
}

func toneFor(status string) Tone {
	if t, ok := tones[status]; ok {
		return t
	}
	return ToneNeutral
}
