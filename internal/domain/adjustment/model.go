package adjustment

import (
	"fmt"
	"time"
)

// Category classifies a manual score adjustment.
type Category string

const (
	CategoryPenalty          Category = "penalty"
	CategoryReward           Category = "reward"
	CategoryDisqualification Category = "disqualification"
)

// Adjustment is a signed point delta applied to a team outside match
// scoring. Immutable once created; removal is an explicit delete, never an
// edit.
type Adjustment struct {
	ID           string    `json:"id" validate:"required"`
	TournamentID string    `json:"tournamentId" validate:"required"`
	TeamCode     string    `json:"teamCode" validate:"required"`
	TeamName     string    `json:"teamName,omitempty"`
	Points       float64   `json:"points"`
	Reason       string    `json:"reason" validate:"required"`
	Category     Category  `json:"category"`
	AppliedBy    string    `json:"appliedBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (a Adjustment) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("adjustment id is required")
	}
	if a.TournamentID == "" {
		return fmt.Errorf("adjustment tournament id is required")
	}
	if a.TeamCode == "" {
		return fmt.Errorf("adjustment team code is required")
	}
	if a.Reason == "" {
		return fmt.Errorf("adjustment reason is required")
	}
	switch a.Category {
	case CategoryPenalty, CategoryReward, CategoryDisqualification:
	default:
		return fmt.Errorf("invalid adjustment category %q", a.Category)
	}

	return nil
}
