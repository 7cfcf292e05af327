package match

import (
	"fmt"
	"time"
)

// Status is the approval state of a submitted match result.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Match is one scored game result for a team. Score is derived from kills
// and the placement multiplier in effect at approval time; it is stored,
// not recomputed, so later multiplier changes never rewrite history.
type Match struct {
	ID           string     `json:"id" validate:"required"`
	TournamentID string     `json:"tournamentId" validate:"required"`
	TeamCode     string     `json:"teamCode" validate:"required"`
	Position     int        `json:"position" validate:"min=1"`
	Kills        int        `json:"kills" validate:"min=0"`
	Score        float64    `json:"score"`
	Status       Status     `json:"status"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
}

func (m Match) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	if m.TournamentID == "" {
		return fmt.Errorf("match tournament id is required")
	}
	if m.TeamCode == "" {
		return fmt.Errorf("match team code is required")
	}
	if m.Position < 1 {
		return fmt.Errorf("match position must be >= 1")
	}
	if m.Kills < 0 {
		return fmt.Errorf("match kills cannot be negative")
	}
	switch m.Status {
	case StatusPending, StatusApproved, StatusRejected:
	default:
		return fmt.Errorf("invalid match status %q", m.Status)
	}

	return nil
}

// MultiplierTable maps a finishing position to its kill-point multiplier.
// Positions beyond the table fall back to the multiplier of the highest
// mapped position at or below them, ultimately to the table minimum.
type MultiplierTable map[int]float64

// DefaultMultipliers returns the standard placement table: winning lobbies
// amplify kill points, bottom placements count kills at face value.
func DefaultMultipliers() MultiplierTable {
	return MultiplierTable{
		1:  2.0,
		2:  1.8,
		3:  1.6,
		4:  1.4,
		5:  1.2,
		6:  1.0,
		7:  1.0,
		8:  1.0,
		9:  1.0,
		10: 1.0,
	}
}

// Multiplier resolves the multiplier for a position, walking down to the
// nearest mapped position so sparse override tables behave sanely.
func (t MultiplierTable) Multiplier(position int) float64 {
	if len(t) == 0 {
		return 1.0
	}
	if m, ok := t[position]; ok {
		return m
	}
	for p := position - 1; p >= 1; p-- {
		if m, ok := t[p]; ok {
			return m
		}
	}
	return 1.0
}

// ComputeScore derives a match score from kills and finishing position.
func ComputeScore(kills, position int, table MultiplierTable) float64 {
	if kills < 0 {
		kills = 0
	}
	return float64(kills) * table.Multiplier(position)
}
