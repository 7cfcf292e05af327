package submission

import (
	"fmt"
	"time"
)

// Submission is a match result awaiting an admin decision. It exists only
// between submission and review: approval turns it into a Match, rejection
// discards it. Exactly one of the two ever happens.
type Submission struct {
	ID           string    `json:"id" validate:"required"`
	TournamentID string    `json:"tournamentId" validate:"required"`
	TeamCode     string    `json:"teamCode" validate:"required"`
	TeamName     string    `json:"teamName,omitempty"`
	Position     int       `json:"position" validate:"min=1"`
	Kills        int       `json:"kills" validate:"min=0"`
	Evidence     []string  `json:"evidence,omitempty"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

func (s Submission) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("submission id is required")
	}
	if s.TournamentID == "" {
		return fmt.Errorf("submission tournament id is required")
	}
	if s.TeamCode == "" {
		return fmt.Errorf("submission team code is required")
	}
	if s.Position < 1 {
		return fmt.Errorf("submission position must be >= 1")
	}
	if s.Kills < 0 {
		return fmt.Errorf("submission kills cannot be negative")
	}

	return nil
}
