package team

import (
	"fmt"
	"time"
)

// Team is one competing squad inside a tournament. The access code doubles
// as the team's logical identifier and its login credential; it is unique
// across every team in the system, not just within one tournament.
type Team struct {
	AccessCode   string    `json:"accessCode" validate:"required"`
	TournamentID string    `json:"tournamentId" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	Lobby        int       `json:"lobby" validate:"min=1"`
	Slot         int       `json:"slot" validate:"min=1"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Key returns the team's logical identifier inside the teams collection.
func (t Team) Key() string {
	return t.AccessCode
}

func (t Team) Validate() error {
	if t.AccessCode == "" {
		return fmt.Errorf("team access code is required")
	}
	if t.TournamentID == "" {
		return fmt.Errorf("team tournament id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}
	if t.Lobby < 1 {
		return fmt.Errorf("team lobby must be >= 1")
	}
	if t.Slot < 1 {
		return fmt.Errorf("team slot must be >= 1")
	}

	return nil
}
