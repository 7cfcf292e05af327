package tournament

import (
	"fmt"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/adjustment"
	"github.com/openbracket/tourneysync/internal/domain/match"
	"github.com/openbracket/tourneysync/internal/domain/team"
)

// Format is the competition variant.
type Format string

const (
	FormatRoundBased   Format = "round-based"
	FormatBattleRoyale Format = "battle-royale"
)

// Status is the tournament lifecycle state. The only storage-level
// transition is active -> archived; completed is a display state set while
// still active.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Settings holds the per-tournament scoring and lobby configuration.
type Settings struct {
	LobbyCount     int                   `json:"lobbyCount" validate:"min=1"`
	SlotsPerLobby  int                   `json:"slotsPerLobby" validate:"min=1"`
	TotalMatches   int                   `json:"totalMatches" validate:"min=1"`
	CountedMatches int                   `json:"countedMatches" validate:"min=1"`
	Multipliers    match.MultiplierTable `json:"multipliers,omitempty"`
}

// ArchiveSnapshot freezes a tournament's operational records at termination
// time. Attached exactly once, on archive, and never mutated afterwards.
type ArchiveSnapshot struct {
	Teams       []team.Team             `json:"teams"`
	Matches     []match.Match           `json:"matches"`
	Adjustments []adjustment.Adjustment `json:"adjustments"`
	ArchivedAt  time.Time               `json:"archivedAt"`
}

// Tournament is the root entity owning teams, matches, submissions and
// adjustments via its id.
type Tournament struct {
	ID           string           `json:"id" validate:"required"`
	Name         string           `json:"name" validate:"required"`
	Format       Format           `json:"format"`
	Status       Status           `json:"status"`
	StartsAt     *time.Time       `json:"startsAt,omitempty"`
	EndsAt       *time.Time       `json:"endsAt,omitempty"`
	Settings     Settings         `json:"settings"`
	ManagerCodes []string         `json:"managerCodes,omitempty"`
	ArchivedData *ArchiveSnapshot `json:"archivedData,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

func (t Tournament) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tournament id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("tournament name is required")
	}
	switch t.Format {
	case FormatRoundBased, FormatBattleRoyale:
	default:
		return fmt.Errorf("invalid tournament format %q", t.Format)
	}
	switch t.Status {
	case StatusActive, StatusCompleted, StatusArchived:
	default:
		return fmt.Errorf("invalid tournament status %q", t.Status)
	}
	if t.Settings.CountedMatches > t.Settings.TotalMatches {
		return fmt.Errorf("counted matches (%d) cannot exceed total matches (%d)",
			t.Settings.CountedMatches, t.Settings.TotalMatches)
	}

	return nil
}

// CanTransition reports whether the status change keeps the one-way
// lifecycle: archived is terminal, and nothing ever returns to active from
// archived.
func (t Tournament) CanTransition(next Status) bool {
	if t.Status == next {
		return true
	}
	switch t.Status {
	case StatusArchived:
		return false
	case StatusActive:
		return next == StatusCompleted || next == StatusArchived
	case StatusCompleted:
		return next == StatusArchived || next == StatusActive
	default:
		return false
	}
}

// MultiplierTable returns the scoring table in effect for this tournament.
func (t Tournament) MultiplierTable() match.MultiplierTable {
	if len(t.Settings.Multipliers) > 0 {
		return t.Settings.Multipliers
	}
	return match.DefaultMultipliers()
}
