package auditlog

import (
	"fmt"
	"time"
)

// MaxEntries caps the audit log; the oldest entries drop first.
const MaxEntries = 1000

// Entry is one append-only audit record. The collection is held newest-first.
type Entry struct {
	ID           string         `json:"id" validate:"required"`
	Action       string         `json:"action" validate:"required"`
	Details      string         `json:"details,omitempty"`
	Actor        string         `json:"actor"`
	ActorRole    string         `json:"actorRole"`
	TournamentID string         `json:"tournamentId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func (e Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("audit entry id is required")
	}
	if e.Action == "" {
		return fmt.Errorf("audit entry action is required")
	}

	return nil
}

// Prepend inserts entry at the head of entries and trims to MaxEntries.
func Prepend(entries []Entry, entry Entry) []Entry {
	out := make([]Entry, 0, len(entries)+1)
	out = append(out, entry)
	out = append(out, entries...)
	if len(out) > MaxEntries {
		out = out[:MaxEntries]
	}
	return out
}
