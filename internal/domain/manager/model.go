package manager

import (
	"fmt"
	"time"
)

// Manager is a tournament administrator identified by a unique access code.
// Suspension flips Active off; records are deactivated rather than deleted
// so the audit trail keeps resolving actor codes.
type Manager struct {
	AccessCode  string    `json:"accessCode" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Active      bool      `json:"active"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Key returns the manager's logical identifier inside the managers collection.
func (m Manager) Key() string {
	return m.AccessCode
}

func (m Manager) Validate() error {
	if m.AccessCode == "" {
		return fmt.Errorf("manager access code is required")
	}
	if m.Name == "" {
		return fmt.Errorf("manager name is required")
	}

	return nil
}
