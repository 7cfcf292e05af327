// Package hub is the central authoritative record store. It serves the REST
// surface the client gateway talks to and publishes a push event for every
// mutation it accepts.
package hub

import (
	"context"
	"encoding/json"

	"github.com/openbracket/tourneysync/internal/domain/collection"
)

// Store persists raw records per collection. Writes are whole-record
// overwrites; there is no partial update and no version tracking.
type Store interface {
	List(ctx context.Context, c collection.Name) ([]json.RawMessage, error)
	Get(ctx context.Context, c collection.Name, id string) (json.RawMessage, bool, error)
	Put(ctx context.Context, c collection.Name, id string, payload []byte) error
	Delete(ctx context.Context, c collection.Name, id string) (bool, error)
}
