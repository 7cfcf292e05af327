package syncop

import (
	"context"
	"fmt"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/localcache"
)

// Operation is one local-first mutation. The stages run strictly in order:
// local update, cache write + broadcast, remote call. Only the local update
// can abort the operation; everything after it degrades instead of failing.
type Operation struct {
	Name       string
	Collection collection.Name

	// LocalUpdate applies the mutation to in-memory state. An error here
	// means nothing happened anywhere.
	LocalUpdate func() error

	// CacheKey/CacheValue write the updated collection snapshot through the
	// cache store. Empty CacheKey skips the stage.
	CacheKey   string
	CacheValue any

	// RemoteCall pushes the change to the central store. A failure is
	// reported but never rolled back.
	RemoteCall func(ctx context.Context) error
}

// Result reports how far the operation got. Applied means local state (and
// cache) hold the change; Success additionally means the remote store has
// it.
type Result struct {
	Success bool
	Applied bool
	Err     error
}

// Runner executes Operations against one cache store and broadcaster.
type Runner struct {
	cache       *localcache.Store
	broadcaster *broadcast.Broadcaster
	logger      *logging.Logger
}

func NewRunner(cache *localcache.Store, broadcaster *broadcast.Broadcaster, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{cache: cache, broadcaster: broadcaster, logger: logger}
}

// Run executes op. It never panics outward and never rolls back a local
// update: a remote failure yields Result{Applied: true, Success: false} and
// the periodic reconcile owns eventual convergence.
func (r *Runner) Run(ctx context.Context, op Operation) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "sync operation panicked", "operation", op.Name, "panic", rec)
			result = Result{Err: fmt.Errorf("sync operation %s panicked: %v", op.Name, rec)}
		}
	}()

	if op.LocalUpdate != nil {
		if err := op.LocalUpdate(); err != nil {
			return Result{Err: err}
		}
	}
	result.Applied = true

	if op.CacheKey != "" && r.cache != nil {
		if err := r.cache.SetValue(op.CacheKey, op.CacheValue); err != nil {
			r.logger.WarnContext(ctx, "cache write-through failed", "operation", op.Name, "error", err)
		}

		if r.broadcaster != nil {
			payload, err := sonic.Marshal(op.CacheValue)
			if err == nil {
				err = r.broadcaster.DataUpdate(op.Collection, op.CacheKey, payload)
			}
			if err != nil {
				r.logger.WarnContext(ctx, "cross-context broadcast failed", "operation", op.Name, "error", err)
			}
		}
	}

	if op.RemoteCall != nil {
		if err := op.RemoteCall(ctx); err != nil {
			r.logger.WarnContext(ctx, "remote sync failed, keeping local state",
				"operation", op.Name,
				"collection", op.Collection,
				"error", err,
			)
			result.Err = err
			return result
		}
	}

	result.Success = true
	return result
}
