package binder

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/platform/resilience"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/events"
)

const (
	defaultReconcileInterval = 10 * time.Second
	defaultPoolSize          = 4
)

// Manager owns one binder per tracked collection and drives the shared
// reconcile schedule. One consolidated interval covers every collection;
// overlapping per-collection pollers are deliberately gone.
type Manager struct {
	binders     map[collection.Name]*Binder
	broadcaster *broadcast.Broadcaster
	channel     *events.Channel
	logger      *logging.Logger

	interval time.Duration
	pool     *ants.Pool
	flight   resilience.Group

	online atomic.Bool
	cancel context.CancelFunc
}

type ManagerConfig struct {
	Deps              Deps
	Channel           *events.Channel
	ReconcileInterval time.Duration
	PoolSize          int
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	m := &Manager{
		binders:     make(map[collection.Name]*Binder, len(collection.All())),
		broadcaster: cfg.Deps.Broadcaster,
		channel:     cfg.Channel,
		logger:      logger,
		interval:    interval,
		pool:        pool,
	}
	m.online.Store(true)

	for _, c := range collection.All() {
		m.binders[c] = New(c, cfg.Deps)
	}
	return m, nil
}

// Binder returns the binder for a collection.
func (m *Manager) Binder(c collection.Name) *Binder {
	return m.binders[c]
}

// Start hydrates every binder concurrently, wires push events and broadcast
// subscriptions, and kicks off the reconcile ticker. Load failures degrade
// to cached state and do not abort startup.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	var wg conc.WaitGroup
	for _, b := range m.binders {
		b := b
		wg.Go(func() {
			if err := b.Load(ctx); err != nil {
				m.logger.WarnContext(ctx, "binder started from cache only",
					"collection", string(b.Collection()),
					"error", err,
				)
			}
		})
	}
	wg.Wait()

	m.wireChannel()
	m.wireBroadcasts(ctx)

	go m.reconcileLoop(ctx)
}

// Stop closes every binder and releases the worker pool.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	for _, b := range m.binders {
		b.Close()
	}
	m.pool.Release()
}

// ReconcileAll schedules an immediate reconcile for every collection.
func (m *Manager) ReconcileAll(ctx context.Context) {
	for _, c := range collection.All() {
		m.scheduleReconcile(ctx, c)
	}
}

// Online reports whether the push channel is believed up. While offline the
// periodic reconcile is the only source of remote changes.
func (m *Manager) Online() bool {
	return m.online.Load()
}

func (m *Manager) wireChannel() {
	if m.channel == nil {
		return
	}

	for _, b := range m.binders {
		b := b
		for _, event := range []string{
			events.Created(b.Collection()),
			events.Updated(b.Collection()),
			events.Deleted(b.Collection()),
		} {
			m.channel.On(event, func(event string, payload []byte) {
				b.ApplyEvent(event, payload)
			})
		}
	}

	m.channel.SetConnectionHooks(
		func() { m.online.Store(false) },
		func() {
			m.online.Store(true)
			m.ReconcileAll(context.Background())
		},
	)
}

func (m *Manager) wireBroadcasts(ctx context.Context) {
	if m.broadcaster == nil {
		return
	}

	for _, b := range m.binders {
		b := b
		envelopes, err := m.broadcaster.Subscribe(ctx, broadcast.DataChannel(b.Collection()))
		if err != nil {
			m.logger.Warn("broadcast subscription failed",
				"collection", string(b.Collection()),
				"error", err,
			)
			continue
		}
		go func() {
			for env := range envelopes {
				b.ApplyBroadcast(env)
			}
		}()
	}
}

func (m *Manager) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range collection.All() {
				m.scheduleReconcile(ctx, c)
			}
		}
	}
}

// scheduleReconcile runs one reconcile on the shared pool, deduplicating
// concurrent requests for the same collection.
func (m *Manager) scheduleReconcile(ctx context.Context, c collection.Name) {
	b := m.binders[c]
	if b == nil || !b.Live() {
		return
	}

	err := m.pool.Submit(func() {
		_, _, _ = m.flight.Do(string(c), func() (any, error) {
			return nil, b.Reconcile(ctx)
		})
	})
	if err != nil {
		// Pool saturated; the next tick retries.
		m.logger.Debug("reconcile submit skipped", "collection", string(c), "error", err)
	}
}
