// Package app wires configuration into the two runnable surfaces: the sync
// client and the hub server.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openbracket/tourneysync/internal/config"
	"github.com/openbracket/tourneysync/internal/hub"
	"github.com/openbracket/tourneysync/internal/platform/id"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/platform/resilience"
	"github.com/openbracket/tourneysync/internal/sync/binder"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/events"
	"github.com/openbracket/tourneysync/internal/sync/localcache"
	"github.com/openbracket/tourneysync/internal/sync/remote"
	"github.com/openbracket/tourneysync/internal/sync/syncop"
	"github.com/openbracket/tourneysync/internal/usecase"
)

// Client is the assembled sync side: cache, gateway, push channel, binders
// and the services on top of them.
type Client struct {
	Cache       *localcache.Store
	Broadcaster *broadcast.Broadcaster
	Channel     *events.Channel
	Gateway     *remote.Gateway
	Binders     *binder.Manager

	Tournaments *usecase.TournamentService
	Teams       *usecase.TeamService
	Submissions *usecase.SubmissionService
	Adjustments *usecase.AdjustmentService
	Managers    *usecase.ManagerService
	Audit       *usecase.AuditService
	Standings   *usecase.StandingsService
	Auth        *usecase.AuthService

	logger *logging.Logger
}

func NewClient(cfg config.Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Default()
	}

	cache, err := localcache.Open(cfg.CacheDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}

	gateway := remote.NewGateway(remote.Config{
		BaseURL: cfg.HubBaseURL,
		Timeout: cfg.HubTimeout,
		Logger:  logger,
		Breaker: resilience.BreakerConfig{
			Enabled:          cfg.HubCircuitEnabled,
			FailureThreshold: cfg.HubCircuitFailureCount,
			OpenTimeout:      cfg.HubCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.HubCircuitHalfOpenMaxReq,
		},
	})

	channel, err := events.Connect(events.Config{
		URL:           cfg.NATSURL,
		Timeout:       cfg.NATSTimeout,
		ReconnectWait: cfg.NATSReconnectWait,
		MaxReconnects: cfg.NATSMaxReconnects,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect event channel: %w", err)
	}

	broadcaster := broadcast.New(logger)

	binders, err := binder.NewManager(binder.ManagerConfig{
		Deps: binder.Deps{
			Cache:       cache,
			Gateway:     gateway,
			Broadcaster: broadcaster,
			Logger:      logger,
		},
		Channel:           channel,
		ReconcileInterval: cfg.ReconcileInterval,
		PoolSize:          cfg.ReconcilePoolSize,
	})
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("build binders: %w", err)
	}

	runner := syncop.NewRunner(cache, broadcaster, logger)
	ids := id.NewRandomGenerator()

	c := &Client{
		Cache:       cache,
		Broadcaster: broadcaster,
		Channel:     channel,
		Gateway:     gateway,
		Binders:     binders,
		logger:      logger,
	}

	c.Audit = usecase.NewAuditService(binders, runner, gateway, ids, logger)
	c.Tournaments = usecase.NewTournamentService(binders, runner, gateway, broadcaster, ids, c.Audit, logger)
	c.Teams = usecase.NewTeamService(binders, runner, gateway, broadcaster, ids, c.Audit, logger)
	c.Submissions = usecase.NewSubmissionService(binders, runner, gateway, ids, c.Audit, logger)
	c.Adjustments = usecase.NewAdjustmentService(binders, runner, gateway, ids, c.Audit, logger)
	c.Managers = usecase.NewManagerService(binders, runner, gateway, ids, c.Audit, logger)
	c.Standings = usecase.NewStandingsService(binders)
	c.Auth = usecase.NewAuthService(binders, gateway, logger)

	return c, nil
}

// Start hydrates local state and begins the sync loops. Archived tournaments
// that never reached the hub are pushed as part of startup.
func (c *Client) Start(ctx context.Context) {
	c.Binders.Start(ctx)
	c.Tournaments.ReconcileArchived(ctx)
}

func (c *Client) Stop() {
	c.Binders.Stop()
	c.Channel.Close()
	if err := c.Broadcaster.Close(); err != nil {
		c.logger.Warn("broadcaster close failed", "error", err)
	}
}

// NewHubServer builds the hub's HTTP server over Postgres, running schema
// migrations first. The returned cleanup closes the store and the event
// connection.
func NewHubServer(cfg config.Config, logger *logging.Logger) (*http.Server, func(), error) {
	if logger == nil {
		logger = logging.Default()
	}

	if err := hub.Migrate(cfg.DBURL); err != nil {
		return nil, nil, err
	}

	store, err := hub.OpenPostgres(cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}

	channel, err := events.Connect(events.Config{
		URL:           cfg.NATSURL,
		Timeout:       cfg.NATSTimeout,
		ReconnectWait: cfg.NATSReconnectWait,
		MaxReconnects: cfg.NATSMaxReconnects,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("connect event channel: %w", err)
	}

	handler := hub.NewHandler(store, channel, logger)
	router := hub.NewRouter(handler, logger, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		channel.Close()
		_ = store.Close()
		return nil, nil, fmt.Errorf("http server addr cannot be empty")
	}

	cleanup := func() {
		channel.Close()
		if err := store.Close(); err != nil {
			logger.Warn("record store close failed", "error", err)
		}
	}
	return server, cleanup, nil
}
