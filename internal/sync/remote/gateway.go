package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/domain/tournament"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/platform/resilience"
	"github.com/openbracket/tourneysync/internal/sync/syncerr"
)

const maxResponseBytes = 6 << 20

// Session is the remote login fallback result.
type Session struct {
	Role         string `json:"role"`
	Identifier   string `json:"identifier"`
	TournamentID string `json:"tournamentId,omitempty"`
}

type Config struct {
	HTTPClient *http.Client
	BaseURL    string
	Timeout    time.Duration
	Logger     *logging.Logger
	Breaker    resilience.BreakerConfig
}

// Gateway is the only component that talks to the central store. One
// request per call, fixed timeout, no retries and no local persistence:
// callers own the degraded path when a call fails.
type Gateway struct {
	httpClient     *http.Client
	baseURL        string
	logger         *logging.Logger
	breaker        *resilience.Breaker
	breakerEnabled bool
}

func NewGateway(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	return &Gateway{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		logger:         logger,
		breaker:        resilience.NewBreaker(cfg.Breaker),
		breakerEnabled: cfg.Breaker.Enabled,
	}
}

// List fetches every record in the collection. The response keys the record
// array by the collection name.
func (g *Gateway) List(ctx context.Context, c collection.Name) ([]json.RawMessage, error) {
	raw, err := g.do(ctx, http.MethodGet, "/api/"+string(c), nil)
	if err != nil {
		return nil, err
	}

	var envelope map[string][]json.RawMessage
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, syncerr.NewRemoteError("decode list response: " + err.Error())
	}
	return envelope[string(c)], nil
}

func (g *Gateway) Create(ctx context.Context, c collection.Name, record any) error {
	_, err := g.do(ctx, http.MethodPost, "/api/"+string(c), record)
	return err
}

func (g *Gateway) Update(ctx context.Context, c collection.Name, id string, record any) error {
	_, err := g.do(ctx, http.MethodPut, "/api/"+string(c)+"/"+id, record)
	return err
}

func (g *Gateway) Delete(ctx context.Context, c collection.Name, id string) error {
	_, err := g.do(ctx, http.MethodDelete, "/api/"+string(c)+"/"+id, nil)
	return err
}

// ReconcileArchived pushes archived tournaments back to the remote store.
// Update first; a conflict means the record is gone remotely, so create it.
// Per-item failures are logged and skipped so one bad record cannot stall
// the rest of the pass.
func (g *Gateway) ReconcileArchived(ctx context.Context, tournaments []tournament.Tournament) {
	for _, t := range tournaments {
		if t.Status != tournament.StatusArchived {
			continue
		}

		err := g.Update(ctx, collection.Tournaments, t.ID, t)
		if err != nil && syncerr.IsConflict(err) {
			err = g.Create(ctx, collection.Tournaments, t)
		}
		if err != nil {
			g.logger.WarnContext(ctx, "archived tournament reconcile skipped",
				"tournament_id", t.ID,
				"error", err,
			)
		}
	}
}

// Login is the last-resort authentication fallback after the local code
// tables have been checked.
func (g *Gateway) Login(ctx context.Context, code, roleHint string) (Session, error) {
	raw, err := g.do(ctx, http.MethodPost, "/api/login", map[string]string{
		"code":     code,
		"roleHint": roleHint,
	})
	if err != nil {
		return Session{}, err
	}

	var session Session
	if err := sonic.Unmarshal(raw, &session); err != nil {
		return Session{}, syncerr.NewRemoteError("decode login response: " + err.Error())
	}
	return session, nil
}

func (g *Gateway) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if g.breakerEnabled {
		if err := g.breaker.Allow(); err != nil {
			g.logger.WarnContext(ctx, "remote call rejected by circuit breaker", "state", g.breaker.State())
			return nil, syncerr.NewRemoteError("central store temporarily unavailable")
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return nil, syncerr.NewRemoteError("encode request body: " + err.Error())
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, syncerr.NewRemoteError("build request: " + err.Error())
	}
	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.breaker.RecordFailure()
		return nil, syncerr.NewRemoteError("send request: " + err.Error())
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		g.breaker.RecordFailure()
		return nil, syncerr.NewRemoteError("read response body: " + readErr.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			g.breaker.RecordFailure()
		} else {
			g.breaker.RecordSuccess()
		}
		return nil, syncerr.NewRemoteStatusError(resp.StatusCode, abbreviate(raw))
	}

	g.breaker.RecordSuccess()
	return raw, nil
}

func abbreviate(raw []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(raw))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	if text == "" {
		return "request failed"
	}
	return text
}
