package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/events"
	"github.com/openbracket/tourneysync/internal/usecase"
)

const maxRequestBytes = 6 << 20

// EventPublisher pushes a mutation event to every connected client.
type EventPublisher interface {
	Publish(tournamentID, event string, payload []byte) error
}

// NopPublisher drops events. Used in tests and NATS-less dev runs.
type NopPublisher struct{}

func (NopPublisher) Publish(string, string, []byte) error { return nil }

type Handler struct {
	store  Store
	events EventPublisher
	logger *logging.Logger
}

func NewHandler(store Store, publisher EventPublisher, logger *logging.Logger) *Handler {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, events: publisher, logger: logger}
}

// recordIdent is the slice of any record the hub needs to route it. Teams
// and managers key by access code, everything else by id.
type recordIdent struct {
	ID           string `json:"id"`
	AccessCode   string `json:"accessCode"`
	TournamentID string `json:"tournamentId"`
}

func (ident recordIdent) key() string {
	if ident.AccessCode != "" {
		return ident.AccessCode
	}
	return ident.ID
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := parseCollection(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	records, err := h.store.List(ctx, c)
	if err != nil {
		h.logger.ErrorContext(ctx, "list records failed", "collection", c, "error", err)
		writeError(ctx, w, err)
		return
	}
	if records == nil {
		records = []json.RawMessage{}
	}

	writeJSON(ctx, w, http.StatusOK, map[string][]json.RawMessage{string(c): records})
}

func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := parseCollection(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	payload, ident, err := readRecord(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := h.store.Put(ctx, c, ident.key(), payload); err != nil {
		h.logger.ErrorContext(ctx, "create record failed", "collection", c, "id", ident.key(), "error", err)
		writeError(ctx, w, err)
		return
	}

	h.publishUpsert(ctx, c, events.Created(c), ident, payload)
	writeJSON(ctx, w, http.StatusCreated, json.RawMessage(payload))
}

func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := parseCollection(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))

	_, found, err := h.store.Get(ctx, c, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "lookup record failed", "collection", c, "id", id, "error", err)
		writeError(ctx, w, err)
		return
	}
	if !found {
		writeError(ctx, w, fmt.Errorf("%w: %s/%s", usecase.ErrNotFound, c, id))
		return
	}

	payload, ident, err := readRecord(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	// The path id wins over whatever the body claims.
	if err := h.store.Put(ctx, c, id, payload); err != nil {
		h.logger.ErrorContext(ctx, "update record failed", "collection", c, "id", id, "error", err)
		writeError(ctx, w, err)
		return
	}

	h.publishUpsert(ctx, c, events.Updated(c), ident, payload)
	writeJSON(ctx, w, http.StatusOK, json.RawMessage(payload))
}

func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := parseCollection(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))

	raw, found, err := h.store.Get(ctx, c, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "lookup record failed", "collection", c, "id", id, "error", err)
		writeError(ctx, w, err)
		return
	}
	if !found {
		writeError(ctx, w, fmt.Errorf("%w: %s/%s", usecase.ErrNotFound, c, id))
		return
	}

	if _, err := h.store.Delete(ctx, c, id); err != nil {
		h.logger.ErrorContext(ctx, "delete record failed", "collection", c, "id", id, "error", err)
		writeError(ctx, w, err)
		return
	}

	var ident recordIdent
	_ = sonic.Unmarshal(raw, &ident)
	h.publishDelete(ctx, c, ident.TournamentID, id)

	writeJSON(ctx, w, http.StatusOK, map[string]string{"id": id})
}

// ReconcileArchived upserts a batch of archived tournaments in one call.
// Reopened devices use it to push frozen results that never made it out.
func (h *Handler) ReconcileArchived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Tournaments []json.RawMessage `json:"tournaments"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(ctx, w, err)
		return
	}

	reconciled := 0
	for _, payload := range body.Tournaments {
		var ident recordIdent
		if err := sonic.Unmarshal(payload, &ident); err != nil || ident.ID == "" {
			continue
		}
		if err := h.store.Put(ctx, collection.Tournaments, ident.ID, payload); err != nil {
			h.logger.WarnContext(ctx, "archived tournament skipped", "id", ident.ID, "error", err)
			continue
		}
		h.publishUpsert(ctx, collection.Tournaments, events.Updated(collection.Tournaments), ident, payload)
		reconciled++
	}

	writeJSON(ctx, w, http.StatusOK, map[string]int{"reconciled": reconciled})
}

// Login resolves an access code against the manager table first, then teams.
// This is the fallback for devices whose local code tables miss the code.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Code     string `json:"code"`
		RoleHint string `json:"roleHint"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(ctx, w, err)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(body.Code))
	if code == "" {
		writeError(ctx, w, fmt.Errorf("%w: code is required", usecase.ErrInvalidInput))
		return
	}

	if body.RoleHint != usecase.RoleTeam {
		raw, found, err := h.store.Get(ctx, collection.Managers, code)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		if found {
			var m struct {
				AccessCode string `json:"accessCode"`
				Active     bool   `json:"active"`
			}
			if sonic.Unmarshal(raw, &m) == nil && m.Active {
				writeJSON(ctx, w, http.StatusOK, map[string]string{
					"role":       usecase.RoleManager,
					"identifier": m.AccessCode,
				})
				return
			}
		}
	}

	raw, found, err := h.store.Get(ctx, collection.Teams, code)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if found {
		var t recordIdent
		if sonic.Unmarshal(raw, &t) == nil {
			writeJSON(ctx, w, http.StatusOK, map[string]string{
				"role":         usecase.RoleTeam,
				"identifier":   t.AccessCode,
				"tournamentId": t.TournamentID,
			})
			return
		}
	}

	writeError(ctx, w, fmt.Errorf("%w: unknown access code", usecase.ErrUnauthorized))
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) publishUpsert(ctx context.Context, c collection.Name, event string, ident recordIdent, record []byte) {
	payload, err := events.EncodeUpsert(c, record)
	if err != nil {
		h.logger.WarnContext(ctx, "event payload encode failed", "event", event, "error", err)
		return
	}
	if err := h.events.Publish(tournamentScope(c, ident), event, payload); err != nil {
		h.logger.WarnContext(ctx, "event publish failed", "event", event, "error", err)
	}
}

func (h *Handler) publishDelete(ctx context.Context, c collection.Name, tournamentID, id string) {
	payload, err := events.EncodeDelete(c, id)
	if err != nil {
		h.logger.WarnContext(ctx, "event payload encode failed", "collection", c, "error", err)
		return
	}
	if c == collection.Tournaments {
		tournamentID = id
	}
	if err := h.events.Publish(tournamentID, events.Deleted(c), payload); err != nil {
		h.logger.WarnContext(ctx, "event publish failed", "collection", c, "error", err)
	}
}

func tournamentScope(c collection.Name, ident recordIdent) string {
	if c == collection.Tournaments {
		return ident.ID
	}
	return ident.TournamentID
}

func parseCollection(r *http.Request) (collection.Name, error) {
	c := collection.Name(strings.TrimSpace(r.PathValue("collection")))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown collection %q", usecase.ErrInvalidInput, string(c))
	}
	return c, nil
}

func readRecord(r *http.Request) ([]byte, recordIdent, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return nil, recordIdent{}, fmt.Errorf("%w: read body: %v", usecase.ErrInvalidInput, err)
	}

	var ident recordIdent
	if err := sonic.Unmarshal(payload, &ident); err != nil {
		return nil, recordIdent{}, fmt.Errorf("%w: record must be a JSON object", usecase.ErrInvalidInput)
	}
	if ident.key() == "" {
		return nil, recordIdent{}, fmt.Errorf("%w: record is missing its id", usecase.ErrInvalidInput)
	}
	return payload, ident, nil
}

func decodeBody(r *http.Request, out any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", usecase.ErrInvalidInput, err)
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed JSON body", usecase.ErrInvalidInput)
	}
	return nil
}
