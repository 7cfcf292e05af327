package events

import (
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/logging"
)

// Event names follow <collection><Verb>, e.g. "teamsCreated". Scoped
// subjects prefix the tournament id; the bare event name is kept as a
// legacy alias so older clients keep receiving traffic.

func Created(c collection.Name) string { return string(c) + "Created" }
func Updated(c collection.Name) string { return string(c) + "Updated" }
func Deleted(c collection.Name) string { return string(c) + "Deleted" }

// All enumerates every event name across the known collections.
func All() []string {
	names := collection.All()
	out := make([]string, 0, len(names)*3)
	for _, c := range names {
		out = append(out, Created(c), Updated(c), Deleted(c))
	}
	return out
}

// Legacy bare-verb events carry no collection in the subject; the payload's
// singular entity key identifies it instead.
var legacyVerbs = map[string]string{
	"created": "Created",
	"updated": "Updated",
	"deleted": "Deleted",
}

// ScopedSubject builds the per-tournament subject for an event.
func ScopedSubject(tournamentID, event string) string {
	return "tournament." + tournamentID + "." + event
}

// eventFromSubject recovers the event name from either subject form.
func eventFromSubject(subject string) string {
	if idx := strings.LastIndexByte(subject, '.'); idx >= 0 {
		return subject[idx+1:]
	}
	return subject
}

// Handler receives the event name and the raw record payload.
type Handler func(event string, payload []byte)

type Config struct {
	URL           string
	Timeout       time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
}

func (cfg Config) withDefaults() Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	return cfg
}

// Channel is the push side of synchronization: a NATS connection scoped to
// one tournament at a time. Missed traffic while disconnected is recovered
// by the reconcile loops, so subscriptions are plain core NATS.
type Channel struct {
	conn   *nats.Conn
	logger *logging.Logger

	mu       sync.Mutex
	subs     []*nats.Subscription
	handlers map[string][]Handler
	joined   string
	onDown   func()
	onUp     func()
}

// Connect dials the event server. With RetryOnFailedConnect the initial
// dial succeeds even when the server is down; the app starts from cache
// and catches up once the connection lands.
func Connect(cfg Config, logger *logging.Logger) (*Channel, error) {
	if logger == nil {
		logger = logging.Default()
	}
	cfg = cfg.withDefaults()

	c := &Channel{
		logger:   logger,
		handlers: make(map[string][]Handler),
	}

	conn, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("event channel down", "error", err)
			c.mu.Lock()
			onDown := c.onDown
			c.mu.Unlock()
			if onDown != nil {
				onDown()
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("event channel restored", "server", nc.ConnectedUrl())
			c.mu.Lock()
			onUp := c.onUp
			c.mu.Unlock()
			if onUp != nil {
				onUp()
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	c.conn = conn
	return c, nil
}

// SetConnectionHooks registers callbacks for connection loss and recovery.
// The binder layer uses them to flag staleness and force a reconcile.
func (c *Channel) SetConnectionHooks(onDown, onUp func()) {
	c.mu.Lock()
	c.onDown = onDown
	c.onUp = onUp
	c.mu.Unlock()
}

// Live reports whether the connection is currently established.
func (c *Channel) Live() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// On registers a handler for an event name. Handlers run on the NATS
// delivery goroutine and must not block.
func (c *Channel) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

// Join subscribes to the tournament's scoped subjects plus the legacy
// unscoped aliases. Any previous join is torn down first.
func (c *Channel) Join(tournamentID string) error {
	c.Leave()

	c.mu.Lock()
	defer c.mu.Unlock()

	scoped, err := c.conn.Subscribe(ScopedSubject(tournamentID, ">"), c.dispatch)
	if err != nil {
		return err
	}
	c.subs = append(c.subs, scoped)

	for _, event := range All() {
		sub, subErr := c.conn.Subscribe(event, c.dispatch)
		if subErr != nil {
			return subErr
		}
		c.subs = append(c.subs, sub)
	}
	for verb := range legacyVerbs {
		sub, subErr := c.conn.Subscribe(verb, c.dispatch)
		if subErr != nil {
			return subErr
		}
		c.subs = append(c.subs, sub)
	}

	c.joined = tournamentID
	return nil
}

// Joined returns the tournament the channel is currently scoped to.
func (c *Channel) Joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// Leave drops every subscription from the current join.
func (c *Channel) Leave() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.joined = ""
	c.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}
}

// Publish emits an event on the scoped subject and its legacy alias. Used
// by the hub; clients only consume.
func (c *Channel) Publish(tournamentID, event string, payload []byte) error {
	if err := c.conn.Publish(ScopedSubject(tournamentID, event), payload); err != nil {
		return err
	}
	return c.conn.Publish(event, payload)
}

func (c *Channel) Close() {
	c.Leave()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Channel) dispatch(msg *nats.Msg) {
	event := resolveEvent(eventFromSubject(msg.Subject), msg.Data)
	if event == "" {
		c.logger.Warn("drop unattributable legacy event", "subject", msg.Subject)
		return
	}

	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[event]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(event, msg.Data)
	}
}

// resolveEvent maps a legacy bare verb onto the collection-scoped event name
// by inspecting the payload. Already-scoped names pass through untouched; a
// bare verb whose payload identifies no collection resolves to "".
func resolveEvent(event string, payload []byte) string {
	verb, legacy := legacyVerbs[event]
	if !legacy {
		return event
	}
	inferred, ok := InferCollection(payload)
	if !ok {
		return ""
	}
	return string(inferred) + verb
}
