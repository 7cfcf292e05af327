package broadcast

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/logging"
)

// GlobalChannel carries session-level control messages every open context
// listens on.
const GlobalChannel = "global-sync"

// DataChannel names the per-collection channel data updates travel on.
func DataChannel(c collection.Name) string {
	return "data-sync-" + string(c)
}

type Type string

const (
	TypeDataUpdate    Type = "data-update"
	TypeEntityCreated Type = "entity-created"
	TypeEntityUpdated Type = "entity-updated"
	TypeEntityDeleted Type = "entity-deleted"

	// Session controls, global channel only.
	TypeTournamentTerminated Type = "tournament-terminated"
	TypeTournamentPurged     Type = "tournament-deleted-permanently"
	TypeTeamCreated          Type = "team-created"
)

// Envelope is the wire shape shared by every channel. Value is the full
// serialized record for entity messages and is absent for controls.
type Envelope struct {
	Type       Type            `json:"type"`
	Collection collection.Name `json:"collection,omitempty"`
	Key        string          `json:"key,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
}

// Broadcaster fans messages out to every subscriber of a channel within
// this process. Delivery is at-most-once and best-effort: a context that
// misses a message catches up on its next reconcile pass.
type Broadcaster struct {
	bus    *gochannel.GoChannel
	logger *logging.Logger
}

func New(logger *logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Default()
	}

	bus := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NopLogger{})

	return &Broadcaster{bus: bus, logger: logger}
}

// Publish sends env on channel. Marshal failures are the only error path;
// local fan-out itself does not fail.
func (b *Broadcaster) Publish(channel string, env Envelope) error {
	payload, err := sonic.Marshal(env)
	if err != nil {
		return err
	}
	return b.bus.Publish(channel, message.NewMessage(watermill.NewUUID(), payload))
}

// DataUpdate announces a fresh collection snapshot on the collection's data
// channel.
func (b *Broadcaster) DataUpdate(c collection.Name, key string, value []byte) error {
	return b.Publish(DataChannel(c), Envelope{
		Type:       TypeDataUpdate,
		Collection: c,
		Key:        key,
		Value:      value,
	})
}

// EntityEvent announces a single-record change on the collection's data
// channel.
func (b *Broadcaster) EntityEvent(typ Type, c collection.Name, key string, value []byte) error {
	return b.Publish(DataChannel(c), Envelope{
		Type:       typ,
		Collection: c,
		Key:        key,
		Value:      value,
	})
}

// Control sends a session-control message on the global channel.
func (b *Broadcaster) Control(typ Type, key string) error {
	return b.Publish(GlobalChannel, Envelope{Type: typ, Key: key})
}

// Subscribe returns a channel of decoded envelopes for the named channel.
// The subscription ends when ctx is cancelled or the broadcaster closes.
// Undecodable messages are logged and dropped.
func (b *Broadcaster) Subscribe(ctx context.Context, channel string) (<-chan Envelope, error) {
	messages, err := b.bus.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}

	out := make(chan Envelope, 16)
	go func() {
		defer close(out)
		for msg := range messages {
			var env Envelope
			if decodeErr := sonic.Unmarshal(msg.Payload, &env); decodeErr != nil {
				b.logger.Warn("drop malformed broadcast", "channel", channel, "error", decodeErr)
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (b *Broadcaster) Close() error {
	return b.bus.Close()
}
