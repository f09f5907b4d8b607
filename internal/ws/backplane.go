package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"
)

// Envelope is a fan-out shared between nodes.
type Envelope struct {
	Origin  string          `json:"origin"`
	Targets []string        `json:"targets"`
	Frame   json.RawMessage `json:"frame"`
}

// Backplane carries fan-outs between hub processes sharing one message store.
type Backplane interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks, calling deliver for each envelope, until ctx is done.
	Subscribe(ctx context.Context, deliver func(Envelope)) error
}

// ValkeyBackplane implements Backplane with Valkey pub/sub.
type ValkeyBackplane struct {
	client  valkey.Client
	channel string
	log     *slog.Logger
}

func NewValkeyBackplane(addr, channel string, log *slog.Logger) (*ValkeyBackplane, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", addr, err)
	}
	return &ValkeyBackplane{client: client, channel: channel, log: log.With("component", "backplane")}, nil
}

func (b *ValkeyBackplane) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	cmd := b.client.B().Publish().Channel(b.channel).Message(string(data)).Build()
	return b.client.Do(ctx, cmd).Error()
}

func (b *ValkeyBackplane) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	b.log.Info("Subscribed to backplane", "channel", b.channel)
	err := b.client.Receive(ctx, b.client.B().Subscribe().Channel(b.channel).Build(), func(msg valkey.PubSubMessage) {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Message), &env); err != nil {
			b.log.Warn("Dropped malformed envelope", "error", err)
			return
		}
		deliver(env)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *ValkeyBackplane) Close() {
	b.client.Close()
}
