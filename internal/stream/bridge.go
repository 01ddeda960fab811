package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bridge subscribes to the outcome channel and rebroadcasts every
// payload into the local hub. It runs in the API process so WebSocket
// clients see outcomes produced by a worker in another process.
type Bridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	logger  *zap.Logger
}

// NewBridge creates a bridge from Redis channel to hub; an empty channel
// name selects DefaultChannel.
func NewBridge(client *redis.Client, hub *Hub, channel string, logger *zap.Logger) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{client: client, hub: hub, channel: channel, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription dies.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Confirm the subscription before reporting the bridge live.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("outcome bridge started", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("outcome subscription closed")
			}
			b.hub.Broadcast([]byte(msg.Payload))
		}
	}
}
