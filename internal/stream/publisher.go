package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradestream/internal/domain"
	"tradestream/internal/observability"
)

// DefaultChannel is the Redis channel carrying outcome notices.
const DefaultChannel = "trade.outcomes"

// Notice is the wire form of one processed outcome.
type Notice struct {
	TradeID    string    `json:"tradeId"`
	Version    int       `json:"version"`
	RequestID  string    `json:"requestId"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EncodeNotice serializes an outcome record for subscribers.
func EncodeNotice(rec *domain.OutcomeRecord) ([]byte, error) {
	return json.Marshal(Notice{
		TradeID:    rec.TradeID,
		Version:    rec.Version,
		RequestID:  rec.RequestID,
		Outcome:    string(rec.Outcome),
		Reason:     rec.Reason,
		OccurredAt: rec.OccurredAt,
	})
}

// RedisPublisher pushes outcome notices onto a Redis channel. Implements
// the worker's notifier contract; publishing is fire-and-forget from the
// subscriber's point of view.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher creates a publisher on the given channel; an empty
// channel name selects DefaultChannel.
func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// PublishOutcome sends one notice. Subscriber count is not checked: a
// channel with no listeners swallows the publish, which is the intended
// best-effort behavior.
func (p *RedisPublisher) PublishOutcome(ctx context.Context, rec *domain.OutcomeRecord) error {
	data, err := EncodeNotice(rec)
	if err != nil {
		return fmt.Errorf("encode outcome notice: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish outcome to %s: %w", p.channel, err)
	}
	observability.RecordOutcomePublished()
	return nil
}

// HubNotifier feeds outcomes straight into a local hub, for
// single-binary mode where no Redis sits between worker and server.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier that broadcasts into hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// PublishOutcome broadcasts one notice to the hub's subscribers.
func (n *HubNotifier) PublishOutcome(_ context.Context, rec *domain.OutcomeRecord) error {
	data, err := EncodeNotice(rec)
	if err != nil {
		return fmt.Errorf("encode outcome notice: %w", err)
	}
	n.hub.Broadcast(data)
	observability.RecordOutcomePublished()
	return nil
}
