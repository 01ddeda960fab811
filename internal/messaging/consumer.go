package messaging

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultGroupID is the consumer group of the processing worker.
const DefaultGroupID = "tradestream-workers"

// Consumer reads candidate messages from the ingestion topic as part of a
// consumer group. Offsets are committed explicitly, so a message is
// redelivered after a crash until its side effects are durable.
type Consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

// ConsumerOptions configures a Consumer. Zero values get defaults.
type ConsumerOptions struct {
	Brokers []string
	Topic   string
	GroupID string
	Logger  *zap.Logger
}

// NewConsumer creates a consumer-group reader on the ingestion topic.
func NewConsumer(opts ConsumerOptions) *Consumer {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.GroupID == "" {
		opts.GroupID = DefaultGroupID
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  opts.Brokers,
		Topic:    opts.Topic,
		GroupID:  opts.GroupID,
		MaxBytes: 1 << 20,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			opts.Logger.Error(fmt.Sprintf(msg, args...))
		}),
	})

	return &Consumer{reader: reader, logger: opts.Logger}
}

// Fetch blocks until the next message arrives. The message stays
// uncommitted until Commit is called with it.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

// Commit marks messages as processed for the consumer group.
func (c *Consumer) Commit(ctx context.Context, msgs ...kafka.Message) error {
	return c.reader.CommitMessages(ctx, msgs...)
}

// Close leaves the group and releases the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
