package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"tradestream/internal/domain"
	"tradestream/internal/observability"
)

const (
	// DefaultTopic is the candidate ingestion topic.
	DefaultTopic = "trade_ingestion"

	// DefaultPublishTimeout bounds a single synchronous publish.
	DefaultPublishTimeout = 5 * time.Second
)

// Producer publishes candidates to the ingestion topic.
type Producer struct {
	writer  *kafka.Writer
	logger  *zap.Logger
	timeout time.Duration
}

// ProducerOptions configures a Producer. Zero values get defaults.
type ProducerOptions struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewProducer creates a producer on the given brokers.
func NewProducer(opts ProducerOptions) *Producer {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPublishTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{}, // same tradeId -> same partition
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			opts.Logger.Error(fmt.Sprintf(msg, args...))
		}),
	}

	return &Producer{writer: writer, logger: opts.Logger, timeout: opts.Timeout}
}

// Publish sends one candidate, keyed by its tradeId. Blocks until the
// brokers acknowledge the write or the timeout elapses.
func (p *Producer) Publish(ctx context.Context, t *domain.Trade) error {
	data, err := EncodeCandidate(t)
	if err != nil {
		return fmt.Errorf("encode candidate %s v%d: %w", t.TradeID, t.Version, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.TradeID),
		Value: data,
	})
	if err != nil {
		observability.RecordPublish("error", time.Since(start).Seconds())
		return fmt.Errorf("publish candidate %s v%d: %w", t.TradeID, t.Version, err)
	}
	observability.RecordPublish("ok", time.Since(start).Seconds())

	p.logger.Debug("candidate published",
		zap.String("trade_id", t.TradeID),
		zap.Int("version", t.Version),
		zap.String("request_id", t.RequestID))
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
