package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"courier-dispatch/internal/logx"
)

// Record is one consumed Kafka message.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
}

// Header returns the value of a record header, or "" when absent.
func (r Record) Header(key string) string { return r.Headers[key] }

// RecordFunc processes one record. Returning a PermanentError skips the record;
// any other error ends the session so the record is redelivered.
type RecordFunc func(context.Context, Record) error

// Option adjusts the consumer group configuration.
type Option func(*sarama.Config)

// WithInitialOffset sets where a group with no committed offset starts reading.
func WithInitialOffset(offset int64) Option {
	return func(cfg *sarama.Config) { cfg.Consumer.Offsets.Initial = offset }
}

var newConsumerGroup = sarama.NewConsumerGroup

// retryPause is the wait between consume sessions after an error.
const retryPause = time.Second

// Consumer wraps a Sarama consumer group and feeds records to a RecordFunc.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler RecordFunc
	logger  logx.Logger
}

// NewConsumer creates a new Kafka consumer. It returns (nil, nil) when Kafka is not configured.
func NewConsumer(logger logx.Logger, brokers []string, groupID, topic string, h RecordFunc, opts ...Option) (*Consumer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" || strings.TrimSpace(groupID) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logx.Nop()
	}

	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	for _, opt := range opts {
		opt(cfg)
	}

	group, err := newConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		handler: h,
		logger: logger.With(
			logx.String("component", "kafka_consumer"),
			logx.String("topic", topic),
			logx.String("group", groupID),
		),
	}, nil
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}

	h := &groupHandler{c: c}

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("kafka consume error", logx.Err(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryPause):
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close closes the consumer group.
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	return c.group.Close()
}

type groupHandler struct{ c *Consumer }

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.c.logger.Debug("kafka session started", logx.String("member", sess.MemberID()))
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks records as consumed once handled or permanently failed.
// Any other handler error ends the session so the record is redelivered.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		rec := toRecord(msg)
		err := h.c.handler(sess.Context(), rec)
		if err == nil {
			sess.MarkMessage(msg, "")
			continue
		}

		var perm PermanentError
		if errors.As(err, &perm) {
			h.c.logger.Error("kafka record skipped",
				logx.Int("partition", int(rec.Partition)),
				logx.Int64("offset", rec.Offset),
				logx.Err(err),
			)
			sess.MarkMessage(msg, "")
			continue
		}
		h.c.logger.Warn("kafka record failed, will retry",
			logx.Int("partition", int(rec.Partition)),
			logx.Int64("offset", rec.Offset),
			logx.Err(err),
		)
		return err
	}
	return nil
}

func toRecord(msg *sarama.ConsumerMessage) Record {
	rec := Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
	}
	if len(msg.Headers) > 0 {
		rec.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			if h != nil {
				rec.Headers[string(h.Key)] = string(h.Value)
			}
		}
	}
	return rec
}
