package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"

	"courier-dispatch/internal/logx"
)

var newSyncProducer = sarama.NewSyncProducer

// OriginHeader names the process that produced a record.
const OriginHeader = "origin"

// Header is a record header.
type Header struct {
	Key   string
	Value string
}

// Producer publishes records with a Sarama sync producer.
type Producer struct {
	p      sarama.SyncProducer
	logger logx.Logger
}

// NewProducer creates a producer. It returns (nil, nil) when no brokers are configured.
func NewProducer(logger logx.Logger, brokers []string, clientID string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	if logger == nil {
		logger = logx.Nop()
	}

	cfg := sarama.NewConfig()
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	p, err := newSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "kafka producer")
	}
	return NewProducerFrom(p, logger), nil
}

// NewProducerFrom wraps an existing sync producer.
func NewProducerFrom(p sarama.SyncProducer, logger logx.Logger) *Producer {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Producer{p: p, logger: logger.With(logx.String("component", "kafka_producer"))}
}

// Send writes one record and waits for the broker acknowledgement.
func (p *Producer) Send(ctx context.Context, topic string, key, value []byte, headers ...Header) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	for _, h := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(h.Key), Value: []byte(h.Value)})
	}
	partition, offset, err := p.p.SendMessage(msg)
	if err != nil {
		return errors.Wrapf(err, "kafka send to %s", topic)
	}
	p.logger.Debug("kafka record sent",
		logx.String("topic", topic),
		logx.Int("partition", int(partition)),
		logx.Int64("offset", offset),
	)
	return nil
}

// Topic binds the producer to one topic. The headers are attached to every record.
func (p *Producer) Topic(topic string, headers ...Header) *TopicWriter {
	return &TopicWriter{p: p, topic: topic, headers: headers}
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.p.Close()
}

// TopicWriter writes records to a fixed topic.
type TopicWriter struct {
	p       *Producer
	topic   string
	headers []Header
}

// Write sends one keyed record.
func (w *TopicWriter) Write(ctx context.Context, key, value []byte) error {
	return w.p.Send(ctx, w.topic, key, value, w.headers...)
}
