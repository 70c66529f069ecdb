package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ms-ledger/internal/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher writes one keyed message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

type Producer struct {
	Writer *kafka.Writer
	log    *logger.Logger
}

// NewProducer builds a writer that picks the topic per message. Messages
// with the same key land on the same partition.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer, log: log}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.log.LogKafka("PUBLISH", topic, key)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// PublishJSON marshals v and publishes it.
func PublishJSON(ctx context.Context, p Publisher, topic, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}
	return p.Publish(ctx, topic, key, value)
}

// LogProducer stands in for Kafka when it is disabled: messages are only
// logged.
type LogProducer struct {
	log *logger.Logger
}

func NewLogProducer(log *logger.Logger) *LogProducer {
	return &LogProducer{log: log}
}

func (p *LogProducer) Publish(_ context.Context, topic, key string, value []byte) error {
	p.log.Debug("KAFKA", fmt.Sprintf("[DISABLED] %s %s %s", topic, key, value))
	return nil
}

func (p *LogProducer) Close() error { return nil }

// Message is a published record kept by MemoryProducer.
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// MemoryProducer keeps published messages in order. Handlers subscribed with
// Subscribe see each message after it is stored.
type MemoryProducer struct {
	mu       sync.Mutex
	messages []Message
	subs     []func(Message)
}

func NewMemoryProducer() *MemoryProducer {
	return &MemoryProducer{}
}

func (p *MemoryProducer) Publish(_ context.Context, topic, key string, value []byte) error {
	msg := Message{Topic: topic, Key: key, Value: append([]byte(nil), value...)}

	p.mu.Lock()
	p.messages = append(p.messages, msg)
	subs := append([]func(Message){}, p.subs...)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
	return nil
}

func (p *MemoryProducer) Subscribe(fn func(Message)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// Messages returns the messages published to topic.
func (p *MemoryProducer) Messages(topic string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (p *MemoryProducer) Close() error { return nil }
