package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-ledger/internal/logger"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// NewConsumer creates a consumer for topic in groupID.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{reader: reader, log: log}
}

// Start hands every message to handler until ctx is cancelled. Read errors
// are logged and retried.
func (c *Consumer) Start(ctx context.Context, handler func(Message)) {
	topic := c.reader.Config().Topic
	c.log.LogKafka("CONSUME", topic, "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.LogKafka("CONSUME", topic, "consumer stopped")
				return
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading from %s: %v", topic, err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		handler(Message{Topic: msg.Topic, Key: string(msg.Key), Value: msg.Value})
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
