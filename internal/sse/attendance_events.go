package sse

import (
	"context"
	"encoding/json"
	"sync"

	"ms-ledger/internal/kafka"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
)

// AttendanceEmitter fans check-ins out to the SSE clients watching an event.
type AttendanceEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan models.CheckInResult
	log     *logger.Logger
}

func NewAttendanceEmitter(log *logger.Logger) *AttendanceEmitter {
	return &AttendanceEmitter{clients: make(map[string][]chan models.CheckInResult), log: log}
}

// Subscribe registers a client for eventID until ctx is done, after which
// the returned channel is closed.
func (e *AttendanceEmitter) Subscribe(ctx context.Context, eventID string) <-chan models.CheckInResult {
	ch := make(chan models.CheckInResult, 16)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, ch)
	}()
	return ch
}

// Emit delivers a check-in to every subscriber of its event. Slow clients
// whose buffer is full miss the message.
func (e *AttendanceEmitter) Emit(result models.CheckInResult) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.clients[result.EventID] {
		select {
		case ch <- result:
		default:
			e.log.Warn("SSE", "Dropped check-in for slow client of event "+result.EventID)
		}
	}
}

// HandleMessage decodes a checked-in Kafka message and emits it.
func (e *AttendanceEmitter) HandleMessage(msg kafka.Message) {
	var result models.CheckInResult
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		e.log.Error("SSE", "Failed to decode check-in message: "+err.Error())
		return
	}
	e.Emit(result)
}

func (e *AttendanceEmitter) remove(eventID string, ch chan models.CheckInResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, c := range clients {
		if c == ch {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

func (e *AttendanceEmitter) ClientCount(eventID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}

// Tee forwards every message to next and emits those published to topic.
// It feeds the stream directly when no Kafka consumer runs.
type Tee struct {
	Next    kafka.Publisher
	Topic   string
	Emitter *AttendanceEmitter
}

func (t *Tee) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := t.Next.Publish(ctx, topic, key, value)
	if topic == t.Topic {
		t.Emitter.HandleMessage(kafka.Message{Topic: topic, Key: key, Value: value})
	}
	return err
}

func (t *Tee) Close() error {
	return t.Next.Close()
}
