package kafka

import (
	"context"
	"fmt"
	"time"

	"ms-ledger/internal/config"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
)

const publishTimeout = 5 * time.Second

// Events publishes ledger messages after their transaction committed.
// Failures are logged, never returned: the ledger state is already final.
type Events struct {
	Publisher Publisher
	Topics    config.TopicConfig
	Logger    *logger.Logger
}

func NewEvents(p Publisher, topics config.TopicConfig, log *logger.Logger) *Events {
	return &Events{Publisher: p, Topics: topics, Logger: log}
}

func (e *Events) publish(topic, key string, v any) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := PublishJSON(ctx, e.Publisher, topic, key, v); err != nil {
		e.Logger.Error("KAFKA", fmt.Sprintf("Kafka publish error (%s, key %s): %v", topic, key, err))
	}
}

// Transfers emits one send instruction per transfer, keyed by recipient.
func (e *Events) Transfers(transfers []models.Transfer) {
	for _, t := range transfers {
		e.publish(e.Topics.Transfers, t.To, t)
	}
}

func (e *Events) Initialized(event models.Event) {
	e.publish(e.Topics.EventsCreated, event.ID, event)
}

func (e *Events) Reserved(result models.PurchaseResult) {
	e.publish(e.Topics.TicketsReserved, result.EventID, result)
}

func (e *Events) CheckedIn(result models.CheckInResult) {
	e.publish(e.Topics.GuestsCheckedIn, result.EventID, result)
}

// Reassigned carries the event id alongside the reassignment outcome.
type Reassigned struct {
	EventID string `json:"event_id"`
	models.ReassignResult
}

func (e *Events) Reassigned(eventID string, result models.ReassignResult) {
	e.publish(e.Topics.TicketsMoved, eventID, Reassigned{EventID: eventID, ReassignResult: result})
}
