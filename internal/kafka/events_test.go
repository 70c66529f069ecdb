package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ms-ledger/internal/config"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTopics() config.TopicConfig {
	return config.TopicConfig{
		Transfers:       "transfers",
		EventsCreated:   "created",
		TicketsReserved: "reserved",
		GuestsCheckedIn: "checked_in",
		TicketsMoved:    "moved",
	}
}

func TestEvents_Transfers(t *testing.T) {
	mem := NewMemoryProducer()
	events := NewEvents(mem, testTopics(), logger.Nop())

	events.Transfers([]models.Transfer{
		{EventID: "evt", To: "buyer", Amount: []models.Coin{{Denom: "x", Amount: 5}}, Reason: models.TransferRefund},
		{EventID: "evt", To: "license", Amount: []models.Coin{{Denom: "x", Amount: 30}}, Reason: models.TransferFee},
	})

	msgs := mem.Messages("transfers")
	require.Len(t, msgs, 2)
	assert.Equal(t, "buyer", msgs[0].Key)

	var got models.Transfer
	require.NoError(t, json.Unmarshal(msgs[1].Value, &got))
	assert.Equal(t, models.TransferFee, got.Reason)
	assert.Equal(t, uint64(30), got.Amount[0].Amount)
}

func TestEvents_Reassigned(t *testing.T) {
	mem := NewMemoryProducer()
	events := NewEvents(mem, testTopics(), logger.Nop())

	events.Reassigned("evt", models.ReassignResult{TicketAddress: "new"})

	msgs := mem.Messages("moved")
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"event_id":"evt","ticket_address":"new","delegates":null,"added":null,"removed":null}`, string(msgs[0].Value))
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, string, []byte) error {
	return errors.New("broker down")
}
func (failingPublisher) Close() error { return nil }

func TestEvents_PublishFailureIsSwallowed(t *testing.T) {
	events := NewEvents(failingPublisher{}, testTopics(), logger.Nop())
	assert.NotPanics(t, func() {
		events.CheckedIn(models.CheckInResult{EventID: "evt"})
	})
}

func TestMemoryProducer_Subscribe(t *testing.T) {
	mem := NewMemoryProducer()
	var seen []string
	mem.Subscribe(func(m Message) { seen = append(seen, m.Topic+"/"+m.Key) })

	require.NoError(t, mem.Publish(context.Background(), "a", "1", []byte("{}")))
	require.NoError(t, PublishJSON(context.Background(), mem, "b", "2", map[string]int{"n": 1}))

	assert.Equal(t, []string{"a/1", "b/2"}, seen)
	assert.Len(t, mem.Messages("b"), 1)
}
