// Package ledgertest wires an in-memory ledger for service tests.
package ledgertest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ms-ledger/internal/config"
	"ms-ledger/internal/database/dbtest"
	"ms-ledger/internal/event"
	eventdb "ms-ledger/internal/event/db"
	"ms-ledger/internal/kafka"
	"ms-ledger/internal/lock"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
	"ms-ledger/internal/roster"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const (
	License = "license-addr"
	Curator = "curator-addr"
	Usher   = "usher-addr"
)

var Topics = config.TopicConfig{
	Transfers:       "ledger.settlement.transfers",
	EventsCreated:   "ledger.events.initialized",
	TicketsReserved: "ledger.tickets.reserved",
	GuestsCheckedIn: "ledger.guests.checked_in",
	TicketsMoved:    "ledger.tickets.reassigned",
}

type Env struct {
	Bun      *bun.DB
	EventDB  *eventdb.DB
	Rosters  *roster.Store
	Lock     *lock.Local
	Producer *kafka.MemoryProducer
	Events   *kafka.Events
	Logger   *logger.Logger
	Service  *event.EventService
}

func New(t *testing.T) *Env {
	t.Helper()

	db := dbtest.New(t)
	env := &Env{
		Bun:      db,
		EventDB:  &eventdb.DB{Bun: db},
		Rosters:  roster.NewStore(db),
		Lock:     lock.NewLocal(),
		Producer: kafka.NewMemoryProducer(),
		Logger:   logger.Nop(),
	}
	env.Events = kafka.NewEvents(env.Producer, Topics, env.Logger)
	env.Service = event.NewEventService(db, env.EventDB, env.Rosters, env.Lock, env.Events, env.Logger, License)
	return env
}

// Segments builds back to back segments of one hour each.
func Segments(n int) []models.Segment {
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	out := make([]models.Segment, n)
	for i := range out {
		out[i] = models.Segment{
			Description: "stage",
			Start:       start.Add(time.Duration(i) * time.Hour),
			End:         start.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return out
}

// Tier builds a tier priced in a single denom with single segment access to 0.
func Tier(weight uint64, maxPerWallet, capacity uint32, denom string, price uint64) models.Tier {
	return models.Tier{
		Weight:        weight,
		Label:         "tier",
		MaxPerWallet:  maxPerWallet,
		TotalCapacity: capacity,
		Prices:        []models.Coin{{Denom: denom, Amount: price}},
		Access:        models.SingleSegment(0),
	}
}

// Initialize creates an event owned by Curator with Usher on the usher roster.
func (e *Env) Initialize(t *testing.T, tiers []models.Tier, segments []models.Segment) *models.Event {
	t.Helper()
	ev, err := e.Service.Initialize(context.Background(), Curator, models.InitializeRequest{
		UsherAdmins: []models.Member{{Address: Usher, Weight: 1}},
		Tiers:       tiers,
		Segments:    segments,
	})
	require.NoError(t, err)
	return ev
}

// Transfers decodes every transfer published so far.
func (e *Env) Transfers(t *testing.T) []models.Transfer {
	t.Helper()
	var out []models.Transfer
	for _, m := range e.Producer.Messages(Topics.Transfers) {
		var tr models.Transfer
		require.NoError(t, json.Unmarshal(m.Value, &tr))
		out = append(out, tr)
	}
	return out
}

// SetReserved overwrites a tier counter.
func (e *Env) SetReserved(t *testing.T, eventID string, weight uint64, reserved uint32) {
	t.Helper()
	require.NoError(t, e.EventDB.SetCounter(context.Background(), models.ReservationCounter{
		EventID: eventID, Weight: weight, Reserved: reserved,
	}))
}

// GuestWeight reads addr from the guest roster of ev.
func (e *Env) GuestWeight(t *testing.T, ev *models.Event, addr string) (uint64, bool) {
	t.Helper()
	w, ok, err := e.Rosters.Membership(ev.GuestRoster).MemberWeight(context.Background(), addr)
	require.NoError(t, err)
	return w, ok
}
