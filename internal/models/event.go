package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event ties together the registries, rosters and counters of one ledger.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             string    `bun:"id,pk" json:"id"`
	Curator        string    `bun:"curator,notnull" json:"curator"`
	UsherRoster    string    `bun:"usher_roster,notnull" json:"usher_roster"`
	GuestRoster    string    `bun:"guest_roster,notnull" json:"guest_roster"`
	LicenseAddress string    `bun:"license_address,notnull" json:"license_address"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

// InitializeRequest is the setup input of a new event.
type InitializeRequest struct {
	Curator     string    `json:"curator,omitempty" yaml:"curator,omitempty"`
	UsherAdmins []Member  `json:"usher_admins" yaml:"usher_admins"`
	Tiers       []Tier    `json:"tiers" yaml:"tiers"`
	Segments    []Segment `json:"segments" yaml:"segments"`
}

// EventBalance is the net amount of one denom retained by an event.
type EventBalance struct {
	bun.BaseModel `bun:"table:event_balances"`

	EventID string `bun:"event_id,pk" json:"event_id"`
	Denom   string `bun:"denom,pk" json:"denom"`
	Amount  uint64 `bun:"amount" json:"amount"`
}

// Transfer is a fire-and-forget send instruction.
type Transfer struct {
	EventID string `json:"event_id"`
	To      string `json:"to"`
	Amount  []Coin `json:"amount"`
	Reason  string `json:"reason"`
}

const (
	TransferRefund   = "refund"
	TransferFee      = "license_fee"
	TransferProceeds = "proceeds"
)
