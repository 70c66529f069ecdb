package models

import "github.com/uptrace/bun"

// ReservationCounter counts reserved tickets of one tier.
type ReservationCounter struct {
	bun.BaseModel `bun:"table:reservation_counters"`

	EventID  string `bun:"event_id,pk" json:"event_id"`
	Weight   uint64 `bun:"weight,pk" json:"weight"`
	Reserved uint32 `bun:"reserved" json:"reserved"`
}

// WalletTally counts tickets of one tier admitted for one purchasing wallet.
type WalletTally struct {
	bun.BaseModel `bun:"table:wallet_tallies"`

	EventID   string `bun:"event_id,pk" json:"event_id"`
	Weight    uint64 `bun:"weight,pk" json:"weight"`
	Purchaser string `bun:"purchaser,pk" json:"purchaser"`
	Reserved  uint32 `bun:"reserved" json:"reserved"`
}

// UnitRequest asks for one ticket bound to TicketAddress, paid in Denom.
type UnitRequest struct {
	TicketAddress string `json:"ticket_address"`
	Denom         string `json:"denom"`
}

type TierGroup struct {
	Weight uint64        `json:"weight"`
	Units  []UnitRequest `json:"units"`
}

type PurchaseRequest struct {
	Groups []TierGroup `json:"groups"`
	Funds  []Coin      `json:"funds"`
}

type GroupResult struct {
	Weight    uint64   `json:"weight"`
	Requested int      `json:"requested"`
	Admitted  []string `json:"admitted"`
	Dropped   int      `json:"dropped"`
}

type PurchaseResult struct {
	EventID   string        `json:"event_id"`
	Groups    []GroupResult `json:"groups"`
	Fee       []Coin        `json:"fee"`
	Retained  []Coin        `json:"retained"`
	Refund    []Coin        `json:"refund"`
	Transfers []Transfer    `json:"transfers"`
}

type RefundRequest struct {
	Addresses []string `json:"addresses"`
}

type RefundResult struct {
	Refunded  []string   `json:"refunded"`
	Transfers []Transfer `json:"transfers"`
}
