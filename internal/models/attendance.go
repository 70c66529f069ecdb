package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AttendanceRecord marks a ticket as checked into a segment. Rows are only
// ever inserted.
type AttendanceRecord struct {
	bun.BaseModel `bun:"table:attendance_records"`

	EventID       string    `bun:"event_id,pk" json:"event_id"`
	TicketAddress string    `bun:"ticket_address,pk" json:"ticket_address"`
	SegmentID     uint64    `bun:"segment_id,pk" json:"segment_id"`
	CheckedIn     bool      `bun:"checked_in" json:"checked_in"`
	Usher         string    `bun:"usher,notnull" json:"usher"`
	CheckedInAt   time.Time `bun:"checked_in_at,notnull" json:"checked_in_at"`
}

// CheckInClaim is what a guest presents to an usher. SignedPayload is the
// raw JSON the guest signed.
type CheckInClaim struct {
	TicketAddress string `json:"ticket_address"`
	SignedPayload []byte `json:"signed_payload"`
	Signature     []byte `json:"signature"`
	PublicKey     []byte `json:"public_key"`
}

// CheckInPayload is the body of CheckInClaim.SignedPayload.
type CheckInPayload struct {
	SegmentIDs []uint64 `json:"event_segment_ids"`
}

type CheckInResult struct {
	EventID       string    `json:"event_id"`
	TicketAddress string    `json:"ticket_address"`
	Weight        uint64    `json:"weight"`
	Segments      []uint64  `json:"segments"`
	Usher         string    `json:"usher"`
	CheckedInAt   time.Time `json:"checked_in_at"`
}

type AttendanceStatus struct {
	SegmentID uint64 `json:"segment_id"`
	CheckedIn bool   `json:"checked_in"`
}
