package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Segment is one stage of an event timeline. Ordinal is its position in the
// timeline and doubles as the segment id used by access policies.
type Segment struct {
	bun.BaseModel `bun:"table:segments"`

	EventID     string    `bun:"event_id,pk" json:"event_id" yaml:"-"`
	Ordinal     uint64    `bun:"ordinal,pk" json:"ordinal" yaml:"-"`
	Description string    `bun:"description,notnull" json:"description" yaml:"description"`
	Start       time.Time `bun:"start_at,notnull" json:"start" yaml:"start"`
	End         time.Time `bun:"end_at,notnull" json:"end" yaml:"end"`
}
