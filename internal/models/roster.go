package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Member is an address with a weight inside a roster group.
type Member struct {
	Address string `json:"address" yaml:"address"`
	Weight  uint64 `json:"weight" yaml:"weight"`
}

type RosterGroup struct {
	bun.BaseModel `bun:"table:roster_groups"`

	Address   string    `bun:"address,pk" json:"address"`
	Label     string    `bun:"label,notnull" json:"label"`
	Admin     string    `bun:"admin,notnull" json:"admin"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type RosterMember struct {
	bun.BaseModel `bun:"table:roster_members"`

	GroupAddress string `bun:"group_address,pk" json:"group_address"`
	Address      string `bun:"address,pk" json:"address"`
	Weight       uint64 `bun:"weight" json:"weight"`
}
