package models

import "github.com/uptrace/bun"

// MaxDelegates bounds a delegation list and a single reassign call.
const MaxDelegates = 10

// Delegation lists ticket addresses a wallet reserved on behalf of others.
type Delegation struct {
	bun.BaseModel `bun:"table:delegations"`

	EventID   string   `bun:"event_id,pk" json:"event_id"`
	Delegator string   `bun:"delegator,pk" json:"delegator"`
	Delegates []string `bun:"delegates" json:"delegates"`
}

// Contains reports whether addr is one of the delegates.
func (d *Delegation) Contains(addr string) bool {
	for _, a := range d.Delegates {
		if a == addr {
			return true
		}
	}
	return false
}

type DelegateUpdate struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type ReassignRequest struct {
	NewTicketAddress string           `json:"new_ticket_address,omitempty"`
	Updates          []DelegateUpdate `json:"updates"`
}

type ReassignResult struct {
	TicketAddress string   `json:"ticket_address"`
	Delegates     []string `json:"delegates"`
	Added         []Member `json:"added"`
	Removed       []string `json:"removed"`
}
