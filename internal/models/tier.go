package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"
)

// Coin is an amount of a single denom, in the denom's smallest unit.
type Coin struct {
	Denom  string `json:"denom" yaml:"denom"`
	Amount uint64 `json:"amount" yaml:"amount"`
}

// AccessKind names the variant of an AccessPolicy. The set is closed.
type AccessKind string

const (
	AccessSingleSegment AccessKind = "single_segment"
	AccessAnyOfSegments AccessKind = "any_of_segments"
	AccessAllOfSegments AccessKind = "all_of_segments"
)

// AccessPolicy decides which segments a tier may check into.
//
//	single_segment   SegmentID only
//	any_of_segments  any subset of SegmentIDs, as claimed by the guest
//	all_of_segments  every id in SegmentIDs, regardless of the claim
type AccessPolicy struct {
	Kind       AccessKind `json:"kind" yaml:"kind"`
	SegmentID  uint64     `json:"segment_id,omitempty" yaml:"segment_id,omitempty"`
	SegmentIDs []uint64   `json:"segment_ids,omitempty" yaml:"segment_ids,omitempty"`
}

func SingleSegment(id uint64) AccessPolicy {
	return AccessPolicy{Kind: AccessSingleSegment, SegmentID: id}
}

func AnyOfSegments(ids ...uint64) AccessPolicy {
	return AccessPolicy{Kind: AccessAnyOfSegments, SegmentIDs: ids}
}

func AllOfSegments(ids ...uint64) AccessPolicy {
	return AccessPolicy{Kind: AccessAllOfSegments, SegmentIDs: ids}
}

// ReferencedSegments lists every segment id the policy mentions.
func (p AccessPolicy) ReferencedSegments() ([]uint64, error) {
	switch p.Kind {
	case AccessSingleSegment:
		return []uint64{p.SegmentID}, nil
	case AccessAnyOfSegments, AccessAllOfSegments:
		if len(p.SegmentIDs) == 0 {
			return nil, fmt.Errorf("%s policy needs at least one segment: %w", p.Kind, ErrBadTierParams)
		}
		return p.SegmentIDs, nil
	default:
		return nil, fmt.Errorf("unknown access policy %q: %w", p.Kind, ErrBadTierParams)
	}
}

func (p AccessPolicy) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *AccessPolicy) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = AccessPolicy{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into AccessPolicy", src)
	}
}

// Tier is a guest category of an event, keyed by its weight.
type Tier struct {
	bun.BaseModel `bun:"table:tiers"`

	EventID       string       `bun:"event_id,pk" json:"event_id" yaml:"-"`
	Weight        uint64       `bun:"weight,pk" json:"weight" yaml:"weight"`
	Label         string       `bun:"label,notnull" json:"label" yaml:"label"`
	MaxPerWallet  uint32       `bun:"max_per_wallet" json:"max_per_wallet" yaml:"max_per_wallet"`
	TotalCapacity uint32       `bun:"total_capacity" json:"total_capacity" yaml:"total_capacity"`
	Prices        []Coin       `bun:"prices" json:"prices" yaml:"prices"`
	Access        AccessPolicy `bun:"access" json:"access" yaml:"access"`
}

// PaymentOption is the public view of what a tier accepts.
type PaymentOption struct {
	Weight  uint64 `json:"weight"`
	Label   string `json:"label"`
	Options []Coin `json:"options"`
}
