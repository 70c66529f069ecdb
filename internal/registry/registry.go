package registry

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"ms-ledger/internal/models"
)

// MaxTextLength bounds tier labels and segment descriptions.
const MaxTextLength = 128

// Validate checks a setup request before anything is written. The first
// violation found is returned.
func Validate(req models.InitializeRequest) error {
	if err := ValidateSegments(req.Segments); err != nil {
		return err
	}
	return ValidateTiers(req.Tiers, len(req.Segments))
}

// ValidateSegments checks each segment and the timeline order. Segments are
// checked in the order given; their position becomes their id.
func ValidateSegments(segments []models.Segment) error {
	for i, s := range segments {
		if utf8.RuneCountInString(s.Description) > MaxTextLength {
			return fmt.Errorf("segment %d: %w", i, models.ErrBadSegmentDescription)
		}
		if s.Start.After(s.End) {
			return fmt.Errorf("segment %d: %w", i, models.ErrInvalidSegmentDates)
		}
		if i > 0 && segments[i-1].End.After(s.Start) {
			return fmt.Errorf("segment %d starts before segment %d ends: %w", i, i-1, models.ErrOverlappingSegmentDates)
		}
	}
	return nil
}

// ValidateTiers checks tier parameters. segmentCount is the length of the
// timeline the access policies may reference.
func ValidateTiers(tiers []models.Tier, segmentCount int) error {
	weights := make(map[uint64]struct{}, len(tiers))
	for _, t := range tiers {
		if _, dup := weights[t.Weight]; dup {
			return fmt.Errorf("tier weight %d: %w", t.Weight, models.ErrDuplicateTierWeight)
		}
		weights[t.Weight] = struct{}{}

		denoms := make(map[string]struct{}, len(t.Prices))
		for _, p := range t.Prices {
			if _, dup := denoms[p.Denom]; dup {
				return fmt.Errorf("tier %d denom %q: %w", t.Weight, p.Denom, models.ErrDuplicateFeeDenom)
			}
			denoms[p.Denom] = struct{}{}
		}

		if t.MaxPerWallet > t.TotalCapacity {
			return fmt.Errorf("tier %d max per wallet %d above capacity %d: %w",
				t.Weight, t.MaxPerWallet, t.TotalCapacity, models.ErrBadTierParams)
		}
		if utf8.RuneCountInString(t.Label) > MaxTextLength {
			return fmt.Errorf("tier %d label too long: %w", t.Weight, models.ErrBadTierParams)
		}

		ids, err := t.Access.ReferencedSegments()
		if err != nil {
			return fmt.Errorf("tier %d: %w", t.Weight, err)
		}
		for _, id := range ids {
			if id >= uint64(segmentCount) {
				return fmt.Errorf("tier %d references segment %d: %w", t.Weight, id, models.ErrBadTierParams)
			}
		}
	}
	return nil
}

// Prepare stamps validated registries with the event id and segment
// ordinals, and returns tiers sorted by weight.
func Prepare(eventID string, req models.InitializeRequest) ([]models.Tier, []models.Segment) {
	tiers := make([]models.Tier, len(req.Tiers))
	copy(tiers, req.Tiers)
	for i := range tiers {
		tiers[i].EventID = eventID
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Weight < tiers[j].Weight })

	segments := make([]models.Segment, len(req.Segments))
	for i, s := range req.Segments {
		s.EventID = eventID
		s.Ordinal = uint64(i)
		segments[i] = s
	}
	return tiers, segments
}

// Counters returns a zeroed reservation counter for every tier.
func Counters(tiers []models.Tier) []models.ReservationCounter {
	out := make([]models.ReservationCounter, len(tiers))
	for i, t := range tiers {
		out[i] = models.ReservationCounter{EventID: t.EventID, Weight: t.Weight}
	}
	return out
}
