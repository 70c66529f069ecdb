package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"ms-ledger/internal/checkin/signature"
	"ms-ledger/internal/database"
	"ms-ledger/internal/lock"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
	"ms-ledger/internal/roster"

	"github.com/uptrace/bun"
)

type DBLayer interface {
	CheckedIn(ctx context.Context, eventID, ticket string, segmentID uint64) (bool, error)
	InsertRecords(ctx context.Context, records []models.AttendanceRecord) error
	ListRecords(ctx context.Context, eventID, ticket string) ([]models.AttendanceRecord, error)
}

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetTier(ctx context.Context, eventID string, weight uint64) (*models.Tier, error)
	ListSegments(ctx context.Context, eventID string, descending bool) ([]models.Segment, error)
}

type Rosters interface {
	Membership(address string) roster.Membership
}

type KafkaPublisher interface {
	CheckedIn(result models.CheckInResult)
}

// Verifier checks a claim signature over ticketAddress and payload.
type Verifier func(ticketAddress string, payload, sig, pubKey []byte) bool

type CheckInService struct {
	Bun     *bun.DB
	DB      DBLayer
	Events  EventStore
	Rosters Rosters
	Lock    lock.Locker
	Kafka   KafkaPublisher
	Logger  *logger.Logger
	Verify  Verifier
	Now     func() time.Time
}

func NewCheckInService(bunDB *bun.DB, db DBLayer, events EventStore, rosters Rosters, locker lock.Locker, publisher KafkaPublisher, log *logger.Logger) *CheckInService {
	return &CheckInService{
		Bun:     bunDB,
		DB:      db,
		Events:  events,
		Rosters: rosters,
		Lock:    locker,
		Kafka:   publisher,
		Logger:  log,
		Verify:  signature.VerifyClaim,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// CheckIn validates a guest's signed claim on behalf of usher and marks
// attendance for every segment the tier's access policy grants. Either all
// marks are written or none.
func (s *CheckInService) CheckIn(ctx context.Context, usher, eventID string, claim models.CheckInClaim) (*models.CheckInResult, error) {
	var result *models.CheckInResult
	err := lock.Guard(ctx, s.Lock, eventID, func(ctx context.Context) error {
		return database.WithTx(ctx, s.Bun, func(ctx context.Context) error {
			var err error
			result, err = s.checkIn(ctx, usher, eventID, claim)
			return err
		})
	})
	if err != nil {
		s.Logger.Warn("CHECKIN", fmt.Sprintf("Check-in of %s at %s by %s rejected: %v", claim.TicketAddress, eventID, usher, err))
		return nil, err
	}

	s.Logger.LogLedger("CHECKIN", eventID, fmt.Sprintf("%s checked into %v by %s", result.TicketAddress, result.Segments, usher))
	s.Kafka.CheckedIn(*result)
	return result, nil
}

func (s *CheckInService) checkIn(ctx context.Context, usher, eventID string, claim models.CheckInClaim) (*models.CheckInResult, error) {
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if _, ok, err := s.Rosters.Membership(event.UsherRoster).MemberWeight(ctx, usher); err != nil {
		return nil, err
	} else if !ok {
		s.Logger.LogSecurity("CHECKIN", fmt.Sprintf("%s is not an usher of %s", usher, eventID))
		return nil, models.ErrNotAnUsher
	}

	if !s.Verify(claim.TicketAddress, claim.SignedPayload, claim.Signature, claim.PublicKey) {
		s.Logger.LogSecurity("CHECKIN", fmt.Sprintf("bad signature for %s at %s", claim.TicketAddress, eventID))
		return nil, models.ErrSignatureInvalid
	}

	var payload models.CheckInPayload
	if err := json.Unmarshal(claim.SignedPayload, &payload); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidCheckInPayload)
	}

	weight, ok, err := s.Rosters.Membership(event.GuestRoster).MemberWeight(ctx, claim.TicketAddress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", claim.TicketAddress, models.ErrUnknownGuestTier)
	}
	tier, err := s.Events.GetTier(ctx, eventID, weight)
	if errors.Is(err, models.ErrUnknownTier) {
		return nil, fmt.Errorf("%s has weight %d: %w", claim.TicketAddress, weight, models.ErrUnknownGuestTier)
	}
	if err != nil {
		return nil, err
	}

	segments, err := Grant(tier.Access, payload.SegmentIDs)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	records := make([]models.AttendanceRecord, 0, len(segments))
	for _, id := range segments {
		done, err := s.DB.CheckedIn(ctx, eventID, claim.TicketAddress, id)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, fmt.Errorf("%s segment %d: %w", claim.TicketAddress, id, models.ErrAlreadyCheckedIn)
		}
		records = append(records, models.AttendanceRecord{
			EventID:       eventID,
			TicketAddress: claim.TicketAddress,
			SegmentID:     id,
			CheckedIn:     true,
			Usher:         usher,
			CheckedInAt:   now,
		})
	}
	if err := s.DB.InsertRecords(ctx, records); err != nil {
		return nil, err
	}

	return &models.CheckInResult{
		EventID:       eventID,
		TicketAddress: claim.TicketAddress,
		Weight:        weight,
		Segments:      segments,
		Usher:         usher,
		CheckedInAt:   now,
	}, nil
}

// Grant resolves which segments a claim marks under policy. Claimed ids are
// deduplicated.
//
//	single_segment   the claim must name exactly the policy segment
//	any_of_segments  every claimed id must be allowed; each is marked
//	all_of_segments  the claim is ignored; every policy segment is marked
func Grant(policy models.AccessPolicy, claimed []uint64) ([]uint64, error) {
	claimed = dedupe(claimed)

	switch policy.Kind {
	case models.AccessSingleSegment:
		if len(claimed) == 0 {
			return nil, fmt.Errorf("no segment claimed: %w", models.ErrSegmentNotPermitted)
		}
		for _, id := range claimed {
			if id != policy.SegmentID {
				return nil, fmt.Errorf("segment %d: %w", id, models.ErrSegmentNotPermitted)
			}
		}
		return []uint64{policy.SegmentID}, nil

	case models.AccessAnyOfSegments:
		if len(claimed) == 0 {
			return nil, fmt.Errorf("no segment claimed: %w", models.ErrSegmentNotPermitted)
		}
		allowed := make(map[uint64]bool, len(policy.SegmentIDs))
		for _, id := range policy.SegmentIDs {
			allowed[id] = true
		}
		for _, id := range claimed {
			if !allowed[id] {
				return nil, fmt.Errorf("segment %d: %w", id, models.ErrSegmentNotPermitted)
			}
		}
		return claimed, nil

	case models.AccessAllOfSegments:
		return dedupe(policy.SegmentIDs), nil

	default:
		return nil, fmt.Errorf("access policy %q: %w", policy.Kind, models.ErrBadTierParams)
	}
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ---------------- QUERIES ----------------

// Attendance reports whether ticket checked into one segment. A ticket
// without a record is reported as not checked in.
func (s *CheckInService) Attendance(ctx context.Context, eventID, ticket string, segmentID uint64) (*models.AttendanceStatus, error) {
	if _, err := s.Events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	done, err := s.DB.CheckedIn(ctx, eventID, ticket, segmentID)
	if err != nil {
		return nil, err
	}
	return &models.AttendanceStatus{SegmentID: segmentID, CheckedIn: done}, nil
}

// TicketAttendance lists the ticket's status for every segment of the event.
func (s *CheckInService) TicketAttendance(ctx context.Context, eventID, ticket string) ([]models.AttendanceStatus, error) {
	if _, err := s.Events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	segments, err := s.Events.ListSegments(ctx, eventID, false)
	if err != nil {
		return nil, err
	}
	records, err := s.DB.ListRecords(ctx, eventID, ticket)
	if err != nil {
		return nil, err
	}

	marked := make(map[uint64]bool, len(records))
	for _, r := range records {
		marked[r.SegmentID] = r.CheckedIn
	}
	out := make([]models.AttendanceStatus, len(segments))
	for i, seg := range segments {
		out[i] = models.AttendanceStatus{SegmentID: seg.Ordinal, CheckedIn: marked[seg.Ordinal]}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })
	return out, nil
}
