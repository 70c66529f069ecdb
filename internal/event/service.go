package event

import (
	"context"
	"fmt"
	"time"

	"ms-ledger/internal/database"
	"ms-ledger/internal/lock"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
	"ms-ledger/internal/registry"
	"ms-ledger/internal/roster"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DBLayer interface {
	CreateEvent(ctx context.Context, event models.Event, tiers []models.Tier, segments []models.Segment, counters []models.ReservationCounter) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListTiers(ctx context.Context, eventID string, descending bool) ([]models.Tier, error)
	GetTier(ctx context.Context, eventID string, weight uint64) (*models.Tier, error)
	ListSegments(ctx context.Context, eventID string, descending bool) ([]models.Segment, error)
	GetSegment(ctx context.Context, eventID string, ordinal uint64) (*models.Segment, error)
	GetCounter(ctx context.Context, eventID string, weight uint64) (*models.ReservationCounter, error)
	ListBalances(ctx context.Context, eventID string) ([]models.EventBalance, error)
	SaveBalances(ctx context.Context, balances []models.EventBalance) error
}

type RosterStore interface {
	Instantiate(ctx context.Context, address, label, admin string, members []models.Member) error
	Membership(address string) roster.Membership
}

type EventPublisher interface {
	Initialized(event models.Event)
	Transfers(transfers []models.Transfer)
}

type EventService struct {
	Bun            *bun.DB
	DB             DBLayer
	Rosters        RosterStore
	Lock           lock.Locker
	Kafka          EventPublisher
	Logger         *logger.Logger
	LicenseAddress string
	Now            func() time.Time
}

func NewEventService(bunDB *bun.DB, db DBLayer, rosters RosterStore, locker lock.Locker, publisher EventPublisher, log *logger.Logger, licenseAddress string) *EventService {
	return &EventService{
		Bun:            bunDB,
		DB:             db,
		Rosters:        rosters,
		Lock:           locker,
		Kafka:          publisher,
		Logger:         log,
		LicenseAddress: licenseAddress,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

// ---------------- SETUP ----------------

// Initialize validates the setup and persists a new event in one
// transaction. Nothing is written when validation fails.
func (s *EventService) Initialize(ctx context.Context, caller string, req models.InitializeRequest) (*models.Event, error) {
	if err := registry.Validate(req); err != nil {
		s.Logger.Warn("LEDGER", fmt.Sprintf("Rejected setup from %s: %v", caller, err))
		return nil, err
	}

	curator := req.Curator
	if curator == "" {
		curator = caller
	}
	if curator == "" {
		return nil, fmt.Errorf("curator: %w", models.ErrInvalidAddress)
	}

	id := uuid.NewString()
	usherAddr, guestAddr := roster.GroupAddresses(id)
	event := models.Event{
		ID:             id,
		Curator:        curator,
		UsherRoster:    usherAddr,
		GuestRoster:    guestAddr,
		LicenseAddress: s.LicenseAddress,
		CreatedAt:      s.Now(),
	}
	tiers, segments := registry.Prepare(id, req)

	err := database.WithTx(ctx, s.Bun, func(ctx context.Context) error {
		if err := s.DB.CreateEvent(ctx, event, tiers, segments, registry.Counters(tiers)); err != nil {
			return err
		}
		if err := s.Rosters.Instantiate(ctx, usherAddr, "ushers "+id, curator, req.UsherAdmins); err != nil {
			return err
		}
		return s.Rosters.Instantiate(ctx, guestAddr, "guests "+id, curator, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("initialize event: %w", err)
	}

	s.Logger.LogLedger("INITIALIZE", id, fmt.Sprintf("%d tiers, %d segments, curator %s", len(tiers), len(segments), curator))
	s.Kafka.Initialized(event)
	return &event, nil
}

// ---------------- QUERIES ----------------

func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.DB.GetEvent(ctx, id)
}

func (s *EventService) Tiers(ctx context.Context, eventID string, descending bool) ([]models.Tier, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.ListTiers(ctx, eventID, descending)
}

func (s *EventService) Tier(ctx context.Context, eventID string, weight uint64) (*models.Tier, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.GetTier(ctx, eventID, weight)
}

// PaymentOptions lists what each tier accepts, by ascending weight.
func (s *EventService) PaymentOptions(ctx context.Context, eventID string) ([]models.PaymentOption, error) {
	tiers, err := s.Tiers(ctx, eventID, false)
	if err != nil {
		return nil, err
	}
	out := make([]models.PaymentOption, len(tiers))
	for i, t := range tiers {
		out[i] = models.PaymentOption{Weight: t.Weight, Label: t.Label, Options: t.Prices}
	}
	return out, nil
}

func (s *EventService) Segments(ctx context.Context, eventID string, descending bool) ([]models.Segment, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.ListSegments(ctx, eventID, descending)
}

func (s *EventService) Segment(ctx context.Context, eventID string, ordinal uint64) (*models.Segment, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.GetSegment(ctx, eventID, ordinal)
}

func (s *EventService) Counter(ctx context.Context, eventID string, weight uint64) (*models.ReservationCounter, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.GetCounter(ctx, eventID, weight)
}

func (s *EventService) Balances(ctx context.Context, eventID string) ([]models.EventBalance, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.ListBalances(ctx, eventID)
}

// IsUsher reports whether addr is on the event's usher roster.
func (s *EventService) IsUsher(ctx context.Context, eventID, addr string) (bool, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return false, err
	}
	_, ok, err := s.Rosters.Membership(event.UsherRoster).MemberWeight(ctx, addr)
	return ok, err
}

// UpdateUshers changes the usher roster. Only the curator may call it.
func (s *EventService) UpdateUshers(ctx context.Context, caller, eventID string, add []models.Member, remove []string) error {
	return lock.Guard(ctx, s.Lock, eventID, func(ctx context.Context) error {
		return database.WithTx(ctx, s.Bun, func(ctx context.Context) error {
			event, err := s.DB.GetEvent(ctx, eventID)
			if err != nil {
				return err
			}
			if caller != event.Curator {
				s.Logger.LogSecurity("USHERS", fmt.Sprintf("%s is not curator of %s", caller, eventID))
				return models.ErrNotCurator
			}
			return s.Rosters.Membership(event.UsherRoster).UpdateMembers(ctx, add, remove)
		})
	})
}

// ---------------- PROCEEDS ----------------

// ClaimProceeds sends every retained balance to the curator and zeroes it.
func (s *EventService) ClaimProceeds(ctx context.Context, caller, eventID string) ([]models.Transfer, error) {
	var transfers []models.Transfer

	err := lock.Guard(ctx, s.Lock, eventID, func(ctx context.Context) error {
		return database.WithTx(ctx, s.Bun, func(ctx context.Context) error {
			event, err := s.DB.GetEvent(ctx, eventID)
			if err != nil {
				return err
			}
			if caller != event.Curator {
				s.Logger.LogSecurity("PROCEEDS", fmt.Sprintf("%s is not curator of %s", caller, eventID))
				return models.ErrNotCurator
			}

			balances, err := s.DB.ListBalances(ctx, eventID)
			if err != nil {
				return err
			}
			var amount []models.Coin
			for i := range balances {
				if balances[i].Amount == 0 {
					continue
				}
				amount = append(amount, models.Coin{Denom: balances[i].Denom, Amount: balances[i].Amount})
				balances[i].Amount = 0
			}
			if len(amount) == 0 {
				return nil
			}
			if err := s.DB.SaveBalances(ctx, balances); err != nil {
				return err
			}
			transfers = []models.Transfer{{EventID: eventID, To: event.Curator, Amount: amount, Reason: models.TransferProceeds}}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if len(transfers) > 0 {
		s.Logger.LogLedger("PROCEEDS", eventID, fmt.Sprintf("swept %v to curator", transfers[0].Amount))
		s.Kafka.Transfers(transfers)
	}
	return transfers, nil
}
