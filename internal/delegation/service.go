package delegation

import (
	"context"
	"fmt"

	"ms-ledger/internal/database"
	"ms-ledger/internal/lock"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
	"ms-ledger/internal/roster"

	"github.com/uptrace/bun"
)

type DBLayer interface {
	GetDelegation(ctx context.Context, eventID, delegator string) (*models.Delegation, bool, error)
	ListDelegations(ctx context.Context, eventID string) ([]models.Delegation, error)
	FindDelegator(ctx context.Context, eventID, delegate string) (string, bool, error)
	SaveDelegation(ctx context.Context, delegation models.Delegation) error
	DeleteDelegation(ctx context.Context, eventID, delegator string) error
}

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type Rosters interface {
	Membership(address string) roster.Membership
}

type KafkaPublisher interface {
	Reassigned(eventID string, result models.ReassignResult)
}

type DelegationService struct {
	Bun     *bun.DB
	DB      DBLayer
	Events  EventStore
	Rosters Rosters
	Lock    lock.Locker
	Kafka   KafkaPublisher
	Logger  *logger.Logger
}

func NewDelegationService(bunDB *bun.DB, db DBLayer, events EventStore, rosters Rosters, locker lock.Locker, publisher KafkaPublisher, log *logger.Logger) *DelegationService {
	return &DelegationService{Bun: bunDB, DB: db, Events: events, Rosters: rosters, Lock: locker, Kafka: publisher, Logger: log}
}

// Reassign re-points tickets the caller bought for others and optionally
// moves the caller's own ticket to a new address. Roster and delegation
// changes commit together or not at all.
func (s *DelegationService) Reassign(ctx context.Context, caller, eventID string, req models.ReassignRequest) (*models.ReassignResult, error) {
	if len(req.Updates) > models.MaxDelegates {
		return nil, fmt.Errorf("%d updates: %w", len(req.Updates), models.ErrTooManyDelegates)
	}

	var result models.ReassignResult
	err := lock.Guard(ctx, s.Lock, eventID, func(ctx context.Context) error {
		return database.WithTx(ctx, s.Bun, func(ctx context.Context) error {
			r, err := s.reassign(ctx, caller, eventID, req)
			if err != nil {
				return err
			}
			result = *r
			return nil
		})
	})
	if err != nil {
		s.Logger.Warn("LEDGER", fmt.Sprintf("Reassign by %s on %s rejected: %v", caller, eventID, err))
		return nil, err
	}

	s.Logger.LogLedger("REASSIGN", eventID, fmt.Sprintf("%s now %s, %d moved", caller, result.TicketAddress, len(result.Removed)))
	s.Kafka.Reassigned(eventID, result)
	return &result, nil
}

func (s *DelegationService) reassign(ctx context.Context, caller, eventID string, req models.ReassignRequest) (*models.ReassignResult, error) {
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	guests := s.Rosters.Membership(event.GuestRoster)

	callerWeight, ok, err := guests.MemberWeight(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", caller, models.ErrNoReservationFound)
	}

	delegation, _, err := s.DB.GetDelegation(ctx, eventID, caller)
	if err != nil {
		return nil, err
	}

	claimed := map[string]struct{}{}
	// checkFree fails if addr already holds a ticket or sits in another list.
	checkFree := func(addr string) error {
		if addr == "" {
			return fmt.Errorf("new address: %w", models.ErrInvalidAddress)
		}
		if _, dup := claimed[addr]; dup {
			return fmt.Errorf("%s used twice: %w", addr, models.ErrTicketAlreadyReserved)
		}
		claimed[addr] = struct{}{}
		if _, held, err := guests.MemberWeight(ctx, addr); err != nil {
			return err
		} else if held {
			return fmt.Errorf("%s: %w", addr, models.ErrTicketAlreadyReserved)
		}
		if holder, found, err := s.DB.FindDelegator(ctx, eventID, addr); err != nil {
			return err
		} else if found && holder != caller {
			return fmt.Errorf("%s: %w", addr, models.ErrDelegateAlreadyRegistered)
		}
		return nil
	}

	var (
		add    []models.Member
		remove []string
	)
	for _, u := range req.Updates {
		if !delegation.Contains(u.Old) {
			return nil, fmt.Errorf("%s: %w", u.Old, models.ErrDelegateNotFound)
		}
		if err := checkFree(u.New); err != nil {
			return nil, err
		}
		for i, d := range delegation.Delegates {
			if d == u.Old {
				delegation.Delegates[i] = u.New
			}
		}

		weight, held, err := guests.MemberWeight(ctx, u.Old)
		if err != nil {
			return nil, err
		}
		if held {
			add = append(add, models.Member{Address: u.New, Weight: weight})
			remove = append(remove, u.Old)
		}
	}

	owner := caller
	if req.NewTicketAddress != "" && req.NewTicketAddress != caller {
		if err := checkFree(req.NewTicketAddress); err != nil {
			return nil, err
		}
		// the target may have bought only for others; its list must survive
		if theirs, found, err := s.DB.GetDelegation(ctx, eventID, req.NewTicketAddress); err != nil {
			return nil, err
		} else if found && len(theirs.Delegates) > 0 {
			return nil, fmt.Errorf("%s already delegates tickets: %w", req.NewTicketAddress, models.ErrDelegateAlreadyRegistered)
		}
		owner = req.NewTicketAddress
		add = append(add, models.Member{Address: owner, Weight: callerWeight})
		remove = append(remove, caller)
	}

	if err := guests.UpdateMembers(ctx, add, remove); err != nil {
		return nil, err
	}

	if owner != caller {
		if err := s.DB.DeleteDelegation(ctx, eventID, caller); err != nil {
			return nil, err
		}
		delegation.Delegator = owner
	}
	if err := s.DB.SaveDelegation(ctx, *delegation); err != nil {
		return nil, err
	}

	if add == nil {
		add = []models.Member{}
	}
	if remove == nil {
		remove = []string{}
	}
	return &models.ReassignResult{
		TicketAddress: owner,
		Delegates:     delegation.Delegates,
		Added:         add,
		Removed:       remove,
	}, nil
}

// ClaimDelegated removes the caller from delegator's list. The ticket stays
// with the caller; the delegator can no longer re-point it.
func (s *DelegationService) ClaimDelegated(ctx context.Context, caller, eventID, delegator string) error {
	err := lock.Guard(ctx, s.Lock, eventID, func(ctx context.Context) error {
		return database.WithTx(ctx, s.Bun, func(ctx context.Context) error {
			if _, err := s.Events.GetEvent(ctx, eventID); err != nil {
				return err
			}
			delegation, _, err := s.DB.GetDelegation(ctx, eventID, delegator)
			if err != nil {
				return err
			}
			if !delegation.Contains(caller) {
				return fmt.Errorf("%s under %s: %w", caller, delegator, models.ErrDelegateNotFound)
			}
			kept := delegation.Delegates[:0]
			for _, d := range delegation.Delegates {
				if d != caller {
					kept = append(kept, d)
				}
			}
			delegation.Delegates = kept
			return s.DB.SaveDelegation(ctx, *delegation)
		})
	})
	if err != nil {
		return err
	}
	s.Logger.LogLedger("CLAIM_DELEGATED", eventID, fmt.Sprintf("%s left the list of %s", caller, delegator))
	return nil
}

// Delegation returns the delegates recorded for delegator.
func (s *DelegationService) Delegation(ctx context.Context, eventID, delegator string) (*models.Delegation, error) {
	if _, err := s.Events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	delegation, _, err := s.DB.GetDelegation(ctx, eventID, delegator)
	return delegation, err
}

func (s *DelegationService) Delegations(ctx context.Context, eventID string) ([]models.Delegation, error) {
	if _, err := s.Events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.ListDelegations(ctx, eventID)
}
