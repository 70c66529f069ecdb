package reservation

import (
	"context"
	"fmt"

	"ms-ledger/internal/config"
	"ms-ledger/internal/database"
	"ms-ledger/internal/lock"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
	"ms-ledger/internal/roster"
	"ms-ledger/internal/settlement"

	"github.com/uptrace/bun"
)

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetTier(ctx context.Context, eventID string, weight uint64) (*models.Tier, error)
	GetCounter(ctx context.Context, eventID string, weight uint64) (*models.ReservationCounter, error)
	SetCounter(ctx context.Context, counter models.ReservationCounter) error
	CreditBalances(ctx context.Context, eventID string, coins []models.Coin) error
}

type DBLayer interface {
	GetTally(ctx context.Context, eventID string, weight uint64, purchaser string) (*models.WalletTally, error)
	SaveTally(ctx context.Context, tally models.WalletTally) error
}

type DelegationStore interface {
	GetDelegation(ctx context.Context, eventID, delegator string) (*models.Delegation, bool, error)
	FindDelegator(ctx context.Context, eventID, delegate string) (string, bool, error)
	SaveDelegation(ctx context.Context, delegation models.Delegation) error
}

type Rosters interface {
	Membership(address string) roster.Membership
}

type KafkaPublisher interface {
	Reserved(result models.PurchaseResult)
	Transfers(transfers []models.Transfer)
}

type ReservationService struct {
	Bun         *bun.DB
	Events      EventStore
	DB          DBLayer
	Delegations DelegationStore
	Rosters     Rosters
	Lock        lock.Locker
	Kafka       KafkaPublisher
	Logger      *logger.Logger
	Refunds     RefundPolicy
	// Atomicity is config.AtomicityBatch or config.AtomicityGroup.
	Atomicity string
}

func NewReservationService(bunDB *bun.DB, events EventStore, db DBLayer, delegations DelegationStore, rosters Rosters,
	locker lock.Locker, publisher KafkaPublisher, log *logger.Logger, atomicity string) *ReservationService {
	return &ReservationService{
		Bun:         bunDB,
		Events:      events,
		DB:          db,
		Delegations: delegations,
		Rosters:     rosters,
		Lock:        locker,
		Kafka:       publisher,
		Logger:      log,
		Refunds:     NoopRefundPolicy{},
		Atomicity:   atomicity,
	}
}

// purchase carries the state of one batch across its tier groups.
type purchase struct {
	event     *models.Event
	purchaser string
	purse     *settlement.Purse
	seen      map[string]struct{}
	result    models.PurchaseResult
}

// Purchase admits the batch group by group out of one shared pool of funds.
//
// In batch mode any failure rolls back the whole batch and nothing is
// transferred. In group mode each tier group commits on its own; on failure
// the groups committed so far stay, their fee and the unspent funds are still
// transferred, and the partial result is returned with the error.
func (s *ReservationService) Purchase(ctx context.Context, purchaser, eventID string, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	if purchaser == "" {
		return nil, fmt.Errorf("purchaser: %w", models.ErrInvalidAddress)
	}
	purse, err := settlement.NewPurse(req.Funds)
	if err != nil {
		return nil, err
	}

	p := &purchase{
		purchaser: purchaser,
		purse:     purse,
		seen:      map[string]struct{}{},
		result:    models.PurchaseResult{EventID: eventID, Groups: []models.GroupResult{}},
	}

	var groupErr error
	err = lock.Guard(ctx, s.Lock, eventID, func(ctx context.Context) error {
		event, err := s.Events.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		p.event = event

		if s.Atomicity == config.AtomicityGroup {
			groupErr = s.purchaseByGroup(ctx, p, req.Groups)
			return nil
		}
		return database.WithTx(ctx, s.Bun, func(ctx context.Context) error {
			for _, group := range req.Groups {
				if err := s.admitGroup(ctx, p, group); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		s.Logger.Warn("LEDGER", fmt.Sprintf("Purchase by %s on %s rejected: %v", purchaser, eventID, err))
		return nil, err
	}

	s.settle(p)
	if len(p.result.Groups) > 0 {
		s.Kafka.Reserved(p.result)
	}
	if groupErr != nil {
		s.Logger.Warn("LEDGER", fmt.Sprintf("Purchase by %s on %s stopped after %d groups: %v", purchaser, eventID, len(p.result.Groups), groupErr))
		return &p.result, groupErr
	}
	return &p.result, nil
}

func (s *ReservationService) purchaseByGroup(ctx context.Context, p *purchase, groups []models.TierGroup) error {
	for _, group := range groups {
		snapshot, err := settlement.NewPurse(p.purse.Remaining())
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(p.seen))
		for k := range p.seen {
			seen[k] = struct{}{}
		}
		committed := p.result

		err = database.WithTx(ctx, s.Bun, func(ctx context.Context) error {
			return s.admitGroup(ctx, p, group)
		})
		if err != nil {
			p.purse, p.seen, p.result = snapshot, seen, committed
			return err
		}
	}
	return nil
}

// admitGroup runs one tier group inside the caller's transaction.
func (s *ReservationService) admitGroup(ctx context.Context, p *purchase, group models.TierGroup) error {
	eventID := p.event.ID

	tier, err := s.Events.GetTier(ctx, eventID, group.Weight)
	if err != nil {
		return err
	}
	counter, err := s.Events.GetCounter(ctx, eventID, group.Weight)
	if err != nil {
		return err
	}

	var admissible uint32
	if tier.TotalCapacity > counter.Reserved {
		admissible = tier.TotalCapacity - counter.Reserved
	}
	units := group.Units
	if uint64(len(units)) > uint64(admissible) {
		units = units[:admissible]
	}

	for _, u := range units {
		if u.TicketAddress == "" {
			return fmt.Errorf("ticket address: %w", models.ErrInvalidAddress)
		}
	}

	outcome, err := settlement.Settle(p.purse, tier.Prices, units)
	if err != nil {
		return err
	}

	// only units settlement admitted can collide; skipped ones reserve nothing
	guests := s.Rosters.Membership(p.event.GuestRoster)
	admitted := make([]string, len(outcome.Admitted))
	for i, idx := range outcome.Admitted {
		addr := units[idx].TicketAddress
		if _, dup := p.seen[addr]; dup {
			return fmt.Errorf("ticket %s requested twice: %w", addr, models.ErrTicketAlreadyReserved)
		}
		p.seen[addr] = struct{}{}

		if _, held, err := guests.MemberWeight(ctx, addr); err != nil {
			return err
		} else if held {
			return fmt.Errorf("ticket %s: %w", addr, models.ErrTicketAlreadyReserved)
		}
		admitted[i] = addr
	}

	if len(admitted) > 0 {
		count := uint32(len(admitted))

		tally, err := s.DB.GetTally(ctx, eventID, tier.Weight, p.purchaser)
		if err != nil {
			return err
		}
		if uint64(tally.Reserved)+uint64(count) > uint64(tier.MaxPerWallet) {
			return fmt.Errorf("tier %d: %d held + %d new > %d: %w",
				tier.Weight, tally.Reserved, count, tier.MaxPerWallet, models.ErrCapacityExceeded)
		}
		tally.Reserved += count
		if err := s.DB.SaveTally(ctx, *tally); err != nil {
			return err
		}

		counter.Reserved += count
		if err := s.Events.SetCounter(ctx, *counter); err != nil {
			return err
		}

		members := make([]models.Member, len(admitted))
		for i, addr := range admitted {
			members[i] = models.Member{Address: addr, Weight: tier.Weight}
		}
		if err := guests.UpdateMembers(ctx, members, nil); err != nil {
			return err
		}

		if err := s.recordDelegates(ctx, p, admitted); err != nil {
			return err
		}
		if err := s.Events.CreditBalances(ctx, eventID, outcome.Retained); err != nil {
			return err
		}
	}

	if p.result.Fee, err = settlement.Merge(p.result.Fee, outcome.Fee); err != nil {
		return err
	}
	if p.result.Retained, err = settlement.Merge(p.result.Retained, outcome.Retained); err != nil {
		return err
	}
	p.result.Groups = append(p.result.Groups, models.GroupResult{
		Weight:    group.Weight,
		Requested: len(group.Units),
		Admitted:  admitted,
		Dropped:   len(group.Units) - len(admitted),
	})
	return nil
}

// recordDelegates appends tickets bought for other addresses to the
// purchaser's delegation list.
func (s *ReservationService) recordDelegates(ctx context.Context, p *purchase, admitted []string) error {
	var delegated []string
	for _, addr := range admitted {
		if addr != p.purchaser {
			delegated = append(delegated, addr)
		}
	}
	if len(delegated) == 0 {
		return nil
	}

	eventID := p.event.ID
	delegation, _, err := s.Delegations.GetDelegation(ctx, eventID, p.purchaser)
	if err != nil {
		return err
	}
	for _, addr := range delegated {
		if holder, found, err := s.Delegations.FindDelegator(ctx, eventID, addr); err != nil {
			return err
		} else if found && holder != p.purchaser {
			return fmt.Errorf("ticket %s: %w", addr, models.ErrDelegateAlreadyRegistered)
		}
		if !delegation.Contains(addr) {
			delegation.Delegates = append(delegation.Delegates, addr)
		}
	}
	if len(delegation.Delegates) > models.MaxDelegates {
		return fmt.Errorf("%d delegates: %w", len(delegation.Delegates), models.ErrTooManyDelegates)
	}
	return s.Delegations.SaveDelegation(ctx, *delegation)
}

// settle fills in the refund and the transfers for whatever committed.
func (s *ReservationService) settle(p *purchase) {
	p.result.Refund = p.purse.Remaining()
	p.result.Transfers = []models.Transfer{}

	if len(p.result.Refund) > 0 {
		p.result.Transfers = append(p.result.Transfers, models.Transfer{
			EventID: p.result.EventID, To: p.purchaser, Amount: p.result.Refund, Reason: models.TransferRefund,
		})
	}
	if len(p.result.Fee) > 0 {
		p.result.Transfers = append(p.result.Transfers, models.Transfer{
			EventID: p.result.EventID, To: p.event.LicenseAddress, Amount: p.result.Fee, Reason: models.TransferFee,
		})
	}

	var admitted int
	for _, g := range p.result.Groups {
		admitted += len(g.Admitted)
	}
	s.Logger.LogLedger("PURCHASE", p.result.EventID, fmt.Sprintf("%s admitted %d tickets, fee %v, refund %v",
		p.purchaser, admitted, p.result.Fee, p.result.Refund))
	s.Kafka.Transfers(p.result.Transfers)
}

// RefundUnclaimed hands the addresses to the configured RefundPolicy.
func (s *ReservationService) RefundUnclaimed(ctx context.Context, eventID string, req models.RefundRequest) (*models.RefundResult, error) {
	var result models.RefundResult
	err := lock.Guard(ctx, s.Lock, eventID, func(ctx context.Context) error {
		event, err := s.Events.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		return database.WithTx(ctx, s.Bun, func(ctx context.Context) error {
			result, err = s.Refunds.RefundUnclaimed(ctx, event, req.Addresses)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.Kafka.Transfers(result.Transfers)
	return &result, nil
}

// Tally returns how many tickets of a tier a wallet holds.
func (s *ReservationService) Tally(ctx context.Context, eventID string, weight uint64, purchaser string) (*models.WalletTally, error) {
	if _, err := s.Events.GetTier(ctx, eventID, weight); err != nil {
		return nil, err
	}
	return s.DB.GetTally(ctx, eventID, weight, purchaser)
}
