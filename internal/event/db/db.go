package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-ledger/internal/database"
	"ms-ledger/internal/models"
	"ms-ledger/internal/settlement"

	"github.com/uptrace/bun"
)

// DB stores events with their tier registry, segment timeline, counters and
// balances. Every method joins the transaction carried by ctx.
type DB struct {
	Bun *bun.DB
}

func (d *DB) conn(ctx context.Context) bun.IDB {
	return database.Conn(ctx, d.Bun)
}

// ---------------- SETUP ----------------

// CreateEvent inserts the event and both registries with zeroed counters.
func (d *DB) CreateEvent(ctx context.Context, event models.Event, tiers []models.Tier, segments []models.Segment, counters []models.ReservationCounter) error {
	conn := d.conn(ctx)
	if _, err := conn.NewInsert().Model(&event).Exec(ctx); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if len(tiers) > 0 {
		if _, err := conn.NewInsert().Model(&tiers).Exec(ctx); err != nil {
			return fmt.Errorf("insert tiers: %w", err)
		}
		if _, err := conn.NewInsert().Model(&counters).Exec(ctx); err != nil {
			return fmt.Errorf("insert counters: %w", err)
		}
	}
	if len(segments) > 0 {
		if _, err := conn.NewInsert().Model(&segments).Exec(ctx); err != nil {
			return fmt.Errorf("insert segments: %w", err)
		}
	}
	return nil
}

// ---------------- EVENTS ----------------

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.conn(ctx).NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, models.ErrEventNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ---------------- TIERS ----------------

func (d *DB) ListTiers(ctx context.Context, eventID string, descending bool) ([]models.Tier, error) {
	tiers := []models.Tier{}
	err := d.conn(ctx).NewSelect().
		Model(&tiers).
		Where("event_id = ?", eventID).
		Order(orderBy("weight", descending)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func (d *DB) GetTier(ctx context.Context, eventID string, weight uint64) (*models.Tier, error) {
	var tier models.Tier
	err := d.conn(ctx).NewSelect().
		Model(&tier).
		Where("event_id = ?", eventID).
		Where("weight = ?", weight).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tier %d: %w", weight, models.ErrUnknownTier)
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

// ---------------- SEGMENTS ----------------

func (d *DB) ListSegments(ctx context.Context, eventID string, descending bool) ([]models.Segment, error) {
	segments := []models.Segment{}
	err := d.conn(ctx).NewSelect().
		Model(&segments).
		Where("event_id = ?", eventID).
		Order(orderBy("ordinal", descending)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return segments, nil
}

func (d *DB) GetSegment(ctx context.Context, eventID string, ordinal uint64) (*models.Segment, error) {
	var segment models.Segment
	err := d.conn(ctx).NewSelect().
		Model(&segment).
		Where("event_id = ?", eventID).
		Where("ordinal = ?", ordinal).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("segment %d: %w", ordinal, models.ErrUnknownSegment)
	}
	if err != nil {
		return nil, err
	}
	return &segment, nil
}

// ---------------- COUNTERS ----------------

func (d *DB) GetCounter(ctx context.Context, eventID string, weight uint64) (*models.ReservationCounter, error) {
	var counter models.ReservationCounter
	err := d.conn(ctx).NewSelect().
		Model(&counter).
		Where("event_id = ?", eventID).
		Where("weight = ?", weight).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("counter %d: %w", weight, models.ErrUnknownTier)
	}
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

// SetCounter stores the reserved count of a tier.
func (d *DB) SetCounter(ctx context.Context, counter models.ReservationCounter) error {
	_, err := d.conn(ctx).NewUpdate().
		Model(&counter).
		Column("reserved").
		WherePK().
		Exec(ctx)
	return err
}

// ---------------- BALANCES ----------------

func (d *DB) ListBalances(ctx context.Context, eventID string) ([]models.EventBalance, error) {
	balances := []models.EventBalance{}
	err := d.conn(ctx).NewSelect().
		Model(&balances).
		Where("event_id = ?", eventID).
		Order("denom ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// SaveBalances upserts each balance row.
func (d *DB) SaveBalances(ctx context.Context, balances []models.EventBalance) error {
	if len(balances) == 0 {
		return nil
	}
	_, err := d.conn(ctx).NewInsert().
		Model(&balances).
		On("CONFLICT (event_id, denom) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Exec(ctx)
	return err
}

// CreditBalances adds coins to the event balances.
func (d *DB) CreditBalances(ctx context.Context, eventID string, coins []models.Coin) error {
	if len(coins) == 0 {
		return nil
	}
	current, err := d.ListBalances(ctx, eventID)
	if err != nil {
		return err
	}
	held := make([]models.Coin, len(current))
	for i, b := range current {
		held[i] = models.Coin{Denom: b.Denom, Amount: b.Amount}
	}
	merged, err := settlement.Merge(held, coins)
	if err != nil {
		return err
	}
	rows := make([]models.EventBalance, len(merged))
	for i, c := range merged {
		rows[i] = models.EventBalance{EventID: eventID, Denom: c.Denom, Amount: c.Amount}
	}
	return d.SaveBalances(ctx, rows)
}

func orderBy(column string, descending bool) string {
	if descending {
		return column + " DESC"
	}
	return column + " ASC"
}
