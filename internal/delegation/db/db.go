package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-ledger/internal/database"
	"ms-ledger/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) conn(ctx context.Context) bun.IDB {
	return database.Conn(ctx, d.Bun)
}

// GetDelegation returns the delegator's list. A delegator without one gets an
// empty list and found=false.
func (d *DB) GetDelegation(ctx context.Context, eventID, delegator string) (*models.Delegation, bool, error) {
	var delegation models.Delegation
	err := d.conn(ctx).NewSelect().
		Model(&delegation).
		Where("event_id = ?", eventID).
		Where("delegator = ?", delegator).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Delegation{EventID: eventID, Delegator: delegator, Delegates: []string{}}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if delegation.Delegates == nil {
		delegation.Delegates = []string{}
	}
	return &delegation, true, nil
}

func (d *DB) ListDelegations(ctx context.Context, eventID string) ([]models.Delegation, error) {
	delegations := []models.Delegation{}
	err := d.conn(ctx).NewSelect().
		Model(&delegations).
		Where("event_id = ?", eventID).
		Order("delegator ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return delegations, nil
}

// FindDelegator returns who holds delegate in their list.
func (d *DB) FindDelegator(ctx context.Context, eventID, delegate string) (string, bool, error) {
	delegations, err := d.ListDelegations(ctx, eventID)
	if err != nil {
		return "", false, err
	}
	for i := range delegations {
		if delegations[i].Contains(delegate) {
			return delegations[i].Delegator, true, nil
		}
	}
	return "", false, nil
}

// SaveDelegation upserts the list; an empty list removes the row.
func (d *DB) SaveDelegation(ctx context.Context, delegation models.Delegation) error {
	if len(delegation.Delegates) == 0 {
		return d.DeleteDelegation(ctx, delegation.EventID, delegation.Delegator)
	}
	_, err := d.conn(ctx).NewInsert().
		Model(&delegation).
		On("CONFLICT (event_id, delegator) DO UPDATE").
		Set("delegates = EXCLUDED.delegates").
		Exec(ctx)
	return err
}

func (d *DB) DeleteDelegation(ctx context.Context, eventID, delegator string) error {
	_, err := d.conn(ctx).NewDelete().
		Model((*models.Delegation)(nil)).
		Where("event_id = ?", eventID).
		Where("delegator = ?", delegator).
		Exec(ctx)
	return err
}
