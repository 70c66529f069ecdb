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

// GetTally returns how many tickets of a tier purchaser was admitted. A
// purchaser without a row has a zero tally.
func (d *DB) GetTally(ctx context.Context, eventID string, weight uint64, purchaser string) (*models.WalletTally, error) {
	var tally models.WalletTally
	err := database.Conn(ctx, d.Bun).NewSelect().
		Model(&tally).
		Where("event_id = ?", eventID).
		Where("weight = ?", weight).
		Where("purchaser = ?", purchaser).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.WalletTally{EventID: eventID, Weight: weight, Purchaser: purchaser}, nil
	}
	if err != nil {
		return nil, err
	}
	return &tally, nil
}

func (d *DB) SaveTally(ctx context.Context, tally models.WalletTally) error {
	_, err := database.Conn(ctx, d.Bun).NewInsert().
		Model(&tally).
		On("CONFLICT (event_id, weight, purchaser) DO UPDATE").
		Set("reserved = EXCLUDED.reserved").
		Exec(ctx)
	return err
}
