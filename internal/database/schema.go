package database

import (
	"context"
	"fmt"

	"ms-ledger/internal/models"

	"github.com/uptrace/bun"
)

// Models lists every table the ledger owns, in creation order.
func Models() []any {
	return []any{
		(*models.Event)(nil),
		(*models.Tier)(nil),
		(*models.Segment)(nil),
		(*models.ReservationCounter)(nil),
		(*models.WalletTally)(nil),
		(*models.EventBalance)(nil),
		(*models.AttendanceRecord)(nil),
		(*models.Delegation)(nil),
		(*models.RosterGroup)(nil),
		(*models.RosterMember)(nil),
	}
}

// CreateSchema creates the ledger tables from the bun models. Production
// schemas come from the SQL migrations; this is used by tests and local runs.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, m := range Models() {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}
