package db

import (
	"context"

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

// CheckedIn reports whether the ticket holds a mark for the segment.
func (d *DB) CheckedIn(ctx context.Context, eventID, ticket string, segmentID uint64) (bool, error) {
	return d.conn(ctx).NewSelect().
		Model((*models.AttendanceRecord)(nil)).
		Where("event_id = ?", eventID).
		Where("ticket_address = ?", ticket).
		Where("segment_id = ?", segmentID).
		Exists(ctx)
}

// InsertRecords writes new marks. The primary key keeps each mark write-once.
func (d *DB) InsertRecords(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := d.conn(ctx).NewInsert().Model(&records).Exec(ctx)
	return err
}

func (d *DB) ListRecords(ctx context.Context, eventID, ticket string) ([]models.AttendanceRecord, error) {
	records := []models.AttendanceRecord{}
	err := d.conn(ctx).NewSelect().
		Model(&records).
		Where("event_id = ?", eventID).
		Where("ticket_address = ?", ticket).
		Order("segment_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
