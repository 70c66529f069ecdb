package database

import (
	"context"

	"github.com/uptrace/bun"
)

type txKey struct{}

// WithTx runs fn inside a transaction carried by ctx. A nested call joins the
// outer transaction instead of opening a new one. Returning an error from fn
// rolls back every write made through Conn(ctx, ...).
func WithTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Conn returns the transaction carried by ctx, or db when there is none.
func Conn(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return db
}
