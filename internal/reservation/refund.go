package reservation

import (
	"context"

	"ms-ledger/internal/models"
)

// RefundPolicy decides what happens to reservations whose holders never
// showed up.
type RefundPolicy interface {
	RefundUnclaimed(ctx context.Context, event *models.Event, addresses []string) (models.RefundResult, error)
}

// NoopRefundPolicy refunds nothing and changes no state.
type NoopRefundPolicy struct{}

func (NoopRefundPolicy) RefundUnclaimed(context.Context, *models.Event, []string) (models.RefundResult, error) {
	return models.RefundResult{Refunded: []string{}, Transfers: []models.Transfer{}}, nil
}
