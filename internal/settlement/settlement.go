package settlement

import (
	"math/bits"

	"ms-ledger/internal/models"
)

// Flat license fee taken from every admitted unit: 3% of its price, rounded down.
const (
	FeeNumerator   = 3
	FeeDenominator = 100
)

// Outcome is the split of one tier group's settlement.
type Outcome struct {
	// Admitted holds indexes into the settled units, in request order.
	Admitted []int
	Consumed []models.Coin
	Fee      []models.Coin
	Retained []models.Coin
}

// Fee returns floor(price * FeeNumerator / FeeDenominator) without overflowing.
func Fee(price uint64) uint64 {
	hi, lo := bits.Mul64(price, FeeNumerator)
	q, _ := bits.Div64(hi, lo, FeeDenominator)
	return q
}

// Settle charges each unit its tier price from the purse. A unit whose denom
// the tier does not accept, or that the purse cannot cover, is skipped and
// consumes nothing.
func Settle(purse *Purse, prices []models.Coin, units []models.UnitRequest) (Outcome, error) {
	var out Outcome
	for i, u := range units {
		price, ok := priceOf(prices, u.Denom)
		if !ok {
			continue
		}
		if !purse.Take(price.Denom, price.Amount) {
			continue
		}
		fee := Fee(price.Amount)

		var err error
		if out.Consumed, err = AddCoin(out.Consumed, price); err != nil {
			return Outcome{}, err
		}
		if out.Fee, err = AddCoin(out.Fee, models.Coin{Denom: price.Denom, Amount: fee}); err != nil {
			return Outcome{}, err
		}
		if out.Retained, err = AddCoin(out.Retained, models.Coin{Denom: price.Denom, Amount: price.Amount - fee}); err != nil {
			return Outcome{}, err
		}
		out.Admitted = append(out.Admitted, i)
	}
	return out, nil
}

func priceOf(prices []models.Coin, denom string) (models.Coin, bool) {
	for _, p := range prices {
		if p.Denom == denom {
			return p, true
		}
	}
	return models.Coin{}, false
}
