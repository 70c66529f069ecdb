package settlement

import (
	"fmt"
	"math/bits"

	"ms-ledger/internal/models"
)

// AddCoin adds c to coins, merging by denom. Order of first appearance is kept.
func AddCoin(coins []models.Coin, c models.Coin) ([]models.Coin, error) {
	if c.Amount == 0 {
		return coins, nil
	}
	for i := range coins {
		if coins[i].Denom == c.Denom {
			sum, carry := bits.Add64(coins[i].Amount, c.Amount, 0)
			if carry != 0 {
				return coins, fmt.Errorf("adding %d%s: %w", c.Amount, c.Denom, models.ErrAmountOverflow)
			}
			coins[i].Amount = sum
			return coins, nil
		}
	}
	return append(coins, c), nil
}

// Merge folds every coin of b into a copy of a.
func Merge(a, b []models.Coin) ([]models.Coin, error) {
	out := make([]models.Coin, 0, len(a)+len(b))
	var err error
	for _, c := range a {
		if out, err = AddCoin(out, c); err != nil {
			return nil, err
		}
	}
	for _, c := range b {
		if out, err = AddCoin(out, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AmountOf returns the amount of denom in coins.
func AmountOf(coins []models.Coin, denom string) uint64 {
	for _, c := range coins {
		if c.Denom == denom {
			return c.Amount
		}
	}
	return 0
}

// Purse holds the tendered funds of one purchase while they are consumed.
type Purse struct {
	coins []models.Coin
}

// NewPurse normalizes funds: duplicate denoms are summed, zero amounts dropped.
func NewPurse(funds []models.Coin) (*Purse, error) {
	coins, err := Merge(nil, funds)
	if err != nil {
		return nil, err
	}
	return &Purse{coins: coins}, nil
}

// Take deducts amount of denom if the purse covers it.
func (p *Purse) Take(denom string, amount uint64) bool {
	for i := range p.coins {
		if p.coins[i].Denom != denom {
			continue
		}
		if p.coins[i].Amount < amount {
			return false
		}
		p.coins[i].Amount -= amount
		return true
	}
	return amount == 0
}

// Remaining lists the non-zero balances left in the purse.
func (p *Purse) Remaining() []models.Coin {
	out := make([]models.Coin, 0, len(p.coins))
	for _, c := range p.coins {
		if c.Amount > 0 {
			out = append(out, c)
		}
	}
	return out
}
