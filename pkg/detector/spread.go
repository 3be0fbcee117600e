package detector

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidPrice is returned when a sample carries a zero or negative
// price. A bad sample is dropped by the caller, never treated as a signal.
var ErrInvalidPrice = errors.New("price must be strictly positive")

// SpreadResult holds the outcome of a spread computation.
type SpreadResult struct {
	Spread          decimal.Decimal
	PotentialProfit decimal.Decimal
}

// ComputeSpread returns the relative spread between two venue prices and
// the profit a trade of tradeSize (quote units) would capture at that
// spread. The spread is symmetric and non-negative: the absolute price
// difference over the larger of the two prices, so a 100/101 pair reads
// as just under 1%.
func ComputeSpread(spotPrice, perpPrice, tradeSize decimal.Decimal) (SpreadResult, error) {
	if !spotPrice.IsPositive() || !perpPrice.IsPositive() {
		return SpreadResult{}, ErrInvalidPrice
	}

	denom := spotPrice
	if perpPrice.GreaterThan(spotPrice) {
		denom = perpPrice
	}

	spread := spotPrice.Sub(perpPrice).Abs().Div(denom)

	return SpreadResult{
		Spread:          spread,
		PotentialProfit: spread.Mul(tradeSize),
	}, nil
}
