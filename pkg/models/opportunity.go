package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is created by the detector when the spread between the two
// venues clears the configured threshold. Immutable once created.
type Opportunity struct {
	Pair            string
	SpotPrice       decimal.Decimal
	PerpPrice       decimal.Decimal
	Spread          decimal.Decimal
	TradeSize       decimal.Decimal
	PotentialProfit decimal.Decimal
	DetectedAt      time.Time
}
