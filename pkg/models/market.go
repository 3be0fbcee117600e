package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSample is one paired observation of the same instrument on both
// venues. Produced by the price feed, consumed once by the detector.
type PriceSample struct {
	Pair       string
	SpotPrice  decimal.Decimal
	PerpPrice  decimal.Decimal
	ObservedAt time.Time
}

type Ticker struct {
	Symbol    string
	BidPrice  decimal.Decimal
	BidSize   decimal.Decimal
	AskPrice  decimal.Decimal
	AskSize   decimal.Decimal
	LastPrice decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
}
