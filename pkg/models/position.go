package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Position records a quantity acquired in reaction to a detected
// opportunity. Never mutated after creation.
type Position struct {
	PositionID  string
	Pair        string
	EntryPrice  decimal.Decimal
	Quantity    decimal.Decimal
	EntrySpread decimal.Decimal
	OpenedAt    time.Time
}

// PositionID derives the ledger key for a position. It is unique per order
// because order IDs are unique per venue.
func PositionID(pair, orderID string) string {
	return fmt.Sprintf("%s_%s", pair, orderID)
}
