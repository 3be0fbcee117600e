package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	OrderID      string
	Symbol       string
	Side         OrderSide
	Type         OrderType
	RequestedQty decimal.Decimal
	ExecutedQty  decimal.Decimal
	Status       OrderStatus
	Testnet      bool
	CreatedAt    time.Time
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
)
