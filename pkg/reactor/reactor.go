// Package reactor decides how to respond to detected opportunities. It is
// the only component besides the notifier with externally visible side
// effects: it places orders and records the resulting positions.
package reactor

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/driftarb/pkg/ledger"
	"github.com/gregtusar/driftarb/pkg/models"
	"github.com/gregtusar/driftarb/pkg/notify"
)

// ExecutionClient places orders on the brokerage venue. PlaceOrder returns
// a nil order without error when the venue declines the request.
type ExecutionClient interface {
	Connected() bool
	PlaceOrder(ctx context.Context, symbol string, side models.OrderSide, quantity decimal.Decimal) (*models.Order, error)
}

// SymbolMapper translates a logical pair into the execution venue's
// instrument symbol. Venue formats are injected, not hardcoded here.
type SymbolMapper func(pair string) string

type Result string

const (
	// ResultOpportunityOnly: reported but not acted on (reactive mode off
	// or no connected execution client).
	ResultOpportunityOnly Result = "opportunity_only"
	// ResultExecutionFailed: a reaction was attempted and the venue
	// declined or errored. Non-fatal to the monitoring loop.
	ResultExecutionFailed Result = "execution_failed"
	// ResultOrderPlaced: order filled and position recorded.
	ResultOrderPlaced Result = "order_placed"
)

type Reaction struct {
	Result   Result
	Order    *models.Order
	Position *models.Position
}

// Coordinator reacts to opportunities. Reactions for the same pair are
// serialized: at most one in flight per pair at a time, so two close
// detections cannot both fire orders for a still-open opportunity.
type Coordinator struct {
	reactive  bool
	execution ExecutionClient
	mapSymbol SymbolMapper
	ledger    *ledger.Ledger
	notifier  notify.Notifier
	logger    *logrus.Logger

	mu        sync.Mutex
	pairLocks map[string]*sync.Mutex
}

func NewCoordinator(reactive bool, execution ExecutionClient, mapSymbol SymbolMapper, ldg *ledger.Ledger, notifier notify.Notifier, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		reactive:  reactive,
		execution: execution,
		mapSymbol: mapSymbol,
		ledger:    ldg,
		notifier:  notifier,
		logger:    logger,
		pairLocks: make(map[string]*sync.Mutex),
	}
}

// React handles one opportunity: it always notifies, then places at most
// one order when reactive mode is on and the execution client is
// connected. Execution and notification failures are contained here and
// never propagate to the monitoring loop.
func (c *Coordinator) React(ctx context.Context, opp models.Opportunity) Reaction {
	lock := c.pairLock(opp.Pair)
	lock.Lock()
	defer lock.Unlock()

	if !c.reactive || c.execution == nil || !c.execution.Connected() {
		c.notify(ctx, notify.OpportunityOnly(opp))
		return Reaction{Result: ResultOpportunityOnly}
	}

	symbol := c.mapSymbol(opp.Pair)
	quantity := opp.TradeSize.Div(opp.SpotPrice)

	log := c.logger.WithFields(logrus.Fields{
		"pair":     opp.Pair,
		"symbol":   symbol,
		"quantity": quantity,
	})

	order, err := c.execution.PlaceOrder(ctx, symbol, models.OrderSideBuy, quantity)
	if err != nil {
		log.WithError(err).Error("Failed to place reaction order")
		c.notify(ctx, notify.OpportunityOnly(opp))
		return Reaction{Result: ResultExecutionFailed}
	}
	if order == nil {
		log.Warn("Execution venue declined reaction order")
		c.notify(ctx, notify.OpportunityOnly(opp))
		return Reaction{Result: ResultExecutionFailed}
	}

	position := models.Position{
		PositionID:  models.PositionID(opp.Pair, order.OrderID),
		Pair:        opp.Pair,
		EntryPrice:  opp.SpotPrice,
		Quantity:    order.ExecutedQty,
		EntrySpread: opp.Spread,
		OpenedAt:    opp.DetectedAt,
	}

	if err := c.ledger.Insert(position); err != nil {
		// Duplicate position IDs mean a coordinator bug; report loudly
		// but keep the process alive.
		log.WithError(err).WithField("position_id", position.PositionID).
			Error("Position ledger rejected insert")
	}

	c.notify(ctx, notify.OpportunityWithOrder(opp, *order))

	log.WithFields(logrus.Fields{
		"order_id":    order.OrderID,
		"position_id": position.PositionID,
	}).Info("Reaction order placed")

	return Reaction{Result: ResultOrderPlaced, Order: order, Position: &position}
}

func (c *Coordinator) notify(ctx context.Context, event notify.OpportunityEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Error("Notifier panicked during delivery")
		}
	}()
	c.notifier.NotifyOpportunity(ctx, event)
}

func (c *Coordinator) pairLock(pair string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.pairLocks[pair]
	if !ok {
		lock = &sync.Mutex{}
		c.pairLocks[pair] = lock
	}
	return lock
}
