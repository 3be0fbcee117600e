// Package notify externalizes human-visible lifecycle and opportunity
// events. Delivery is best-effort and at-most-once: a failed send is
// logged and discarded, never surfaced to the monitoring pipeline.
package notify

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gregtusar/driftarb/pkg/models"
)

type Notifier interface {
	NotifyStartup(ctx context.Context, event StartupEvent)
	NotifyOpportunity(ctx context.Context, event OpportunityEvent)
	NotifyShutdown(ctx context.Context, event ShutdownEvent)
}

type StartupEvent struct {
	Mode            string
	TestnetEnabled  bool
	Pairs           []string
	SpreadThreshold decimal.Decimal
	TradeSize       decimal.Decimal
	SpotConnected   bool
	PerpConnected   bool
}

type ShutdownEvent struct {
	OpenPositions  int
	TestnetEnabled bool
}

// OpportunityEvent is either an alert-only opportunity or an opportunity
// with the order that reacted to it. Construct with OpportunityOnly or
// OpportunityWithOrder; senders dispatch on the variant.
type OpportunityEvent struct {
	Opportunity models.Opportunity
	order       *models.Order
}

func OpportunityOnly(opp models.Opportunity) OpportunityEvent {
	return OpportunityEvent{Opportunity: opp}
}

func OpportunityWithOrder(opp models.Opportunity, order models.Order) OpportunityEvent {
	return OpportunityEvent{Opportunity: opp, order: &order}
}

// Order returns the executed order when the event carries one.
func (e OpportunityEvent) Order() (models.Order, bool) {
	if e.order == nil {
		return models.Order{}, false
	}
	return *e.order, true
}
