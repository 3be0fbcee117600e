package reactor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/driftarb/pkg/ledger"
	"github.com/gregtusar/driftarb/pkg/models"
	"github.com/gregtusar/driftarb/pkg/notify"
)

type fakeExecution struct {
	mu        sync.Mutex
	connected bool
	err       error
	decline   bool
	delay     time.Duration
	calls     int
	inFlight  int32
	maxFlight int32
	nextID    int
}

func (f *fakeExecution) Connected() bool { return f.connected }

func (f *fakeExecution) PlaceOrder(ctx context.Context, symbol string, side models.OrderSide, quantity decimal.Decimal) (*models.Order, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxFlight, max, cur) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.decline {
		return nil, nil
	}

	f.nextID++
	return &models.Order{
		OrderID:      fmt.Sprintf("%d", f.nextID),
		Symbol:       symbol,
		Side:         side,
		RequestedQty: quantity,
		ExecutedQty:  quantity,
		Status:       models.OrderStatusFilled,
	}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.OpportunityEvent
	panics bool
}

func (f *fakeNotifier) NotifyStartup(context.Context, notify.StartupEvent)   {}
func (f *fakeNotifier) NotifyShutdown(context.Context, notify.ShutdownEvent) {}

func (f *fakeNotifier) NotifyOpportunity(_ context.Context, event notify.OpportunityEvent) {
	if f.panics {
		panic("webhook exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func spotSymbol(pair string) string { return "SOLUSDT" }

func opportunity(pair string) models.Opportunity {
	return models.Opportunity{
		Pair:            pair,
		SpotPrice:       decimal.NewFromInt(100),
		PerpPrice:       decimal.NewFromInt(103),
		Spread:          decimal.RequireFromString("0.03"),
		TradeSize:       decimal.NewFromInt(1000),
		PotentialProfit: decimal.NewFromInt(30),
		DetectedAt:      time.Now(),
	}
}

func TestReactiveModeDisabledNeverPlacesOrders(t *testing.T) {
	exec := &fakeExecution{connected: true}
	notifier := &fakeNotifier{}
	c := NewCoordinator(false, exec, spotSymbol, ledger.New(), notifier, testLogger())

	for i := 0; i < 5; i++ {
		reaction := c.React(context.Background(), opportunity("SOL/USDC"))
		assert.Equal(t, ResultOpportunityOnly, reaction.Result)
	}

	assert.Equal(t, 0, exec.calls)
	assert.Len(t, notifier.events, 5)
	for _, event := range notifier.events {
		_, hasOrder := event.Order()
		assert.False(t, hasOrder)
	}
}

func TestDisconnectedClientSkipsExecution(t *testing.T) {
	exec := &fakeExecution{connected: false}
	c := NewCoordinator(true, exec, spotSymbol, ledger.New(), &fakeNotifier{}, testLogger())

	reaction := c.React(context.Background(), opportunity("SOL/USDC"))
	assert.Equal(t, ResultOpportunityOnly, reaction.Result)
	assert.Equal(t, 0, exec.calls)
}

func TestSuccessfulReactionRecordsPosition(t *testing.T) {
	exec := &fakeExecution{connected: true}
	notifier := &fakeNotifier{}
	ldg := ledger.New()
	c := NewCoordinator(true, exec, spotSymbol, ldg, notifier, testLogger())

	reaction := c.React(context.Background(), opportunity("SOL/USDC"))

	require.Equal(t, ResultOrderPlaced, reaction.Result)
	require.NotNil(t, reaction.Order)
	require.NotNil(t, reaction.Position)

	// Sized off the detection-time spot price: 1000 / 100 = 10.
	assert.True(t, reaction.Order.RequestedQty.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, models.OrderSideBuy, reaction.Order.Side)
	assert.Equal(t, "SOLUSDT", reaction.Order.Symbol)

	assert.Equal(t, 1, ldg.Count())
	assert.Equal(t, models.PositionID("SOL/USDC", reaction.Order.OrderID), reaction.Position.PositionID)
	assert.True(t, reaction.Position.EntryPrice.Equal(decimal.NewFromInt(100)))

	require.Len(t, notifier.events, 1)
	order, hasOrder := notifier.events[0].Order()
	require.True(t, hasOrder)
	assert.Equal(t, reaction.Order.OrderID, order.OrderID)
}

func TestPositionIDsUniqueAcrossReactions(t *testing.T) {
	exec := &fakeExecution{connected: true}
	ldg := ledger.New()
	c := NewCoordinator(true, exec, spotSymbol, ldg, &fakeNotifier{}, testLogger())

	for i := 0; i < 10; i++ {
		reaction := c.React(context.Background(), opportunity("SOL/USDC"))
		require.Equal(t, ResultOrderPlaced, reaction.Result)
	}

	assert.Equal(t, 10, ldg.Count())
}

func TestExecutionErrorDegradesToOpportunityOnly(t *testing.T) {
	exec := &fakeExecution{connected: true, err: errors.New("venue unavailable")}
	notifier := &fakeNotifier{}
	ldg := ledger.New()
	c := NewCoordinator(true, exec, spotSymbol, ldg, notifier, testLogger())

	reaction := c.React(context.Background(), opportunity("SOL/USDC"))

	assert.Equal(t, ResultExecutionFailed, reaction.Result)
	assert.Nil(t, reaction.Order)
	assert.Equal(t, 0, ldg.Count())

	require.Len(t, notifier.events, 1)
	_, hasOrder := notifier.events[0].Order()
	assert.False(t, hasOrder)
}

func TestDeclinedOrderDegradesToOpportunityOnly(t *testing.T) {
	exec := &fakeExecution{connected: true, decline: true}
	ldg := ledger.New()
	c := NewCoordinator(true, exec, spotSymbol, ldg, &fakeNotifier{}, testLogger())

	reaction := c.React(context.Background(), opportunity("SOL/USDC"))

	assert.Equal(t, ResultExecutionFailed, reaction.Result)
	assert.Equal(t, 0, ldg.Count())
}

func TestNotifierPanicDoesNotAffectResult(t *testing.T) {
	exec := &fakeExecution{connected: true}
	ldg := ledger.New()
	c := NewCoordinator(true, exec, spotSymbol, ldg, &fakeNotifier{panics: true}, testLogger())

	reaction := c.React(context.Background(), opportunity("SOL/USDC"))

	assert.Equal(t, ResultOrderPlaced, reaction.Result)
	assert.Equal(t, 1, ldg.Count())
}

func TestReactionsSerializedPerPair(t *testing.T) {
	exec := &fakeExecution{connected: true, delay: 20 * time.Millisecond}
	c := NewCoordinator(true, exec, spotSymbol, ledger.New(), &fakeNotifier{}, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.React(context.Background(), opportunity("SOL/USDC"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, exec.calls)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exec.maxFlight),
		"reactions for the same pair must not overlap")
}

func TestDifferentPairsMayOverlap(t *testing.T) {
	exec := &fakeExecution{connected: true, delay: 30 * time.Millisecond}
	c := NewCoordinator(true, exec, spotSymbol, ledger.New(), &fakeNotifier{}, testLogger())

	var wg sync.WaitGroup
	for _, pair := range []string{"SOL/USDC", "ETH/USDC", "BTC/USDC"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			c.React(context.Background(), opportunity(p))
		}(pair)
	}
	wg.Wait()

	assert.Equal(t, 3, exec.calls)
}
