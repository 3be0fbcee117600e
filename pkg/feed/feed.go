// Package feed runs the long-lived price monitoring loops. Each
// configured pair gets one loop polling both venues, so samples for a
// pair are always delivered in arrival order.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/driftarb/pkg/models"
	"github.com/gregtusar/driftarb/pkg/venue"
)

const maxConsecutiveErrors = 10

type SpotSource interface {
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
}

type PerpSource interface {
	GetMarkPrice(ctx context.Context, market string) (decimal.Decimal, error)
}

// Handler consumes one price sample. It is called from the pair's own
// monitoring goroutine and should not block for long.
type Handler func(ctx context.Context, sample models.PriceSample)

type PriceFeed struct {
	spot     SpotSource
	perp     PerpSource
	interval time.Duration
	logger   *logrus.Logger
}

func New(spot SpotSource, perp PerpSource, interval time.Duration, logger *logrus.Logger) *PriceFeed {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PriceFeed{
		spot:     spot,
		perp:     perp,
		interval: interval,
		logger:   logger,
	}
}

// Start launches one monitoring loop per pair and blocks until the
// context is cancelled or every loop has given up. A pair that fails too
// many polls in a row stops monitoring and is reported; other pairs keep
// going.
func (f *PriceFeed) Start(ctx context.Context, pairs []string, handler Handler) {
	f.logger.WithField("pairs", pairs).Info("Starting price monitoring")

	var wg sync.WaitGroup
	for _, pair := range pairs {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			f.monitorPair(ctx, p, handler)
		}(pair)
	}
	wg.Wait()
}

func (f *PriceFeed) monitorPair(ctx context.Context, pair string, handler Handler) {
	log := f.logger.WithField("pair", pair)

	spotSymbol := venue.SpotSymbol(pair)
	perpSymbol := venue.PerpSymbol(pair)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	errorCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sample, err := f.poll(ctx, pair, spotSymbol, perpSymbol)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			errorCount++
			log.WithError(err).WithField("consecutive_errors", errorCount).
				Warn("Failed to poll prices")
			if errorCount >= maxConsecutiveErrors {
				log.Error("Too many consecutive errors, stopping pair monitoring")
				return
			}
			continue
		}

		errorCount = 0
		handler(ctx, sample)
	}
}

func (f *PriceFeed) poll(ctx context.Context, pair, spotSymbol, perpSymbol string) (models.PriceSample, error) {
	spotTicker, err := f.spot.GetTicker(ctx, spotSymbol)
	if err != nil {
		return models.PriceSample{}, err
	}

	perpPrice, err := f.perp.GetMarkPrice(ctx, perpSymbol)
	if err != nil {
		return models.PriceSample{}, err
	}

	return models.PriceSample{
		Pair:       pair,
		SpotPrice:  spotTicker.LastPrice,
		PerpPrice:  perpPrice,
		ObservedAt: time.Now(),
	}, nil
}
