package detector

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/driftarb/pkg/models"
)

const historyLimit = 1000

// Detector gates price samples against the configured spread threshold. It
// is safe for concurrent use by multiple pair monitors.
type Detector struct {
	threshold decimal.Decimal
	tradeSize decimal.Decimal
	logger    *logrus.Logger

	mu      sync.RWMutex
	history []models.Opportunity
}

// NewDetector creates a detector with a fixed threshold (a fraction, e.g.
// 0.01 for 1%) and trade size in quote units. Thresholds outside (0, 1)
// are accepted but degenerate: <= 0 triggers on every sample, >= 1 almost
// never.
func NewDetector(threshold, tradeSize decimal.Decimal, logger *logrus.Logger) *Detector {
	return &Detector{
		threshold: threshold,
		tradeSize: tradeSize,
		logger:    logger,
	}
}

// Evaluate checks one sample and returns an opportunity if the spread
// clears the threshold, nil otherwise. Samples with non-positive prices
// return ErrInvalidPrice; the caller drops them and keeps monitoring.
func (d *Detector) Evaluate(sample models.PriceSample) (*models.Opportunity, error) {
	result, err := ComputeSpread(sample.SpotPrice, sample.PerpPrice, d.tradeSize)
	if err != nil {
		return nil, err
	}

	d.logger.WithFields(logrus.Fields{
		"pair":   sample.Pair,
		"spot":   sample.SpotPrice,
		"perp":   sample.PerpPrice,
		"spread": result.Spread,
	}).Debug("Evaluated sample")

	if result.Spread.LessThan(d.threshold) {
		return nil, nil
	}

	opp := models.Opportunity{
		Pair:            sample.Pair,
		SpotPrice:       sample.SpotPrice,
		PerpPrice:       sample.PerpPrice,
		Spread:          result.Spread,
		TradeSize:       d.tradeSize,
		PotentialProfit: result.PotentialProfit,
		DetectedAt:      sample.ObservedAt,
	}

	d.record(opp)

	d.logger.WithFields(logrus.Fields{
		"pair":             opp.Pair,
		"spread":           opp.Spread,
		"potential_profit": opp.PotentialProfit,
	}).Info("Arbitrage opportunity detected")

	return &opp, nil
}

func (d *Detector) record(opp models.Opportunity) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = append(d.history, opp)
	if len(d.history) > historyLimit {
		d.history = d.history[len(d.history)-historyLimit:]
	}
}

// Recent returns opportunities detected within the given window, newest
// last.
func (d *Detector) Recent(window time.Duration) []models.Opportunity {
	cutoff := time.Now().Add(-window)

	d.mu.RLock()
	defer d.mu.RUnlock()

	recent := make([]models.Opportunity, 0)
	for _, opp := range d.history {
		if opp.DetectedAt.After(cutoff) {
			recent = append(recent, opp)
		}
	}
	return recent
}
