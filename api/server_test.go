package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/driftarb/pkg/detector"
	"github.com/gregtusar/driftarb/pkg/ledger"
	"github.com/gregtusar/driftarb/pkg/models"
)

func testServer(t *testing.T) (*Server, *detector.Detector, *ledger.Ledger) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	det := detector.NewDetector(
		decimal.RequireFromString("0.01"),
		decimal.NewFromInt(1000),
		logger,
	)
	ldg := ledger.New()
	return NewServer(det, ldg, logger, "0"), det, ldg
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleOpportunities(t *testing.T) {
	s, det, _ := testServer(t)

	_, err := det.Evaluate(models.PriceSample{
		Pair:       "SOL/USDC",
		SpotPrice:  decimal.NewFromInt(100),
		PerpPrice:  decimal.NewFromInt(103),
		ObservedAt: time.Now(),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.handleOpportunities(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var opportunities []models.Opportunity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opportunities))
	require.Len(t, opportunities, 1)
	assert.Equal(t, "SOL/USDC", opportunities[0].Pair)
}

func TestHandleOpportunitiesRejectsBadWindow(t *testing.T) {
	s, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.handleOpportunities(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities?window=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePositions(t *testing.T) {
	s, _, ldg := testServer(t)

	require.NoError(t, ldg.Insert(models.Position{
		PositionID: "SOL/USDC_1",
		Pair:       "SOL/USDC",
		EntryPrice: decimal.NewFromInt(100),
		Quantity:   decimal.NewFromInt(10),
		OpenedAt:   time.Now(),
	}))

	rec := httptest.NewRecorder()
	s.handlePositions(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count     int               `json:"count"`
		Positions []models.Position `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Positions, 1)
	assert.Equal(t, "SOL/USDC_1", resp.Positions[0].PositionID)
}

func TestHandlePositionsMethodNotAllowed(t *testing.T) {
	s, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.handlePositions(rec, httptest.NewRequest(http.MethodPost, "/api/positions", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
