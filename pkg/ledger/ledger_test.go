package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/driftarb/pkg/models"
)

func position(id string, openedAt time.Time) models.Position {
	return models.Position{
		PositionID: id,
		Pair:       "SOL/USDC",
		EntryPrice: decimal.NewFromInt(100),
		Quantity:   decimal.NewFromInt(10),
		OpenedAt:   openedAt,
	}
}

func TestInsertAndCount(t *testing.T) {
	l := New()
	assert.Equal(t, 0, l.Count())

	require.NoError(t, l.Insert(position("SOL/USDC_1", time.Now())))
	require.NoError(t, l.Insert(position("SOL/USDC_2", time.Now())))
	assert.Equal(t, 2, l.Count())
}

func TestInsertDuplicate(t *testing.T) {
	l := New()

	now := time.Now()
	require.NoError(t, l.Insert(position("SOL/USDC_1", now)))

	err := l.Insert(position("SOL/USDC_1", now.Add(time.Second)))
	assert.ErrorIs(t, err, ErrDuplicateID)

	// First entry survives the collision.
	assert.Equal(t, 1, l.Count())
	assert.Equal(t, now, l.All()[0].OpenedAt)
}

func TestAllOrderedByOpenTime(t *testing.T) {
	l := New()
	base := time.Now()

	require.NoError(t, l.Insert(position("c", base.Add(2*time.Second))))
	require.NoError(t, l.Insert(position("a", base)))
	require.NoError(t, l.Insert(position("b", base.Add(time.Second))))

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].PositionID)
	assert.Equal(t, "b", all[1].PositionID)
	assert.Equal(t, "c", all[2].PositionID)
}

func TestConcurrentInsert(t *testing.T) {
	l := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("SOL/USDC_%d", n)
			assert.NoError(t, l.Insert(position(id, time.Now())))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, l.Count())
}

func TestPositionIDDerivation(t *testing.T) {
	assert.Equal(t, "SOL/USDC_12345", models.PositionID("SOL/USDC", "12345"))
	assert.NotEqual(t,
		models.PositionID("SOL/USDC", "1"),
		models.PositionID("SOL/USDC", "2"),
	)
}
