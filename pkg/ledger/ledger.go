// Package ledger tracks the open positions created by reactive trades.
// Entries are append-only for the life of the process; positions are
// counted at shutdown, never closed.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gregtusar/driftarb/pkg/models"
)

// ErrDuplicateID indicates a position ID collision. Position IDs derive
// from venue order IDs, so a collision means a coordinator bug.
var ErrDuplicateID = errors.New("position id already recorded")

type Ledger struct {
	mu        sync.RWMutex
	positions map[string]models.Position
}

func New() *Ledger {
	return &Ledger{
		positions: make(map[string]models.Position),
	}
}

// Insert records a new position. Fails with ErrDuplicateID if the ID is
// already present; the existing entry is left untouched.
func (l *Ledger) Insert(position models.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.positions[position.PositionID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, position.PositionID)
	}

	l.positions[position.PositionID] = position
	return nil
}

func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// All returns every open position ordered by open time, oldest first.
func (l *Ledger) All() []models.Position {
	l.mu.RLock()
	positions := make([]models.Position, 0, len(l.positions))
	for _, p := range l.positions {
		positions = append(positions, p)
	}
	l.mu.RUnlock()

	sort.Slice(positions, func(i, j int) bool {
		if positions[i].OpenedAt.Equal(positions[j].OpenedAt) {
			return positions[i].PositionID < positions[j].PositionID
		}
		return positions[i].OpenedAt.Before(positions[j].OpenedAt)
	})
	return positions
}
