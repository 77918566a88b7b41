package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirtySet_ClearRespectsGeneration(t *testing.T) {
	d := NewDirtySet()
	key := NewHoldingKey("main", "AAPL")
	now := time.Now()

	first := d.Mark(key, "event", now)
	second := d.Mark(key, "event", now.Add(time.Second))
	require.Greater(t, second, first)

	assert.False(t, d.Clear(key, first), "stale generation must not clear a newer mark")
	assert.Len(t, d.Entries, 1)
	assert.True(t, d.Clear(key, second))
	assert.Empty(t, d.Entries)
}

func TestDirtySet_SortedByMarkTime(t *testing.T) {
	d := NewDirtySet()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.Mark(NewHoldingKey("main", "MSFT"), "", base.Add(time.Minute))
	d.Mark(NewHoldingKey("main", "AAPL"), "", base)

	sorted := d.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, "AAPL", sorted[0].Key.Symbol)
	assert.Equal(t, "MSFT", sorted[1].Key.Symbol)
}

func TestSymbolState_Transitions(t *testing.T) {
	assert.True(t, StateUnknown.CanTransition(StatePrefetching))
	assert.True(t, StatePrefetching.CanTransition(StateComputing))
	assert.True(t, StateComputing.CanTransition(StateClean))
	assert.True(t, StateClean.CanTransition(StateDirty))
	assert.True(t, StateComputing.CanTransition(StateDirty))
	assert.False(t, StateUnknown.CanTransition(StateClean))
	assert.False(t, StatePrefetching.CanTransition(StateClean))
}

func TestSyncStatus_SymbolCreatesUnknown(t *testing.T) {
	s := NewSyncStatus()
	st := s.Symbol(NewHoldingKey("main", "AAPL"))
	assert.Equal(t, StateUnknown, st.State)
	st.State = StateClean
	assert.Equal(t, StateClean, s.Symbol(NewHoldingKey("main", "aapl")).State)
	assert.Equal(t, []string{"main/AAPL"}, s.SortedKeys())
}
