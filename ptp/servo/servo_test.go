package servo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColdStartUsesRawOffset(t *testing.T) {
	s := New(0)
	_, state := s.Sample(1000, 1_000_000_000)
	require.Equal(t, StateColdStart, state)
	for i := 2; i <= MinSyncPairs; i++ {
		_, state = s.Sample(1000, uint64(i)*1_000_000_000)
		require.Equal(t, StateColdStart, state)
	}
}

func TestLocksAfterMinSyncPairs(t *testing.T) {
	s := New(4)
	var state State
	for i := 1; i <= MinSyncPairs+3; i++ {
		_, state = s.Sample(int64(i)*100, uint64(i)*1_000_000_000)
	}
	require.Equal(t, StateLocked, state)
}

func TestRateTracksSteadyDrift(t *testing.T) {
	s := New(1) // aggressive filter for quick convergence in test
	var rate float64
	var state State
	// offset grows by 10ns per 1s local tick: clock runs fast by 10ppb.
	for i := 1; i <= MinSyncPairs+20; i++ {
		rate, state = s.Sample(int64(i)*10, uint64(i)*1_000_000_000)
	}
	require.Equal(t, StateLocked, state)
	require.InDelta(t, 1.00000001, rate, 1e-6)
}

func TestResetReturnsToColdStart(t *testing.T) {
	s := New(4)
	for i := 1; i <= MinSyncPairs+3; i++ {
		s.Sample(int64(i)*100, uint64(i)*1_000_000_000)
	}
	s.Reset()
	_, state := s.Sample(5, 1_000_000_000)
	require.Equal(t, StateColdStart, state)
}

func TestNonMonotonicLocalResetsToColdStart(t *testing.T) {
	s := New(4)
	s.Sample(100, 2_000_000_000)
	_, state := s.Sample(50, 1_000_000_000)
	require.Equal(t, StateColdStart, state)
}
