package wrapping

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateAdvances(t *testing.T) {
	c := New(16, 65530)
	for i, want := range []uint64{65531, 65532, 65533, 65534, 65535, 0, 1, 2, 3, 4} {
		d, ok := c.Update(want)
		require.Truef(t, ok, "step %d", i)
		require.Equal(t, uint64(1), d)
		require.Equal(t, want, c.Value())
	}
}

func TestUpdateRejectsOlderHalf(t *testing.T) {
	c := New(16, 3)
	_, ok := c.Update(2)
	require.False(t, ok)
	require.Equal(t, uint64(3), c.Value())
}

func TestUpdateRejectsExactlyHalfAway(t *testing.T) {
	c := New(16, 1<<15)
	_, ok := c.Update(0)
	require.False(t, ok)
	require.Equal(t, uint64(1<<15), c.Value())
}

func TestUpdateRejectsEqual(t *testing.T) {
	c := New(16, 7)
	_, ok := c.Update(7)
	require.False(t, ok)
}

func TestUpdateInvariant(t *testing.T) {
	c := New(8, 250)
	d, ok := c.Update(10)
	require.True(t, ok)
	require.Equal(t, uint64(16), d)
	require.Equal(t, uint64(10), c.Value())
}

func Test32BitRTPTimestampWrap(t *testing.T) {
	c := New(32, 0xFFFFFFF0)
	var framecount uint64 = 48
	for i := 1; i <= 7; i++ {
		next := (uint64(0xFFFFFFF0) + uint64(i)*framecount) & 0xFFFFFFFF
		_, ok := c.Update(next)
		require.True(t, ok)
	}
	require.Equal(t, uint64(0x140), c.Value())
}

func TestSequenceNumberWrap(t *testing.T) {
	c := New(16, 65530)
	for i := 0; i < 10; i++ {
		_, ok := c.Update((c.Value() + 1) & 0xFFFF)
		require.True(t, ok)
	}
	require.Equal(t, uint64(4), c.Value())
}

func TestDistance(t *testing.T) {
	require.Equal(t, uint64(6), Distance(16, 65530, 4))
	require.Equal(t, uint64(0), Distance(16, 10, 10))
}

func TestPeekDoesNotMutate(t *testing.T) {
	c := New(16, 100)
	_, ok := c.Peek(105)
	require.True(t, ok)
	require.Equal(t, uint64(100), c.Value())
}
