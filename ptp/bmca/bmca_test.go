package bmca

import (
	"testing"

	"github.com/ravennakit/ravennakit/ptp/wireformat"
	"github.com/stretchr/testify/require"
)

func baseCandidate() Candidate {
	return Candidate{
		GrandmasterIdentity:  0x0011223344556677,
		GrandmasterPriority1: 128,
		GrandmasterPriority2: 128,
		ClockQuality: wireformat.ClockQuality{
			ClockClass:              6,
			ClockAccuracy:           wireformat.ClockAccuracyWithin25ns,
			OffsetScaledLogVariance: 0x4000,
		},
		StepsRemoved:       1,
		SourcePortIdentity: wireformat.PortIdentity{ClockIdentity: 1, PortNumber: 1},
	}
}

func TestComparePriority1Wins(t *testing.T) {
	a := baseCandidate()
	b := baseCandidate()
	b.GrandmasterIdentity = 0x00aabbccddeeff00
	b.GrandmasterPriority1 = 200
	require.Equal(t, ABetter, Compare(a, b))
	require.Equal(t, BBetter, Compare(b, a))
}

func TestCompareClockClassTiebreak(t *testing.T) {
	a := baseCandidate()
	b := baseCandidate()
	b.GrandmasterIdentity = 0x00aabbccddeeff00
	b.ClockQuality.ClockClass = 7
	require.Equal(t, ABetter, Compare(a, b))
}

func TestCompareSameGrandmasterUsesTopo(t *testing.T) {
	a := baseCandidate()
	b := baseCandidate()
	b.StepsRemoved = 3
	require.Equal(t, ABetter, Compare(a, b))
}

func TestCompareSameGrandmasterPortIdentityTiebreak(t *testing.T) {
	a := baseCandidate()
	b := baseCandidate()
	b.SourcePortIdentity = wireformat.PortIdentity{ClockIdentity: 2, PortNumber: 1}
	require.Equal(t, ABetterTopo, Compare(a, b))
}

func TestBestPicksHighestRanked(t *testing.T) {
	low := baseCandidate()
	low.GrandmasterIdentity = 0x01
	low.GrandmasterPriority1 = 200
	high := baseCandidate()
	high.GrandmasterIdentity = 0x02
	high.GrandmasterPriority1 = 10

	best, ok := Best([]Candidate{low, high})
	require.True(t, ok)
	require.Equal(t, high, best)
}

func TestBestEmpty(t *testing.T) {
	_, ok := Best(nil)
	require.False(t, ok)
}

func TestCandidateFromAnnounce(t *testing.T) {
	a := &wireformat.Announce{}
	a.GrandmasterIdentity = 0x0102030405060708
	a.Header.SourcePortIdentity = wireformat.PortIdentity{ClockIdentity: 9, PortNumber: 2}
	c := CandidateFromAnnounce(a)
	require.Equal(t, a.GrandmasterIdentity, c.GrandmasterIdentity)
	require.Equal(t, a.Header.SourcePortIdentity, c.SourcePortIdentity)
}
