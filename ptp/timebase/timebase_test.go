package timebase

import (
	"testing"
	"time"

	"github.com/ravennakit/ravennakit/ptp/wireformat"
	"github.com/stretchr/testify/require"
)

func testAnnounce(gmID wireformat.ClockIdentity, prio1 uint8, domain uint8) *wireformat.Announce {
	a := &wireformat.Announce{}
	a.Header.DomainNumber = domain
	a.Header.SequenceID = 1
	a.Header.SourcePortIdentity = wireformat.PortIdentity{ClockIdentity: gmID, PortNumber: 1}
	a.GrandmasterIdentity = gmID
	a.GrandmasterPriority1 = prio1
	a.GrandmasterPriority2 = 128
	a.GrandmasterClockQuality = wireformat.ClockQuality{
		ClockClass:              6,
		ClockAccuracy:           wireformat.ClockAccuracyWithin25ns,
		OffsetScaledLogVariance: 0x4000,
	}
	a.StepsRemoved = 0
	return a
}

func TestOnAnnounceSelectsBestAndEmitsParentChanged(t *testing.T) {
	tb := New(0)
	var events []Event
	tb.Subscribe(func(ev Event) { events = append(events, ev) })

	tb.mu.Lock()
	tb.onAnnounce(testAnnounce(0x01, 200, 0))
	tb.mu.Unlock()

	gm, ok := tb.GrandmasterIdentity()
	require.True(t, ok)
	require.Equal(t, wireformat.ClockIdentity(0x01), gm)
	require.Equal(t, wireformat.PortStateUncalibrated, tb.PortState())
	require.NotEmpty(t, events)

	tb.mu.Lock()
	tb.onAnnounce(testAnnounce(0x02, 10, 0))
	tb.mu.Unlock()

	gm, _ = tb.GrandmasterIdentity()
	require.Equal(t, wireformat.ClockIdentity(0x02), gm)
}

func TestOnAnnounceWrongDomainIgnored(t *testing.T) {
	tb := New(0)
	tb.mu.Lock()
	tb.onAnnounce(testAnnounce(0x01, 128, 5))
	tb.mu.Unlock()
	_, ok := tb.GrandmasterIdentity()
	require.False(t, ok)
}

func TestApplyOffsetAndLocalToPTP(t *testing.T) {
	tb := New(0)
	ts := wireformat.Timestamp{Seconds: wireformat.NewPTPSeconds(1000), Nanos: 500}
	tb.mu.Lock()
	tb.applyOffset(ts, 0, 1_000_000_000)
	tb.mu.Unlock()

	out, err := tb.LocalToPTP(1_000_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), out.Seconds.Uint64())
}

func TestLocalToPTPBeforeMappingIsNotFound(t *testing.T) {
	tb := New(0)
	_, err := tb.LocalToPTP(1)
	require.Error(t, err)
}

func TestMalformedPacketDroppedAndCounted(t *testing.T) {
	tb := New(0)
	tb.handleDatagram([]byte{0x00, 0x01}, 1)
	require.Equal(t, uint64(1), tb.Stats().MalformedPackets)
}

func TestCheckAnnounceTimeoutDemotesSlave(t *testing.T) {
	tb := New(0)
	tb.mu.Lock()
	tb.onAnnounce(testAnnounce(0x01, 128, 0))
	tb.state = wireformat.PortStateSlave
	tb.lastAnnTime = time.Now().Add(-time.Second)
	tb.mu.Unlock()

	tb.CheckAnnounceTimeout(100 * time.Millisecond)
	require.Equal(t, wireformat.PortStateListening, tb.PortState())
}

func TestCheckAnnounceTimeoutNoOpWhenRecent(t *testing.T) {
	tb := New(0)
	tb.mu.Lock()
	tb.onAnnounce(testAnnounce(0x01, 128, 0))
	tb.state = wireformat.PortStateSlave
	tb.lastAnnTime = time.Now()
	tb.mu.Unlock()

	tb.CheckAnnounceTimeout(time.Minute)
	require.Equal(t, wireformat.PortStateSlave, tb.PortState())
}
