package rtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketizerAdvancesSequenceAndTimestamp(t *testing.T) {
	p := NewPacketizer(0xAABBCCDD, 97, 65534, 0xFFFFFFF0, 48)
	first := p.Next(make([]byte, 192), false)
	require.Equal(t, uint16(65534), first.SequenceNumber)
	require.Equal(t, uint32(0xFFFFFFF0), first.Timestamp)

	second := p.Next(make([]byte, 192), false)
	require.Equal(t, uint16(65535), second.SequenceNumber)
	require.Equal(t, uint32(0x20), second.Timestamp) // 0xFFFFFFF0 + 48 wraps modulo 2^32

	third := p.Next(make([]byte, 192), false)
	require.Equal(t, uint16(0), third.SequenceNumber) // wraps
}

func TestDepacketizerDetectsLoss(t *testing.T) {
	d := NewDepacketizer()
	_, accepted := d.Observe(100)
	require.True(t, accepted)

	lostBefore, accepted := d.Observe(103)
	require.True(t, accepted)
	require.Equal(t, uint64(2), lostBefore)

	lost, _ := d.Stats()
	require.Equal(t, uint64(2), lost)
}

func TestDepacketizerRejectsOldPacket(t *testing.T) {
	d := NewDepacketizer()
	d.Observe(100)
	d.Observe(101)
	_, accepted := d.Observe(50)
	require.False(t, accepted)

	_, reordered := d.Stats()
	require.Equal(t, uint64(1), reordered)
}
