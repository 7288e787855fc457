package wireformat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderFlagOctetsAllSet(t *testing.T) {
	major, minor := NewFullSdoID(0xf22)
	h := Header{
		SdoIDAndMsgType: NewSdoIDAndMsgType(MessageManagement, major),
		MinorSdoID:      minor,
		VersionPTP:      NewVersionPTP(2, 1),
		MessageLength:   300,
		DomainNumber:    1,
		FlagField: FlagAlternateMaster | FlagTwoStep | FlagUnicast |
			FlagProfileSpecific1 | FlagProfileSpecific2 |
			FlagLeap61 | FlagLeap59 | FlagUTCOffsetValid | FlagPTPTimescale |
			FlagTimeTraceable | FlagFrequencyTraceable | FlagSynchronizationUncertain,
	}
	b := make([]byte, HeaderSize)
	_, err := h.MarshalBinaryTo(b)
	require.NoError(t, err)
	require.Equal(t, byte(0x67), b[6])
	require.Equal(t, byte(0x7F), b[7])
	require.Equal(t, uint16(0xf22), h.FullSdoID())
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		SdoIDAndMsgType:    NewSdoIDAndMsgType(MessageAnnounce, 0),
		VersionPTP:         NewVersionPTP(2, 1),
		MessageLength:      64,
		DomainNumber:       5,
		FlagField:          FlagPTPTimescale,
		CorrectionField:    -12345,
		SourcePortIdentity: PortIdentity{ClockIdentity: 0x0011223344556677, PortNumber: 1},
		SequenceID:         42,
		ControlField:       5,
		LogMessageInterval: -3,
	}
	b := make([]byte, HeaderSize)
	_, err := h.MarshalBinaryTo(b)
	require.NoError(t, err)
	got, err := UnmarshalHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestClockIdentityString(t *testing.T) {
	id := ClockIdentity(0x39A794FFFE07CBD0)
	require.Equal(t, "39-A7-94-FF-FE-07-CB-D0", id.String())
}

func TestMessageTypeString(t *testing.T) {
	require.Equal(t, "ANNOUNCE", MessageAnnounce.String())
	require.Equal(t, "MANAGEMENT", MessageManagement.String())
}
