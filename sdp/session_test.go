package sdp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ravennakit/ravennakit/audio"
)

func sampleSession(t *testing.T) Session {
	t.Helper()
	format, err := NewFormat(98, audio.EncodingPCMS24, 48000, 8)
	require.NoError(t, err)

	framecount := uint32(48)
	syncTime := uint32(0)
	return Session{
		Origin: Origin{
			Username:       "-",
			SessionID:      1,
			SessionVersion: 1,
			UnicastAddress: "192.168.1.10",
		},
		Name:           "studio-a",
		ConnectionAddr: "239.1.2.3/32",
		RefClock:       &RefClock{GrandmasterID: "39-A7-94-FF-FE-07-CB-D0", Domain: 5},
		MediaClock:     &MediaClock{Offset: 0},
		ClockDomain:    "PTPv2 0",
		Media: []MediaDescription{
			{
				MediaType:     "audio",
				Port:          5004,
				Proto:         "RTP/AVP",
				Formats:       []Format{format},
				Direction:     DirectionRecvOnly,
				HasPTime:      true,
				PTimeMs:       1,
				HasFramecount: true,
				Framecount:    framecount,
				SyncTime:      &syncTime,
			},
		},
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	s := sampleSession(t)
	raw, err := s.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(raw)
	require.NoError(t, err)

	require.Equal(t, s.Origin, got.Origin)
	require.Equal(t, s.Name, got.Name)
	require.Equal(t, s.ConnectionAddr, got.ConnectionAddr)
	require.Equal(t, *s.RefClock, *got.RefClock)
	require.Equal(t, s.ClockDomain, got.ClockDomain)
	require.Len(t, got.Media, 1)
	require.Equal(t, s.Media[0].Formats[0].Encoding, got.Media[0].Formats[0].Encoding)
	require.Equal(t, s.Media[0].Formats[0].SampleRate, got.Media[0].Formats[0].SampleRate)
	require.Equal(t, s.Media[0].Formats[0].Channels, got.Media[0].Formats[0].Channels)
	require.Equal(t, s.Media[0].Framecount, got.Media[0].Framecount)
	require.Equal(t, s.Media[0].Direction, got.Media[0].Direction)
	require.Equal(t, *s.Media[0].SyncTime, *got.Media[0].SyncTime)
}

// TestRefClockRoundTripExactLine pins boundary scenario #4: the exact
// line must reparse to the documented fields and reserialize byte for
// byte identical.
func TestRefClockRoundTripExactLine(t *testing.T) {
	const line = "ptp=IEEE1588-2008:39-A7-94-FF-FE-07-CB-D0:5"
	rc, err := ParseRefClock(line)
	require.NoError(t, err)
	require.Equal(t, "39-A7-94-FF-FE-07-CB-D0", rc.GrandmasterID)
	require.Equal(t, uint8(5), rc.Domain)
	require.Equal(t, line, rc.String())
}

func TestEncodingTableHasNoFallthrough(t *testing.T) {
	cases := []struct {
		enc  audio.Encoding
		name string
	}{
		{audio.EncodingPCMU8, "L8"},
		{audio.EncodingPCMS16, "L16"},
		{audio.EncodingPCMS24, "L24"},
		{audio.EncodingPCMS32, "L32"},
	}
	for _, c := range cases {
		name, err := encodingToName(c.enc)
		require.NoError(t, err)
		require.Equal(t, c.name, name)

		enc, err := nameToEncoding(c.name)
		require.NoError(t, err)
		require.Equal(t, c.enc, enc)
	}
}

func TestEncodingTableRejectsFloat(t *testing.T) {
	_, err := encodingToName(audio.EncodingPCMFloat)
	require.Error(t, err)
}

func TestFormatWithoutRtpmapRetainsOnlyPayloadType(t *testing.T) {
	s := sampleSession(t)
	s.Media[0].Formats = append(s.Media[0].Formats, Format{PayloadType: 99})
	raw, err := s.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Len(t, got.Media[0].Formats, 2)
	require.False(t, got.Media[0].Formats[1].HasRtpmap)
	require.Equal(t, uint8(99), got.Media[0].Formats[1].PayloadType)
}

func TestSourceFilterRoundTrip(t *testing.T) {
	s := sampleSession(t)
	s.Media[0].SourceFilter = &SourceFilter{
		Mode:        "incl",
		NetworkType: "IN",
		AddressType: "IP4",
		Destination: "239.1.2.3",
		Sources:     []string{"192.168.1.10"},
	}
	raw, err := s.Marshal()
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "a=source-filter:incl IN IP4 239.1.2.3 192.168.1.10"))

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	require.NotNil(t, got.Media[0].SourceFilter)
	require.Equal(t, *s.Media[0].SourceFilter, *got.Media[0].SourceFilter)
}

func TestGroupDupRoundTrip(t *testing.T) {
	s := sampleSession(t)
	s.GroupDup = []string{"1", "2"}
	raw, err := s.Marshal()
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "a=group:DUP 1 2"))

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, got.GroupDup)
}

func TestMediaClockWithRateRoundTrip(t *testing.T) {
	mc := MediaClock{Offset: 0, HasRate: true, RateNum: 48000, RateDen: 1}
	require.Equal(t, "direct=0 rate=48000/1", mc.String())

	parsed, err := ParseMediaClock("direct=0 rate=48000/1")
	require.NoError(t, err)
	require.Equal(t, mc, parsed)
}
