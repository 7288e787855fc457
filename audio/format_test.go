package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesPerFrame(t *testing.T) {
	f := Format{Encoding: EncodingPCMS24, SampleRate: 48000, NumChannels: 2}
	require.Equal(t, 6, f.BytesPerFrame())
}

func TestEncodingString(t *testing.T) {
	require.Equal(t, "pcm_s16", EncodingPCMS16.String())
}

func TestInterleavingString(t *testing.T) {
	require.Equal(t, "non-interleaved", NonInterleaved.String())
	require.Equal(t, "interleaved", Interleaved.String())
}

func TestParseEncoding_RoundTripsWithString(t *testing.T) {
	for _, enc := range []Encoding{EncodingPCMU8, EncodingPCMS16, EncodingPCMS24, EncodingPCMS32, EncodingPCMFloat, EncodingPCMDouble} {
		got, err := ParseEncoding(enc.String())
		require.NoError(t, err)
		require.Equal(t, enc, got)
	}
}

func TestParseEncoding_RejectsUnknown(t *testing.T) {
	_, err := ParseEncoding("pcm_s99")
	require.Error(t, err)
}
