/*
Copyright (c) RAVENNA Kit contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stream

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ravennakit/ravennakit/audio"
	"github.com/ravennakit/ravennakit/discovery"
	"github.com/ravennakit/ravennakit/ptp/timebase"
	"github.com/ravennakit/ravennakit/ravennaerr"
	"github.com/ravennakit/ravennakit/rtp"
	"github.com/ravennakit/ravennakit/rtsp"
)

func newTestTransmitter(t *testing.T) *Transmitter {
	t.Helper()
	srv, err := rtsp.NewServer("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	tx, err := rtp.NewTransmitSocket(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}, 0)
	require.NoError(t, err)
	t.Cleanup(func() { tx.Close() })

	ptp := timebase.New(0)
	advertiser := discovery.NewMockBackend()

	return NewTransmitter(advertiser, srv, ptp, tx, 7, "test-session", net.IPv4(10, 0, 1, 5))
}

func TestMulticastDestination_DerivedFromInterfaceAddrAndID(t *testing.T) {
	got := multicastDestination(net.IPv4(10, 0, 1, 5), 7)
	require.Equal(t, net.IPv4(239, 1, 5, 7).To4(), got.To4())
}

func TestMulticastDestination_IDWrapsModulo255(t *testing.T) {
	got := multicastDestination(net.IPv4(10, 0, 1, 5), 256)
	require.Equal(t, byte(1), got.To4()[3])
}

func TestTxState_String(t *testing.T) {
	require.Equal(t, "idle", TxIdle.String())
	require.Equal(t, "configured", TxConfigured.String())
	require.Equal(t, "running", TxRunning.String())
}

func TestTransmitter_SetAudioFormatEntersConfigured(t *testing.T) {
	tr := newTestTransmitter(t)
	format := audio.Format{Encoding: audio.EncodingPCMS24, SampleRate: 48000, NumChannels: 2}

	err := tr.SetAudioFormat(format, SignaledPacketTimesUs[0])
	require.NoError(t, err)

	require.Equal(t, TxConfigured, tr.state)
	require.Equal(t, uint32(6), tr.framecount)
	require.InDelta(t, 0.125, tr.ptimeMs, 1e-9)
}

func TestTransmitter_SetAudioFormatRejectsUnsupportedEncoding(t *testing.T) {
	for _, enc := range []audio.Encoding{audio.EncodingPCMS32, audio.EncodingPCMFloat, audio.EncodingPCMDouble} {
		tr := newTestTransmitter(t)
		format := audio.Format{Encoding: enc, SampleRate: 48000, NumChannels: 2}

		err := tr.SetAudioFormat(format, SignaledPacketTimesUs[0])
		require.Error(t, err)
		require.True(t, ravennaerr.Is(err, ravennaerr.InvalidArgument))
		require.Equal(t, TxIdle, tr.state)
	}
}

func TestTransmitter_StartBeforeConfiguredFails(t *testing.T) {
	tr := newTestTransmitter(t)
	err := tr.Start(0)
	require.Error(t, err)
	require.True(t, ravennaerr.Is(err, ravennaerr.InvalidArgument))
}

func TestTransmitter_StartBeforePTPSlaveFails(t *testing.T) {
	tr := newTestTransmitter(t)
	format := audio.Format{Encoding: audio.EncodingPCMS24, SampleRate: 48000, NumChannels: 2}
	require.NoError(t, tr.SetAudioFormat(format, SignaledPacketTimesUs[0]))

	err := tr.Start(0)
	require.Error(t, err)
	require.True(t, ravennaerr.Is(err, ravennaerr.NotFound))
	require.Equal(t, TxConfigured, tr.state)
}

func TestTransmitter_StatsStartsAtZero(t *testing.T) {
	tr := newTestTransmitter(t)
	stats := tr.Stats()
	require.Zero(t, stats.PacketsSent)
	require.Zero(t, stats.Underruns)
}

func TestTransmitter_DescribeReturnsFalseWhileIdle(t *testing.T) {
	tr := newTestTransmitter(t)
	_, ok := tr.describe()
	require.False(t, ok)
}

func TestTransmitter_DescribeReturnsSDPOnceConfigured(t *testing.T) {
	tr := newTestTransmitter(t)
	format := audio.Format{Encoding: audio.EncodingPCMS24, SampleRate: 48000, NumChannels: 2}
	require.NoError(t, tr.SetAudioFormat(format, SignaledPacketTimesUs[0]))

	doc, ok := tr.describe()
	require.True(t, ok)
	require.Contains(t, string(doc), "test-session")
}
