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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameCountForPacketTime_48kHzExact(t *testing.T) {
	require.Equal(t, uint32(6), FrameCountForPacketTime(48000, 125))
	require.Equal(t, uint32(12), FrameCountForPacketTime(48000, 250))
	require.Equal(t, uint32(48), FrameCountForPacketTime(48000, 1000))
	require.Equal(t, uint32(192), FrameCountForPacketTime(48000, 4000))
}

func TestFrameCountForPacketTime_ThirdMillisecond(t *testing.T) {
	// 1000/3 us at 48 kHz is exactly 16 frames.
	require.Equal(t, uint32(16), FrameCountForPacketTime(48000, SignaledPacketTimesUs[2]))
}

func TestFrameCountForPacketTime_NonMultipleSampleRate(t *testing.T) {
	// 44100 Hz at 1ms nominal rounds to 44 frames, not an exact 44.1.
	require.Equal(t, uint32(44), FrameCountForPacketTime(44100, 1000))
}

func TestFrameCountForPacketTime_MinimumOneFrame(t *testing.T) {
	require.Equal(t, uint32(1), FrameCountForPacketTime(8000, 1))
}

func TestActualPTimeMs_MatchesNominalWhenExact(t *testing.T) {
	require.InDelta(t, 1.0, ActualPTimeMs(48, 48000), 1e-9)
}

func TestActualPTimeMs_DivergesFromNominalWhenRounded(t *testing.T) {
	// The rounded 44-frame packet at 44100 Hz plays back at slightly under
	// 1ms, not exactly 1ms - callers must re-derive the actual ptime rather
	// than reusing the nominal value they started from.
	got := ActualPTimeMs(44, 44100)
	require.Less(t, got, 1.0)
	require.InDelta(t, 0.9977, got, 1e-3)
}

func TestActualPTimeMs_ZeroSampleRate(t *testing.T) {
	require.Equal(t, 0.0, ActualPTimeMs(48, 0))
}
