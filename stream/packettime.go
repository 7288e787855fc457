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

import "math"

// SignaledPacketTimesUs are the AES67 packet times this profile signals,
// in microseconds (spec section 4.6.1). 333 microseconds is really
// 1000/3 - kept as an exact fraction rather than truncated to 333.
var SignaledPacketTimesUs = []float64{125, 250, 1000.0 / 3.0, 1000, 4000}

// FrameCountForPacketTime rounds sampleRate*nominalPtimeUs/1e6 to the
// nearest integer frame count, minimum 1. For sample rates that are a
// multiple of 48 kHz and a nominal ptime from SignaledPacketTimesUs, the
// result is exact; for other rates (e.g. 44100 Hz) it is the nearest
// integer, and the caller should re-derive the actual signaled ptime from
// the result with ActualPTimeMs rather than re-using the nominal value.
func FrameCountForPacketTime(sampleRate uint32, nominalPtimeUs float64) uint32 {
	frames := math.Round(float64(sampleRate) * nominalPtimeUs / 1e6)
	if frames < 1 {
		frames = 1
	}
	return uint32(frames)
}

// ActualPTimeMs is the signaled ptime (spec section 4.6.1: "signaled
// ptime equals framecount/sample_rate x 1000") derived from a concrete
// frame count, which may differ slightly from the nominal ptime that
// produced it when sampleRate is not a multiple of 48 kHz.
func ActualPTimeMs(framecount, sampleRate uint32) float64 {
	if sampleRate == 0 {
		return 0
	}
	return float64(framecount) / float64(sampleRate) * 1000.0
}
