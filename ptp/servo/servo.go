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

// Package servo estimates the offset and rate between the local monotonic
// clock and the PTP grandmaster from a stream of Sync/Follow_Up
// measurements, producing the linear fit consumed by ptp/timebase.
package servo

// State reports how a Sample call derived its rate estimate.
type State uint8

const (
	// StateColdStart means fewer than MinSyncPairs samples have been seen;
	// the raw, unfiltered offset is reported and the rate is reported as 1.0.
	StateColdStart State = iota
	// StateLocked means the IIR-filtered rate estimate is in effect.
	StateLocked
)

func (s State) String() string {
	if s == StateLocked {
		return "locked"
	}
	return "cold-start"
}

// MinSyncPairs is the minimum number of Sync/Follow_Up pairs required before
// the servo trusts its rate estimate over the raw instantaneous offset.
const MinSyncPairs = 8

// DefaultTimeConstant is the smoothing factor for the single-pole IIR rate
// filter: rate_new = rate_old + (sample - rate_old) / TimeConstant.
const DefaultTimeConstant = 16.0

// Servo tracks offsetNs = ptp - local (nanoseconds) across Sync/Follow_Up
// exchanges and fits a linear offset+rate model: ptp = offset + rate*local.
type Servo struct {
	TimeConstant float64

	count       int
	rate        float64 // dimensionless: ptp-seconds advanced per local-second
	lastOffset  int64
	lastLocalNs uint64
	haveLast    bool
}

// New creates a Servo with the given IIR time constant. A non-positive
// value falls back to DefaultTimeConstant.
func New(timeConstant float64) *Servo {
	if timeConstant <= 0 {
		timeConstant = DefaultTimeConstant
	}
	return &Servo{TimeConstant: timeConstant, rate: 1.0}
}

// Sample feeds one offset measurement (ptp - local, in nanoseconds, at the
// given local monotonic timestamp) into the servo and returns the current
// rate estimate and whether the servo is cold-starting or locked.
//
// During cold start (fewer than MinSyncPairs samples), Sample reports a
// rate of 1.0 (no correction) and the caller should apply the raw offset
// directly. Once locked, the rate estimate reflects the IIR-filtered
// instantaneous frequency ratio between the two clocks.
func (s *Servo) Sample(offsetNs int64, localNs uint64) (rate float64, state State) {
	s.count++
	defer func() {
		s.lastOffset = offsetNs
		s.lastLocalNs = localNs
		s.haveLast = true
	}()

	if !s.haveLast || localNs <= s.lastLocalNs {
		return 1.0, StateColdStart
	}

	localDelta := float64(localNs - s.lastLocalNs)
	if localDelta <= 0 {
		return s.rate, s.state()
	}
	offsetDelta := float64(offsetNs - s.lastOffset)
	instantaneous := 1.0 + offsetDelta/localDelta

	if s.count <= MinSyncPairs {
		s.rate = instantaneous
		return 1.0, StateColdStart
	}

	s.rate += (instantaneous - s.rate) / s.TimeConstant
	return s.rate, StateLocked
}

func (s *Servo) state() State {
	if s.count > MinSyncPairs {
		return StateLocked
	}
	return StateColdStart
}

// LastOffset returns the most recently sampled raw offset in nanoseconds.
func (s *Servo) LastOffset() int64 { return s.lastOffset }

// Reset clears accumulated history, returning the servo to cold start. Used
// when the port re-enters uncalibrated after a parent-dataset change.
func (s *Servo) Reset() {
	s.count = 0
	s.rate = 1.0
	s.haveLast = false
}
