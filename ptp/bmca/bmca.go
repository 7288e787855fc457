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

// Package bmca implements the ordinary-clock dataset comparison of
// IEEE 1588-2008 section 9.3.4, used to pick the best Announce among the
// set currently being received on a port.
package bmca

import "github.com/ravennakit/ravennakit/ptp/wireformat"

// Result is the outcome of comparing two Announce messages.
type Result int8

const (
	// ABetterTopo means A wins on steps-removed/port-identity topology, not dataset.
	ABetterTopo Result = 2
	// ABetter means A wins on the Announce dataset comparison.
	ABetter Result = 1
	// Equal means the two datasets are identical.
	Equal Result = 0
	// BBetter means B wins on the Announce dataset comparison.
	BBetter Result = -1
	// BBetterTopo means B wins on steps-removed/port-identity topology, not dataset.
	BBetterTopo Result = -2
)

// Candidate is the subset of an Announce message the comparison needs.
type Candidate struct {
	GrandmasterIdentity  wireformat.ClockIdentity
	GrandmasterPriority1 uint8
	GrandmasterPriority2 uint8
	ClockQuality         wireformat.ClockQuality
	StepsRemoved         uint16
	SourcePortIdentity   wireformat.PortIdentity
}

func comparePortIdentity(a, b wireformat.PortIdentity) int {
	return a.Compare(b)
}

// compareTopo breaks a tie between two Announces from the same grandmaster
// by steps-removed, then falls back to the advertising port identity.
func compareTopo(a, b Candidate) Result {
	if a.StepsRemoved+1 < b.StepsRemoved {
		return ABetter
	}
	if b.StepsRemoved+1 < a.StepsRemoved {
		return BBetter
	}
	switch comparePortIdentity(a.SourcePortIdentity, b.SourcePortIdentity) {
	case -1:
		return ABetterTopo
	case 1:
		return BBetterTopo
	default:
		return Equal
	}
}

// Compare orders two Announce candidates per IEEE 1588-2008 9.3.4. If both
// name the same grandmaster, stepsRemoved and then the advertising port
// identity decide. Otherwise priority1, clockClass, clockAccuracy,
// offsetScaledLogVariance, priority2, then grandmaster identity (lower wins).
func Compare(a, b Candidate) Result {
	if a.GrandmasterIdentity == b.GrandmasterIdentity {
		return compareTopo(a, b)
	}
	if a.GrandmasterPriority1 != b.GrandmasterPriority1 {
		if a.GrandmasterPriority1 < b.GrandmasterPriority1 {
			return ABetter
		}
		return BBetter
	}
	if a.ClockQuality.ClockClass != b.ClockQuality.ClockClass {
		if a.ClockQuality.ClockClass < b.ClockQuality.ClockClass {
			return ABetter
		}
		return BBetter
	}
	if a.ClockQuality.ClockAccuracy != b.ClockQuality.ClockAccuracy {
		if a.ClockQuality.ClockAccuracy < b.ClockQuality.ClockAccuracy {
			return ABetter
		}
		return BBetter
	}
	if a.ClockQuality.OffsetScaledLogVariance != b.ClockQuality.OffsetScaledLogVariance {
		if a.ClockQuality.OffsetScaledLogVariance < b.ClockQuality.OffsetScaledLogVariance {
			return ABetter
		}
		return BBetter
	}
	if a.GrandmasterPriority2 != b.GrandmasterPriority2 {
		if a.GrandmasterPriority2 < b.GrandmasterPriority2 {
			return ABetter
		}
		return BBetter
	}
	if a.GrandmasterIdentity < b.GrandmasterIdentity {
		return ABetter
	}
	return BBetter
}

// CandidateFromAnnounce extracts the comparable dataset from a decoded
// Announce message.
func CandidateFromAnnounce(a *wireformat.Announce) Candidate {
	return Candidate{
		GrandmasterIdentity:  a.GrandmasterIdentity,
		GrandmasterPriority1: a.GrandmasterPriority1,
		GrandmasterPriority2: a.GrandmasterPriority2,
		ClockQuality:         a.GrandmasterClockQuality,
		StepsRemoved:         a.StepsRemoved,
		SourcePortIdentity:   a.Header.SourcePortIdentity,
	}
}

// Best returns the winner of candidates by repeated pairwise Compare,
// or the zero Candidate and false if candidates is empty.
func Best(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if Compare(c, best) > 0 {
			best = c
		}
	}
	return best, true
}
