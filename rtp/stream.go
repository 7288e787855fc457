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

package rtp

import "github.com/ravennakit/ravennakit/wrapping"

// Packetizer turns PCM payload chunks into RTP packets, advancing sequence
// number and timestamp for each emitted packet. SSRC is fixed for the
// stream's lifetime.
type Packetizer struct {
	ssrc        uint32
	payloadType uint8
	seq         uint16
	timestamp   uint32
	framecount  uint32
}

// NewPacketizer creates a packetizer with the given fixed SSRC/payload type
// and starting sequence/timestamp.
func NewPacketizer(ssrc uint32, payloadType uint8, startSeq uint16, startTimestamp uint32, framecount uint32) *Packetizer {
	return &Packetizer{
		ssrc:        ssrc,
		payloadType: payloadType,
		seq:         startSeq,
		timestamp:   startTimestamp,
		framecount:  framecount,
	}
}

// PeekTimestamp returns the RTP timestamp the next call to Next will use,
// without advancing any state.
func (p *Packetizer) PeekTimestamp() uint32 {
	return p.timestamp
}

// Next emits one packet from payload (exactly framecount*bytesPerFrame
// bytes) and advances the internal sequence/timestamp state, wrapping
// modulo 2^16/2^32 as needed.
func (p *Packetizer) Next(payload []byte, marker bool) Packet {
	pkt := Packet{
		Version:        2,
		Marker:         marker,
		PayloadType:    p.payloadType,
		SequenceNumber: p.seq,
		Timestamp:      p.timestamp,
		SSRC:           p.ssrc,
		Payload:        payload,
	}
	p.seq++
	p.timestamp += p.framecount
	return pkt
}

// Depacketizer tracks the expected sequence number of an incoming stream
// and flags loss/reordering via wrapping.Counter.
type Depacketizer struct {
	seqCounter wrapping.Counter
	started    bool

	lost      uint64
	reordered uint64
}

// NewDepacketizer creates a depacketizer with no established sequence yet.
func NewDepacketizer() *Depacketizer {
	return &Depacketizer{}
}

// Observe feeds one incoming packet's sequence number and reports whether
// it was accepted in order, and how many packets (if any) were detected
// lost before it.
func (d *Depacketizer) Observe(seq uint16) (lostBefore uint64, accepted bool) {
	if !d.started {
		d.seqCounter = wrapping.New(16, uint64(seq))
		d.started = true
		return 0, true
	}
	distance, ok := d.seqCounter.Update(uint64(seq))
	if !ok {
		d.reordered++
		return 0, false
	}
	if distance > 1 {
		d.lost += distance - 1
	}
	return distance - 1, true
}

// Stats returns loss/reorder counters accumulated so far.
func (d *Depacketizer) Stats() (lost, reordered uint64) {
	return d.lost, d.reordered
}
