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

// Package rtp implements the RFC 3550 transport layer (C5): packet
// encode/decode on top of github.com/pion/rtp, multicast-capable transmit
// and receive sockets, and a packetizer/depacketizer pair that tracks
// sequence/timestamp wraparound with the wrapping package.
package rtp

import (
	pionrtp "github.com/pion/rtp"

	"github.com/ravennakit/ravennakit/ravennaerr"
)

// Packet wraps pion/rtp.Packet with the fixed 12-byte header fields named
// in spec section 4.5.
type Packet struct {
	Version        uint8
	Padding        bool
	Extension      bool
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32
	Payload        []byte
}

// Encode marshals the packet into RTP wire format.
func (p Packet) Encode() ([]byte, error) {
	pkt := pionrtp.Packet{
		Header: pionrtp.Header{
			Version:        p.Version,
			Padding:        p.Padding,
			Extension:      p.Extension,
			Marker:         p.Marker,
			PayloadType:    p.PayloadType,
			SequenceNumber: p.SequenceNumber,
			Timestamp:      p.Timestamp,
			SSRC:           p.SSRC,
			CSRC:           p.CSRC,
		},
		Payload: p.Payload,
	}
	b, err := pkt.Marshal()
	if err != nil {
		return nil, ravennaerr.New(ravennaerr.ProtocolError, "rtp.Packet.Encode", err)
	}
	return b, nil
}

// Decode parses b as an RTP packet.
func Decode(b []byte) (Packet, error) {
	var pkt pionrtp.Packet
	if err := pkt.Unmarshal(b); err != nil {
		return Packet{}, ravennaerr.New(ravennaerr.InsufficientData, "rtp.Decode", err)
	}
	return Packet{
		Version:        pkt.Version,
		Padding:        pkt.Padding,
		Extension:      pkt.Extension,
		Marker:         pkt.Marker,
		PayloadType:    pkt.PayloadType,
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		SSRC:           pkt.SSRC,
		CSRC:           pkt.CSRC,
		Payload:        pkt.Payload,
	}, nil
}
