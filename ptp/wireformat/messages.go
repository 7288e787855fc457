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

package wireformat

import (
	"encoding/binary"
	"fmt"
)

// AnnounceBody, Table 43.
type AnnounceBody struct {
	OriginTimestamp         Timestamp
	CurrentUTCOffset        int16
	GrandmasterPriority1    uint8
	GrandmasterClockQuality ClockQuality
	GrandmasterPriority2    uint8
	GrandmasterIdentity     ClockIdentity
	StepsRemoved            uint16
	TimeSource              TimeSource
}

const announceBodySize = 10 + 2 + 1 + 1 + 4 + 1 + 8 + 2 + 1 // 30

// Announce is a full Announce message.
type Announce struct {
	Header
	AnnounceBody
}

// MarshalBinary encodes the Announce message.
func (a *Announce) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize+announceBodySize)
	a.Header.MessageLength = uint16(len(b))
	if _, err := a.Header.MarshalBinaryTo(b); err != nil {
		return nil, err
	}
	o := HeaderSize
	copy(b[o:o+6], a.OriginTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[o+6:], a.OriginTimestamp.Nanos)
	binary.BigEndian.PutUint16(b[o+10:], uint16(a.CurrentUTCOffset))
	b[o+13] = a.GrandmasterPriority1
	b[o+14] = uint8(a.GrandmasterClockQuality.ClockClass)
	b[o+15] = uint8(a.GrandmasterClockQuality.ClockAccuracy)
	binary.BigEndian.PutUint16(b[o+16:], a.GrandmasterClockQuality.OffsetScaledLogVariance)
	b[o+18] = a.GrandmasterPriority2
	binary.BigEndian.PutUint64(b[o+19:], uint64(a.GrandmasterIdentity))
	binary.BigEndian.PutUint16(b[o+27:], a.StepsRemoved)
	b[o+29] = uint8(a.TimeSource)
	return b, nil
}

// UnmarshalAnnounce decodes an Announce message, header included.
func UnmarshalAnnounce(b []byte) (*Announce, error) {
	if len(b) < HeaderSize+announceBodySize {
		return nil, fmt.Errorf("wireformat: announce needs %d bytes, got %d", HeaderSize+announceBodySize, len(b))
	}
	h, err := UnmarshalHeader(b)
	if err != nil {
		return nil, err
	}
	o := HeaderSize
	a := &Announce{Header: h}
	copy(a.OriginTimestamp.Seconds[:], b[o:o+6])
	a.OriginTimestamp.Nanos = binary.BigEndian.Uint32(b[o+6:])
	a.CurrentUTCOffset = int16(binary.BigEndian.Uint16(b[o+10:]))
	a.GrandmasterPriority1 = b[o+13]
	a.GrandmasterClockQuality.ClockClass = ClockClass(b[o+14])
	a.GrandmasterClockQuality.ClockAccuracy = ClockAccuracy(b[o+15])
	a.GrandmasterClockQuality.OffsetScaledLogVariance = binary.BigEndian.Uint16(b[o+16:])
	a.GrandmasterPriority2 = b[o+18]
	a.GrandmasterIdentity = ClockIdentity(binary.BigEndian.Uint64(b[o+19:]))
	a.StepsRemoved = binary.BigEndian.Uint16(b[o+27:])
	a.TimeSource = TimeSource(b[o+29])
	return a, nil
}

const eventBodySize = 10 // one Timestamp

// SyncDelayReq carries the single timestamp common to Sync and Delay_Req.
type SyncDelayReq struct {
	Header
	OriginTimestamp Timestamp
}

// MarshalBinary encodes a Sync or Delay_Req message.
func (s *SyncDelayReq) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize+eventBodySize)
	s.Header.MessageLength = uint16(len(b))
	if _, err := s.Header.MarshalBinaryTo(b); err != nil {
		return nil, err
	}
	copy(b[HeaderSize:HeaderSize+6], s.OriginTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[HeaderSize+6:], s.OriginTimestamp.Nanos)
	return b, nil
}

// UnmarshalSyncDelayReq decodes a Sync or Delay_Req message.
func UnmarshalSyncDelayReq(b []byte) (*SyncDelayReq, error) {
	if len(b) < HeaderSize+eventBodySize {
		return nil, fmt.Errorf("wireformat: sync/delay_req needs %d bytes, got %d", HeaderSize+eventBodySize, len(b))
	}
	h, err := UnmarshalHeader(b)
	if err != nil {
		return nil, err
	}
	s := &SyncDelayReq{Header: h}
	copy(s.OriginTimestamp.Seconds[:], b[HeaderSize:HeaderSize+6])
	s.OriginTimestamp.Nanos = binary.BigEndian.Uint32(b[HeaderSize+6:])
	return s, nil
}

// FollowUp carries the precise origin timestamp for a preceding two-step Sync.
type FollowUp struct {
	Header
	PreciseOriginTimestamp Timestamp
}

// MarshalBinary encodes a Follow_Up message.
func (f *FollowUp) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize+eventBodySize)
	f.Header.MessageLength = uint16(len(b))
	if _, err := f.Header.MarshalBinaryTo(b); err != nil {
		return nil, err
	}
	copy(b[HeaderSize:HeaderSize+6], f.PreciseOriginTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[HeaderSize+6:], f.PreciseOriginTimestamp.Nanos)
	return b, nil
}

// UnmarshalFollowUp decodes a Follow_Up message.
func UnmarshalFollowUp(b []byte) (*FollowUp, error) {
	if len(b) < HeaderSize+eventBodySize {
		return nil, fmt.Errorf("wireformat: follow_up needs %d bytes, got %d", HeaderSize+eventBodySize, len(b))
	}
	h, err := UnmarshalHeader(b)
	if err != nil {
		return nil, err
	}
	f := &FollowUp{Header: h}
	copy(f.PreciseOriginTimestamp.Seconds[:], b[HeaderSize:HeaderSize+6])
	f.PreciseOriginTimestamp.Nanos = binary.BigEndian.Uint32(b[HeaderSize+6:])
	return f, nil
}

// DelayResp answers a Delay_Req with the receive timestamp and the
// requestor's port identity.
type DelayResp struct {
	Header
	ReceiveTimestamp       Timestamp
	RequestingPortIdentity PortIdentity
}

const delayRespBodySize = eventBodySize + 10

// MarshalBinary encodes a Delay_Resp message.
func (d *DelayResp) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize+delayRespBodySize)
	d.Header.MessageLength = uint16(len(b))
	if _, err := d.Header.MarshalBinaryTo(b); err != nil {
		return nil, err
	}
	o := HeaderSize
	copy(b[o:o+6], d.ReceiveTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[o+6:], d.ReceiveTimestamp.Nanos)
	binary.BigEndian.PutUint64(b[o+10:], uint64(d.RequestingPortIdentity.ClockIdentity))
	binary.BigEndian.PutUint16(b[o+18:], d.RequestingPortIdentity.PortNumber)
	return b, nil
}

// UnmarshalDelayResp decodes a Delay_Resp message.
func UnmarshalDelayResp(b []byte) (*DelayResp, error) {
	if len(b) < HeaderSize+delayRespBodySize {
		return nil, fmt.Errorf("wireformat: delay_resp needs %d bytes, got %d", HeaderSize+delayRespBodySize, len(b))
	}
	h, err := UnmarshalHeader(b)
	if err != nil {
		return nil, err
	}
	o := HeaderSize
	d := &DelayResp{Header: h}
	copy(d.ReceiveTimestamp.Seconds[:], b[o:o+6])
	d.ReceiveTimestamp.Nanos = binary.BigEndian.Uint32(b[o+6:])
	d.RequestingPortIdentity.ClockIdentity = ClockIdentity(binary.BigEndian.Uint64(b[o+10:]))
	d.RequestingPortIdentity.PortNumber = binary.BigEndian.Uint16(b[o+18:])
	return d, nil
}

// DecodeAny probes the message type and decodes into the matching concrete
// type, returned as an interface{} for the caller to type-switch on.
func DecodeAny(b []byte) (any, error) {
	mt, err := ProbeMessageType(b)
	if err != nil {
		return nil, err
	}
	switch mt {
	case MessageAnnounce:
		return UnmarshalAnnounce(b)
	case MessageSync, MessageDelayReq:
		return UnmarshalSyncDelayReq(b)
	case MessageFollowUp:
		return UnmarshalFollowUp(b)
	case MessageDelayResp:
		return UnmarshalDelayResp(b)
	default:
		return nil, fmt.Errorf("wireformat: unsupported message type %s for this profile", mt)
	}
}
