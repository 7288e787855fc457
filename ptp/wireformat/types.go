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

// Package wireformat packs and unpacks IEEE 1588-2008 PTP messages as
// described in spec section 4.1, clause 13 of the standard.
package wireformat

import (
	"fmt"
	"net"
)

// MessageType is the PTP message type, Table 36.
type MessageType uint8

// Values of messageType, Table 36.
const (
	MessageSync               MessageType = 0x0
	MessageDelayReq           MessageType = 0x1
	MessagePDelayReq          MessageType = 0x2
	MessagePDelayResp         MessageType = 0x3
	MessageFollowUp           MessageType = 0x8
	MessageDelayResp          MessageType = 0x9
	MessagePDelayRespFollowUp MessageType = 0xA
	MessageAnnounce           MessageType = 0xB
	MessageSignaling          MessageType = 0xC
	MessageManagement         MessageType = 0xD
)

var messageTypeNames = map[MessageType]string{
	MessageSync:               "SYNC",
	MessageDelayReq:           "DELAY_REQ",
	MessagePDelayReq:          "PDELAY_REQ",
	MessagePDelayResp:         "PDELAY_RESP",
	MessageFollowUp:           "FOLLOW_UP",
	MessageDelayResp:          "DELAY_RESP",
	MessagePDelayRespFollowUp: "PDELAY_RESP_FOLLOW_UP",
	MessageAnnounce:           "ANNOUNCE",
	MessageSignaling:          "SIGNALING",
	MessageManagement:         "MANAGEMENT",
}

func (m MessageType) String() string {
	if s, ok := messageTypeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("MessageType(0x%x)", uint8(m))
}

// SdoIDAndMsgType packs the 4-bit sdoId nibble and 4-bit messageType into
// the first header byte.
type SdoIDAndMsgType uint8

// MsgType extracts the MessageType.
func (m SdoIDAndMsgType) MsgType() MessageType { return MessageType(m & 0xf) }

// SdoID extracts the 4-bit sdoId nibble.
func (m SdoIDAndMsgType) SdoID() uint8 { return uint8(m >> 4) }

// NewSdoIDAndMsgType packs a MessageType and a 4-bit sdoId nibble.
func NewSdoIDAndMsgType(msgType MessageType, sdoID uint8) SdoIDAndMsgType {
	return SdoIDAndMsgType(sdoID<<4 | uint8(msgType))
}

// ClockIdentity is the 8-byte EUI-64-style opaque clock identifier.
type ClockIdentity uint64

func (c ClockIdentity) String() string {
	b := make([]byte, 0, 23)
	for i := 7; i >= 0; i-- {
		if i != 7 {
			b = append(b, '-')
		}
		octet := byte(c >> (uint(i) * 8))
		b = append(b, hexDigit(octet>>4), hexDigit(octet&0xf))
	}
	return string(b)
}

func hexDigit(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return 'A' + v - 10
}

// NewClockIdentityFromMAC derives a ClockIdentity from a MAC-48 address per
// the common EUI-64 convention: insert 0xFFFE between the OUI and the NIC
// bytes.
func NewClockIdentityFromMAC(mac net.HardwareAddr) (ClockIdentity, error) {
	if len(mac) != 6 {
		return 0, fmt.Errorf("wireformat: MAC-48 address required, got %d bytes", len(mac))
	}
	eui := [8]byte{mac[0], mac[1], mac[2], 0xff, 0xfe, mac[3], mac[4], mac[5]}
	var v uint64
	for _, b := range eui {
		v = v<<8 | uint64(b)
	}
	return ClockIdentity(v), nil
}

// PortIdentity identifies a PTP port: the owning clock identity plus a
// 16-bit port number.
type PortIdentity struct {
	ClockIdentity ClockIdentity
	PortNumber    uint16
}

func (p PortIdentity) String() string {
	return fmt.Sprintf("%s-%d", p.ClockIdentity, p.PortNumber)
}

// Compare orders PortIdentity by ClockIdentity then PortNumber, returning
// -1, 0 or 1. Used as the final BMCA tiebreaker.
func (p PortIdentity) Compare(q PortIdentity) int {
	if p.ClockIdentity != q.ClockIdentity {
		if p.ClockIdentity < q.ClockIdentity {
			return -1
		}
		return 1
	}
	if p.PortNumber != q.PortNumber {
		if p.PortNumber < q.PortNumber {
			return -1
		}
		return 1
	}
	return 0
}

// PTPSeconds is the 48-bit wire representation of whole seconds.
type PTPSeconds [6]byte

// Uint64 returns the seconds as a uint64.
func (s PTPSeconds) Uint64() uint64 {
	var v uint64
	for _, b := range s {
		v = v<<8 | uint64(b)
	}
	return v
}

// NewPTPSeconds truncates v to the low 48 bits.
func NewPTPSeconds(v uint64) PTPSeconds {
	var s PTPSeconds
	for i := 5; i >= 0; i-- {
		s[i] = byte(v)
		v >>= 8
	}
	return s
}

// Timestamp is a PTP event timestamp: 48-bit seconds plus 32-bit nanoseconds.
type Timestamp struct {
	Seconds PTPSeconds
	Nanos   uint32
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%09d", t.Seconds.Uint64(), t.Nanos)
}

// ClockClass, Table 5.
type ClockClass uint8

// ClockAccuracy, Table 6 (partial set needed by this profile).
type ClockAccuracy uint8

// Accuracy values used by the comparison algorithm and test fixtures.
const (
	ClockAccuracyWithin25ns ClockAccuracy = 0x20
	ClockAccuracyUnknown    ClockAccuracy = 0xFE
)

// ClockQuality, Table 7.
type ClockQuality struct {
	ClockClass              ClockClass
	ClockAccuracy           ClockAccuracy
	OffsetScaledLogVariance uint16
}

// TimeSource, Table 8.
type TimeSource uint8

// Values of the timeSource field.
const (
	TimeSourceAtomicClock        TimeSource = 0x10
	TimeSourceGNSS               TimeSource = 0x20
	TimeSourceTerrestrialRadio   TimeSource = 0x30
	TimeSourcePTP                TimeSource = 0x40
	TimeSourceNTP                TimeSource = 0x50
	TimeSourceHandSet            TimeSource = 0x60
	TimeSourceOther              TimeSource = 0x90
	TimeSourceInternalOscillator TimeSource = 0xA0
)

// PortState is the 802.1AS/1588 port state machine, section 4.1.
type PortState uint8

// Port states.
const (
	PortStateInitializing PortState = iota + 1
	PortStateFaulty
	PortStateDisabled
	PortStateListening
	PortStatePreMaster
	PortStateMaster
	PortStatePassive
	PortStateUncalibrated
	PortStateSlave
)

var portStateNames = map[PortState]string{
	PortStateInitializing: "initializing",
	PortStateFaulty:       "faulty",
	PortStateDisabled:     "disabled",
	PortStateListening:    "listening",
	PortStatePreMaster:    "pre-master",
	PortStateMaster:       "master",
	PortStatePassive:      "passive",
	PortStateUncalibrated: "uncalibrated",
	PortStateSlave:        "slave",
}

func (s PortState) String() string {
	if n, ok := portStateNames[s]; ok {
		return n
	}
	return "unknown"
}
