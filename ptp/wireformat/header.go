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

// HeaderSize is the common PTP header length in bytes, Table 35.
const HeaderSize = 34

// Flag bits within FlagField, Table 37. The field is transmitted as two
// octets; bit numbers below are given as octet.bit per spec section 4.1.
const (
	// first octet (high byte of FlagField)
	FlagAlternateMaster  uint16 = 1 << (8 + 0)
	FlagTwoStep          uint16 = 1 << (8 + 1)
	FlagUnicast          uint16 = 1 << (8 + 2)
	FlagProfileSpecific1 uint16 = 1 << (8 + 5)
	FlagProfileSpecific2 uint16 = 1 << (8 + 6)
	// second octet (low byte of FlagField)
	FlagLeap61                   uint16 = 1 << 0
	FlagLeap59                   uint16 = 1 << 1
	FlagUTCOffsetValid           uint16 = 1 << 2
	FlagPTPTimescale             uint16 = 1 << 3
	FlagTimeTraceable            uint16 = 1 << 4
	FlagFrequencyTraceable       uint16 = 1 << 5
	FlagSynchronizationUncertain uint16 = 1 << 6
)

// Header is the common PTP message header, Table 35. The 12-bit sdoId
// (Table 34) is split across SdoIDAndMsgType's high nibble (majorSdoId) and
// MinorSdoID (the full low byte); FullSdoID reassembles the pair.
type Header struct {
	SdoIDAndMsgType    SdoIDAndMsgType
	VersionPTP         uint8 // major in low nibble, minor in high nibble
	MessageLength      uint16
	DomainNumber       uint8
	MinorSdoID         uint8
	FlagField          uint16
	CorrectionField    int64 // 48.16 signed fixed-point nanoseconds
	SourcePortIdentity PortIdentity
	SequenceID         uint16
	ControlField       uint8
	LogMessageInterval int8
}

// MessageType returns the message type packed into the first header byte.
func (h *Header) MessageType() MessageType { return h.SdoIDAndMsgType.MsgType() }

// FullSdoID reassembles the 12-bit sdoId from the majorSdoId nibble and
// MinorSdoID byte.
func (h Header) FullSdoID() uint16 {
	return uint16(h.SdoIDAndMsgType.SdoID())<<8 | uint16(h.MinorSdoID)
}

// NewFullSdoID splits a 12-bit sdoId into the majorSdoId nibble (for
// SdoIDAndMsgType) and the MinorSdoID byte.
func NewFullSdoID(sdoID uint16) (majorNibble, minorByte uint8) {
	return uint8(sdoID >> 8 & 0xf), uint8(sdoID & 0xff)
}

// MarshalBinaryTo packs the header into b, which must be at least
// HeaderSize bytes, and returns the number of bytes written.
func (h *Header) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("wireformat: header needs %d bytes, got %d", HeaderSize, len(b))
	}
	b[0] = byte(h.SdoIDAndMsgType)
	b[1] = h.VersionPTP
	binary.BigEndian.PutUint16(b[2:], h.MessageLength)
	b[4] = h.DomainNumber
	b[5] = h.MinorSdoID
	binary.BigEndian.PutUint16(b[6:], h.FlagField)
	binary.BigEndian.PutUint64(b[8:], uint64(h.CorrectionField))
	binary.BigEndian.PutUint32(b[16:], 0) // reserved (messageTypeSpecific)
	binary.BigEndian.PutUint64(b[20:], uint64(h.SourcePortIdentity.ClockIdentity))
	binary.BigEndian.PutUint16(b[28:], h.SourcePortIdentity.PortNumber)
	binary.BigEndian.PutUint16(b[30:], h.SequenceID)
	b[32] = h.ControlField
	b[33] = byte(h.LogMessageInterval)
	return HeaderSize, nil
}

// UnmarshalHeader reads a Header from the front of b.
func UnmarshalHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("wireformat: need %d bytes for header, got %d", HeaderSize, len(b))
	}
	var h Header
	h.SdoIDAndMsgType = SdoIDAndMsgType(b[0])
	h.VersionPTP = b[1]
	h.MessageLength = binary.BigEndian.Uint16(b[2:])
	h.DomainNumber = b[4]
	h.MinorSdoID = b[5]
	h.FlagField = binary.BigEndian.Uint16(b[6:])
	h.CorrectionField = int64(binary.BigEndian.Uint64(b[8:]))
	h.SourcePortIdentity.ClockIdentity = ClockIdentity(binary.BigEndian.Uint64(b[20:]))
	h.SourcePortIdentity.PortNumber = binary.BigEndian.Uint16(b[28:])
	h.SequenceID = binary.BigEndian.Uint16(b[30:])
	h.ControlField = b[32]
	h.LogMessageInterval = int8(b[33])
	return h, nil
}

// VersionMajor returns the PTP major version (always 2 for this profile).
func (h Header) VersionMajor() uint8 { return h.VersionPTP & 0x0f }

// VersionMinor returns the PTP minor version.
func (h Header) VersionMinor() uint8 { return h.VersionPTP >> 4 }

// NewVersionPTP packs a major/minor version pair into the wire byte.
func NewVersionPTP(major, minor uint8) uint8 { return minor<<4 | (major & 0x0f) }

// ProbeMessageType reads only the first byte of data to determine the
// message type without a full unmarshal.
func ProbeMessageType(data []byte) (MessageType, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("wireformat: empty packet")
	}
	return SdoIDAndMsgType(data[0]).MsgType(), nil
}
