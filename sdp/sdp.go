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

// Package sdp implements the session description model (C4): an
// AES67/RAVENNA-flavored layer of typed session and media-description
// attributes on top of github.com/pion/sdp/v3's generic SDP codec.
package sdp

import (
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"

	"github.com/ravennakit/ravennakit/audio"
	"github.com/ravennakit/ravennakit/ravennaerr"
)

// Direction is the a=recvonly|sendonly|sendrecv attribute of a media
// description.
type Direction uint8

const (
	DirectionNone Direction = iota
	DirectionSendRecv
	DirectionSendOnly
	DirectionRecvOnly
)

func (d Direction) String() string {
	switch d {
	case DirectionSendRecv:
		return "sendrecv"
	case DirectionSendOnly:
		return "sendonly"
	case DirectionRecvOnly:
		return "recvonly"
	default:
		return ""
	}
}

// Origin is the o= line.
type Origin struct {
	Username       string
	SessionID      uint64
	SessionVersion uint64
	NetworkType    string
	AddressType    string
	UnicastAddress string
}

// RefClock is the ts-refclk attribute: ptp=IEEE1588-2008:<gmid>:<domain>.
// Only the PTP form is produced or parsed by this profile; ParseRefClock
// rejects other forms (e.g. ts-refclk:ntp=...) with a ProtocolError, which
// makes Unmarshal fail.
type RefClock struct {
	GrandmasterID string
	Domain        uint8
}

func (r RefClock) String() string {
	return fmt.Sprintf("ptp=IEEE1588-2008:%s:%d", r.GrandmasterID, r.Domain)
}

// ParseRefClock parses the value of a ts-refclk attribute.
func ParseRefClock(v string) (RefClock, error) {
	const prefix = "ptp=IEEE1588-2008:"
	if !strings.HasPrefix(v, prefix) {
		return RefClock{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.ParseRefClock", fmt.Errorf("unsupported ts-refclk value %q", v))
	}
	rest := v[len(prefix):]
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return RefClock{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.ParseRefClock", fmt.Errorf("missing domain in ts-refclk value %q", v))
	}
	gmid := rest[:idx]
	domain, err := strconv.ParseUint(rest[idx+1:], 10, 8)
	if err != nil {
		return RefClock{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.ParseRefClock", fmt.Errorf("bad domain in ts-refclk value %q: %w", v, err))
	}
	return RefClock{GrandmasterID: gmid, Domain: uint8(domain)}, nil
}

// MediaClock is the mediaclk attribute: direct=<offset>[ rate=<n>/<d>].
type MediaClock struct {
	Offset  uint32
	HasRate bool
	RateNum uint32
	RateDen uint32
}

func (m MediaClock) String() string {
	s := fmt.Sprintf("direct=%d", m.Offset)
	if m.HasRate {
		s += fmt.Sprintf(" rate=%d/%d", m.RateNum, m.RateDen)
	}
	return s
}

// ParseMediaClock parses the value of a mediaclk attribute.
func ParseMediaClock(v string) (MediaClock, error) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return MediaClock{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.ParseMediaClock", fmt.Errorf("empty mediaclk value"))
	}
	const prefix = "direct="
	if !strings.HasPrefix(fields[0], prefix) {
		return MediaClock{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.ParseMediaClock", fmt.Errorf("mediaclk missing direct= in %q", v))
	}
	offset, err := strconv.ParseUint(fields[0][len(prefix):], 10, 32)
	if err != nil {
		return MediaClock{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.ParseMediaClock", fmt.Errorf("bad mediaclk offset in %q: %w", v, err))
	}
	mc := MediaClock{Offset: uint32(offset)}
	for _, f := range fields[1:] {
		if !strings.HasPrefix(f, "rate=") {
			continue
		}
		parts := strings.SplitN(f[len("rate="):], "/", 2)
		if len(parts) != 2 {
			return MediaClock{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.ParseMediaClock", fmt.Errorf("bad mediaclk rate in %q", v))
		}
		num, err1 := strconv.ParseUint(parts[0], 10, 32)
		den, err2 := strconv.ParseUint(parts[1], 10, 32)
		if err1 != nil || err2 != nil {
			return MediaClock{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.ParseMediaClock", fmt.Errorf("bad mediaclk rate in %q", v))
		}
		mc.HasRate = true
		mc.RateNum = uint32(num)
		mc.RateDen = uint32(den)
	}
	return mc, nil
}

// SourceFilter is the source-filter attribute: incl/excl IN IP4 <dst>
// <src>...
type SourceFilter struct {
	Mode        string // "incl" or "excl"
	NetworkType string
	AddressType string
	Destination string
	Sources     []string
}

func (f SourceFilter) String() string {
	return fmt.Sprintf("%s %s %s %s %s", f.Mode, f.NetworkType, f.AddressType, f.Destination, strings.Join(f.Sources, " "))
}

// ParseSourceFilter parses the value of a source-filter attribute.
func ParseSourceFilter(v string) (SourceFilter, error) {
	fields := strings.Fields(v)
	if len(fields) < 5 {
		return SourceFilter{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.ParseSourceFilter", fmt.Errorf("malformed source-filter %q", v))
	}
	return SourceFilter{
		Mode:        fields[0],
		NetworkType: fields[1],
		AddressType: fields[2],
		Destination: fields[3],
		Sources:     fields[4:],
	}, nil
}
