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

package sdp

import (
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"

	"github.com/ravennakit/ravennakit/audio"
	"github.com/ravennakit/ravennakit/ravennaerr"
)

// Format is one payload-type entry in a media description's format list.
// A format with no matching rtpmap attribute retains only PayloadType;
// HasRtpmap is false and the remaining fields are zero.
type Format struct {
	PayloadType uint8
	HasRtpmap   bool
	EncodingName string // as it appears on the wire, e.g. "L24"
	Encoding    audio.Encoding
	HasEncoding bool
	SampleRate  uint32
	Channels    uint8
}

// MediaDescription is one m= section plus its parsed attributes.
type MediaDescription struct {
	MediaType      string // "audio"
	Port           int
	PortCount      int // 0 means unspecified (no /N suffix)
	Proto          string // "RTP/AVP"
	Formats        []Format
	ConnectionAddr string // empty means inherit the session-level c= line

	Direction    Direction
	PTimeMs      float64
	HasPTime     bool
	MaxPTimeMs   float64
	HasMaxPTime  bool
	Framecount   uint32
	HasFramecount bool
	SourceFilter *SourceFilter
	ClockDomain  string
	RefClock     *RefClock
	MediaClock   *MediaClock
	SyncTime     *uint32
}

// Session is the C4 session description model: a typed view over an SDP
// document restricted to the attributes this profile uses. Unknown
// attributes are not retained: sdp.Unmarshal reads the full set this
// profile understands and otherwise discards content it does not need.
type Session struct {
	Origin         Origin
	Name           string
	ConnectionAddr string
	StartTime      uint64
	StopTime       uint64

	RefClock    *RefClock
	MediaClock  *MediaClock
	ClockDomain string
	GroupDup    []string // RFC 7104 a=group:DUP tags, session-level

	Media []MediaDescription
}

// Marshal renders the session in the canonical order: v, o, s, c, t,
// session-level attributes (group, ref-clock, media-clock,
// clock-domain), then each media description in its documented field
// order.
func (s Session) Marshal() ([]byte, error) {
	sd := &psdp.SessionDescription{
		Version: 0,
		Origin: psdp.Origin{
			Username:       s.Origin.Username,
			SessionID:      s.Origin.SessionID,
			SessionVersion: s.Origin.SessionVersion,
			NetworkType:    nonEmpty(s.Origin.NetworkType, "IN"),
			AddressType:    nonEmpty(s.Origin.AddressType, "IP4"),
			UnicastAddress: s.Origin.UnicastAddress,
		},
		SessionName: psdp.SessionName(s.Name),
		TimeDescriptions: []psdp.TimeDescription{
			{Timing: psdp.Timing{StartTime: s.StartTime, StopTime: s.StopTime}},
		},
	}
	if s.ConnectionAddr != "" {
		sd.ConnectionInformation = connectionInfo(s.ConnectionAddr)
	}

	var attrs []psdp.Attribute
	if len(s.GroupDup) > 0 {
		attrs = append(attrs, psdp.Attribute{Key: "group", Value: "DUP " + strings.Join(s.GroupDup, " ")})
	}
	if s.RefClock != nil {
		attrs = append(attrs, psdp.Attribute{Key: "ts-refclk", Value: s.RefClock.String()})
	}
	if s.MediaClock != nil {
		attrs = append(attrs, psdp.Attribute{Key: "mediaclk", Value: s.MediaClock.String()})
	}
	if s.ClockDomain != "" {
		attrs = append(attrs, psdp.Attribute{Key: "clock-domain", Value: s.ClockDomain})
	}
	sd.Attributes = attrs

	for _, md := range s.Media {
		pm, err := marshalMedia(md)
		if err != nil {
			return nil, err
		}
		sd.MediaDescriptions = append(sd.MediaDescriptions, pm)
	}

	return sd.Marshal()
}

// Unmarshal parses an SDP document into a Session.
func Unmarshal(data []byte) (Session, error) {
	var sd psdp.SessionDescription
	if err := sd.Unmarshal(data); err != nil {
		return Session{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.Unmarshal", err)
	}

	s := Session{
		Origin: Origin{
			Username:       sd.Origin.Username,
			SessionID:      sd.Origin.SessionID,
			SessionVersion: sd.Origin.SessionVersion,
			NetworkType:    sd.Origin.NetworkType,
			AddressType:    sd.Origin.AddressType,
			UnicastAddress: sd.Origin.UnicastAddress,
		},
		Name: string(sd.SessionName),
	}
	if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		s.ConnectionAddr = sd.ConnectionInformation.Address.Address
	}
	if len(sd.TimeDescriptions) > 0 {
		s.StartTime = sd.TimeDescriptions[0].Timing.StartTime
		s.StopTime = sd.TimeDescriptions[0].Timing.StopTime
	}

	for _, a := range sd.Attributes {
		switch a.Key {
		case "group":
			fields := strings.Fields(a.Value)
			if len(fields) > 0 && fields[0] == "DUP" {
				s.GroupDup = fields[1:]
			}
		case "ts-refclk":
			rc, err := ParseRefClock(a.Value)
			if err != nil {
				return Session{}, err
			}
			s.RefClock = &rc
		case "mediaclk":
			mc, err := ParseMediaClock(a.Value)
			if err != nil {
				return Session{}, err
			}
			s.MediaClock = &mc
		case "clock-domain":
			s.ClockDomain = a.Value
		}
	}

	for _, pm := range sd.MediaDescriptions {
		md, err := unmarshalMedia(pm)
		if err != nil {
			return Session{}, err
		}
		s.Media = append(s.Media, md)
	}

	return s, nil
}

// NewFormat builds a Format with an explicit rtpmap from an internal audio
// encoding, rejecting encodings with no SDP representation (e.g. floating
// point).
func NewFormat(payloadType uint8, enc audio.Encoding, sampleRate uint32, channels uint8) (Format, error) {
	name, err := encodingToName(enc)
	if err != nil {
		return Format{}, err
	}
	return Format{
		PayloadType:  payloadType,
		HasRtpmap:    true,
		EncodingName: name,
		Encoding:     enc,
		HasEncoding:  true,
		SampleRate:   sampleRate,
		Channels:     channels,
	}, nil
}

func marshalMedia(md MediaDescription) (*psdp.MediaDescription, error) {
	formats := make([]string, 0, len(md.Formats))
	for _, f := range md.Formats {
		formats = append(formats, strconv.Itoa(int(f.PayloadType)))
	}

	pm := &psdp.MediaDescription{
		MediaName: psdp.MediaName{
			Media:   md.MediaType,
			Port:    psdp.RangedPort{Value: md.Port, Range: rangedPortRange(md.PortCount)},
			Protos:  strings.Split(nonEmpty(md.Proto, "RTP/AVP"), "/"),
			Formats: formats,
		},
	}
	if md.ConnectionAddr != "" {
		pm.ConnectionInformation = connectionInfo(md.ConnectionAddr)
	}

	var attrs []psdp.Attribute
	for _, f := range md.Formats {
		if !f.HasRtpmap {
			continue
		}
		attrs = append(attrs, psdp.Attribute{Key: "rtpmap", Value: formatRtpmap(f)})
	}
	if md.SourceFilter != nil {
		attrs = append(attrs, psdp.Attribute{Key: "source-filter", Value: md.SourceFilter.String()})
	}
	if md.ClockDomain != "" {
		attrs = append(attrs, psdp.Attribute{Key: "clock-domain", Value: md.ClockDomain})
	}
	if md.SyncTime != nil {
		attrs = append(attrs, psdp.Attribute{Key: "sync-time", Value: strconv.Itoa(int(*md.SyncTime))})
	}
	if md.RefClock != nil {
		attrs = append(attrs, psdp.Attribute{Key: "ts-refclk", Value: md.RefClock.String()})
	}
	if md.MediaClock != nil {
		attrs = append(attrs, psdp.Attribute{Key: "mediaclk", Value: md.MediaClock.String()})
	}
	if md.Direction != DirectionNone {
		attrs = append(attrs, psdp.Attribute{Key: md.Direction.String()})
	}
	if md.HasPTime {
		attrs = append(attrs, psdp.Attribute{Key: "ptime", Value: formatMs(md.PTimeMs)})
	}
	if md.HasMaxPTime {
		attrs = append(attrs, psdp.Attribute{Key: "maxptime", Value: formatMs(md.MaxPTimeMs)})
	}
	if md.HasFramecount {
		attrs = append(attrs, psdp.Attribute{Key: "framecount", Value: strconv.Itoa(int(md.Framecount))})
	}
	pm.Attributes = attrs

	return pm, nil
}

func unmarshalMedia(pm *psdp.MediaDescription) (MediaDescription, error) {
	md := MediaDescription{
		MediaType: pm.MediaName.Media,
		Port:      pm.MediaName.Port.Value,
		Proto:     strings.Join(pm.MediaName.Protos, "/"),
	}
	if pm.MediaName.Port.Range != nil {
		md.PortCount = *pm.MediaName.Port.Range
	}
	if pm.ConnectionInformation != nil && pm.ConnectionInformation.Address != nil {
		md.ConnectionAddr = pm.ConnectionInformation.Address.Address
	}

	formats := make(map[uint8]*Format, len(pm.MediaName.Formats))
	var order []uint8
	for _, raw := range pm.MediaName.Formats {
		pt, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return MediaDescription{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.unmarshalMedia", fmt.Errorf("bad payload type %q: %w", raw, err))
		}
		f := &Format{PayloadType: uint8(pt)}
		formats[uint8(pt)] = f
		order = append(order, uint8(pt))
	}

	for _, a := range pm.Attributes {
		switch a.Key {
		case "rtpmap":
			pt, f, err := parseRtpmap(a.Value)
			if err != nil {
				return MediaDescription{}, err
			}
			if existing, ok := formats[pt]; ok {
				f.PayloadType = pt
				*existing = f
			}
		case "source-filter":
			sf, err := ParseSourceFilter(a.Value)
			if err != nil {
				return MediaDescription{}, err
			}
			md.SourceFilter = &sf
		case "clock-domain":
			md.ClockDomain = a.Value
		case "sync-time":
			v, err := strconv.ParseUint(a.Value, 10, 32)
			if err != nil {
				return MediaDescription{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.unmarshalMedia", fmt.Errorf("bad sync-time %q: %w", a.Value, err))
			}
			u := uint32(v)
			md.SyncTime = &u
		case "ts-refclk":
			rc, err := ParseRefClock(a.Value)
			if err != nil {
				return MediaDescription{}, err
			}
			md.RefClock = &rc
		case "mediaclk":
			mc, err := ParseMediaClock(a.Value)
			if err != nil {
				return MediaDescription{}, err
			}
			md.MediaClock = &mc
		case "recvonly":
			md.Direction = DirectionRecvOnly
		case "sendonly":
			md.Direction = DirectionSendOnly
		case "sendrecv":
			md.Direction = DirectionSendRecv
		case "ptime":
			v, err := strconv.ParseFloat(a.Value, 64)
			if err != nil {
				return MediaDescription{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.unmarshalMedia", fmt.Errorf("bad ptime %q: %w", a.Value, err))
			}
			md.PTimeMs = v
			md.HasPTime = true
		case "maxptime":
			v, err := strconv.ParseFloat(a.Value, 64)
			if err != nil {
				return MediaDescription{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.unmarshalMedia", fmt.Errorf("bad maxptime %q: %w", a.Value, err))
			}
			md.MaxPTimeMs = v
			md.HasMaxPTime = true
		case "framecount":
			v, err := strconv.ParseUint(a.Value, 10, 32)
			if err != nil {
				return MediaDescription{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.unmarshalMedia", fmt.Errorf("bad framecount %q: %w", a.Value, err))
			}
			md.Framecount = uint32(v)
			md.HasFramecount = true
		}
	}

	for _, pt := range order {
		md.Formats = append(md.Formats, *formats[pt])
	}
	return md, nil
}

func parseRtpmap(v string) (uint8, Format, error) {
	fields := strings.SplitN(v, " ", 2)
	if len(fields) != 2 {
		return 0, Format{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.parseRtpmap", fmt.Errorf("malformed rtpmap %q", v))
	}
	pt, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return 0, Format{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.parseRtpmap", fmt.Errorf("bad payload type in rtpmap %q: %w", v, err))
	}
	parts := strings.Split(fields[1], "/")
	if len(parts) < 2 {
		return 0, Format{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.parseRtpmap", fmt.Errorf("malformed rtpmap encoding %q", fields[1]))
	}
	rate, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, Format{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.parseRtpmap", fmt.Errorf("bad clock rate in rtpmap %q: %w", v, err))
	}
	f := Format{
		PayloadType:  uint8(pt),
		HasRtpmap:    true,
		EncodingName: parts[0],
		SampleRate:   uint32(rate),
		Channels:     1,
	}
	if len(parts) == 3 {
		ch, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			return 0, Format{}, ravennaerr.New(ravennaerr.ProtocolError, "sdp.parseRtpmap", fmt.Errorf("bad channel count in rtpmap %q: %w", v, err))
		}
		f.Channels = uint8(ch)
	}
	if enc, err := nameToEncoding(parts[0]); err == nil {
		f.Encoding = enc
		f.HasEncoding = true
	}
	return uint8(pt), f, nil
}

func formatRtpmap(f Format) string {
	name := f.EncodingName
	if name == "" && f.HasEncoding {
		// encodingToName errors are impossible here for formats built by
		// this package: HasEncoding is set only after nameToEncoding
		// (parseRtpmap) or encodingToName (NewFormat) succeeded.
		name, _ = encodingToName(f.Encoding)
	}
	if f.Channels > 1 {
		return fmt.Sprintf("%d %s/%d/%d", f.PayloadType, name, f.SampleRate, f.Channels)
	}
	return fmt.Sprintf("%d %s/%d", f.PayloadType, name, f.SampleRate)
}

func formatMs(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func connectionInfo(addr string) *psdp.ConnectionInformation {
	return &psdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: addressTypeOf(addr),
		Address:     &psdp.Address{Address: addr},
	}
}

func addressTypeOf(addr string) string {
	if strings.Contains(strings.SplitN(addr, "/", 2)[0], ":") {
		return "IP6"
	}
	return "IP4"
}

func rangedPortRange(count int) *int {
	if count == 0 {
		return nil
	}
	c := count
	return &c
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
