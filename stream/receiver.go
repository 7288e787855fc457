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

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/audio"
	"github.com/ravennakit/ravennakit/ravennaerr"
	"github.com/ravennakit/ravennakit/rtp"
	"github.com/ravennakit/ravennakit/rtsp"
	"github.com/ravennakit/ravennakit/sdp"
)

// RxStats counts loss/reorder/mismatch events, exposed for the ambient
// metrics layer.
type RxStats struct {
	Lost           uint64
	Reordered      uint64
	Mismatched     uint64
	FilteredSource uint64
}

// Receiver is the C6 consumer: it fetches a peer's SDP via RTSP, joins
// the multicast group it describes, and serves PCM through a pull API
// timed against the caller's PTP-derived read cursor (spec section
// 4.6.2).
type Receiver struct {
	client        *rtsp.Client
	localDomain   uint8

	mu            sync.Mutex
	format        audio.Format
	path          string
	iface         *net.Interface
	rx            *rtp.ReceiveSocket
	jitter        *JitterBuffer
	depacketizer  *rtp.Depacketizer
	sourceFilter  *sdp.SourceFilter
	ssrc          uint32
	haveSSRC      bool

	onStreamUpdated func(audio.Format)
	mismatched      uint64
	filteredSource  uint64
}

// NewReceiver constructs a Receiver bound to client, validating any
// discovered stream's ts-refclk domain against localPTPDomain (spec
// section 4.6.2: "validates that the ref-clock domain matches the local
// PTP domain").
func NewReceiver(client *rtsp.Client, localPTPDomain uint8) *Receiver {
	r := &Receiver{client: client, localDomain: localPTPDomain}
	client.OnAnnounce = func(req *rtsp.Request) {
		session, err := sdp.Unmarshal(req.Body)
		if err != nil {
			log.WithError(err).Warn("stream: failed parsing pushed ANNOUNCE SDP")
			return
		}
		r.applySession(session)
	}
	return r
}

// OnStreamUpdated registers a callback fired when the receiver's audio
// format changes (spec section 4.6.2 "Format change").
func (r *Receiver) OnStreamUpdated(fn func(audio.Format)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStreamUpdated = fn
}

// Subscribe issues DESCRIBE against path, validates and applies the
// returned SDP, and joins the multicast group it names on iface.
func (r *Receiver) Subscribe(path string, iface *net.Interface, delayFrames uint32, fill FillPolicy) error {
	body, err := r.client.Describe(path)
	if err != nil {
		return err
	}
	session, err := sdp.Unmarshal(body)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.path = path
	r.iface = iface
	r.mu.Unlock()

	if err := r.validateDomain(session); err != nil {
		return err
	}
	return r.join(session, delayFrames, fill)
}

func (r *Receiver) validateDomain(session sdp.Session) error {
	rc := session.RefClock
	if rc == nil && len(session.Media) > 0 {
		rc = session.Media[0].RefClock
	}
	if rc == nil {
		return nil
	}
	if rc.Domain != r.localDomain {
		return ravennaerr.New(ravennaerr.ProtocolError, "stream.Receiver.Subscribe", fmt.Errorf("ref-clock domain %d does not match local PTP domain %d", rc.Domain, r.localDomain))
	}
	return nil
}

func (r *Receiver) join(session sdp.Session, delayFrames uint32, fill FillPolicy) error {
	if len(session.Media) == 0 {
		return ravennaerr.New(ravennaerr.ProtocolError, "stream.Receiver.join", fmt.Errorf("SDP has no media description"))
	}
	md := session.Media[0]
	addr := md.ConnectionAddr
	if addr == "" {
		addr = session.ConnectionAddr
	}
	groupIP := net.ParseIP(strings.SplitN(addr, "/", 2)[0])
	if groupIP == nil {
		return ravennaerr.New(ravennaerr.ProtocolError, "stream.Receiver.join", fmt.Errorf("bad connection address %q", addr))
	}

	var format audio.Format
	if len(md.Formats) > 0 && md.Formats[0].HasEncoding {
		format = audio.Format{
			Encoding:    md.Formats[0].Encoding,
			SampleRate:  md.Formats[0].SampleRate,
			NumChannels: md.Formats[0].Channels,
		}
	}

	r.mu.Lock()
	iface := r.iface
	r.mu.Unlock()

	rx, err := rtp.NewReceiveSocket(iface, groupIP, md.Port)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.rx != nil {
		r.rx.Close()
	}
	r.rx = rx
	r.format = format
	frameBytes := format.BytesPerFrame()
	r.jitter = NewJitterBuffer(delayFrames, frameBytes, fill)
	if md.SyncTime != nil {
		r.jitter.SetSyncOffset(*md.SyncTime)
	}
	r.depacketizer = rtp.NewDepacketizer()
	r.sourceFilter = md.SourceFilter
	r.haveSSRC = false
	onUpdated := r.onStreamUpdated
	r.mu.Unlock()

	rx.SubscribeAny(r.onPacket)
	go rx.Run(context.Background())

	if onUpdated != nil {
		onUpdated(format)
	}
	return nil
}

func (r *Receiver) onPacket(pkt rtp.Packet, addr *net.UDPAddr) {
	r.mu.Lock()
	filter := r.sourceFilter
	if filter != nil && addr != nil && !sourceAllowed(filter, addr.IP) {
		r.filteredSource++
		r.mu.Unlock()
		return
	}
	if !r.haveSSRC {
		r.ssrc = pkt.SSRC
		r.haveSSRC = true
		r.rx.Unsubscribe(0)
		r.rx.Subscribe(&rtp.Subscription{SSRC: pkt.SSRC, Deliver: func(p rtp.Packet, addr *net.UDPAddr) { r.onPacket(p, addr) }})
		r.rx.SubscribeAny(nil)
	} else if pkt.SSRC != r.ssrc {
		r.mismatched++
		r.mu.Unlock()
		return
	}
	jitter := r.jitter
	dep := r.depacketizer
	r.mu.Unlock()

	dep.Observe(pkt.SequenceNumber)
	jitter.Push(pkt.Timestamp, pkt.Payload)
}

// sourceAllowed reports whether ip passes filter's incl/excl source list
// (spec section 4.4 "source-filter: incl/excl IN IP4 <dst> <src>...").
func sourceAllowed(filter *sdp.SourceFilter, ip net.IP) bool {
	listed := false
	for _, s := range filter.Sources {
		if net.ParseIP(s).Equal(ip) {
			listed = true
			break
		}
	}
	if strings.EqualFold(filter.Mode, "excl") {
		return !listed
	}
	return listed
}

// Read returns frameCount frames of audio timed to play at the local
// PTP-derived atTimestamp (spec section 4.6.2's pull API).
func (r *Receiver) Read(atTimestamp uint32, frameCount uint32) []byte {
	r.mu.Lock()
	jitter := r.jitter
	r.mu.Unlock()
	if jitter == nil {
		return nil
	}
	return jitter.Read(atTimestamp, frameCount)
}

// Stats returns a snapshot of loss/reorder/mismatch counters.
func (r *Receiver) Stats() RxStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lost, reordered uint64
	if r.depacketizer != nil {
		lost, reordered = r.depacketizer.Stats()
	}
	return RxStats{Lost: lost, Reordered: reordered, Mismatched: r.mismatched, FilteredSource: r.filteredSource}
}

// JitterUnderflows returns the number of reads that missed their exact
// packet and fell back to the configured FillPolicy. Zero if the receiver
// has not yet joined a stream.
func (r *Receiver) JitterUnderflows() uint64 {
	r.mu.Lock()
	jitter := r.jitter
	r.mu.Unlock()
	if jitter == nil {
		return 0
	}
	return jitter.Underflows()
}

// Format returns the currently active audio format.
func (r *Receiver) Format() audio.Format {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format
}

// Close leaves the multicast group and releases the receive socket, per
// the node's shutdown order (spec section 3): endpoints leave their
// multicast groups before closing sockets.
func (r *Receiver) Close() error {
	r.mu.Lock()
	rx := r.rx
	r.rx = nil
	r.jitter = nil
	r.depacketizer = nil
	r.sourceFilter = nil
	r.mu.Unlock()

	if rx == nil {
		return nil
	}
	return rx.Close()
}

func (r *Receiver) applySession(session sdp.Session) {
	if err := r.validateDomain(session); err != nil {
		log.WithError(err).Warn("stream: rejecting pushed ANNOUNCE with mismatched PTP domain")
		return
	}
	if err := r.join(session, DefaultDelayFrames, FillLastSample); err != nil {
		log.WithError(err).Warn("stream: failed applying pushed ANNOUNCE")
	}
}

