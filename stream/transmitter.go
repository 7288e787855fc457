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

// Package stream implements the C6 stream endpoints: Transmitter and
// Receiver, the components that combine the time base (C1), discovery
// (C2), session control (C3), session description (C4) and RTP transport
// (C5) to produce or consume PCM audio at the right wall-clock moment.
package stream

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/audio"
	"github.com/ravennakit/ravennakit/discovery"
	"github.com/ravennakit/ravennakit/ptp/timebase"
	"github.com/ravennakit/ravennakit/ptp/wireformat"
	"github.com/ravennakit/ravennakit/ravennaerr"
	"github.com/ravennakit/ravennakit/rtp"
	"github.com/ravennakit/ravennakit/rtsp"
	"github.com/ravennakit/ravennakit/sdp"
)

// TxState is the transmitter's lifecycle state machine (spec section
// 4.6.1).
type TxState int

const (
	TxIdle TxState = iota
	TxConfigured
	TxRunning
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxConfigured:
		return "configured"
	case TxRunning:
		return "running"
	default:
		return "unknown"
	}
}

// UnderrunPolicy controls what the scheduler does when the FIFO does not
// hold a full packet's worth of frames at wake time.
type UnderrunPolicy int

const (
	// UnderrunSilence emits a packet of zero-filled frames.
	UnderrunSilence UnderrunPolicy = iota
	// UnderrunSkip skips emitting a packet for this wake, leaving sequence
	// and timestamp unadvanced.
	UnderrunSkip
)

// TxStats counts operational events, exposed for the ambient metrics layer.
type TxStats struct {
	PacketsSent uint64
	Underruns   uint64
}

// Transmitter is the C6 producer: it owns an RTSP path handler returning
// its SDP, an advertised discovery registration, and a ticker-driven
// scheduler that packetizes PCM pulled from its FIFO into RTP packets sent
// to a derived multicast destination.
type Transmitter struct {
	advertiser discovery.Advertiser
	rtspServer *rtsp.Server
	ptp        *timebase.Timebase
	tx         *rtp.TransmitSocket

	id          uint64
	sessionName string
	ifaceAddr   net.IP

	mu     sync.Mutex
	state  TxState
	format audio.Format

	framecount uint32
	ptimeMs    float64
	ssrc       uint32
	payload    uint8

	dst      *net.UDPAddr
	packetizer *rtp.Packetizer

	fifo           *byteFIFO
	underrunPolicy UnderrunPolicy
	stats          TxStats

	anchorTimestamp uint32
	anchorPTPNanos  int64

	advertiseID discovery.SessionID
	cancel      chan struct{}
	wg          sync.WaitGroup
}

// NewTransmitter constructs a Transmitter in the idle state. id must be
// unique within the node for the lifetime of the process; it seeds the
// multicast destination and the SSRC.
func NewTransmitter(advertiser discovery.Advertiser, rtspServer *rtsp.Server, ptp *timebase.Timebase, tx *rtp.TransmitSocket, id uint64, sessionName string, ifaceAddr net.IP) *Transmitter {
	t := &Transmitter{
		advertiser:     advertiser,
		rtspServer:     rtspServer,
		ptp:            ptp,
		tx:             tx,
		id:             id,
		sessionName:    sessionName,
		ifaceAddr:      ifaceAddr,
		ssrc:           uint32(id),
		payload:        98,
		underrunPolicy: UnderrunSilence,
		fifo:           newByteFIFO(),
	}

	byName := "/by-name/" + sessionName
	byID := fmt.Sprintf("/by-id/%d", id)
	rtspServer.Handle(byName, t.describe)
	rtspServer.Handle(byID, t.describe)

	ptp.Subscribe(func(ev timebase.Event) {
		if ev.Kind == timebase.EventParentChanged {
			t.onGrandmasterChanged()
		}
	})

	return t
}

func (t *Transmitter) describe() ([]byte, bool) {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	if state == TxIdle {
		return nil, false
	}
	doc, err := t.buildSDP()
	if err != nil {
		log.WithError(err).Warn("stream: failed building SDP")
		return nil, false
	}
	return doc, true
}

// multicastDestination derives 239.<b[2]>.<b[3]>.<id mod 255> from the
// transmitter's interface address (spec section 4.6.1).
func multicastDestination(ifaceAddr net.IP, id uint64) net.IP {
	v4 := ifaceAddr.To4()
	if v4 == nil {
		v4 = net.IPv4(0, 0, 0, 0).To4()
	}
	return net.IPv4(239, v4[2], v4[3], byte(id%255))
}

// SetAudioFormat moves the transmitter from idle to configured, choosing
// the packet time per the AES67 signaled set and adjusting framecount for
// sample rates that are not multiples of 48 kHz.
func (t *Transmitter) SetAudioFormat(format audio.Format, nominalPtimeUs float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TxRunning {
		return ravennaerr.New(ravennaerr.InvalidArgument, "stream.Transmitter.SetAudioFormat", fmt.Errorf("cannot reconfigure while running"))
	}
	switch format.Encoding {
	case audio.EncodingPCMU8, audio.EncodingPCMS16, audio.EncodingPCMS24:
	default:
		return ravennaerr.New(ravennaerr.InvalidArgument, "stream.Transmitter.SetAudioFormat", fmt.Errorf("encoding %s is not supported for transmit", format.Encoding))
	}

	framecount := FrameCountForPacketTime(format.SampleRate, nominalPtimeUs)
	t.format = format
	t.framecount = framecount
	t.ptimeMs = ActualPTimeMs(framecount, format.SampleRate)
	t.dst = &net.UDPAddr{IP: multicastDestination(t.ifaceAddr, t.id), Port: 5004}
	t.state = TxConfigured
	return nil
}

// Advertise publishes the session's RTSP endpoint over discovery.
func (t *Transmitter) Advertise(rtspPort int) error {
	id, err := t.advertiser.Register(discovery.RegisterOptions{
		RegType:      "_rtsp._tcp,_ravenna_session",
		InstanceName: t.sessionName,
		Port:         rtspPort,
		AutoRename:   true,
	}, func(discovery.Event) {})
	if err != nil {
		return err
	}
	t.advertiseID = id
	return nil
}

// Start transitions configured -> running. It requires the PTP port to be
// slave and a known local-to-PTP mapping; if either is unavailable, Start
// returns a NotFound error rather than blocking (callers retry, typically
// driven by a timebase.Observer).
func (t *Transmitter) Start(anchorTimestamp uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TxConfigured {
		return ravennaerr.New(ravennaerr.InvalidArgument, "stream.Transmitter.Start", fmt.Errorf("not configured"))
	}
	if t.ptp.PortState() != wireformat.PortStateSlave {
		return ravennaerr.New(ravennaerr.NotFound, "stream.Transmitter.Start", fmt.Errorf("ptp port not slave"))
	}
	now, err := t.ptp.LocalToPTP(uint64(time.Now().UnixNano()))
	if err != nil {
		return err
	}
	t.anchorTimestamp = anchorTimestamp
	t.anchorPTPNanos = ptpNanos(now)
	t.packetizer = rtp.NewPacketizer(t.ssrc, t.payload, 0, anchorTimestamp, t.framecount)
	t.state = TxRunning
	t.cancel = make(chan struct{})
	t.wg.Add(1)
	go t.scheduleLoop(t.cancel)
	return nil
}

// Stop transitions running -> configured, cancelling the scheduler.
func (t *Transmitter) Stop() {
	t.mu.Lock()
	if t.state != TxRunning {
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	t.state = TxConfigured
	t.mu.Unlock()

	close(cancel)
	t.wg.Wait()
}

// Close tears the transmitter down per the node's shutdown order (spec
// section 3): cancel the scheduler, withdraw the discovery registration,
// then unregister the RTSP path handlers. It does not close the shared
// transmit socket, which the node owns across every transmitter using it.
func (t *Transmitter) Close() error {
	t.Stop()

	t.mu.Lock()
	advertiseID := t.advertiseID
	t.advertiseID = 0
	t.state = TxIdle
	t.mu.Unlock()

	if advertiseID != 0 {
		if err := t.advertiser.Unregister(advertiseID); err != nil {
			log.WithError(err).Warn("stream: failed unregistering transmitter advertisement")
		}
	}

	t.rtspServer.Unregister("/by-name/" + t.sessionName)
	t.rtspServer.Unregister(fmt.Sprintf("/by-id/%d", t.id))
	return nil
}

// Write enqueues PCM bytes for transmission.
func (t *Transmitter) Write(pcm []byte) {
	t.fifo.Write(pcm)
}

// Stats returns a snapshot of operational counters.
func (t *Transmitter) Stats() TxStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Transmitter) scheduleLoop(cancel chan struct{}) {
	defer t.wg.Done()
	t.mu.Lock()
	interval := time.Duration(t.ptimeMs*1000/10) * time.Microsecond
	t.mu.Unlock()
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Transmitter) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TxRunning {
		return
	}

	now, err := t.ptp.LocalToPTP(uint64(time.Now().UnixNano()))
	if err != nil {
		return
	}
	nextTimestamp := t.packetizer.PeekTimestamp()
	if !t.ptpAtOrPast(now, nextTimestamp) {
		return
	}

	needed := int(t.framecount) * t.format.BytesPerFrame()
	payload, ok := t.fifo.Take(needed)
	if !ok {
		t.stats.Underruns++
		switch t.underrunPolicy {
		case UnderrunSkip:
			return
		default:
			payload = make([]byte, needed)
		}
	}

	pkt := t.packetizer.Next(payload, false)
	raw, err := pkt.Encode()
	if err != nil {
		log.WithError(err).Warn("stream: failed encoding RTP packet")
		return
	}
	if err := t.tx.SendTo(raw, t.dst); err != nil {
		log.WithError(err).Warn("stream: failed sending RTP packet")
		return
	}
	t.stats.PacketsSent++
}

// ptpAtOrPast reports whether now has reached the PTP instant the given
// RTP timestamp maps to, using the anchor recorded at Start.
func (t *Transmitter) ptpAtOrPast(now wireformat.Timestamp, rtpTimestamp uint32) bool {
	elapsedFrames := int64(int32(rtpTimestamp - t.anchorTimestamp))
	targetNanos := t.anchorPTPNanos + elapsedFrames*int64(time.Second)/int64(t.format.SampleRate)
	return ptpNanos(now) >= targetNanos
}

func (t *Transmitter) onGrandmasterChanged() {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	if state == TxIdle {
		return
	}
	doc, err := t.buildSDP()
	if err != nil {
		log.WithError(err).Warn("stream: failed rebuilding SDP on grandmaster change")
		return
	}
	req := rtsp.NewRequest(rtsp.MethodAnnounce, "rtsp://"+t.sessionName+"/by-name/"+t.sessionName)
	req.Header.Set("Content-Type", "application/sdp")
	req.Body = doc
	t.rtspServer.Broadcast(req)
}

func (t *Transmitter) buildSDP() ([]byte, error) {
	t.mu.Lock()
	format := t.format
	framecount := t.framecount
	ptimeMs := t.ptimeMs
	dst := t.dst
	t.mu.Unlock()

	fmtEntry, err := sdp.NewFormat(t.payload, format.Encoding, format.SampleRate, uint8(format.NumChannels))
	if err != nil {
		return nil, err
	}

	gmid, _ := t.ptp.GrandmasterIdentity()

	session := sdp.Session{
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      t.id,
			SessionVersion: 1,
			UnicastAddress: t.ifaceAddr.String(),
		},
		Name:           t.sessionName,
		ConnectionAddr: dst.IP.String() + "/32",
		RefClock: &sdp.RefClock{
			GrandmasterID: gmid.String(),
			Domain:        t.ptp.Domain(),
		},
		ClockDomain: fmt.Sprintf("PTPv2 %d", t.ptp.Domain()),
		Media: []sdp.MediaDescription{
			{
				MediaType:     "audio",
				Port:          dst.Port,
				Proto:         "RTP/AVP",
				Formats:       []sdp.Format{fmtEntry},
				Direction:     sdp.DirectionSendOnly,
				HasPTime:      true,
				PTimeMs:       ptimeMs,
				Framecount:    framecount,
				HasFramecount: true,
			},
		},
	}
	return session.Marshal()
}

func ptpNanos(ts wireformat.Timestamp) int64 {
	return int64(ts.Seconds.Uint64())*int64(time.Second) + int64(ts.Nanos)
}
