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

// Package timebase is a pure software PTP ordinary-clock slave: it binds
// the PTP event/general sockets, runs the port state machine, feeds
// Announce messages to ptp/bmca, and maintains the local-monotonic-to-PTP
// linear mapping via ptp/servo. It never disciplines the host clock; it
// only produces a mapping function for callers (stream.Transmitter,
// stream.Receiver) to consult.
package timebase

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/ptp/bmca"
	"github.com/ravennakit/ravennakit/ptp/ptptime"
	"github.com/ravennakit/ravennakit/ptp/servo"
	"github.com/ravennakit/ravennakit/ptp/wireformat"
	"github.com/ravennakit/ravennakit/ravennaerr"
)

// EventPort and GeneralPort are the well-known PTP UDP ports, clause 6.6.1.
const (
	EventPort   = 319
	GeneralPort = 320
)

// PTPMulticastAddr is the default PTP multicast group for the 1588 E2E
// delay mechanism over UDP/IPv4.
const PTPMulticastAddr = "224.0.1.129"

// announceReceiptTimeoutMultiplier is the number of announce intervals
// without a message before a slave port considers its master lost.
const announceReceiptTimeoutMultiplier = 3

// EventKind identifies a Timebase observer notification.
type EventKind int

const (
	// EventParentChanged fires when the selected grandmaster identity changes.
	EventParentChanged EventKind = iota
	// EventPortStateChanged fires on every port state transition.
	EventPortStateChanged
)

// Event is delivered to subscribers of a Timebase.
type Event struct {
	Kind             EventKind
	PortState        wireformat.PortState
	GrandmasterID    wireformat.ClockIdentity
	GrandmasterClass wireformat.ClockClass
	Domain           uint8
}

// Observer receives Timebase events. Calls happen on the goroutine that
// drives the Timebase's receive loop; observers must not block.
type Observer func(Event)

// Stats counts operational failures, per the "never throw from the
// receive loop" requirement.
type Stats struct {
	MalformedPackets uint64
	SocketErrors     uint64
}

// Timebase is a single PTP port's slave-clock state.
type Timebase struct {
	mu sync.Mutex

	domain     uint8
	state      wireformat.PortState
	localIface *net.Interface

	eventConn   *net.UDPConn
	generalConn *net.UDPConn

	best        bmca.Candidate
	haveBest    bool
	candidates  map[wireformat.ClockIdentity]bmca.Candidate
	lastAnnTime time.Time

	servo       *servo.Servo
	offsetNs    int64
	rate        float64
	haveMapping bool

	pendingSyncSeq     uint16
	pendingSyncIngress uint64
	meanPathDelayNs    int64

	slaveSyncCount int

	observers []Observer

	stats Stats

	cancel context.CancelFunc
}

// New creates a Timebase bound to no port yet; call AddPort to bind.
func New(domain uint8) *Timebase {
	return &Timebase{
		domain:     domain,
		state:      wireformat.PortStateInitializing,
		candidates: make(map[wireformat.ClockIdentity]bmca.Candidate),
		servo:      servo.New(servo.DefaultTimeConstant),
	}
}

// Subscribe registers an observer for parent-dataset and port-state events.
func (t *Timebase) Subscribe(obs Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, obs)
}

func (t *Timebase) emit(ev Event) {
	for _, obs := range t.observers {
		obs(ev)
	}
}

// AddPort binds the event (319) and general (320) UDP sockets on iface's
// address and joins the PTP multicast group. Fails if already bound.
func (t *Timebase) AddPort(ctx context.Context, iface *net.Interface) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.eventConn != nil {
		return ravennaerr.New(ravennaerr.InvalidArgument, "timebase.AddPort", fmt.Errorf("port already bound"))
	}

	group := net.ParseIP(PTPMulticastAddr)
	eventConn, err := net.ListenMulticastUDP("udp4", iface, &net.UDPAddr{IP: group, Port: EventPort})
	if err != nil {
		return ravennaerr.New(ravennaerr.Platform, "timebase.AddPort", err)
	}
	generalConn, err := net.ListenMulticastUDP("udp4", iface, &net.UDPAddr{IP: group, Port: GeneralPort})
	if err != nil {
		eventConn.Close()
		return ravennaerr.New(ravennaerr.Platform, "timebase.AddPort", err)
	}

	t.localIface = iface
	t.eventConn = eventConn
	t.generalConn = generalConn
	t.setState(wireformat.PortStateListening)

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.receiveLoop(runCtx, t.eventConn)
	go t.receiveLoop(runCtx, t.generalConn)
	return nil
}

// Close tears down the port's sockets and stops the receive loops.
func (t *Timebase) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	var firstErr error
	if t.eventConn != nil {
		if err := t.eventConn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.generalConn != nil {
		if err := t.generalConn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PortState returns the current 1588 port state.
func (t *Timebase) PortState() wireformat.PortState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Domain returns the PTP domain number this Timebase was created for.
func (t *Timebase) Domain() uint8 {
	return t.domain
}

// Stats returns a snapshot of failure counters.
func (t *Timebase) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// OffsetNs returns the current estimated offset (master - local, in
// nanoseconds) last computed by the servo. Zero if no mapping has been
// established yet.
func (t *Timebase) OffsetNs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offsetNs
}

func (t *Timebase) setState(s wireformat.PortState) {
	if t.state == s {
		return
	}
	t.state = s
	gm := t.best.GrandmasterIdentity
	class := t.best.ClockQuality.ClockClass
	t.emit(Event{Kind: EventPortStateChanged, PortState: s, GrandmasterID: gm, GrandmasterClass: class, Domain: t.domain})
}

func (t *Timebase) receiveLoop(ctx context.Context, conn *net.UDPConn) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			t.mu.Lock()
			t.stats.SocketErrors++
			t.setState(wireformat.PortStateFaulty)
			t.mu.Unlock()
			log.WithError(err).Warn("timebase: socket error, port faulty")
			return
		}
		localNs := uint64(time.Now().UnixNano())
		t.handleDatagram(buf[:n], localNs)
	}
}

// handleDatagram decodes one PTP message and drives the state machine. A
// malformed packet is dropped and counted, never propagated as an error.
func (t *Timebase) handleDatagram(b []byte, localNs uint64) {
	msg, err := wireformat.DecodeAny(b)
	if err != nil {
		t.mu.Lock()
		t.stats.MalformedPackets++
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch m := msg.(type) {
	case *wireformat.Announce:
		t.onAnnounce(m)
	case *wireformat.SyncDelayReq:
		if m.MessageType() == wireformat.MessageSync {
			t.onSync(m, localNs)
		}
	case *wireformat.FollowUp:
		t.onFollowUp(m)
	}
}

func (t *Timebase) onAnnounce(a *wireformat.Announce) {
	if a.Header.DomainNumber != t.domain {
		return
	}
	cand := bmca.CandidateFromAnnounce(a)
	t.candidates[cand.GrandmasterIdentity] = cand
	t.lastAnnTime = time.Now()

	all := make([]bmca.Candidate, 0, len(t.candidates))
	for _, c := range t.candidates {
		all = append(all, c)
	}
	winner, ok := bmca.Best(all)
	if !ok {
		return
	}
	changed := !t.haveBest || winner.GrandmasterIdentity != t.best.GrandmasterIdentity
	t.best = winner
	t.haveBest = true
	if changed {
		t.emit(Event{Kind: EventParentChanged, GrandmasterID: winner.GrandmasterIdentity, GrandmasterClass: winner.ClockQuality.ClockClass, Domain: t.domain, PortState: t.state})
		if t.state == wireformat.PortStateListening || t.state == wireformat.PortStatePreMaster {
			t.setState(wireformat.PortStateUncalibrated)
		}
	}
}

func (t *Timebase) onSync(s *wireformat.SyncDelayReq, localNs uint64) {
	if t.state != wireformat.PortStateUncalibrated && t.state != wireformat.PortStateSlave {
		return
	}
	t.pendingSyncSeq = s.SequenceID
	t.pendingSyncIngress = localNs
	if s.FlagField&wireformat.FlagTwoStep == 0 {
		t.applyOffset(s.OriginTimestamp, s.CorrectionField, localNs)
	}
}

func (t *Timebase) onFollowUp(f *wireformat.FollowUp) {
	if f.SequenceID != t.pendingSyncSeq {
		return
	}
	if t.state != wireformat.PortStateUncalibrated && t.state != wireformat.PortStateSlave {
		return
	}
	t.applyOffset(f.PreciseOriginTimestamp, f.CorrectionField, t.pendingSyncIngress)
}

func (t *Timebase) applyOffset(origin wireformat.Timestamp, correctionField int64, ingressNs uint64) {
	originNs := int64(origin.Seconds.Uint64())*1_000_000_000 + int64(origin.Nanos)
	// correctionField is the wire's signed 48.16 fixed-point nanosecond
	// interval (spec section 3's "PTP timestamp / interval" wire format);
	// ptptime.Interval owns normalizing that fixed-point value.
	correctionNs := int64(ptptime.FromWire(correctionField).Nanoseconds())
	masterNs := originNs + correctionNs + t.meanPathDelayNs
	offset := masterNs - int64(ingressNs)

	t.offsetNs = offset
	rate, _ := t.servo.Sample(offset, ingressNs)
	t.rate = rate
	t.haveMapping = true

	t.slaveSyncCount++
	if t.slaveSyncCount >= servo.MinSyncPairs && t.state == wireformat.PortStateUncalibrated {
		t.setState(wireformat.PortStateSlave)
	}
}

// LocalToPTP maps a local monotonic nanosecond reading to the estimated
// PTP time (seconds, nanoseconds) by adding the most recent servo offset;
// the servo's rate estimate is not applied. It returns ravennaerr NotFound
// if no mapping has been established yet.
func (t *Timebase) LocalToPTP(monoNs uint64) (wireformat.Timestamp, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.haveMapping {
		return wireformat.Timestamp{}, ravennaerr.New(ravennaerr.NotFound, "timebase.LocalToPTP", fmt.Errorf("no PTP mapping established"))
	}
	ptpNs := int64(monoNs) + t.offsetNs
	sec := ptpNs / 1_000_000_000
	nanos := ptpNs % 1_000_000_000
	if nanos < 0 {
		nanos += 1_000_000_000
		sec--
	}
	return wireformat.Timestamp{Seconds: wireformat.NewPTPSeconds(uint64(sec)), Nanos: uint32(nanos)}, nil
}

// PTPToLocal is the inverse of LocalToPTP.
func (t *Timebase) PTPToLocal(ts wireformat.Timestamp) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.haveMapping {
		return 0, ravennaerr.New(ravennaerr.NotFound, "timebase.PTPToLocal", fmt.Errorf("no PTP mapping established"))
	}
	ptpNs := int64(ts.Seconds.Uint64())*1_000_000_000 + int64(ts.Nanos)
	monoNs := ptpNs - t.offsetNs
	if monoNs < 0 {
		return 0, ravennaerr.New(ravennaerr.Overflow, "timebase.PTPToLocal", fmt.Errorf("negative local timestamp"))
	}
	return uint64(monoNs), nil
}

// GrandmasterIdentity returns the currently selected parent, if any.
func (t *Timebase) GrandmasterIdentity() (wireformat.ClockIdentity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.best.GrandmasterIdentity, t.haveBest
}

// CheckAnnounceTimeout transitions the port away from slave if no Announce
// has arrived within announceReceiptTimeoutMultiplier announce intervals.
// Callers invoke this periodically from the coordinator loop (section 5).
func (t *Timebase) CheckAnnounceTimeout(announceInterval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != wireformat.PortStateSlave && t.state != wireformat.PortStateUncalibrated {
		return
	}
	if t.lastAnnTime.IsZero() {
		return
	}
	if time.Since(t.lastAnnTime) > announceReceiptTimeoutMultiplier*announceInterval {
		t.haveBest = false
		t.candidates = make(map[wireformat.ClockIdentity]bmca.Candidate)
		t.servo.Reset()
		t.haveMapping = false
		t.slaveSyncCount = 0
		t.setState(wireformat.PortStateListening)
	}
}
