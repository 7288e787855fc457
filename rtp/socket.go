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

import (
	"context"
	"net"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ravennakit/ravennakit/ravennaerr"
)

// controlReuseAddr sets SO_REUSEADDR on the raw socket before bind, so
// multiple processes on the same host can share a multicast receive port.
func controlReuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// TransmitSocket is a UDP socket bound to a specific outbound interface
// address, with multicast loopback disabled and SO_REUSEADDR set.
type TransmitSocket struct {
	conn *net.UDPConn
}

// NewTransmitSocket binds a UDP socket on outboundAddr (an interface
// address, port typically 0 for an ephemeral source port) and disables
// multicast loopback.
func NewTransmitSocket(outboundAddr *net.UDPAddr, dscp int) (*TransmitSocket, error) {
	lc := net.ListenConfig{Control: controlReuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp4", outboundAddr.String())
	if err != nil {
		return nil, ravennaerr.New(ravennaerr.Platform, "rtp.NewTransmitSocket", err)
	}
	conn := pc.(*net.UDPConn)

	if err := disableMulticastLoopback(conn); err != nil {
		conn.Close()
		return nil, ravennaerr.New(ravennaerr.Platform, "rtp.NewTransmitSocket", err)
	}
	if dscp > 0 {
		if err := setDSCP(conn, outboundAddr.IP, dscp); err != nil {
			log.WithError(err).Warn("rtp: failed to set DSCP on transmit socket")
		}
	}
	return &TransmitSocket{conn: conn}, nil
}

// SendTo synchronously writes one packet to dst.
func (s *TransmitSocket) SendTo(packet []byte, dst *net.UDPAddr) error {
	_, err := s.conn.WriteToUDP(packet, dst)
	if err != nil {
		return ravennaerr.New(ravennaerr.Platform, "rtp.TransmitSocket.SendTo", err)
	}
	return nil
}

// Close releases the underlying socket.
func (s *TransmitSocket) Close() error { return s.conn.Close() }

func disableMulticastLoopback(conn *net.UDPConn) error {
	sc, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = sc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptByte(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, 0)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func setDSCP(conn *net.UDPConn, localAddr net.IP, dscp int) error {
	sc, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = sc.Control(func(fd uintptr) {
		if localAddr.To4() == nil {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, dscp<<2)
		} else {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, dscp<<2)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Subscription is a registered (port, SSRC) receiver. Deliver is called
// once per accepted packet.
type Subscription struct {
	SSRC    uint32
	Deliver func(Packet, *net.UDPAddr)
}

// ReceiveSocket is a non-blocking multicast UDP receive socket dispatching
// incoming datagrams to a (port, SSRC)-keyed subscription registry.
// Datagrams from an SSRC with no matching subscription are counted and
// dropped.
type ReceiveSocket struct {
	conn *net.UDPConn
	port int

	mu            sync.Mutex
	subscriptions map[uint32]*Subscription
	anyDeliver    func(Packet, *net.UDPAddr)

	mismatched uint64
	cancel     context.CancelFunc
}

// NewReceiveSocket binds to 0.0.0.0:port and joins group on iface.
func NewReceiveSocket(iface *net.Interface, group net.IP, port int) (*ReceiveSocket, error) {
	conn, err := net.ListenMulticastUDP("udp4", iface, &net.UDPAddr{IP: group, Port: port})
	if err != nil {
		return nil, ravennaerr.New(ravennaerr.Platform, "rtp.NewReceiveSocket", err)
	}
	return &ReceiveSocket{
		conn:          conn,
		port:          port,
		subscriptions: make(map[uint32]*Subscription),
	}, nil
}

// Subscribe registers a delivery callback for the given SSRC. Replaces any
// existing subscription for that SSRC.
func (r *ReceiveSocket) Subscribe(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions[sub.SSRC] = sub
}

// SubscribeAny registers a fallback delivery callback invoked for
// datagrams whose SSRC matches no exact subscription, instead of counting
// them mismatched. A receiver with no a-priori SSRC (it learns the
// stream's SSRC from the first packet) uses this to bootstrap, then
// typically calls Subscribe with the learned SSRC and clears this via
// SubscribeAny(nil).
func (r *ReceiveSocket) SubscribeAny(deliver func(Packet, *net.UDPAddr)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anyDeliver = deliver
}

// Unsubscribe removes the subscription for ssrc, if any.
func (r *ReceiveSocket) Unsubscribe(ssrc uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscriptions, ssrc)
}

// Mismatched returns the count of datagrams dropped for lacking a matching
// subscription.
func (r *ReceiveSocket) Mismatched() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mismatched
}

// Run starts the receive loop; it returns when ctx is cancelled or the
// socket is closed.
func (r *ReceiveSocket) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	buf := make([]byte, 65535)
	for {
		select {
		case <-runCtx.Done():
			return
		default:
		}
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-runCtx.Done():
				return
			default:
			}
			log.WithError(err).Warn("rtp: receive socket error")
			return
		}
		pkt, err := Decode(buf[:n])
		if err != nil {
			continue
		}
		r.mu.Lock()
		sub, ok := r.subscriptions[pkt.SSRC]
		any := r.anyDeliver
		if !ok {
			r.mu.Unlock()
			if any != nil {
				any(pkt, addr)
			} else {
				r.mu.Lock()
				r.mismatched++
				r.mu.Unlock()
			}
			continue
		}
		r.mu.Unlock()
		sub.Deliver(pkt, addr)
	}
}

// Close stops the receive loop and releases the socket.
func (r *ReceiveSocket) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	return r.conn.Close()
}
