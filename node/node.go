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

package node

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/discovery"
	"github.com/ravennakit/ravennakit/ptp/timebase"
	"github.com/ravennakit/ravennakit/ravennaerr"
	"github.com/ravennakit/ravennakit/rtp"
	"github.com/ravennakit/ravennakit/rtsp"
	"github.com/ravennakit/ravennakit/stats"
	"github.com/ravennakit/ravennakit/stream"
)

// defaultAnnounceInterval is the PTP Announce interval this node assumes
// when checking for parent loss (spec section 5, "default 3 x 1 s").
const defaultAnnounceInterval = time.Second

// Config configures a Node's shared resources: the time base's domain, the
// interface a node's sockets bind to, and the RTSP server's listen address.
type Config struct {
	PTPDomain     uint8
	InterfaceAddr net.IP
	RTSPAddr      string // empty defaults to "<InterfaceAddr>:5005"
	DSCP          int
}

// Node is the single owner of every component (spec section 3,
// "Lifecycle"): the time base, the RTSP server, the shared RTP transmit
// socket, and every Transmitter/Receiver hung off them. All I/O, timers,
// and observer callbacks for components owned here ultimately run on the
// coordinator's Runner.
type Node struct {
	runner     *Runner
	cfg        Config
	ptp        *timebase.Timebase
	rtspServer *rtsp.Server
	tx         *rtp.TransmitSocket
	advertiser discovery.Advertiser
	browser    discovery.Browser
	stats      *stats.Registry

	mu           sync.Mutex
	transmitters []*stream.Transmitter
	receivers    []*stream.Receiver
	closed       bool
}

// New constructs a Node: binds the RTSP server and the shared RTP transmit
// socket, and starts the coordinator's background tasks (RTSP accept loop,
// PTP announce-timeout checker). Discovery's advertiser/browser are
// supplied by the caller (a discovery.MockBackend in tests, a
// discovery.ZeroconfBackend in production) since the shared DNS-SD
// connection outlives any single node in some deployments (spec section 9,
// "global mutable state").
func New(ctx context.Context, cfg Config, advertiser discovery.Advertiser, browser discovery.Browser) (*Node, error) {
	if cfg.InterfaceAddr == nil {
		return nil, ravennaerr.New(ravennaerr.InvalidArgument, "node.New", fmt.Errorf("interface address required"))
	}
	rtspAddr := cfg.RTSPAddr
	if rtspAddr == "" {
		rtspAddr = fmt.Sprintf("%s:5005", cfg.InterfaceAddr.String())
	}

	srv, err := rtsp.NewServer(rtspAddr)
	if err != nil {
		return nil, err
	}
	tx, err := rtp.NewTransmitSocket(&net.UDPAddr{IP: cfg.InterfaceAddr, Port: 0}, cfg.DSCP)
	if err != nil {
		srv.Close()
		return nil, err
	}

	n := &Node{
		runner:     NewRunner(ctx),
		cfg:        cfg,
		ptp:        timebase.New(cfg.PTPDomain),
		rtspServer: srv,
		tx:         tx,
		advertiser: advertiser,
		browser:    browser,
		stats:      stats.NewRegistry(),
	}

	instance := cfg.InterfaceAddr.String()
	n.stats.RegisterTimebase(instance,
		n.ptp.OffsetNs,
		func() string { return n.ptp.PortState().String() },
		func() uint64 { return n.ptp.Stats().MalformedPackets },
		func() uint64 { return n.ptp.Stats().SocketErrors },
	)
	n.stats.RegisterRTSPServer(instance, srv.ActiveConnections)

	n.runner.Go(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		return srv.Serve()
	})
	n.runner.Go(n.announceTimeoutLoop)

	return n, nil
}

// Stats returns the node's Prometheus registry (spec section 7, "drop
// counters are observable"). Callers typically serve it via
// stats.NewExporter(n.Stats(), addr).Serve() from cmd/ravtx or cmd/ravrx.
func (n *Node) Stats() *stats.Registry { return n.stats }

// Timebase returns the node's C1 time base.
func (n *Node) Timebase() *timebase.Timebase { return n.ptp }

// RTSPServer returns the node's shared C3 server.
func (n *Node) RTSPServer() *rtsp.Server { return n.rtspServer }

// TransmitSocket returns the node's shared C5 outbound socket.
func (n *Node) TransmitSocket() *rtp.TransmitSocket { return n.tx }

// Advertiser returns the node's C2 advertiser.
func (n *Node) Advertiser() discovery.Advertiser { return n.advertiser }

// Browser returns the node's C2 browser, if one was configured.
func (n *Node) Browser() discovery.Browser { return n.browser }

// AddPort binds the time base's PTP sockets on iface, joining the
// coordinator's lifetime rather than a caller-supplied one.
func (n *Node) AddPort(iface *net.Interface) error {
	return n.ptp.AddPort(n.runner.ctx, iface)
}

// NewTransmitter builds a Transmitter wired to this node's shared RTSP
// server, time base, and transmit socket, and registers it for LIFO
// teardown in Close.
func (n *Node) NewTransmitter(id uint64, sessionName string) *stream.Transmitter {
	t := stream.NewTransmitter(n.advertiser, n.rtspServer, n.ptp, n.tx, id, sessionName, n.cfg.InterfaceAddr)
	n.mu.Lock()
	n.transmitters = append(n.transmitters, t)
	n.mu.Unlock()
	n.stats.RegisterTransmitter(sessionName,
		func() uint64 { return t.Stats().PacketsSent },
		func() uint64 { return t.Stats().Underruns },
	)
	return t
}

// NewReceiver builds a Receiver wired to an RTSP client dialed to addr, and
// registers it for LIFO teardown in Close.
func (n *Node) NewReceiver(addr string) (*stream.Receiver, error) {
	client, err := rtsp.Dial(addr)
	if err != nil {
		return nil, err
	}
	r := stream.NewReceiver(client, n.cfg.PTPDomain)
	n.mu.Lock()
	n.receivers = append(n.receivers, r)
	n.mu.Unlock()
	n.stats.RegisterReceiver(addr,
		func() uint64 { return r.Stats().Lost },
		func() uint64 { return r.Stats().Reordered },
		func() uint64 { return r.Stats().Mismatched },
		func() uint64 { return r.Stats().FilteredSource },
	)
	n.stats.RegisterJitterBuffer(addr, r.JitterUnderflows)
	return r, nil
}

func (n *Node) announceTimeoutLoop(ctx context.Context) error {
	ticker := time.NewTicker(defaultAnnounceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.ptp.CheckAnnounceTimeout(defaultAnnounceInterval)
		}
	}
}

// Close tears the node down in the order spec section 3 requires: endpoints
// (C6) before transports (C5, C3, C2) before the time base (C1). Receivers
// and transmitters are closed in LIFO construction order, as are multiple
// nodes sharing a process would expect for correct resource release.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	receivers := n.receivers
	transmitters := n.transmitters
	n.receivers = nil
	n.transmitters = nil
	n.mu.Unlock()

	for i := len(receivers) - 1; i >= 0; i-- {
		if err := receivers[i].Close(); err != nil {
			log.WithError(err).Warn("node: error closing receiver")
		}
	}
	for i := len(transmitters) - 1; i >= 0; i-- {
		if err := transmitters[i].Close(); err != nil {
			log.WithError(err).Warn("node: error closing transmitter")
		}
	}

	if err := n.tx.Close(); err != nil {
		log.WithError(err).Warn("node: error closing transmit socket")
	}

	var firstErr error
	if err := n.runner.Stop(); err != nil {
		firstErr = err
	}

	if err := n.ptp.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
