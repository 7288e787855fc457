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

// Command ravtx is a single-purpose RAVENNA/AES67 transmitter daemon: it
// binds a PTP slave port, advertises a stream over DNS-SD, and serves its
// SDP description over RTSP, then packetizes whatever PCM is written to
// its standard input.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/audio"
	"github.com/ravennakit/ravennakit/config"
	"github.com/ravennakit/ravennakit/discovery"
	"github.com/ravennakit/ravennakit/node"
	"github.com/ravennakit/ravennakit/ptp/timebase"
	"github.com/ravennakit/ravennakit/stats"
	"github.com/ravennakit/ravennakit/stream"
)

func main() {
	c := config.DefaultConfig()

	var ifaceAddr, configPath string
	flag.StringVar(&ifaceAddr, "interface-addr", "", "IPv4 address of the interface to bind on (required)")
	flag.StringVar(&configPath, "config", "", "path to a yaml config file")
	flag.StringVar(&c.Interface, "iface", c.Interface, "network interface name to bind the PTP port on")
	flag.StringVar(&c.RTSPAddr, "rtsp-addr", c.RTSPAddr, "RTSP server listen address")
	flag.StringVar(&c.SessionName, "session-name", c.SessionName, "advertised session name")
	flag.StringVar(&c.Encoding, "encoding", c.Encoding, "pcm_u8, pcm_s16 or pcm_s24")
	flag.Uint64Var(&c.SessionID, "session-id", c.SessionID, "unique session id")
	flag.IntVar(&c.Channels, "channels", c.Channels, "channel count")
	flag.Float64Var(&c.PacketTime, "packet-time-us", c.PacketTime, "AES67 nominal packet time in microseconds")
	flag.IntVar(&c.DSCP, "dscp", c.DSCP, "DSCP marking for RTP packets")
	flag.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "address to serve Prometheus /metrics on (empty disables)")
	flag.Parse()

	if configPath != "" {
		fileCfg, err := config.ReadConfig(configPath)
		if err != nil {
			log.Fatal(err)
		}
		c = fileCfg
	}

	if err := config.ApplyLogLevel(os.Getenv("RAV_LOG_LEVEL")); err != nil {
		log.Fatal(err)
	}

	if ifaceAddr == "" {
		log.Fatal("--interface-addr is required")
	}
	addr := net.ParseIP(ifaceAddr)
	if addr == nil {
		log.Fatalf("invalid --interface-addr %q", ifaceAddr)
	}
	if c.Interface == "" {
		log.Fatal("--iface is required")
	}
	iface, err := net.InterfaceByName(c.Interface)
	if err != nil {
		log.Fatalf("interface %q not found: %v", c.Interface, err)
	}
	encoding, err := audio.ParseEncoding(c.Encoding)
	if err != nil {
		log.Fatal(err)
	}
	if err := c.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	advertiser := discovery.NewZeroconfBackend()

	n, err := node.New(ctx, node.Config{
		PTPDomain:     c.PTPDomain,
		InterfaceAddr: addr,
		RTSPAddr:      c.RTSPAddr,
		DSCP:          c.DSCP,
	}, advertiser, advertiser)
	if err != nil {
		log.Fatal(err)
	}
	defer n.Close()

	if err := n.AddPort(iface); err != nil {
		log.Fatal(err)
	}

	if c.MetricsAddr != "" {
		exporter := stats.NewExporter(n.Stats(), c.MetricsAddr)
		go func() {
			if err := exporter.Serve(); err != nil {
				log.WithError(err).Warn("ravtx: metrics exporter stopped")
			}
		}()
		log.Infof("ravtx: serving metrics on %s", c.MetricsAddr)
	}

	tx := n.NewTransmitter(c.SessionID, c.SessionName)
	format := audio.Format{Encoding: encoding, SampleRate: c.SampleRate, NumChannels: uint8(c.Channels)}
	if err := tx.SetAudioFormat(format, c.PacketTime); err != nil {
		log.Fatal(err)
	}

	_, portStr, err := net.SplitHostPort(n.RTSPServer().Addr().String())
	if err != nil {
		log.Fatal(err)
	}
	rtspPort, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatal(err)
	}
	if err := tx.Advertise(rtspPort); err != nil {
		log.Fatal(err)
	}

	// Start is gated on the PTP port reaching slave state (spec section
	// 4.6.1); retry once the time base reports that transition instead of
	// blocking here.
	n.Timebase().Subscribe(func(ev timebase.Event) {
		if ev.Kind != timebase.EventPortStateChanged {
			return
		}
		if err := tx.Start(0); err != nil {
			log.WithError(err).Debug("ravtx: not ready to start yet")
			return
		}
		log.Info("ravtx: transmitter running")
	})

	go pumpStdin(tx, format)

	log.Infof("ravtx: session %q (id %d) serving RTSP on %s", c.SessionName, c.SessionID, n.RTSPServer().Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("ravtx: shutting down")
}

// pumpStdin feeds raw PCM read from standard input into the transmitter's
// packetizer, one frame-buffer's worth at a time.
func pumpStdin(tx *stream.Transmitter, format audio.Format) {
	const framesPerRead = 256
	buf := make([]byte, framesPerRead*format.BytesPerFrame())
	r := bufio.NewReader(os.Stdin)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			tx.Write(buf[:n])
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.WithError(err).Warn("ravtx: stdin read error")
			}
			return
		}
	}
}
