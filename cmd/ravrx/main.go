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

// Command ravrx is a single-purpose RAVENNA/AES67 receiver daemon: it
// dials a peer's RTSP server, joins the multicast stream it describes,
// and writes the recovered PCM to standard output.
package main

import (
	"bufio"
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/config"
	"github.com/ravennakit/ravennakit/discovery"
	"github.com/ravennakit/ravennakit/node"
	"github.com/ravennakit/ravennakit/stats"
	"github.com/ravennakit/ravennakit/stream"
)

func main() {
	var (
		ifaceAddr   string
		rtspURL     string
		ifaceName   string
		delayFrames uint
		ptDomain    uint
		metricsAddr string
	)
	flag.StringVar(&ifaceAddr, "interface-addr", "", "IPv4 address of the interface to bind on (required)")
	flag.StringVar(&rtspURL, "source", "", "RTSP address of the stream to subscribe to, host:port/path (required)")
	flag.StringVar(&ifaceName, "iface", "", "network interface to join the multicast group on (required)")
	flag.UintVar(&delayFrames, "delay-frames", stream.DefaultDelayFrames, "jitter buffer playout delay in frames")
	flag.UintVar(&ptDomain, "ptp-domain", 0, "local PTP domain, validated against the source's ts-refclk")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (empty disables)")
	flag.Parse()

	if err := config.ApplyLogLevel(os.Getenv("RAV_LOG_LEVEL")); err != nil {
		log.Fatal(err)
	}
	if ifaceAddr == "" || rtspURL == "" || ifaceName == "" {
		log.Fatal("--interface-addr, --source and --iface are required")
	}
	addr := net.ParseIP(ifaceAddr)
	if addr == nil {
		log.Fatalf("invalid --interface-addr %q", ifaceAddr)
	}
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		log.Fatalf("interface %q not found: %v", ifaceName, err)
	}

	host, path, err := splitRTSPTarget(rtspURL)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	advertiser := discovery.NewZeroconfBackend()
	n, err := node.New(ctx, node.Config{
		PTPDomain:     uint8(ptDomain),
		InterfaceAddr: addr,
		RTSPAddr:      ":0",
	}, advertiser, advertiser)
	if err != nil {
		log.Fatal(err)
	}
	defer n.Close()

	if err := n.AddPort(iface); err != nil {
		log.Fatal(err)
	}

	if metricsAddr != "" {
		exporter := stats.NewExporter(n.Stats(), metricsAddr)
		go func() {
			if err := exporter.Serve(); err != nil {
				log.WithError(err).Warn("ravrx: metrics exporter stopped")
			}
		}()
		log.Infof("ravrx: serving metrics on %s", metricsAddr)
	}

	rx, err := n.NewReceiver(host)
	if err != nil {
		log.Fatal(err)
	}

	if err := rx.Subscribe(path, iface, uint32(delayFrames), stream.FillLastSample); err != nil {
		log.Fatal(err)
	}

	go pumpStdout(ctx, rx)

	log.Infof("ravrx: subscribed to %s%s", host, path)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("ravrx: shutting down")
}

// pumpStdout pulls PCM from the receiver's jitter buffer on a fixed 5 ms
// ticker, 256 frames per read, and writes it to standard output.
func pumpStdout(ctx context.Context, rx *stream.Receiver) {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	const framesPerRead = 256
	var cursor uint32
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pcm := rx.Read(cursor, framesPerRead)
			cursor += framesPerRead
			if pcm == nil {
				continue
			}
			if _, err := w.Write(pcm); err != nil {
				log.WithError(err).Warn("ravrx: stdout write error")
				return
			}
			w.Flush()
		}
	}
}

// splitRTSPTarget splits a "host:port/path" argument into the RTSP
// server address and the request path DESCRIBE is issued against.
func splitRTSPTarget(s string) (host, path string, err error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i:], nil
		}
	}
	return s, "/", nil
}
