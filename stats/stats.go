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

// Package stats exposes the node's operational counters (PTP port state and
// servo offset, RTP sequence gaps/drops, jitter buffer underruns, RTSP
// connection counts) as Prometheus metrics, per spec section 7's "drop
// counters are observable". Each subsystem already keeps its own counters
// (timebase.Stats, stream.TxStats, stream.RxStats, rtsp.Server); this
// package only wires them onto a registry and an HTTP handler, pulling
// values at scrape time rather than duplicating the bookkeeping.
package stats

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private Prometheus registry so metrics from multiple
// ravennakit nodes in the same process never collide on label values.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// mustRegister registers c, tolerating (and reusing) an already-registered
// collector with identical labels so repeated RegisterX calls for the same
// name are idempotent, mirroring ptp/sptp/stats.PrometheusExporter's own
// AlreadyRegisteredError handling.
func (r *Registry) mustRegister(c prometheus.Collector) {
	if err := r.reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return
		}
	}
}

// RegisterTimebase wires session's PTP port state, clock offset, and
// malformed-packet/socket-error counters under the given instance label.
func (r *Registry) RegisterTimebase(instance string, offsetNs func() int64, portState func() string, malformed func() uint64, socketErrors func() uint64) {
	labels := prometheus.Labels{"instance": instance}
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "ptp", Name: "offset_ns", Help: "Estimated master-to-local clock offset in nanoseconds.", ConstLabels: labels},
		func() float64 { return float64(offsetNs()) },
	))
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "ptp", Name: "malformed_packets_total", Help: "PTP datagrams dropped for failing to parse.", ConstLabels: labels},
		func() float64 { return float64(malformed()) },
	))
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "ptp", Name: "socket_errors_total", Help: "PTP event/general socket errors observed.", ConstLabels: labels},
		func() float64 { return float64(socketErrors()) },
	))
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "ptp", Name: "port_locked", Help: "1 if the PTP port is in the slave (locked) state, else 0.", ConstLabels: labels},
		func() float64 {
			if portState() == "slave" {
				return 1
			}
			return 0
		},
	))
}

// RegisterTransmitter wires a Transmitter's packets-sent and underrun
// counters under the given session label.
func (r *Registry) RegisterTransmitter(session string, packetsSent func() uint64, underruns func() uint64) {
	labels := prometheus.Labels{"session": session}
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "tx", Name: "packets_sent_total", Help: "RTP packets emitted by this transmitter.", ConstLabels: labels},
		func() float64 { return float64(packetsSent()) },
	))
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "tx", Name: "underruns_total", Help: "FIFO underruns observed by this transmitter's scheduler.", ConstLabels: labels},
		func() float64 { return float64(underruns()) },
	))
}

// RegisterReceiver wires a Receiver's loss/reorder/mismatch counters under
// the given session label.
func (r *Registry) RegisterReceiver(session string, lost func() uint64, reordered func() uint64, mismatched func() uint64, filteredSource func() uint64) {
	labels := prometheus.Labels{"session": session}
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "rx", Name: "lost_total", Help: "RTP sequence gaps detected by this receiver.", ConstLabels: labels},
		func() float64 { return float64(lost()) },
	))
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "rx", Name: "reordered_total", Help: "Out-of-order RTP packets accepted by this receiver.", ConstLabels: labels},
		func() float64 { return float64(reordered()) },
	))
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "rx", Name: "mismatched_total", Help: "Datagrams dropped for not matching this receiver's subscription.", ConstLabels: labels},
		func() float64 { return float64(mismatched()) },
	))
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "rx", Name: "filtered_source_total", Help: "Datagrams dropped for failing this receiver's SDP source-filter.", ConstLabels: labels},
		func() float64 { return float64(filteredSource()) },
	))
}

// RegisterJitterBuffer wires a receiver's jitter buffer underflow counter.
func (r *Registry) RegisterJitterBuffer(session string, underflows func() uint64) {
	labels := prometheus.Labels{"session": session}
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "jitter", Name: "underflows_total", Help: "Reads that missed their exact packet and fell back to fill (last-sample or silence).", ConstLabels: labels},
		func() float64 { return float64(underflows()) },
	))
}

// RegisterRTSPServer wires an rtsp.Server's active connection count.
func (r *Registry) RegisterRTSPServer(instance string, activeConnections func() int) {
	labels := prometheus.Labels{"instance": instance}
	r.mustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "ravennakit", Subsystem: "rtsp", Name: "active_connections", Help: "Currently open RTSP connections.", ConstLabels: labels},
		func() float64 { return float64(activeConnections()) },
	))
}

// Handler returns the /metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Exporter serves a Registry's Handler on its own listener, mirroring
// ptp/sptp/stats.PrometheusExporter's dedicated-port shape.
type Exporter struct {
	registry *Registry
	addr     string
}

// NewExporter binds no socket yet; call Serve to start listening.
func NewExporter(registry *Registry, addr string) *Exporter {
	return &Exporter{registry: registry, addr: addr}
}

// Serve blocks serving /metrics until the listener fails or the process
// exits; callers typically run it in its own goroutine.
func (e *Exporter) Serve() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.registry.Handler())
	if err := http.ListenAndServe(e.addr, mux); err != nil {
		return fmt.Errorf("stats: exporter listen on %s: %w", e.addr, err)
	}
	return nil
}
