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

package stats

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_ScrapesLiveValues(t *testing.T) {
	r := NewRegistry()

	var packetsSent, underruns uint64
	r.RegisterTransmitter("demo", func() uint64 { return packetsSent }, func() uint64 { return underruns })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), `ravennakit_tx_packets_sent_total{session="demo"} 0`)

	packetsSent = 42
	underruns = 3
	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	body := rec.Body.String()
	require.Contains(t, body, `ravennakit_tx_packets_sent_total{session="demo"} 42`)
	require.Contains(t, body, `ravennakit_tx_underruns_total{session="demo"} 3`)
}

func TestRegistry_RegisterTwiceIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.RegisterRTSPServer("eth0", func() int { return 1 })
	require.NotPanics(t, func() {
		r.RegisterRTSPServer("eth0", func() int { return 2 })
	})
}

func TestRegistry_PortLockedGauge(t *testing.T) {
	r := NewRegistry()
	state := "listening"
	r.RegisterTimebase("eth0",
		func() int64 { return 0 },
		func() string { return state },
		func() uint64 { return 0 },
		func() uint64 { return 0 },
	)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), `ravennakit_ptp_port_locked{instance="eth0"} 0`)

	state = "slave"
	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), `ravennakit_ptp_port_locked{instance="eth0"} 1`)
}
