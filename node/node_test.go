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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ravennakit/ravennakit/discovery"
	"github.com/ravennakit/ravennakit/ravennaerr"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	mock := discovery.NewMockBackend()
	n, err := New(context.Background(), Config{
		PTPDomain:     0,
		InterfaceAddr: net.IPv4(127, 0, 0, 1),
		RTSPAddr:      "127.0.0.1:0",
	}, mock, mock)
	require.NoError(t, err)
	return n
}

func TestNew_RejectsMissingInterfaceAddr(t *testing.T) {
	mock := discovery.NewMockBackend()
	_, err := New(context.Background(), Config{}, mock, mock)
	require.Error(t, err)
	require.True(t, ravennaerr.Is(err, ravennaerr.InvalidArgument))
}

func TestNode_ConstructsServerAndTransmitSocket(t *testing.T) {
	n := newTestNode(t)
	defer n.Close()

	require.NotNil(t, n.RTSPServer())
	require.NotNil(t, n.TransmitSocket())
	require.NotNil(t, n.Timebase())
}

func TestNode_NewTransmitterIsTracked(t *testing.T) {
	n := newTestNode(t)
	defer n.Close()

	tr := n.NewTransmitter(1, "mic-1")
	require.NotNil(t, tr)

	n.mu.Lock()
	count := len(n.transmitters)
	n.mu.Unlock()
	require.Equal(t, 1, count)
}

func TestNode_NewReceiverDialsRTSPServer(t *testing.T) {
	n := newTestNode(t)
	defer n.Close()

	// the RTSP accept loop is driven by the runner; give it a moment to
	// start listening.
	time.Sleep(10 * time.Millisecond)

	rx, err := n.NewReceiver(n.RTSPServer().Addr().String())
	require.NoError(t, err)
	require.NotNil(t, rx)

	n.mu.Lock()
	count := len(n.receivers)
	n.mu.Unlock()
	require.Equal(t, 1, count)
}

func TestNode_CloseIsIdempotent(t *testing.T) {
	n := newTestNode(t)
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
}

func TestNode_CloseTearsDownTransmittersAndReceivers(t *testing.T) {
	n := newTestNode(t)
	time.Sleep(10 * time.Millisecond)

	tr := n.NewTransmitter(2, "mic-2")
	require.NotNil(t, tr)
	rx, err := n.NewReceiver(n.RTSPServer().Addr().String())
	require.NoError(t, err)
	require.NotNil(t, rx)

	require.NoError(t, n.Close())

	n.mu.Lock()
	defer n.mu.Unlock()
	require.Nil(t, n.transmitters)
	require.Nil(t, n.receivers)
}
