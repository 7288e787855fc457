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

package rtsp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerClient_DescribeRoundTrip(t *testing.T) {
	s, err := NewServer("127.0.0.1:0")
	require.NoError(t, err)
	defer s.Close()
	go s.Serve()

	s.Handle("/by-name/demo", func() ([]byte, bool) {
		return []byte("v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\n"), true
	})

	c, err := Dial(s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	body, err := c.Describe("/by-name/demo")
	require.NoError(t, err)
	require.Contains(t, string(body), "v=0")

	_, err = c.Describe("/by-name/missing")
	require.Error(t, err)

	s.Unregister("/by-name/demo")
	_, err = c.Describe("/by-name/demo")
	require.Error(t, err)
}

func TestServer_AnnouncePush(t *testing.T) {
	s, err := NewServer("127.0.0.1:0")
	require.NoError(t, err)
	defer s.Close()
	go s.Serve()

	c, err := Dial(s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	got := make(chan *Request, 1)
	c.OnAnnounce = func(r *Request) { got <- r }

	// let the connection register before pushing.
	time.Sleep(10 * time.Millisecond)
	req := NewRequest(MethodAnnounce, "rtsp://x/by-name/demo")
	req.Body = []byte("v=0\r\n")
	s.Broadcast(req)

	select {
	case r := <-got:
		require.Equal(t, MethodAnnounce, r.Method)
		require.Equal(t, "v=0\r\n", string(r.Body))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ANNOUNCE push")
	}
}
