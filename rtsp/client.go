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
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/ravennakit/ravennakit/ravennaerr"
)

// Client is the RTSP client half (C3). It assumes a single in-flight
// request per connection (spec section 4.3: "CSeq is emitted but not
// required for matching") and correlates responses to requests by FIFO
// order.
type Client struct {
	conn *Conn
	host string

	mu      sync.Mutex
	pending chan *Response
	done    chan struct{}

	cseq int64

	// OnAnnounce is invoked when the server pushes an unsolicited ANNOUNCE
	// request on this connection (spec section 4.6.1 "SDP regeneration").
	OnAnnounce func(req *Request)
	// OnDisconnect is invoked once when the connection closes.
	OnDisconnect func(error)
}

// Dial resolves addr (host:port) and opens the TCP connection.
func Dial(addr string) (*Client, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, ravennaerr.New(ravennaerr.Platform, "rtsp.Dial", err)
	}
	c := &Client{
		conn:    NewConn(nc),
		host:    addr,
		pending: make(chan *Response, 1),
		done:    make(chan struct{}),
	}
	c.conn.Parser().OnResponse = func(resp *Response) {
		select {
		case c.pending <- resp:
		default:
		}
	}
	c.conn.Parser().OnRequest = func(req *Request) {
		if req.Method == MethodAnnounce && c.OnAnnounce != nil {
			c.OnAnnounce(req)
		}
	}
	c.conn.OnDisconnect(func(err error) {
		close(c.done)
		if c.OnDisconnect != nil {
			c.OnDisconnect(err)
		}
	})
	go c.conn.Run()
	return c, nil
}

func (c *Client) send(req *Request) (*Response, error) {
	req.Header.Set("CSeq", fmt.Sprintf("%d", atomic.AddInt64(&c.cseq, 1)))
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.Write(req.Encode()); err != nil {
		return nil, err
	}
	select {
	case resp := <-c.pending:
		return resp, nil
	case <-c.done:
		return nil, ravennaerr.New(ravennaerr.Cancelled, "rtsp.Client", fmt.Errorf("connection closed"))
	}
}

// Describe issues DESCRIBE against path on the connected host and returns
// the SDP body.
func (c *Client) Describe(path string) ([]byte, error) {
	req := NewRequest(MethodDescribe, "rtsp://"+c.host+path)
	req.Header.Set("Accept", "application/sdp")
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.Code != StatusOK {
		return nil, ravennaerr.New(ravennaerr.NotFound, "rtsp.Client.Describe", fmt.Errorf("%d %s", resp.Code, resp.Reason))
	}
	return resp.Body, nil
}

// Setup issues SETUP against path.
func (c *Client) Setup(path, transport string) (*Response, error) {
	req := NewRequest(MethodSetup, "rtsp://"+c.host+path)
	req.Header.Set("Transport", transport)
	return c.send(req)
}

// Play issues PLAY against path.
func (c *Client) Play(path string) (*Response, error) {
	return c.send(NewRequest(MethodPlay, "rtsp://"+c.host+path))
}

// Teardown issues TEARDOWN against path.
func (c *Client) Teardown(path string) (*Response, error) {
	return c.send(NewRequest(MethodTeardown, "rtsp://"+c.host+path))
}

// Close shuts down the client's connection. Any in-flight send unblocks
// through the done channel closed by the disconnect callback.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ParseURI splits an rtsp://host:port/path URI into its host:port and path.
func ParseURI(uri string) (hostport, path string, err error) {
	u, perr := url.Parse(uri)
	if perr != nil || u.Scheme != "rtsp" {
		return "", "", ravennaerr.New(ravennaerr.InvalidArgument, "rtsp.ParseURI", fmt.Errorf("not an rtsp URI: %q", uri))
	}
	return u.Host, u.Path, nil
}
