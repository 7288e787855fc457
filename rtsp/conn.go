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
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/ravennaerr"
)

// connState mirrors spec section 4.3's connection lifecycle: connect ->
// running -> closed, with no reconnect at this layer.
type connState int

const (
	connRunning connState = iota
	connClosed
)

// Conn is one TCP connection carrying RTSP messages in either direction.
// Reads are driven by a dedicated goroutine that feeds a Parser; writes are
// synchronous, and mu guards only the closed-state check made before each
// write, not the write itself. Writes issued after Close are dropped
// rather than erroring, matching the "writes after close are dropped"
// contract.
type Conn struct {
	nc     net.Conn
	parser *Parser

	mu    sync.Mutex
	state connState

	onDisconnect func(error)
}

// NewConn wraps nc. OnRequest/OnResponse on the returned Conn's Parser
// should be set by the caller before calling Run.
func NewConn(nc net.Conn) *Conn {
	c := &Conn{nc: nc, parser: NewParser()}
	return c
}

// Parser exposes the connection's message parser so the owner (Server or
// Client) can install OnRequest/OnResponse before Run starts.
func (c *Conn) Parser() *Parser { return c.parser }

// OnDisconnect registers a callback fired once when the connection
// transitions to closed, whether by local Close or by a remote EOF/error.
func (c *Conn) OnDisconnect(fn func(error)) { c.onDisconnect = fn }

// Run drives the read loop until EOF or error. It returns after emitting
// the disconnect event; callers typically invoke Run in its own goroutine.
func (c *Conn) Run() {
	buf := make([]byte, 4096)
	var runErr error
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			if ferr := c.parser.Feed(buf[:n]); ferr != nil {
				log.WithError(ferr).Warn("rtsp: dropping malformed message")
			}
		}
		if err != nil {
			if err != io.EOF {
				runErr = err
			}
			break
		}
	}
	c.closeLocked(runErr)
}

// Write sends raw bytes on the connection. No-op once closed.
func (c *Conn) Write(b []byte) error {
	c.mu.Lock()
	if c.state == connClosed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	if _, err := c.nc.Write(b); err != nil {
		return ravennaerr.New(ravennaerr.Platform, "rtsp.Conn.Write", err)
	}
	return nil
}

// Close shuts down the connection from the local side.
func (c *Conn) Close() error {
	c.closeLocked(nil)
	return c.nc.Close()
}

func (c *Conn) closeLocked(err error) {
	c.mu.Lock()
	already := c.state == connClosed
	c.state = connClosed
	c.mu.Unlock()
	if already {
		return
	}
	if c.onDisconnect != nil {
		c.onDisconnect(err)
	}
}
