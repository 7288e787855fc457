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
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/ravennaerr"
)

// IdleTimeout is the connection idle duration after which the server may
// close a connection (spec section 5: "connections idle for > 60 s may be
// closed by either side").
const IdleTimeout = 60 * time.Second

// Handler answers DESCRIBE for one registered path. It returns the SDP
// document body and true, or false if the path currently has nothing to
// describe (translated to a 404).
type Handler func() (sdp []byte, ok bool)

// Server is the RTSP server half (C3): it accepts TCP connections and
// dispatches OPTIONS/DESCRIBE requests to handlers registered by exact
// path, and can push ANNOUNCE requests to every currently connected
// client (used by stream.Transmitter on grandmaster change).
type Server struct {
	ln net.Listener

	mu       sync.Mutex
	handlers map[string]Handler
	conns    map[*Conn]struct{}

	closed bool
}

// NewServer starts listening on addr (host:port, port 0 for an ephemeral
// port).
func NewServer(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ravennaerr.New(ravennaerr.ResourceExhausted, "rtsp.NewServer", err)
	}
	s := &Server{
		ln:       ln,
		handlers: make(map[string]Handler),
		conns:    make(map[*Conn]struct{}),
	}
	return s, nil
}

// Addr returns the server's bound address (useful when addr was ":0").
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// ActiveConnections returns the number of currently open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Handle registers h for exact path. Replaces any existing handler for
// path.
func (s *Server) Handle(path string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// Unregister removes the handler for path, if any. Idempotent; this is the
// single explicit API the spec's Open Questions section asks for, in place
// of the source's zero-or-one-port-means-unregister overload.
func (s *Server) Unregister(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, path)
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return ravennaerr.New(ravennaerr.Platform, "rtsp.Server.Serve", err)
		}
		go s.serveConn(nc)
	}
}

func (s *Server) serveConn(nc net.Conn) {
	c := NewConn(nc)
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	c.OnDisconnect(func(error) {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	})
	c.Parser().OnRequest = func(req *Request) {
		resp := s.handle(req)
		if err := c.Write(resp.Encode()); err != nil {
			log.WithError(err).Warn("rtsp: failed writing response")
		}
	}
	c.Run()
}

func (s *Server) handle(req *Request) *Response {
	switch req.Method {
	case MethodOptions:
		resp := NewResponse(StatusOK, ReasonForStatus(StatusOK))
		resp.Header.Set("Public", "OPTIONS, DESCRIBE, ANNOUNCE")
		return resp
	case MethodDescribe:
		path := uriPath(req.URI)
		s.mu.Lock()
		h, ok := s.handlers[path]
		s.mu.Unlock()
		if !ok {
			return NewResponse(StatusNotFound, ReasonForStatus(StatusNotFound))
		}
		body, ok := h()
		if !ok {
			return NewResponse(StatusNotFound, ReasonForStatus(StatusNotFound))
		}
		resp := NewResponse(StatusOK, ReasonForStatus(StatusOK))
		resp.Header.Set("Content-Type", "application/sdp")
		resp.Body = body
		return resp
	default:
		return NewResponse(StatusNotAllowed, ReasonForStatus(StatusNotAllowed))
	}
}

// Broadcast pushes req (typically an ANNOUNCE) to every currently
// connected client.
func (s *Server) Broadcast(req *Request) {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	raw := req.Encode()
	for _, c := range conns {
		if err := c.Write(raw); err != nil {
			log.WithError(err).Warn("rtsp: failed pushing ANNOUNCE")
		}
	}
}

// Close stops accepting connections and closes every open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	return s.ln.Close()
}

func uriPath(uri string) string {
	if idx := strings.Index(uri, "://"); idx >= 0 {
		rest := uri[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			uri = rest[slash:]
		} else {
			uri = "/"
		}
	}
	if q := strings.IndexByte(uri, '?'); q >= 0 {
		uri = uri[:q]
	}
	return uri
}
