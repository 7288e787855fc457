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
	"strconv"
	"strings"

	"github.com/ravennakit/ravennakit/ravennaerr"
)

// parserState is the incremental parser's position in the message grammar
// (spec section 4.3: start -> reading-headers -> [reading-body] -> complete).
type parserState int

const (
	stateStart parserState = iota
	stateHeaders
	stateBody
)

// ParseErrorKind enumerates the grammar violations named in spec section
// 4.3. It is carried as the wrapped error inside a ravennaerr.Error whose
// Kind is always ravennaerr.ProtocolError.
type ParseErrorKind string

const (
	ErrBadMethod           ParseErrorKind = "bad-method"
	ErrBadURI              ParseErrorKind = "bad-uri"
	ErrBadProtocol         ParseErrorKind = "bad-protocol"
	ErrBadVersion          ParseErrorKind = "bad-version"
	ErrBadHeader           ParseErrorKind = "bad-header"
	ErrBadEndOfHeaders     ParseErrorKind = "bad-end-of-headers"
	ErrBadStatusCode       ParseErrorKind = "bad-status-code"
	ErrBadReasonPhrase     ParseErrorKind = "bad-reason-phrase"
	ErrUnexpectedBlankLine ParseErrorKind = "unexpected-blank-line"
)

func (k ParseErrorKind) Error() string { return string(k) }

func parseErr(kind ParseErrorKind, detail string) error {
	var err error = kind
	if detail != "" {
		err = fmt.Errorf("%s: %s", kind, detail)
	}
	return ravennaerr.New(ravennaerr.ProtocolError, "rtsp.Parser", err)
}

// Parser is a single-connection incremental RTSP message parser. Feed may
// be called with any chunking, including one byte at a time; a message
// triggers its callback exactly once, as soon as it is complete, and the
// parser then returns to the start state for the next message.
//
// Input line endings may be bare LF; output (Request.Encode/Response.Encode)
// always uses CRLF.
type Parser struct {
	OnRequest  func(*Request)
	OnResponse func(*Response)

	state parserState
	buf   []byte // accumulated bytes not yet consumed as a full line

	// in-progress message
	isRequest bool
	req       *Request
	resp      *Response
	header    *Header
	lastName  string // most recently set header name, for fold continuation

	contentLength int
	body          []byte
}

// NewParser creates a parser with no message in progress.
func NewParser() *Parser {
	return &Parser{state: stateStart}
}

// Feed appends data to the parser's internal buffer and processes as many
// complete lines (or body bytes) as are available.
func (p *Parser) Feed(data []byte) error {
	p.buf = append(p.buf, data...)
	for {
		if p.state == stateBody {
			if len(p.buf) < p.contentLength {
				return nil
			}
			p.body = p.buf[:p.contentLength]
			p.buf = p.buf[p.contentLength:]
			p.completeMessage()
			continue
		}

		line, rest, ok := cutLine(p.buf)
		if !ok {
			return nil
		}
		p.buf = rest

		switch p.state {
		case stateStart:
			if err := p.handleStartLine(line); err != nil {
				return err
			}
		case stateHeaders:
			if err := p.handleHeaderLine(line); err != nil {
				return err
			}
		}
	}
}

// cutLine extracts one line terminated by LF (optionally preceded by CR)
// from buf, accepting bare-LF input per spec section 4.3.
func cutLine(buf []byte) (line []byte, rest []byte, ok bool) {
	for i, b := range buf {
		if b == '\n' {
			end := i
			if end > 0 && buf[end-1] == '\r' {
				end--
			}
			return buf[:end], buf[i+1:], true
		}
	}
	return nil, buf, false
}

func (p *Parser) handleStartLine(line []byte) error {
	s := string(line)
	if s == "" {
		return parseErr(ErrUnexpectedBlankLine, "")
	}
	fields := strings.Fields(s)

	if strings.HasPrefix(s, "RTSP/") {
		return p.startResponse(fields, s)
	}
	return p.startRequest(fields, s)
}

func (p *Parser) startRequest(fields []string, raw string) error {
	if len(fields) != 3 {
		return parseErr(ErrBadProtocol, raw)
	}
	method, uri, version := fields[0], fields[1], fields[2]
	if method == "" {
		return parseErr(ErrBadMethod, raw)
	}
	if uri == "" {
		return parseErr(ErrBadURI, raw)
	}
	if !strings.HasPrefix(version, "RTSP/") {
		return parseErr(ErrBadVersion, version)
	}
	p.isRequest = true
	p.req = &Request{Method: Method(method), URI: uri, Version: version}
	p.header = newHeader()
	p.state = stateHeaders
	return nil
}

func (p *Parser) startResponse(fields []string, raw string) error {
	if len(fields) < 2 {
		return parseErr(ErrBadProtocol, raw)
	}
	version := fields[0]
	if !strings.HasPrefix(version, "RTSP/") {
		return parseErr(ErrBadVersion, version)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 || code > 599 {
		return parseErr(ErrBadStatusCode, fields[1])
	}
	reason := ""
	if len(fields) >= 3 {
		reason = strings.Join(fields[2:], " ")
	}
	if len(fields) >= 3 && reason == "" {
		return parseErr(ErrBadReasonPhrase, raw)
	}
	p.isRequest = false
	p.resp = &Response{Version: version, Code: code, Reason: reason}
	p.header = newHeader()
	p.state = stateHeaders
	return nil
}

func (p *Parser) handleHeaderLine(line []byte) error {
	if len(line) == 0 {
		// blank line: end of headers.
		p.contentLength = 0
		if cl := p.header.Get("Content-Length"); cl != "" {
			n, err := strconv.Atoi(strings.TrimSpace(cl))
			if err != nil || n < 0 {
				return parseErr(ErrBadEndOfHeaders, cl)
			}
			p.contentLength = n
		}
		if p.contentLength == 0 {
			p.completeMessage()
			return nil
		}
		p.state = stateBody
		return nil
	}

	if line[0] == ' ' || line[0] == '\t' {
		// folded continuation of the previous header's value.
		if p.lastName == "" {
			return parseErr(ErrBadHeader, string(line))
		}
		existing := p.header.Get(p.lastName)
		p.header.Set(p.lastName, existing+" "+strings.TrimSpace(string(line)))
		return nil
	}

	idx := indexByte(line, ':')
	if idx < 0 {
		return parseErr(ErrBadHeader, string(line))
	}
	name := strings.TrimSpace(string(line[:idx]))
	value := strings.TrimSpace(string(line[idx+1:]))
	if name == "" {
		return parseErr(ErrBadHeader, string(line))
	}
	p.header.Set(name, value)
	p.lastName = name
	return nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func (p *Parser) completeMessage() {
	if p.isRequest {
		p.req.Header = p.header
		p.req.Body = p.body
		if p.OnRequest != nil {
			p.OnRequest(p.req)
		}
	} else {
		p.resp.Header = p.header
		p.resp.Body = p.body
		if p.OnResponse != nil {
			p.OnResponse(p.resp)
		}
	}
	p.state = stateStart
	p.req = nil
	p.resp = nil
	p.header = nil
	p.lastName = ""
	p.contentLength = 0
	p.body = nil
}
