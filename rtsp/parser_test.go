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

	"github.com/stretchr/testify/require"
)

// TestParser_ChunkedByByte is spec boundary scenario 3: feed a complete
// DESCRIBE request one byte at a time and expect exactly one callback.
func TestParser_ChunkedByByte(t *testing.T) {
	raw := "DESCRIBE rtsp://h/p RTSP/1.0\r\nContent-Length: 28\r\n\r\nthis_is_the_part_called_data"
	p := NewParser()
	var got []*Request
	p.OnRequest = func(r *Request) { got = append(got, r) }

	for i := 0; i < len(raw); i++ {
		require.NoError(t, p.Feed([]byte{raw[i]}))
	}

	require.Len(t, got, 1)
	require.Equal(t, MethodDescribe, got[0].Method)
	require.Equal(t, "rtsp://h/p", got[0].URI)
	require.Len(t, got[0].Body, 28)
	require.Equal(t, "this_is_the_part_called_data", string(got[0].Body))
}

func TestParser_NoBodyCompletesOnBlankLine(t *testing.T) {
	p := NewParser()
	var got *Request
	p.OnRequest = func(r *Request) { got = r }
	require.NoError(t, p.Feed([]byte("OPTIONS rtsp://h/p RTSP/1.0\r\nCSeq: 1\r\n\r\n")))
	require.NotNil(t, got)
	require.Equal(t, MethodOptions, got.Method)
	require.Equal(t, "1", got.Header.Get("cseq"))
}

func TestParser_LFOnlyLineEndingsAccepted(t *testing.T) {
	p := NewParser()
	var got *Request
	p.OnRequest = func(r *Request) { got = r }
	require.NoError(t, p.Feed([]byte("OPTIONS rtsp://h/p RTSP/1.0\nCSeq: 1\n\n")))
	require.NotNil(t, got)
}

func TestParser_FoldedHeaderContinuation(t *testing.T) {
	p := NewParser()
	var got *Request
	p.OnRequest = func(r *Request) { got = r }
	require.NoError(t, p.Feed([]byte("OPTIONS rtsp://h/p RTSP/1.0\r\nPublic: OPTIONS,\r\n DESCRIBE\r\n\r\n")))
	require.NotNil(t, got)
	require.Equal(t, "OPTIONS, DESCRIBE", got.Header.Get("Public"))
}

func TestParser_BadStatusCode(t *testing.T) {
	p := NewParser()
	err := p.Feed([]byte("RTSP/1.0 abc Not A Number\r\n\r\n"))
	require.Error(t, err)
}

func TestParser_UnexpectedBlankLineAsStartLine(t *testing.T) {
	p := NewParser()
	err := p.Feed([]byte("\r\n"))
	require.Error(t, err)
}

func TestParser_ResponseRoundTrip(t *testing.T) {
	p := NewParser()
	var got *Response
	p.OnResponse = func(r *Response) { got = r }
	resp := NewResponse(StatusOK, "OK")
	resp.Header.Set("Content-Type", "application/sdp")
	resp.Body = []byte("v=0\r\n")
	require.NoError(t, p.Feed(resp.Encode()))
	require.NotNil(t, got)
	require.Equal(t, 200, got.Code)
	require.Equal(t, "v=0\r\n", string(got.Body))
}
