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

// Package audio holds the PCM format model shared by the SDP, RTP and
// stream packages. It is data-only: no file I/O, no device access.
package audio

import "fmt"

// Encoding is a PCM sample encoding.
type Encoding uint8

// Supported encodings. Floating point formats have no SDP wire
// representation (see sdp package) but are kept here for completeness of
// the in-process format model.
const (
	EncodingPCMU8 Encoding = iota
	EncodingPCMS16
	EncodingPCMS24
	EncodingPCMS32
	EncodingPCMFloat
	EncodingPCMDouble
)

var encodingNames = map[Encoding]string{
	EncodingPCMU8:     "pcm_u8",
	EncodingPCMS16:    "pcm_s16",
	EncodingPCMS24:    "pcm_s24",
	EncodingPCMS32:    "pcm_s32",
	EncodingPCMFloat:  "pcm_float",
	EncodingPCMDouble: "pcm_double",
}

func (e Encoding) String() string {
	if s, ok := encodingNames[e]; ok {
		return s
	}
	return fmt.Sprintf("Encoding(%d)", uint8(e))
}

// ParseEncoding is the inverse of String, for config files and CLI flags
// that name an encoding (e.g. "pcm_s24").
func ParseEncoding(s string) (Encoding, error) {
	for enc, name := range encodingNames {
		if name == s {
			return enc, nil
		}
	}
	return 0, fmt.Errorf("unrecognized audio encoding %q", s)
}

// BytesPerSample returns the storage size of one sample in this encoding.
func (e Encoding) BytesPerSample() int {
	switch e {
	case EncodingPCMU8:
		return 1
	case EncodingPCMS16:
		return 2
	case EncodingPCMS24:
		return 3
	case EncodingPCMS32, EncodingPCMFloat:
		return 4
	case EncodingPCMDouble:
		return 8
	default:
		return 0
	}
}

// Interleaving describes how channels are laid out within a frame buffer.
type Interleaving uint8

const (
	Interleaved Interleaving = iota
	NonInterleaved
)

func (i Interleaving) String() string {
	if i == NonInterleaved {
		return "non-interleaved"
	}
	return "interleaved"
}

// Format is the PCM audio format negotiated for a stream.
type Format struct {
	Encoding     Encoding
	SampleRate   uint32
	NumChannels  uint8
	Interleaving Interleaving
}

// BytesPerFrame returns bytes_per_sample * num_channels.
func (f Format) BytesPerFrame() int {
	return f.Encoding.BytesPerSample() * int(f.NumChannels)
}

func (f Format) String() string {
	return fmt.Sprintf("%s/%d/%d", f.Encoding, f.SampleRate, f.NumChannels)
}
