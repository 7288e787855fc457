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

package stream

import "sync"

// byteFIFO is the minimal producer/consumer byte queue the transmitter
// needs between the audio producer and the packet scheduler (spec section
// 3, "Session ... an FIFO between producer and the sending timer"). The
// spec treats generic ring buffers as out-of-scope plumbing (section 1);
// this is the smallest local collaborator satisfying that contract, not a
// reusable container package.
type byteFIFO struct {
	mu   sync.Mutex
	buf  []byte
}

func newByteFIFO() *byteFIFO {
	return &byteFIFO{}
}

// Write appends p to the queue.
func (f *byteFIFO) Write(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = append(f.buf, p...)
}

// Available returns the number of unread bytes.
func (f *byteFIFO) Available() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buf)
}

// Take removes and returns exactly n bytes, or false if fewer than n are
// available.
func (f *byteFIFO) Take(n int) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.buf) < n {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, f.buf[:n])
	f.buf = f.buf[n:]
	return out, true
}
