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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteFIFO_TakeExact(t *testing.T) {
	f := newByteFIFO()
	f.Write([]byte{1, 2, 3, 4})
	out, ok := f.Take(4)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3, 4}, out)
	require.Equal(t, 0, f.Available())
}

func TestByteFIFO_TakeInsufficientFails(t *testing.T) {
	f := newByteFIFO()
	f.Write([]byte{1, 2})
	out, ok := f.Take(4)
	require.False(t, ok)
	require.Nil(t, out)
	require.Equal(t, 2, f.Available())
}

func TestByteFIFO_PartialTakeLeavesRemainder(t *testing.T) {
	f := newByteFIFO()
	f.Write([]byte{1, 2, 3, 4, 5, 6})
	first, ok := f.Take(4)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3, 4}, first)
	require.Equal(t, 2, f.Available())

	second, ok := f.Take(2)
	require.True(t, ok)
	require.Equal(t, []byte{5, 6}, second)
	require.Equal(t, 0, f.Available())
}

func TestByteFIFO_MultipleWritesAccumulate(t *testing.T) {
	f := newByteFIFO()
	f.Write([]byte{1, 2})
	f.Write([]byte{3, 4})
	require.Equal(t, 4, f.Available())
}
