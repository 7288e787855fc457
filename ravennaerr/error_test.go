package ravennaerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorWrapping(t *testing.T) {
	base := errors.New("bind failed")
	err := New(ResourceExhausted, "timebase.AddPort", base)
	require.True(t, Is(err, ResourceExhausted))
	require.False(t, Is(err, NotFound))
	require.ErrorIs(t, err, base)
	require.Contains(t, err.Error(), "resource-exhausted")
}

func TestKindString(t *testing.T) {
	require.Equal(t, "protocol-error", ProtocolError.String())
	require.Equal(t, "unknown", Kind(200).String())
}
