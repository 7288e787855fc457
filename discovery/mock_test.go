package discovery

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventOrderingScenario(t *testing.T) {
	m := NewMockBackend()
	var kinds []EventKind
	require.NoError(t, m.BrowseFor("_rtsp._tcp", func(ev Event) {
		kinds = append(kinds, ev.Kind)
	}))

	svc := ServiceDescription{FullName: "node1._rtsp._tcp.local.", RegistrationType: "_rtsp._tcp"}
	require.NoError(t, m.EmitFullSequence("_rtsp._tcp", svc, 1, net.ParseIP("192.168.1.10")))

	require.Equal(t, []EventKind{
		EventServiceDiscovered,
		EventServiceResolved,
		EventAddressAdded,
		EventAddressRemoved,
		EventServiceRemoved,
	}, kinds)
}

func TestDuplicateBrowseFails(t *testing.T) {
	m := NewMockBackend()
	require.NoError(t, m.BrowseFor("_rtsp._tcp", func(Event) {}))
	require.Error(t, m.BrowseFor("_rtsp._tcp", func(Event) {}))
}

func TestRegisterNameConflictWithoutAutoRename(t *testing.T) {
	m := NewMockBackend()
	opts := RegisterOptions{RegType: "_rtsp._tcp", InstanceName: "studio-a", Port: 554}
	_, err := m.Register(opts, nil)
	require.NoError(t, err)

	var conflict bool
	_, err = m.Register(opts, func(ev Event) {
		if ev.Kind == EventNameConflict {
			conflict = true
		}
	})
	require.Error(t, err)
	require.True(t, conflict)
}

func TestRegisterAutoRenameAvoidsConflict(t *testing.T) {
	m := NewMockBackend()
	opts := RegisterOptions{RegType: "_rtsp._tcp", InstanceName: "studio-a", Port: 554, AutoRename: true}
	_, err := m.Register(opts, nil)
	require.NoError(t, err)
	_, err = m.Register(opts, nil)
	require.NoError(t, err)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	m := NewMockBackend()
	id, err := m.Register(RegisterOptions{RegType: "_rtsp._tcp", InstanceName: "x", Port: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, m.Unregister(id))
	require.NoError(t, m.Unregister(id))
}

func TestUpdateTXTUnknownSession(t *testing.T) {
	m := NewMockBackend()
	err := m.UpdateTXT(999, map[string]string{"a": "b"})
	require.Error(t, err)
}
