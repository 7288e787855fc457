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

package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/ravennakit/ravennakit/ravennaerr"
)

// MockBackend is a deterministic, single-process Advertiser+Browser used
// by tests and by demos that don't need real mDNS. Emit and
// EmitFullSequence let a test drive a sequence of events for a service.
type MockBackend struct {
	mu         sync.Mutex
	nextID     SessionID
	registered map[SessionID]RegisterOptions
	browsing   map[string]Observer
}

// NewMockBackend creates an empty MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		registered: make(map[SessionID]RegisterOptions),
		browsing:   make(map[string]Observer),
	}
}

// Register implements Advertiser.
func (m *MockBackend) Register(opts RegisterOptions, obs Observer) (SessionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.registered {
		if existing.InstanceName == opts.InstanceName && existing.RegType == opts.RegType && !opts.AutoRename {
			if obs != nil {
				obs(Event{Kind: EventNameConflict, Service: ServiceDescription{InstanceName: opts.InstanceName, RegistrationType: opts.RegType}})
			}
			return 0, ravennaerr.New(ravennaerr.InvalidArgument, "discovery.MockBackend.Register", fmt.Errorf("name conflict for %q", opts.InstanceName))
		}
	}
	m.nextID++
	id := m.nextID
	m.registered[id] = opts
	return id, nil
}

// UpdateTXT implements Advertiser.
func (m *MockBackend) UpdateTXT(id SessionID, txt map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	opts, ok := m.registered[id]
	if !ok {
		return ravennaerr.New(ravennaerr.NotFound, "discovery.MockBackend.UpdateTXT", fmt.Errorf("unknown session %d", id))
	}
	opts.TXT = txt
	m.registered[id] = opts
	return nil
}

// Unregister implements Advertiser. Idempotent.
func (m *MockBackend) Unregister(id SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.registered, id)
	return nil
}

// BrowseFor implements Browser. A second subscription for the same regType
// fails.
func (m *MockBackend) BrowseFor(regType string, obs Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.browsing[regType]; exists {
		return ravennaerr.New(ravennaerr.InvalidArgument, "discovery.MockBackend.BrowseFor", fmt.Errorf("already browsing %q", regType))
	}
	m.browsing[regType] = obs
	return nil
}

// StopBrowsing implements Browser.
func (m *MockBackend) StopBrowsing(regType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.browsing, regType)
	return nil
}

// Emit delivers a scripted event to the observer subscribed via BrowseFor
// for regType. Used by tests to drive the canonical discovered → resolved
// → address-added → address-removed → removed sequence deterministically.
func (m *MockBackend) Emit(regType string, ev Event) error {
	m.mu.Lock()
	obs, ok := m.browsing[regType]
	m.mu.Unlock()
	if !ok {
		return ravennaerr.New(ravennaerr.NotFound, "discovery.MockBackend.Emit", fmt.Errorf("not browsing %q", regType))
	}
	obs(ev)
	return nil
}

// EmitFullSequence emits the canonical discovered → resolved →
// address-added → address-removed → removed sequence for one service,
// preserving the spec's strict per-service ordering invariant.
func (m *MockBackend) EmitFullSequence(regType string, svc ServiceDescription, ifaceIndex int, addr net.IP) error {
	order := []Event{
		{Kind: EventServiceDiscovered, Service: svc},
		{Kind: EventServiceResolved, Service: svc},
		{Kind: EventAddressAdded, Service: svc, InterfaceIndex: ifaceIndex, Address: addr},
		{Kind: EventAddressRemoved, Service: svc, InterfaceIndex: ifaceIndex, Address: addr},
		{Kind: EventServiceRemoved, Service: svc},
	}
	for _, ev := range order {
		if err := m.Emit(regType, ev); err != nil {
			return err
		}
	}
	return nil
}
