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

// Package discovery implements the DNS-SD advertiser/browser contract
// (C2): register/update/unregister a service, and browse for peer
// services with strictly ordered per-service events. The production
// backend wraps github.com/libp2p/zeroconf/v2; a deterministic in-memory
// backend is provided for tests and for single-process demos.
package discovery

import "net"

// SessionID identifies one advertiser registration. Never reused within a
// process lifetime.
type SessionID uint64

// ServiceDescription is the fully resolved view of a discovered or
// advertised service.
type ServiceDescription struct {
	FullName         string
	InstanceName     string
	RegistrationType string
	Domain           string
	HostTarget       string
	Port             int
	TXT              map[string]string
	// Addresses maps network interface index to the set of addresses the
	// service has been observed on through that interface. Becoming empty
	// is the invariant signal that the service is removed.
	Addresses map[int][]net.IP
}

// EventKind enumerates discovery notifications. Browser events for a
// service follow the order of the constants below; EventNameConflict is
// delivered to Advertiser observers.
type EventKind int

const (
	EventServiceDiscovered EventKind = iota
	EventServiceResolved
	EventAddressAdded
	EventAddressRemoved
	EventServiceRemoved
	EventNameConflict
)

func (k EventKind) String() string {
	switch k {
	case EventServiceDiscovered:
		return "service-discovered"
	case EventServiceResolved:
		return "service-resolved"
	case EventAddressAdded:
		return "address-added"
	case EventAddressRemoved:
		return "address-removed"
	case EventServiceRemoved:
		return "service-removed"
	case EventNameConflict:
		return "name-conflict"
	default:
		return "unknown"
	}
}

// Event is delivered to a Browser or Advertiser observer. All callbacks for
// a given service fire on the single coordinator goroutine and are
// strictly ordered relative to each other.
type Event struct {
	Kind           EventKind
	Service        ServiceDescription
	InterfaceIndex int
	Address        net.IP
}

// Observer receives discovery events.
type Observer func(Event)

// RegisterOptions configures an Advertiser.Register call.
type RegisterOptions struct {
	RegType      string // e.g. "_rtsp._tcp" or "_rtsp._tcp,_ravenna_session"
	InstanceName string // empty means use the host name
	Domain       string // empty means "local."
	Port         int
	TXT          map[string]string
	AutoRename   bool
	LocalOnly    bool
}

// Advertiser registers and maintains this node's services.
type Advertiser interface {
	// Register publishes a service. If AutoRename is false and the name is
	// already taken on the network, Register emits EventNameConflict to
	// obs and returns a ravennaerr with Kind InvalidArgument without
	// completing the registration.
	Register(opts RegisterOptions, obs Observer) (SessionID, error)
	// UpdateTXT atomically replaces the TXT map of an existing registration.
	UpdateTXT(id SessionID, txt map[string]string) error
	// Unregister withdraws a registration. Idempotent.
	Unregister(id SessionID) error
}

// Browser discovers peer services of a given registration type.
type Browser interface {
	// BrowseFor begins continuous discovery for regType. A second
	// subscription for the same regType fails.
	BrowseFor(regType string, obs Observer) error
	// StopBrowsing cancels a previously started BrowseFor subscription.
	StopBrowsing(regType string) error
}
