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
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/libp2p/zeroconf/v2"
	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/ravennaerr"
)

// ZeroconfBackend implements Advertiser and Browser over mDNS/DNS-SD via
// github.com/libp2p/zeroconf/v2.
type ZeroconfBackend struct {
	mu sync.Mutex

	nextID     SessionID
	servers    map[SessionID]*zeroconf.Server
	registered map[SessionID]RegisterOptions

	browseCancel map[string]context.CancelFunc
}

// NewZeroconfBackend creates an empty backend.
func NewZeroconfBackend() *ZeroconfBackend {
	return &ZeroconfBackend{
		servers:      make(map[SessionID]*zeroconf.Server),
		registered:   make(map[SessionID]RegisterOptions),
		browseCancel: make(map[string]context.CancelFunc),
	}
}

// Register implements Advertiser by publishing an mDNS service record.
// zeroconf performs no DNS-SD probing or renaming, and Register does not
// rename either: with AutoRename false any registration error is reported
// as a name conflict (EventNameConflict plus an InvalidArgument error);
// with AutoRename true it is returned as a Platform error.
func (z *ZeroconfBackend) Register(opts RegisterOptions, obs Observer) (SessionID, error) {
	name := opts.InstanceName
	if name == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "ravennakit-node"
		}
		name = host
	}
	domain := opts.Domain
	if domain == "" {
		domain = "local."
	}

	service, subtypes := splitRegType(opts.RegType)
	text := txtToStrings(opts.TXT)

	server, err := zeroconf.Register(name, service, domain, opts.Port, text, nil)
	if err != nil {
		if !opts.AutoRename {
			if obs != nil {
				obs(Event{Kind: EventNameConflict, Service: ServiceDescription{InstanceName: name, RegistrationType: opts.RegType, Domain: domain}})
			}
			return 0, ravennaerr.New(ravennaerr.InvalidArgument, "discovery.ZeroconfBackend.Register", err)
		}
		return 0, ravennaerr.New(ravennaerr.Platform, "discovery.ZeroconfBackend.Register", err)
	}
	if len(subtypes) > 0 {
		log.WithField("subtypes", subtypes).Debug("discovery: zeroconf backend does not publish DNS-SD subtypes")
	}

	z.mu.Lock()
	defer z.mu.Unlock()
	z.nextID++
	id := z.nextID
	z.servers[id] = server
	z.registered[id] = opts
	return id, nil
}

// UpdateTXT implements Advertiser. zeroconf.Server has no in-place TXT
// update, so this re-registers under the same name and port.
func (z *ZeroconfBackend) UpdateTXT(id SessionID, txt map[string]string) error {
	z.mu.Lock()
	opts, ok := z.registered[id]
	server := z.servers[id]
	z.mu.Unlock()
	if !ok {
		return ravennaerr.New(ravennaerr.NotFound, "discovery.ZeroconfBackend.UpdateTXT", fmt.Errorf("unknown session %d", id))
	}
	if server != nil {
		server.Shutdown()
	}
	opts.TXT = txt
	newID, err := z.Register(opts, nil)
	if err != nil {
		return err
	}
	z.mu.Lock()
	z.servers[id] = z.servers[newID]
	z.registered[id] = opts
	delete(z.servers, newID)
	delete(z.registered, newID)
	z.mu.Unlock()
	return nil
}

// Unregister implements Advertiser. Idempotent.
func (z *ZeroconfBackend) Unregister(id SessionID) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if server, ok := z.servers[id]; ok {
		server.Shutdown()
		delete(z.servers, id)
		delete(z.registered, id)
	}
	return nil
}

// BrowseFor implements Browser. A second subscription for the same
// regType fails.
func (z *ZeroconfBackend) BrowseFor(regType string, obs Observer) error {
	z.mu.Lock()
	if _, exists := z.browseCancel[regType]; exists {
		z.mu.Unlock()
		return ravennaerr.New(ravennaerr.InvalidArgument, "discovery.ZeroconfBackend.BrowseFor", fmt.Errorf("already browsing %q", regType))
	}
	ctx, cancel := context.WithCancel(context.Background())
	z.browseCancel[regType] = cancel
	z.mu.Unlock()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return ravennaerr.New(ravennaerr.Platform, "discovery.ZeroconfBackend.BrowseFor", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	seen := make(map[string]bool)
	go func() {
		for entry := range entries {
			deliverZeroconfEntry(regType, entry, seen, obs)
		}
	}()

	service, _ := splitRegType(regType)
	if err := resolver.Browse(ctx, service, "local.", entries); err != nil {
		return ravennaerr.New(ravennaerr.Platform, "discovery.ZeroconfBackend.BrowseFor", err)
	}
	return nil
}

func deliverZeroconfEntry(regType string, entry *zeroconf.ServiceEntry, seen map[string]bool, obs Observer) {
	fullName := entry.Instance + "." + entry.Service + entry.Domain
	if !seen[fullName] {
		seen[fullName] = true
		obs(Event{Kind: EventServiceDiscovered, Service: ServiceDescription{FullName: fullName, InstanceName: entry.Instance, RegistrationType: regType, Domain: entry.Domain}})
	}
	svc := ServiceDescription{
		FullName:         fullName,
		InstanceName:     entry.Instance,
		RegistrationType: regType,
		Domain:           entry.Domain,
		HostTarget:       entry.HostName,
		Port:             entry.Port,
		TXT:              stringsToTXT(entry.Text),
	}
	obs(Event{Kind: EventServiceResolved, Service: svc})
	for _, addr := range entry.AddrIPv4 {
		obs(Event{Kind: EventAddressAdded, Service: svc, Address: addr})
	}
	for _, addr := range entry.AddrIPv6 {
		obs(Event{Kind: EventAddressAdded, Service: svc, Address: addr})
	}
}

// StopBrowsing implements Browser.
func (z *ZeroconfBackend) StopBrowsing(regType string) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	cancel, ok := z.browseCancel[regType]
	if !ok {
		return nil
	}
	cancel()
	delete(z.browseCancel, regType)
	return nil
}

// splitRegType separates a DNS-SD registration type such as
// "_rtsp._tcp,_ravenna_session" into its base service and subtype list.
func splitRegType(regType string) (service string, subtypes []string) {
	parts := strings.Split(regType, ",")
	return parts[0], parts[1:]
}

func txtToStrings(txt map[string]string) []string {
	out := make([]string, 0, len(txt))
	for k, v := range txt {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

func stringsToTXT(entries []string) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, found := strings.Cut(e, "=")
		if !found {
			out[e] = ""
			continue
		}
		out[k] = v
	}
	return out
}
