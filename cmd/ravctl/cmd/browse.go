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

package cmd

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ravennakit/ravennakit/discovery"
)

const defaultRegType = "_rtsp._tcp,_ravenna_session"

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "browse for RAVENNA/AES67 sessions advertised on the local network",
	RunE:  runBrowse,
}

func init() {
	browseCmd.Flags().StringVar(&regType, "reg-type", defaultRegType, "DNS-SD registration type to browse for")
	browseCmd.Flags().IntVar(&timeoutSec, "timeout", 5, "seconds to browse before exiting")
	RootCmd.AddCommand(browseCmd)
}

func runBrowse(_ *cobra.Command, _ []string) error {
	backend := discovery.NewZeroconfBackend()

	done := make(chan struct{})
	err := backend.BrowseFor(regType, func(ev discovery.Event) {
		switch ev.Kind {
		case discovery.EventServiceDiscovered:
			fmt.Printf("discovered\t%s\n", ev.Service.FullName)
		case discovery.EventServiceResolved:
			fmt.Printf("resolved\t%s\t%s:%d\n", ev.Service.FullName, ev.Service.HostTarget, ev.Service.Port)
		case discovery.EventAddressAdded:
			fmt.Printf("address-added\t%s\n", ev.Service.FullName)
		case discovery.EventAddressRemoved:
			fmt.Printf("address-removed\t%s\n", ev.Service.FullName)
		case discovery.EventServiceRemoved:
			fmt.Printf("removed\t%s\n", ev.Service.FullName)
		}
	})
	if err != nil {
		return err
	}

	select {
	case <-done:
	case <-time.After(time.Duration(timeoutSec) * time.Second):
	}
	if err := backend.StopBrowsing(regType); err != nil {
		log.WithError(err).Warn("ravctl: error stopping browse")
	}
	return nil
}
