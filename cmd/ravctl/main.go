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

// Command ravctl is the operator inspection CLI (spec section 6's "example
// programs" surface): browse for advertised RAVENNA/AES67 sessions and
// DESCRIBE one to print its SDP.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/cmd/ravctl/cmd"
	"github.com/ravennakit/ravennakit/config"
)

func main() {
	if err := config.ApplyLogLevel(os.Getenv("RAV_LOG_LEVEL")); err != nil {
		log.Fatal(err)
	}
	cmd.Execute()
}
