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

	"github.com/spf13/cobra"

	"github.com/ravennakit/ravennakit/rtsp"
	"github.com/ravennakit/ravennakit/sdp"
)

var describeCmd = &cobra.Command{
	Use:   "describe host:port/path",
	Short: "DESCRIBE a RAVENNA/AES67 session and print its SDP",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func init() {
	RootCmd.AddCommand(describeCmd)
}

func runDescribe(_ *cobra.Command, args []string) error {
	hostport, path := args[0], "/"
	if i := indexByte(args[0], '/'); i >= 0 {
		hostport, path = args[0][:i], args[0][i:]
	}

	c, err := rtsp.Dial(hostport)
	if err != nil {
		return err
	}
	defer c.Close()

	body, err := c.Describe(path)
	if err != nil {
		return err
	}

	session, err := sdp.Unmarshal(body)
	if err != nil {
		fmt.Print(string(body))
		return nil
	}
	fmt.Printf("session: %s\n", session.Name)
	for i, m := range session.Media {
		fmt.Printf("media[%d]: port=%d proto=%s direction=%s ptime=%.3fms\n", i, m.Port, m.Proto, m.Direction, m.PTimeMs)
	}
	return nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
