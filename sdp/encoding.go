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

package sdp

import (
	"fmt"

	"github.com/ravennakit/ravennakit/audio"
	"github.com/ravennakit/ravennakit/ravennaerr"
)

// encodingToName maps an internal audio encoding to its SDP rtpmap
// encoding name. Built as an explicit table, one case per encoding, each
// terminated by a return: the mapping used by a widely deployed RAVENNA
// implementation's SDP encoder is a switch whose cases fall through into
// each other, so a samples-per-second field meant for one encoding leaks
// into the next. This table never falls through.
func encodingToName(e audio.Encoding) (string, error) {
	switch e {
	case audio.EncodingPCMU8:
		return "L8", nil
	case audio.EncodingPCMS16:
		return "L16", nil
	case audio.EncodingPCMS24:
		return "L24", nil
	case audio.EncodingPCMS32:
		return "L32", nil
	default:
		return "", ravennaerr.New(ravennaerr.InvalidArgument, "sdp.encodingToName", fmt.Errorf("encoding %s has no SDP representation", e))
	}
}

// nameToEncoding is the inverse of encodingToName.
func nameToEncoding(name string) (audio.Encoding, error) {
	switch name {
	case "L8":
		return audio.EncodingPCMU8, nil
	case "L16":
		return audio.EncodingPCMS16, nil
	case "L24":
		return audio.EncodingPCMS24, nil
	case "L32":
		return audio.EncodingPCMS32, nil
	default:
		return 0, ravennaerr.New(ravennaerr.NotFound, "sdp.nameToEncoding", fmt.Errorf("unrecognized rtpmap encoding name %q", name))
	}
}
