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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_FailsValidationWithoutInterface(t *testing.T) {
	c := DefaultConfig()
	require.Error(t, c.Validate())
}

func TestDefaultConfig_ValidWithInterfaceSet(t *testing.T) {
	c := DefaultConfig()
	c.Interface = "eth0"
	require.NoError(t, c.Validate())
}

func TestReadConfig_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ravtx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interface: eth0\nsession_name: studio-mic\nsample_rate: 44100\n"), 0o644))

	c, err := ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "eth0", c.Interface)
	require.Equal(t, "studio-mic", c.SessionName)
	require.Equal(t, uint32(44100), c.SampleRate)
	// untouched defaults survive the partial override.
	require.Equal(t, ":5005", c.RTSPAddr)
}

func TestReadConfig_RejectsInvalidResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ravtx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interface: eth0\nchannels: 0\n"), 0o644))

	_, err := ReadConfig(path)
	require.Error(t, err)
}

func TestReadConfig_MissingFile(t *testing.T) {
	_, err := ReadConfig("/nonexistent/ravtx.yaml")
	require.Error(t, err)
}

func TestApplyLogLevel_AcceptsDocumentedValues(t *testing.T) {
	for _, level := range []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "CRITICAL", "OFF", ""} {
		require.NoError(t, ApplyLogLevel(level))
	}
}

func TestApplyLogLevel_RejectsUnknownValue(t *testing.T) {
	require.Error(t, ApplyLogLevel("VERBOSE"))
}
