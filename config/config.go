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

// Package config is the flat yaml-backed configuration shared by the
// ravtx/ravrx/ravctl example programs, following
// ptp/sptp/client.Config's ReadConfig(path) (*Config, error) shape:
// defaults applied by DefaultConfig, then overridden by whatever the yaml
// file sets.
package config

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// Config holds every setting a ravtx/ravrx/ravctl invocation needs.
type Config struct {
	Interface   string  `yaml:"interface"`
	PTPDomain   uint8   `yaml:"ptp_domain"`
	RTSPAddr    string  `yaml:"rtsp_addr"`
	LogLevel    string  `yaml:"log_level"`
	SessionName string  `yaml:"session_name"`
	SessionID   uint64  `yaml:"session_id"`
	Encoding    string  `yaml:"encoding"`
	SampleRate  uint32  `yaml:"sample_rate"`
	Channels    int     `yaml:"channels"`
	PacketTime  float64 `yaml:"packet_time_us"`
	DSCP        int     `yaml:"dscp"`
	MetricsAddr string  `yaml:"metrics_addr"`
}

// DefaultConfig returns a Config seeded with this profile's defaults (spec
// section 6: RTSP default port 5005, the 125us AES67 packet time).
func DefaultConfig() *Config {
	return &Config{
		RTSPAddr:    ":5005",
		LogLevel:    "info",
		SessionName: "ravennakit-session",
		SessionID:   1,
		Encoding:    "pcm_s24",
		SampleRate:  48000,
		Channels:    2,
		PacketTime:  125,
	}
}

// ReadConfig reads and unmarshals a yaml config file over DefaultConfig's
// values, then validates the result.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate sanity-checks a Config before it is used to construct a node.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("interface must be specified")
	}
	if c.SessionName == "" {
		return fmt.Errorf("session_name must be specified")
	}
	if c.SampleRate == 0 {
		return fmt.Errorf("sample_rate must be positive")
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive")
	}
	if c.PacketTime <= 0 {
		return fmt.Errorf("packet_time_us must be positive")
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("dscp must be between 0 and 63")
	}
	return nil
}

// ApplyLogLevel sets logrus's global level from the RAV_LOG_LEVEL values
// (spec section 6): TRACE, DEBUG, INFO, WARN, ERROR, CRITICAL, OFF, written
// all upper case or all lower case (WARN also accepts WARNING). An empty
// level leaves logrus's default in place.
func ApplyLogLevel(level string) error {
	switch level {
	case "":
		return nil
	case "TRACE", "trace":
		log.SetLevel(log.TraceLevel)
	case "DEBUG", "debug":
		log.SetLevel(log.DebugLevel)
	case "INFO", "info":
		log.SetLevel(log.InfoLevel)
	case "WARN", "warn", "WARNING", "warning":
		log.SetLevel(log.WarnLevel)
	case "ERROR", "error":
		log.SetLevel(log.ErrorLevel)
	case "CRITICAL", "critical":
		log.SetLevel(log.FatalLevel)
	case "OFF", "off":
		log.SetLevel(log.PanicLevel)
	default:
		return fmt.Errorf("unrecognized RAV_LOG_LEVEL %q", level)
	}
	return nil
}
