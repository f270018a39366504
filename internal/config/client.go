// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the optional YAML overlay for the exchange client.
// The positional ip/port/outputfile and -r/-f/-s flags documented in the
// external interface are CLI-only and are not part of this file.
type ClientConfig struct {
	Logging LoggingInfo `yaml:"logging"`
}

// DefaultClientConfig returns the compiled-in client defaults that
// LoadClientConfig overlays. The pkss-client binary has no config flag and
// does not load a ClientConfig.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Logging: LoggingInfo{Level: "info", Format: "text"},
	}
}

// LoadClientConfig reads and validates a YAML client config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	cfg := DefaultClientConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	return cfg, nil
}
