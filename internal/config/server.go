// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the full configuration of the coordination server. IP,
// port and whether to prompt for sink credentials are CLI-only per the
// external interface contract; everything else may be overlaid from an
// optional YAML file pointed to by --config.
type ServerConfig struct {
	Schema         []string      `yaml:"schema"`
	WaitTick       time.Duration `yaml:"wait_tick"`
	CommitInterval time.Duration `yaml:"commit_interval"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`

	Sink    SinkConfig  `yaml:"sink"`
	Logging LoggingInfo `yaml:"logging"`
}

// SinkConfig describes how to build and, on the Coordinator side, rebuild
// the persistence Sink. Kind selects the concrete implementation; the rest
// are reconstruction parameters mirroring Sink.Descriptor in the protocol.
type SinkConfig struct {
	Kind   string `yaml:"kind"` // "simulator" or "s3"
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`

	RateLimitBytesPerSec ByteSize `yaml:"rate_limit_bytes_per_sec"`
	SpoolDir             string   `yaml:"spool_dir"`
	MaxSpoolBatches      int      `yaml:"max_spool_batches"`
	AuditDir             string   `yaml:"audit_dir"`
	AuditKeepRuns        int      `yaml:"audit_keep_runs"`
}

// LoggingInfo configures structured logging, same shape on client and
// server.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultServerConfig returns the config used when no --config file is
// given: SimulatorSink, the illustrative eight-variable schema, and the
// documented defaults for the tick and commit intervals.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Schema:         []string{"Tzm", "Fzm", "To", "Tpco", "Fzco", "Tpm", "Tzco", "Tr"},
		WaitTick:       time.Millisecond,
		CommitInterval: 2 * time.Second,
		ReadTimeout:    30 * time.Second,
		Sink:           SinkConfig{Kind: "simulator"},
		Logging:        LoggingInfo{Level: "info", Format: "json"},
	}
}

// LoadServerConfig reads and validates a YAML server config, filling any
// unset field from DefaultServerConfig.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config: %w", err)
	}

	cfg := DefaultServerConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	return cfg, nil
}

func (c *ServerConfig) validate() error {
	if len(c.Schema) == 0 {
		return fmt.Errorf("schema must declare at least one variable")
	}
	seen := make(map[string]bool, len(c.Schema))
	for _, k := range c.Schema {
		if k == "time" {
			return fmt.Errorf("schema must not declare the reserved name %q", "time")
		}
		if seen[k] {
			return fmt.Errorf("schema declares %q more than once", k)
		}
		seen[k] = true
	}
	if c.WaitTick <= 0 {
		c.WaitTick = time.Millisecond
	}
	if c.CommitInterval <= 0 {
		c.CommitInterval = 2 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.Sink.Kind == "" {
		c.Sink.Kind = "simulator"
	}
	if c.Sink.Kind != "simulator" && c.Sink.Kind != "s3" {
		return fmt.Errorf("sink.kind must be \"simulator\" or \"s3\", got %q", c.Sink.Kind)
	}
	if c.Sink.Kind == "s3" && c.Sink.Bucket == "" {
		return fmt.Errorf("sink.bucket is required when sink.kind is \"s3\"")
	}
	if c.Sink.MaxSpoolBatches <= 0 {
		c.Sink.MaxSpoolBatches = 20
	}
	if c.Sink.AuditDir != "" && c.Sink.AuditKeepRuns <= 0 {
		c.Sink.AuditKeepRuns = 20
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}
