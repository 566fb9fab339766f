// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config.yaml can say "5s" instead of
// nanosecond integers.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration back to "5s" form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// StackConfig describes the managed chatbot stack: where the application
// lives on disk, how its container is run, and where snapshots go.
//
// # Description
//
// Loaded from config.yaml next to the binary (or the path given with
// --config). Every field has a default matching the standard single-host
// layout, so a missing file is not an error.
//
// # Example
//
//	service_name: agent-api
//	image: agent-api
//	port_mapping: "8000:8000"
//	app_dir: /opt/agent-api/app
//	data_dir: /opt/agent-api/chroma_db
//	backup_root: /opt/agent-api/backups
type StackConfig struct {
	// ServiceName is the container name and the systemd unit base name.
	ServiceName string `yaml:"service_name"`

	// Image is the container image repository the service runs from.
	Image string `yaml:"image"`

	// PortMapping is the host:container port pair passed to docker run.
	PortMapping string `yaml:"port_mapping"`

	// AppDir is the live application directory replaced by a restore.
	AppDir string `yaml:"app_dir"`

	// DataDir is the vector-store data directory. Optional in snapshots.
	DataDir string `yaml:"data_dir"`

	// EnvFile is passed to docker run via --env-file.
	EnvFile string `yaml:"env_file"`

	// UnitPath is the systemd unit file for the non-container realization.
	UnitPath string `yaml:"unit_path"`

	// BackupRoot holds one subdirectory per snapshot.
	BackupRoot string `yaml:"backup_root"`

	// ContainerMountPath is where AppDir is bind-mounted inside the container.
	ContainerMountPath string `yaml:"container_mount_path"`

	// ContainerDataPath is where DataDir is bind-mounted inside the container.
	ContainerDataPath string `yaml:"container_data_path"`

	// RequireRoot gates the controller on euid 0. The monitor never
	// requires root.
	RequireRoot bool `yaml:"require_root"`

	// VerifyAttempts is the probe budget after a rollback restart.
	VerifyAttempts int `yaml:"verify_attempts"`

	// VerifyDelay is the delay between verification probes.
	VerifyDelay Duration `yaml:"verify_delay"`
}

// DefaultStackConfig returns the standard single-host layout.
func DefaultStackConfig() StackConfig {
	return StackConfig{
		ServiceName:        "agent-api",
		Image:              "agent-api",
		PortMapping:        "8000:8000",
		AppDir:             "/opt/agent-api/app",
		DataDir:            "/opt/agent-api/chroma_db",
		EnvFile:            "/opt/agent-api/.env",
		UnitPath:           "/etc/systemd/system/agent-api.service",
		BackupRoot:         "/opt/agent-api/backups",
		ContainerMountPath: "/app",
		ContainerDataPath:  "/app/chroma_db",
		RequireRoot:        true,
		VerifyAttempts:     DefaultVerifyAttempts,
		VerifyDelay:        Duration{DefaultVerifyDelay},
	}
}

// LoadStackConfig reads a StackConfig from a YAML file, falling back to
// defaults when the file does not exist.
//
// # Inputs
//
//   - path: YAML file path. Empty string means "config.yaml".
//
// # Outputs
//
//   - StackConfig: Loaded configuration with defaults filled in
//   - error: Non-nil on unreadable or malformed YAML
func LoadStackConfig(path string) (StackConfig, error) {
	cfg := DefaultStackConfig()

	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for fields the pipeline cannot run
// without.
func (c StackConfig) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name must not be empty")
	}
	if c.AppDir == "" {
		return fmt.Errorf("app_dir must not be empty")
	}
	if c.BackupRoot == "" {
		return fmt.Errorf("backup_root must not be empty")
	}
	if c.VerifyAttempts <= 0 {
		return fmt.Errorf("verify_attempts must be positive, got %d", c.VerifyAttempts)
	}
	return nil
}
