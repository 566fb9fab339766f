// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadStackConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadStackConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadStackConfig(absent) error = %v, want nil", err)
	}

	if cfg.ServiceName != "agent-api" {
		t.Errorf("ServiceName = %q, want agent-api", cfg.ServiceName)
	}
	if cfg.PortMapping != "8000:8000" {
		t.Errorf("PortMapping = %q, want 8000:8000", cfg.PortMapping)
	}
	if !cfg.RequireRoot {
		t.Error("RequireRoot = false, want true by default")
	}
	if cfg.VerifyAttempts != DefaultVerifyAttempts {
		t.Errorf("VerifyAttempts = %d, want %d", cfg.VerifyAttempts, DefaultVerifyAttempts)
	}
}

func TestLoadStackConfig_OverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `service_name: chat-svc
image: registry.local/chat-svc:v3
port_mapping: "9000:8000"
backup_root: /srv/backups
require_root: false
verify_attempts: 5
verify_delay: 2s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadStackConfig(path)
	if err != nil {
		t.Fatalf("LoadStackConfig() error = %v", err)
	}

	if cfg.ServiceName != "chat-svc" {
		t.Errorf("ServiceName = %q, want chat-svc", cfg.ServiceName)
	}
	if cfg.Image != "registry.local/chat-svc:v3" {
		t.Errorf("Image = %q", cfg.Image)
	}
	if cfg.RequireRoot {
		t.Error("RequireRoot = true, want false from file")
	}
	if cfg.VerifyAttempts != 5 {
		t.Errorf("VerifyAttempts = %d, want 5", cfg.VerifyAttempts)
	}
	if cfg.VerifyDelay.Duration != 2*time.Second {
		t.Errorf("VerifyDelay = %v, want 2s", cfg.VerifyDelay.Duration)
	}
	// Untouched fields keep their defaults.
	if cfg.AppDir != "/opt/agent-api/app" {
		t.Errorf("AppDir = %q, want default", cfg.AppDir)
	}
}

func TestLoadStackConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("service_name: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadStackConfig(path); err == nil {
		t.Error("LoadStackConfig(malformed) error = nil, want parse error")
	}
}

func TestStackConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StackConfig)
		wantErr bool
	}{
		{"defaults valid", func(c *StackConfig) {}, false},
		{"empty service name", func(c *StackConfig) { c.ServiceName = "" }, true},
		{"empty app dir", func(c *StackConfig) { c.AppDir = "" }, true},
		{"empty backup root", func(c *StackConfig) { c.BackupRoot = "" }, true},
		{"zero verify attempts", func(c *StackConfig) { c.VerifyAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultStackConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("GenerateID() returned empty string")
	}
	if a == b {
		t.Errorf("GenerateID() returned duplicate %q", a)
	}
	if len(a) != 16 {
		t.Errorf("GenerateID() len = %d, want 16 hex chars", len(a))
	}
}
