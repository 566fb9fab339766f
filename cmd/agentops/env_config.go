package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ErrInvalidEnvValue is returned when an environment variable holds a value
// that cannot be parsed or is out of range.
var ErrInvalidEnvValue = fmt.Errorf("invalid environment variable value")

// Environment variable names understood by the monitor. The controller is
// configured through config.yaml; the monitor is configured entirely
// through the environment, mirroring how it is launched from a unit file.
const (
	EnvHealthHost    = "AGENTOPS_HEALTH_HOST"
	EnvHealthPort    = "AGENTOPS_HEALTH_PORT"
	EnvCheckInterval = "AGENTOPS_CHECK_INTERVAL"
	EnvProbeTimeout  = "AGENTOPS_PROBE_TIMEOUT"
	EnvAlertEmail    = "AGENTOPS_ALERT_EMAIL"
	EnvSMTPAddr      = "AGENTOPS_SMTP_ADDR"
	EnvSMTPFrom      = "AGENTOPS_SMTP_FROM"
	EnvSMTPPassword  = "AGENTOPS_SMTP_PASSWORD"
	EnvMetricsAddr   = "AGENTOPS_METRICS_ADDR"
	EnvTraceStdout   = "AGENTOPS_TRACE_STDOUT"
)

// MonitorConfig carries the monitor's runtime knobs.
//
// # Description
//
// Parsed from environment variables with validated defaults. The probe
// timeout is independent of the check interval; both are clamped to the
// minimums in timeouts.go so a typo cannot produce a busy loop or an
// infinite hang.
type MonitorConfig struct {
	// HealthHost is the host of the liveness endpoint. Default 127.0.0.1.
	HealthHost string

	// HealthPort is the port of the liveness endpoint. Default 8000.
	HealthPort int

	// CheckInterval is the delay between monitor ticks.
	CheckInterval time.Duration

	// ProbeTimeout bounds a single health probe.
	ProbeTimeout time.Duration

	// FailureThreshold is the consecutive-failure count that triggers a
	// restart. Fixed at 3 to match operator expectations; not overridable.
	FailureThreshold int

	// RestartSettle is how long to wait after a restart before re-probing.
	RestartSettle time.Duration

	// AlertEmail, when non-empty, enables the SMTP alerter.
	AlertEmail string

	// SMTPAddr is the host:port of the mail relay.
	SMTPAddr string

	// SMTPFrom is the envelope sender.
	SMTPFrom string

	// SMTPPassword authenticates SMTPFrom against the relay. Sensitive.
	SMTPPassword string

	// MetricsAddr is the listen address for /metrics and /livez.
	// Empty disables the listener.
	MetricsAddr string
}

// HealthURL returns the probe target URL.
func (c MonitorConfig) HealthURL() string {
	return fmt.Sprintf("http://%s/health", net.JoinHostPort(c.HealthHost, strconv.Itoa(c.HealthPort)))
}

// Redacted returns a loggable summary with the SMTP password masked.
func (c MonitorConfig) Redacted() string {
	password := ""
	if c.SMTPPassword != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("url=%s interval=%s timeout=%s threshold=%d email=%q smtp=%q password=%s metrics=%q",
		c.HealthURL(), c.CheckInterval, c.ProbeTimeout, c.FailureThreshold,
		c.AlertEmail, c.SMTPAddr, password, c.MetricsAddr)
}

// LoadMonitorConfig parses MonitorConfig from the process environment.
//
// # Description
//
// Missing variables fall back to defaults; malformed values are errors
// rather than silent fallbacks, so a broken unit file is caught at start
// instead of producing a monitor with surprising timing.
//
// # Outputs
//
//   - MonitorConfig: Validated configuration
//   - error: Non-nil if any present variable fails to parse
func LoadMonitorConfig() (MonitorConfig, error) {
	cfg := MonitorConfig{
		HealthHost:       "127.0.0.1",
		HealthPort:       8000,
		CheckInterval:    DefaultCheckInterval,
		ProbeTimeout:     DefaultProbeTimeout,
		FailureThreshold: 3,
		RestartSettle:    DefaultRestartSettle,
		AlertEmail:       os.Getenv(EnvAlertEmail),
		SMTPAddr:         os.Getenv(EnvSMTPAddr),
		SMTPFrom:         os.Getenv(EnvSMTPFrom),
		SMTPPassword:     os.Getenv(EnvSMTPPassword),
		MetricsAddr:      os.Getenv(EnvMetricsAddr),
	}

	if host := os.Getenv(EnvHealthHost); host != "" {
		cfg.HealthHost = host
	}

	if port := os.Getenv(EnvHealthPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return cfg, fmt.Errorf("%w: %s=%q must be a port number", ErrInvalidEnvValue, EnvHealthPort, port)
		}
		cfg.HealthPort = p
	}

	if interval := os.Getenv(EnvCheckInterval); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s=%q must be a duration like 60s", ErrInvalidEnvValue, EnvCheckInterval, interval)
		}
		cfg.CheckInterval = d
	}

	if timeout := os.Getenv(EnvProbeTimeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s=%q must be a duration like 10s", ErrInvalidEnvValue, EnvProbeTimeout, timeout)
		}
		cfg.ProbeTimeout = d
	}

	cfg.CheckInterval = EnforceMinTimeout(cfg.CheckInterval, MinCheckInterval)
	cfg.ProbeTimeout = EnforceMinTimeout(cfg.ProbeTimeout, MinProbeTimeout)

	return cfg, nil
}
