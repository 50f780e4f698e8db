package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/soyeahso/remdev/internal/domain"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validModes := []string{"local", "remote"}
	if cfg.Gateway.Mode != "" && !slices.Contains(validModes, cfg.Gateway.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validModes, cfg.Gateway.Mode),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom", "tailnet"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	validAuthModes := []string{"token", "password"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.auth.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}

	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.tls",
			Message: "certPath and keyPath are required when TLS is enabled",
		})
	}

	if p := cfg.Gateway.API.BasePath; p != "" && !strings.HasPrefix(p, "/") {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.api.basePath",
			Message: fmt.Sprintf("must start with /, got %q", p),
		})
	}

	// Store validation
	if cfg.Store.BusyTimeoutMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "store.busyTimeoutMs",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Store.BusyTimeoutMs),
		})
	}

	// Workspace defaults
	if cfg.Workspaces.DefaultMaxHoursBeforeTermination < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "workspaces.defaultMaxHoursBeforeTermination",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Workspaces.DefaultMaxHoursBeforeTermination),
		})
	}
	if int64(cfg.Workspaces.DefaultMaxHoursBeforeTermination) > domain.MaxTTLHours {
		issues = append(issues, ValidationIssue{
			Path:    "workspaces.defaultMaxHoursBeforeTermination",
			Message: fmt.Sprintf("must be at most %d, got %d", domain.MaxTTLHours, cfg.Workspaces.DefaultMaxHoursBeforeTermination),
		})
	}

	// Hooks validation
	for event, entries := range cfg.Hooks.ByEvent() {
		for i, h := range entries {
			if strings.TrimSpace(h.Command) == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("hooks.%s[%d].command", event, i),
					Message: "command is required",
				})
			}
			if h.Timeout < 0 {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("hooks.%s[%d].timeout", event, i),
					Message: fmt.Sprintf("must not be negative, got %d", h.Timeout),
				})
			}
		}
	}

	return issues
}
