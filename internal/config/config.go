package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	defaultPort          = 18789
	defaultBusyTimeoutMs = 5000
	defaultMaxHours      = 24
	defaultAPIBasePath   = "/api/v1"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: defaultPort,
			Mode: "local",
			Bind: "loopback",
			Auth: GatewayAuth{
				Mode: "token",
			},
			API: GatewayAPI{
				BasePath: defaultAPIBasePath,
			},
		},
		Store: StoreConfig{
			BusyTimeoutMs: defaultBusyTimeoutMs,
		},
		Workspaces: WorkspacesConfig{
			DefaultMaxHoursBeforeTermination: defaultMaxHours,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
