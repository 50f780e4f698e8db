package config

// Config is the root configuration for remdev. Every field carries both a
// YAML and a TOML tag; the file extension picks the decoder.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway,omitempty" toml:"gateway,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty" toml:"store,omitempty"`
	Workspaces WorkspacesConfig `yaml:"workspaces,omitempty" toml:"workspaces,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty" toml:"logging,omitempty"`
	Hooks      HooksConfig      `yaml:"hooks,omitempty" toml:"hooks,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int              `yaml:"port,omitempty" toml:"port,omitempty"`
	Mode           string           `yaml:"mode,omitempty" toml:"mode,omitempty"` // "local" | "remote"
	Bind           string           `yaml:"bind,omitempty" toml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom" | "tailnet"
	CustomBindHost string           `yaml:"customBindHost,omitempty" toml:"customBindHost,omitempty"`
	Auth           GatewayAuth      `yaml:"auth,omitempty" toml:"auth,omitempty"`
	TLS            GatewayTLS       `yaml:"tls,omitempty" toml:"tls,omitempty"`
	ControlUI      GatewayControlUI `yaml:"controlUi,omitempty" toml:"controlUi,omitempty"`
	API            GatewayAPI       `yaml:"api,omitempty" toml:"api,omitempty"`
}

// GatewayAuth configures operator authentication. Agents always use their
// own registered tokens.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty" toml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty" toml:"token,omitempty"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty" toml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty" toml:"keyPath,omitempty"`
}

// GatewayControlUI configures browser access to the gateway.
type GatewayControlUI struct {
	Enabled        bool     `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	BasePath       string   `yaml:"basePath,omitempty" toml:"basePath,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty" toml:"allowedOrigins,omitempty"`
}

// GatewayAPI configures the REST agent API.
type GatewayAPI struct {
	Disabled bool   `yaml:"disabled,omitempty" toml:"disabled,omitempty"`
	BasePath string `yaml:"basePath,omitempty" toml:"basePath,omitempty"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path          string `yaml:"path,omitempty" toml:"path,omitempty"` // defaults to <home>/data/remdev.db
	BusyTimeoutMs int    `yaml:"busyTimeoutMs,omitempty" toml:"busyTimeoutMs,omitempty"`
}

// WorkspacesConfig holds defaults for the workspace creation flow.
type WorkspacesConfig struct {
	DefaultMaxHoursBeforeTermination int `yaml:"defaultMaxHoursBeforeTermination,omitempty" toml:"defaultMaxHoursBeforeTermination,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty" toml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty" toml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty" toml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig defines shell commands run on hook events.
type HooksConfig struct {
	WorkspaceRestarted  []HookEntry `yaml:"workspaceRestarted,omitempty" toml:"workspaceRestarted,omitempty"`
	WorkspaceTerminated []HookEntry `yaml:"workspaceTerminated,omitempty" toml:"workspaceTerminated,omitempty"`
	OrphanReported      []HookEntry `yaml:"orphanReported,omitempty" toml:"orphanReported,omitempty"`
	AgentReconciled     []HookEntry `yaml:"agentReconciled,omitempty" toml:"agentReconciled,omitempty"`
	GatewayStart        []HookEntry `yaml:"gatewayStart,omitempty" toml:"gatewayStart,omitempty"`
	GatewayStop         []HookEntry `yaml:"gatewayStop,omitempty" toml:"gatewayStop,omitempty"`
}

// ByEvent returns the configured entries keyed by hook event name.
func (h HooksConfig) ByEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"workspace_restarted":  h.WorkspaceRestarted,
		"workspace_terminated": h.WorkspaceTerminated,
		"orphan_reported":      h.OrphanReported,
		"agent_reconciled":     h.AgentReconciled,
		"gateway_start":        h.GatewayStart,
		"gateway_stop":         h.GatewayStop,
	}
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command" toml:"command"`
	Timeout int    `yaml:"timeout,omitempty" toml:"timeout,omitempty"` // milliseconds
}
