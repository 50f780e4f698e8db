package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 18789, cfg.Gateway.Port)
	assert.Equal(t, "local", cfg.Gateway.Mode)
	assert.Equal(t, "loopback", cfg.Gateway.Bind)
	assert.Equal(t, "token", cfg.Gateway.Auth.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "/api/v1", cfg.Gateway.API.BasePath)
	assert.Equal(t, 5000, cfg.Store.BusyTimeoutMs)
	assert.Equal(t, 24, cfg.Workspaces.DefaultMaxHoursBeforeTermination)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, 18789, cfg.Gateway.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
gateway:
  port: 9999
  mode: remote
  bind: lan
  auth:
    mode: password
    password: secret123
logging:
  level: debug
  consoleStyle: json
store:
  path: /var/lib/remdev/remdev.db
workspaces:
  defaultMaxHoursBeforeTermination: 8
hooks:
  workspaceTerminated:
    - command: /usr/local/bin/cleanup
      timeout: 2000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "remote", cfg.Gateway.Mode)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, "password", cfg.Gateway.Auth.Mode)
	assert.Equal(t, "secret123", cfg.Gateway.Auth.Password)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	assert.Equal(t, "/var/lib/remdev/remdev.db", cfg.Store.Path)
	assert.Equal(t, 8, cfg.Workspaces.DefaultMaxHoursBeforeTermination)
	assert.Equal(t, 5000, cfg.Store.BusyTimeoutMs)

	require.Len(t, cfg.Hooks.WorkspaceTerminated, 1)
	assert.Equal(t, "/usr/local/bin/cleanup", cfg.Hooks.WorkspaceTerminated[0].Command)
	assert.Equal(t, 2000, cfg.Hooks.WorkspaceTerminated[0].Timeout)
}

func TestLoadValidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	data := `
[gateway]
port = 9001
bind = "lan"

[gateway.auth]
mode = "token"
token = "${REMDEV_TEST_TOKEN}"

[store]
busyTimeoutMs = 250

[[hooks.agentReconciled]]
command = "logger reconciled"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("REMDEV_TEST_TOKEN", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Gateway.Port)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, "s3cret", cfg.Gateway.Auth.Token)
	assert.Equal(t, 250, cfg.Store.BusyTimeoutMs)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.Len(t, cfg.Hooks.AgentReconciled, 1)
	assert.Equal(t, "logger reconciled", cfg.Hooks.AgentReconciled[0].Command)
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[gateway\nport ="), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REMDEV_GATEWAY_PORT", "12345")
	t.Setenv("REMDEV_LOG_LEVEL", "TRACE")
	t.Setenv("REMDEV_DB_PATH", "/tmp/override.db")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Gateway.Port)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "/tmp/override.db", cfg.Store.Path)
}

func TestValidateValid(t *testing.T) {
	cfg := Defaults()
	issues := Validate(&cfg)
	assert.Empty(t, issues)
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = 99999
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "gateway.port", issues[0].Path)
}

func TestValidateInvalidMode(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Mode = "invalid"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "gateway.mode", issues[0].Path)
}

func TestValidateHookMissingCommand(t *testing.T) {
	cfg := Defaults()
	cfg.Hooks.GatewayStart = []HookEntry{{Timeout: 100}}
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "hooks.gateway_start[0].command", issues[0].Path)
}

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"gateway.port", []string{"gateway", "port"}, false},
		{"store.busyTimeoutMs", []string{"store", "busyTimeoutMs"}, false},
		{"", nil, true},
		{"a..b", nil, true},
		{"__proto__.x", nil, true},
		{"x.constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGetSetValueAtPath(t *testing.T) {
	root := map[string]any{
		"gateway": map[string]any{
			"port": 18789,
		},
	}

	// Get existing
	val, ok := GetValueAtPath(root, []string{"gateway", "port"})
	assert.True(t, ok)
	assert.Equal(t, 18789, val)

	// Get missing
	_, ok = GetValueAtPath(root, []string{"gateway", "missing"})
	assert.False(t, ok)

	// Set existing
	SetValueAtPath(root, []string{"gateway", "port"}, 9999)
	val, ok = GetValueAtPath(root, []string{"gateway", "port"})
	assert.True(t, ok)
	assert.Equal(t, 9999, val)

	// Set new nested
	SetValueAtPath(root, []string{"store", "path"}, "/var/lib/remdev.db")
	val, ok = GetValueAtPath(root, []string{"store", "path"})
	assert.True(t, ok)
	assert.Equal(t, "/var/lib/remdev.db", val)
}

func TestUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"gateway": map[string]any{
			"port": 18789,
			"mode": "local",
		},
	}

	ok := UnsetValueAtPath(root, []string{"gateway", "port"})
	assert.True(t, ok)

	_, exists := GetValueAtPath(root, []string{"gateway", "port"})
	assert.False(t, exists)

	// Mode should still be there
	val, exists := GetValueAtPath(root, []string{"gateway", "mode"})
	assert.True(t, exists)
	assert.Equal(t, "local", val)

	// Unset missing key
	ok = UnsetValueAtPath(root, []string{"gateway", "nonexistent"})
	assert.False(t, ok)
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw := map[string]any{
		"gateway": map[string]any{
			"port": 9999,
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := GetValueAtPath(loaded, []string{"gateway", "port"})
	assert.True(t, ok)
	assert.Equal(t, 9999, val)
}

func TestLoadRawAndSaveRaw_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	raw := map[string]any{
		"gateway": map[string]any{
			"port": 9999,
		},
	}
	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := GetValueAtPath(loaded, []string{"gateway", "port"})
	assert.True(t, ok)
	assert.EqualValues(t, 9999, val)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Gateway.Port)
}

func TestResolvePaths(t *testing.T) {
	t.Setenv("REMDEV_HOME", t.TempDir())
	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.NotEmpty(t, paths.Base)
	assert.Contains(t, paths.Config, "config.yaml")
	assert.Contains(t, paths.Database, "remdev.db")
}

func TestResolvePathsCustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("REMDEV_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)
}

func TestResolvePathsPrefersExistingTOML(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("REMDEV_HOME", tmp)
	t.Setenv("REMDEV_CONFIG", "")
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.toml"), nil, 0o600))

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "config.toml"), paths.Config)
}

func TestResolvePathsExplicitConfig(t *testing.T) {
	t.Setenv("REMDEV_HOME", t.TempDir())
	t.Setenv("REMDEV_CONFIG", "/etc/remdev/remdev.toml")

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, "/etc/remdev/remdev.toml", paths.Config)
}

func TestDatabasePath(t *testing.T) {
	paths := Paths{Database: "/home/u/.remdev/data/remdev.db"}
	assert.Equal(t, paths.Database, paths.DatabasePath(Defaults()))

	cfg := Defaults()
	cfg.Store.Path = "/srv/remdev.db"
	assert.Equal(t, "/srv/remdev.db", paths.DatabasePath(cfg))
}

func TestEnsureDirs(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("REMDEV_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	// Verify dirs exist
	for _, d := range []string{paths.Logs, paths.Data} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDecode(t *testing.T) {
	cfg, err := Decode(map[string]any{
		"workspaces": map[string]any{"defaultMaxHoursBeforeTermination": 72},
		"store":      map[string]any{"busyTimeoutMs": int64(250)},
	})
	require.NoError(t, err)
	assert.Equal(t, 72, cfg.Workspaces.DefaultMaxHoursBeforeTermination)
	assert.Equal(t, 250, cfg.Store.BusyTimeoutMs)
	assert.Equal(t, defaultPort, cfg.Gateway.Port)

	cfg, err = Decode(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(map[string]any{
		"workspaces": map[string]any{"defaultMaxHours": 72},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defaultMaxHours")
}

func TestDecodeRejectsWrongType(t *testing.T) {
	_, err := Decode(map[string]any{
		"gateway": map[string]any{"port": "eighty"},
	})
	assert.Error(t, err)
}

func TestEffective(t *testing.T) {
	raw, err := Effective(Defaults())
	require.NoError(t, err)

	v, ok := GetValueAtPath(raw, []string{"workspaces", "defaultMaxHoursBeforeTermination"})
	require.True(t, ok)
	assert.Equal(t, defaultMaxHours, v)

	v, ok = GetValueAtPath(raw, []string{"gateway", "api", "basePath"})
	require.True(t, ok)
	assert.Equal(t, defaultAPIBasePath, v)

	_, ok = GetValueAtPath(raw, []string{"store", "path"})
	assert.False(t, ok)
}
