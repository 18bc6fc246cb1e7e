package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoadConfigMissingFileUsesDefaults: no file means full mode with the
// default size limit, not an error.
func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, string(ModeFull), cfg.Mode.Name)
	require.Equal(t, int64(1_000_000), cfg.Security.MaxFileSizeBytes)
	require.Empty(t, cfg.Transport.Listen)
}

// TestConfigSaveLoadRoundtrip via the temp-then-rename writer.
func TestConfigSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Mode.Name = "code_writer"
	cfg.Mode.AllowedGlobs = []string{"src/**/*.go"}
	cfg.Mode.AllowedCommands = []string{"go", "make"}
	cfg.Transport.Listen = "127.0.0.1:7700"
	cfg.Telemetry.EventLog = "/tmp/winx-events.ndjson"

	require.NoError(t, SaveConfig(path, cfg))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

// TestLoadConfigAcceptsJSON: config.json parses through the YAML decoder.
func TestLoadConfigAcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"mode": {"name": "read_only"}, "transport": {"listen": "127.0.0.1:7700"}}`), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "read_only", cfg.Mode.Name)
	require.Equal(t, "127.0.0.1:7700", cfg.Transport.Listen)
	// unset sections keep their defaults
	require.Equal(t, int64(1_000_000), cfg.Security.MaxFileSizeBytes)
}

// TestLoadConfigMalformed is a parse error naming the file.
func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)
	require.Equal(t, ErrParse, KindOf(err))
}

// TestModeFromConfig copies the glob and command lists.
func TestModeFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode.Name = "code_writer"
	cfg.Mode.AllowedGlobs = []string{"*.go"}
	cfg.Mode.AllowedCommands = []string{"go"}

	mode, err := ModeFromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, ModeConstrained, mode.Kind)
	require.Equal(t, []string{"*.go"}, mode.AllowedGlobs)
	require.Equal(t, []string{"go"}, mode.AllowedCommands)

	cfg.Mode.Name = "bogus"
	_, err = ModeFromConfig(cfg)
	require.Error(t, err)
}
