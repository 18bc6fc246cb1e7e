package core

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the persistent service configuration. YAML is the primary format;
// config.json parses through the same decoder since JSON is a YAML subset.
type Config struct {
	Mode struct {
		Name            string   `yaml:"name" json:"name"`
		AllowedGlobs    []string `yaml:"allowed_globs" json:"allowed_globs"`
		AllowedCommands []string `yaml:"allowed_commands" json:"allowed_commands"`
	} `yaml:"mode" json:"mode"`
	Security struct {
		MaxFileSizeBytes int64 `yaml:"max_file_size_bytes" json:"max_file_size_bytes"`
	} `yaml:"security" json:"security"`
	Transport struct {
		Listen string `yaml:"listen" json:"listen"` // empty = stdio
	} `yaml:"transport" json:"transport"`
	Telemetry struct {
		EventLog string `yaml:"event_log" json:"event_log"`
		AuditDB  string `yaml:"audit_db" json:"audit_db"`
	} `yaml:"telemetry" json:"telemetry"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Mode.Name = string(ModeFull)
	cfg.Security.MaxFileSizeBytes = 1_000_000
	return cfg
}

// ConfigDir is `<user-config>/winx-code-agent`.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", WrapIO("", err)
	}
	return filepath.Join(base, "winx-code-agent"), nil
}

// DataDir is `<user-data>/winx-code-agent`. XDG_DATA_HOME is honored on
// platforms that set it; otherwise falls back next to the config dir.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "winx-code-agent"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", WrapIO("", err)
	}
	return filepath.Join(home, ".local", "share", "winx-code-agent"), nil
}

// DefaultConfigPath picks the first existing config file under the config
// dir, preferring yaml, or the yaml path when none exists yet.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		candidate := filepath.Join(dir, name)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadConfig reads path, returning defaults when the file does not exist.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, WrapIO(path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &AgentError{Kind: ErrParse, Message: "config parse failure", Path: path, Err: err}
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML using the temp-then-rename pattern.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrapIO(path, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return &AgentError{Kind: ErrOther, Message: "config encode failure", Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*")
	if err != nil {
		return WrapIO(path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return WrapIO(path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return WrapIO(path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// ModeFromConfig translates the config's mode section into a Mode value.
func ModeFromConfig(cfg *Config) (Mode, error) {
	kind, err := ParseModeKind(cfg.Mode.Name)
	if err != nil {
		return Mode{}, err
	}
	return Mode{
		Kind:            kind,
		AllowedGlobs:    append([]string(nil), cfg.Mode.AllowedGlobs...),
		AllowedCommands: append([]string(nil), cfg.Mode.AllowedCommands...),
	}, nil
}
