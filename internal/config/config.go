package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects where the data root lives when nothing overrides it.
type Mode string

const (
	ModeDev       Mode = "dev"
	ModeInstalled Mode = "installed"
)

type Config struct {
	Schema      int    `json:"schema" yaml:"schema"`
	Mode        Mode   `json:"mode,omitempty" yaml:"mode,omitempty"`
	DataRoot    string `json:"data_root,omitempty" yaml:"data_root,omitempty"`
	Workers     int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	Verify      bool   `json:"verify,omitempty" yaml:"verify,omitempty"`
	LogLevel    string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	PickerStart string `json:"picker_start,omitempty" yaml:"picker_start,omitempty"`
}

const CurrentConfigSchema = 1

// Environment overrides.
const (
	EnvDataRoot = "INTAKE_DATA_ROOT"
	EnvMode     = "INTAKE_MODE"
)

func DefaultConfig() *Config {
	return &Config{
		Schema:   CurrentConfigSchema,
		Mode:     ModeInstalled,
		Workers:  1,
		LogLevel: "info",
	}
}

// Load reads the first config file found in the lookup order and resolves
// the data root. A missing config file yields the defaults.
func Load(configPath string) (*Config, error) {
	paths := getConfigPaths(configPath)

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		cfg := DefaultConfig()
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if err := cfg.finalize(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := DefaultConfig()
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func getConfigPaths(explicit string) []string {
	home, _ := os.UserHomeDir()

	var paths []string

	if explicit != "" {
		paths = append(paths, explicit)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths,
		filepath.Join(xdgConfig, "intake", "config.json"),
		filepath.Join(xdgConfig, "intake", "config.yaml"),
	)

	return paths
}

func (c *Config) finalize() error {
	if mode := os.Getenv(EnvMode); mode != "" {
		c.Mode = Mode(mode)
	}
	if c.Mode == "" {
		c.Mode = ModeInstalled
	}
	if c.Mode != ModeDev && c.Mode != ModeInstalled {
		return fmt.Errorf("unknown mode %q (want %q or %q)", c.Mode, ModeDev, ModeInstalled)
	}

	if root := os.Getenv(EnvDataRoot); root != "" {
		c.DataRoot = root
	}
	if c.Workers < 1 {
		c.Workers = 1
	}

	c.expandPaths()

	if c.DataRoot == "" {
		root, err := c.defaultDataRoot()
		if err != nil {
			return err
		}
		c.DataRoot = root
	}
	return c.absPaths()
}

func (c *Config) expandPaths() {
	c.DataRoot = expandHome(c.DataRoot)
	c.PickerStart = expandHome(c.PickerStart)
}

func (c *Config) absPaths() error {
	root, err := filepath.Abs(c.DataRoot)
	if err != nil {
		return fmt.Errorf("resolve data root: %w", err)
	}
	c.DataRoot = root
	return nil
}

func expandHome(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, path[1:])
}

// defaultDataRoot derives the data root from the packaging mode.
func (c *Config) defaultDataRoot() (string, error) {
	if c.Mode == ModeDev {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		return filepath.Join(wd, "data"), nil
	}

	xdgData := os.Getenv("XDG_DATA_HOME")
	if xdgData == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		xdgData = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(xdgData, "intake", "data"), nil
}

// SetDataRoot overrides the data root, e.g. from a command-line flag.
func (c *Config) SetDataRoot(path string) error {
	c.DataRoot = expandHome(path)
	return c.absPaths()
}

func (c *Config) SystemDir() string {
	return filepath.Join(c.DataRoot, "_system")
}

func (c *Config) HistoryPath() string {
	return filepath.Join(c.SystemDir(), "history.db")
}

func (c *Config) LogsDir() string {
	return filepath.Join(c.SystemDir(), "logs")
}

func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "intake.log")
}

// TargetPath joins a path relative to the data root.
func (c *Config) TargetPath(rel string) string {
	return filepath.Join(c.DataRoot, rel)
}
