package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Web       WebConfig       `yaml:"web"`
	Git       GitConfig       `yaml:"git"`
	Worktrees WorktreesConfig `yaml:"worktrees"`
	ScanPaths []string        `yaml:"scan_paths"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type WebConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// GitConfig carries the identity stamped onto automated commits (the keys
// mirror git's own user.name/user.email), an optional trailer appended to
// squash-commit messages, and the command timeout overrides.
type GitConfig struct {
	Name     string         `yaml:"name"`
	Email    string         `yaml:"email"`
	Trailer  string         `yaml:"trailer"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// TimeoutsConfig bounds the three classes of git invocation, in seconds.
// Zero values keep the worktree manager's defaults.
type TimeoutsConfig struct {
	QuerySeconds   int `yaml:"query_seconds"`
	NetworkSeconds int `yaml:"network_seconds"`
	SyncSeconds    int `yaml:"sync_seconds"`
}

type WorktreesConfig struct {
	Dir          string `yaml:"dir"`
	BranchPrefix string `yaml:"branch_prefix"`
}

// LookPathFunc is the function signature for looking up executables.
type LookPathFunc func(name string) (string, error)

func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 7,
		},
		Web: WebConfig{
			Bind: "127.0.0.1",
		},
		Git: GitConfig{
			Name:  "Grove Agent",
			Email: "agent@grove.local",
		},
		Worktrees: WorktreesConfig{
			Dir: ".worktrees",
		},
	}
}

func Load() (Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFromDir reads config.yaml from an explicit directory, for the
// --config-dir flag.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}

	return cfg.withDefaults(), nil
}

// withDefaults refills string fields that an explicit empty value in the
// file would otherwise blank out.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Web.Bind == "" {
		c.Web.Bind = d.Web.Bind
	}
	if c.Git.Name == "" {
		c.Git.Name = d.Git.Name
	}
	if c.Git.Email == "" {
		c.Git.Email = d.Git.Email
	}
	if c.Worktrees.Dir == "" {
		c.Worktrees.Dir = d.Worktrees.Dir
	}
	return c
}

// Query returns the timeout for local metadata reads.
func (t TimeoutsConfig) Query() time.Duration {
	return time.Duration(t.QuerySeconds) * time.Second
}

// Network returns the timeout for operations that may touch a remote.
func (t TimeoutsConfig) Network() time.Duration {
	return time.Duration(t.NetworkSeconds) * time.Second
}

// Sync returns the timeout for history-replaying operations.
func (t TimeoutsConfig) Sync() time.Duration {
	return time.Duration(t.SyncSeconds) * time.Second
}

// BranchFor derives the branch created for a worktree when the caller does
// not pick one.
func (w WorktreesConfig) BranchFor(worktreeName string) string {
	return w.BranchPrefix + worktreeName
}

// ValidateTools checks that the external commands grove drives are present.
func (c *Config) ValidateTools() error {
	return c.ValidateToolsWith(exec.LookPath)
}

// ValidateToolsWith checks tool availability using the provided lookup
// function.
func (c *Config) ValidateToolsWith(lookPath LookPathFunc) error {
	if _, err := lookPath("git"); err != nil {
		return fmt.Errorf("git not found in PATH")
	}
	return nil
}

// ResolveScanPaths expands a leading ~/ in each configured scan path.
func (c *Config) ResolveScanPaths() []string {
	resolved := make([]string, 0, len(c.ScanPaths))
	for _, p := range c.ScanPaths {
		resolved = append(resolved, expandPath(p))
	}
	return resolved
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// DataDir returns the directory holding runtime state: the log file, the
// registry database, and the instance lock/port files.
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "grove")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".local", "share", "grove")
	}

	return filepath.Join(home, ".local", "share", "grove")
}

func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "grove", "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "grove", "config.yaml")
	}

	return filepath.Join(home, ".config", "grove", "config.yaml")
}
