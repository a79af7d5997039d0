// Package config loads cvv settings from flags, CLAWVIVAL_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable, e.g.
// CLAWVIVAL_API_BASE.
const EnvPrefix = "CLAWVIVAL"

// Keys.
const (
	KeyAPIBase     = "api-base"
	KeyAgent       = "agent"
	KeyRefresh     = "refresh"
	KeyTimeout     = "timeout"
	KeyPageSize    = "page-size"
	KeyReplayLimit = "replay-limit"
	KeyStateFile   = "state-file"
	KeyNoState     = "no-state"
	KeyLogFile     = "log-file"
	KeyView        = "view"
	KeyJSON        = "json"
	KeyConfig      = "config"
)

// Defaults.
const (
	DefaultAPIBase     = "https://api.clawvival.app"
	DefaultRefresh     = 60 * time.Second
	DefaultTimeout     = 10 * time.Second
	DefaultPageSize    = 20
	DefaultReplayLimit = 200
	DefaultView        = "agent"
	minRefresh         = time.Second
)

// Views the console can start in.
var Views = []string{"agent", "map", "history"}

// Config is the resolved configuration.
type Config struct {
	APIBase     string        `yaml:"api-base"`
	Agent       string        `yaml:"agent"`
	Refresh     time.Duration `yaml:"refresh"`
	Timeout     time.Duration `yaml:"timeout"`
	PageSize    int           `yaml:"page-size"`
	ReplayLimit int           `yaml:"replay-limit"`
	StateFile   string        `yaml:"state-file"`
	NoState     bool          `yaml:"no-state"`
	LogFile     string        `yaml:"log-file"`
	View        string        `yaml:"view"`
	JSON        bool          `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBase:     DefaultAPIBase,
		Refresh:     DefaultRefresh,
		Timeout:     DefaultTimeout,
		PageSize:    DefaultPageSize,
		ReplayLimit: DefaultReplayLimit,
		View:        DefaultView,
	}
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyAPIBase, d.APIBase)
	v.SetDefault(KeyRefresh, d.Refresh)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyPageSize, d.PageSize)
	v.SetDefault(KeyReplayLimit, d.ReplayLimit)
	v.SetDefault(KeyView, d.View)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// AddFlags registers the persistent flags every command shares.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(KeyConfig, "", "config file (default $XDG_CONFIG_HOME/clawvival/cvv.yaml)")
	fs.String(KeyAPIBase, d.APIBase, "Clawvival API base URL")
	fs.StringP(KeyAgent, "a", "", "agent id to track")
	fs.Duration(KeyRefresh, d.Refresh, "poll interval")
	fs.Duration(KeyTimeout, d.Timeout, "per-request timeout")
	fs.Int(KeyPageSize, d.PageSize, "history items per page")
	fs.Int(KeyReplayLimit, d.ReplayLimit, "events requested per replay page")
	fs.String(KeyStateFile, "", "selection state file (default: discovered)")
	fs.Bool(KeyNoState, false, "keep the agent selection in memory only")
	fs.String(KeyLogFile, "", "write debug log to this file")
	fs.String(KeyView, d.View, "initial view: "+strings.Join(Views, ", "))
	fs.Bool(KeyJSON, false, "print a JSON snapshot and exit")
}

// BindFlags binds every known flag in fs to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range []string{
		KeyConfig, KeyAPIBase, KeyAgent, KeyRefresh, KeyTimeout, KeyPageSize,
		KeyReplayLimit, KeyStateFile, KeyNoState, KeyLogFile, KeyView, KeyJSON,
	} {
		f := fs.Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// DefaultPath is where config init writes and Load looks by default.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "clawvival", "cvv.yaml"), nil
}

// Load reads the config file (explicit path or the default location, if it
// exists), then resolves and validates every key.
func Load(v *viper.Viper) (Config, error) {
	path := v.GetString(KeyConfig)
	explicit := path != ""
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := Config{
		APIBase:     strings.TrimRight(strings.TrimSpace(v.GetString(KeyAPIBase)), "/"),
		Agent:       strings.TrimSpace(v.GetString(KeyAgent)),
		Refresh:     v.GetDuration(KeyRefresh),
		Timeout:     v.GetDuration(KeyTimeout),
		PageSize:    v.GetInt(KeyPageSize),
		ReplayLimit: v.GetInt(KeyReplayLimit),
		StateFile:   v.GetString(KeyStateFile),
		NoState:     v.GetBool(KeyNoState),
		LogFile:     v.GetString(KeyLogFile),
		View:        strings.ToLower(strings.TrimSpace(v.GetString(KeyView))),
		JSON:        v.GetBool(KeyJSON),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and formats.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", KeyAPIBase, c.APIBase)
	}
	if c.Refresh < minRefresh {
		return fmt.Errorf("%s must be at least %s, got %s", KeyRefresh, minRefresh, c.Refresh)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s must not be negative", KeyTimeout)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyPageSize, c.PageSize)
	}
	if c.ReplayLimit <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyReplayLimit, c.ReplayLimit)
	}
	valid := false
	for _, v := range Views {
		if c.View == v {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("%s must be one of %s, got %q", KeyView, strings.Join(Views, ", "), c.View)
	}
	return nil
}

// fileConfig is the on-disk shape; durations are written as strings.
type fileConfig struct {
	APIBase     string `yaml:"api-base"`
	Agent       string `yaml:"agent"`
	Refresh     string `yaml:"refresh"`
	Timeout     string `yaml:"timeout"`
	PageSize    int    `yaml:"page-size"`
	ReplayLimit int    `yaml:"replay-limit"`
	StateFile   string `yaml:"state-file,omitempty"`
	NoState     bool   `yaml:"no-state"`
	LogFile     string `yaml:"log-file,omitempty"`
	View        string `yaml:"view"`
}

// ToYAML renders c as a config file.
func (c Config) ToYAML() ([]byte, error) {
	fc := fileConfig{
		APIBase:     c.APIBase,
		Agent:       c.Agent,
		Refresh:     c.Refresh.String(),
		Timeout:     c.Timeout.String(),
		PageSize:    c.PageSize,
		ReplayLimit: c.ReplayLimit,
		StateFile:   c.StateFile,
		NoState:     c.NoState,
		LogFile:     c.LogFile,
		View:        c.View,
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes c to path, refusing to overwrite unless force is set.
func WriteFile(path string, c Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists; use --force to overwrite", path)
		}
	}
	data, err := c.ToYAML()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
