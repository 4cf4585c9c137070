package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	configName = "renovatio"
	envPrefix  = "RENOVATIO"
)

// Config holds everything the orchestrator reads at run start.
type Config struct {
	// Provider discovery, in priority order. The first module providing a name wins.
	SearchPaths []string `mapstructure:"search_paths"`

	// Enabled providers by name or load path, in execution order.
	EnabledProviders []string `mapstructure:"enabled_providers"`

	// Reboot automatically when a provider reports a pending reboot.
	AutoReboot bool `mapstructure:"auto_reboot"`

	// How often the host polls the progress channel.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Preflight
	MinFreeDiskMB uint64 `mapstructure:"min_free_disk_mb"`

	// "hold" or "interpolate"
	NormalizerPolicy string `mapstructure:"normalizer_policy"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	v    *viper.Viper
	file string
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SearchPaths:      DefaultSearchPaths(),
		PollInterval:     50 * time.Millisecond,
		NormalizerPolicy: "hold",
		LogLevel:         "info",
	}
}

// Load reads configuration from cfgFile (or the default locations) and the environment.
// A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	cfg := &Config{}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(cfgFile != "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for i, p := range cfg.SearchPaths {
		if expanded, err := homedir.Expand(p); err == nil {
			cfg.SearchPaths[i] = expanded
		}
	}

	cfg.v = v
	cfg.file = v.ConfigFileUsed()
	if cfg.file == "" {
		cfg.file = cfgFile
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it; viper
// only consults the environment for keys it already knows.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("search_paths", d.SearchPaths)
	v.SetDefault("enabled_providers", []string{})
	v.SetDefault("auto_reboot", d.AutoReboot)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("min_free_disk_mb", d.MinFreeDiskMB)
	v.SetDefault("normalizer_policy", d.NormalizerPolicy)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
}

// Path returns the file Save writes to.
func (c *Config) Path() string {
	if c.file != "" {
		return c.file
	}
	return filepath.Join(ConfigDir(), configName+".yaml")
}

// Save persists the current configuration.
func (c *Config) Save() error {
	v := c.v
	if v == nil {
		v = viper.New()
	}

	path := c.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v.Set("search_paths", c.SearchPaths)
	v.Set("enabled_providers", c.EnabledProviders)
	v.Set("auto_reboot", c.AutoReboot)
	v.Set("poll_interval", c.PollInterval.String())
	v.Set("min_free_disk_mb", c.MinFreeDiskMB)
	v.Set("normalizer_policy", c.NormalizerPolicy)
	v.Set("log_level", c.LogLevel)
	v.Set("log_file", c.LogFile)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	c.file = path
	return nil
}

// Enable appends name to the enabled list unless it is already present.
// It reports whether the list changed.
func (c *Config) Enable(name string) bool {
	for _, n := range c.EnabledProviders {
		if n == name {
			return false
		}
	}
	c.EnabledProviders = append(c.EnabledProviders, name)
	return true
}

// Disable removes name from the enabled list and reports whether it was present.
func (c *Config) Disable(name string) bool {
	kept := c.EnabledProviders[:0]
	removed := false
	for _, n := range c.EnabledProviders {
		if n == name {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	c.EnabledProviders = kept
	return removed
}

// DefaultSearchPaths returns the system, site and user plugin directories.
func DefaultSearchPaths() []string {
	paths := []string{
		"/usr/lib/renovatio/plugins",
		"/usr/local/lib/renovatio/plugins",
	}
	if home, err := homedir.Dir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "share", "renovatio", "plugins"))
	}
	return paths
}

// ConfigDir returns the per-user config directory.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, configName)
	}
	if home, err := homedir.Dir(); err == nil {
		return filepath.Join(home, ".config", configName)
	}
	return "."
}
