// Package config loads the dispatcher configuration from YAML with
// RECEIPT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RECEIPT_SERVER_PORT
const EnvPrefix = "RECEIPT"

// NetworkHost is a declared network printer
type NetworkHost struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port,omitempty"`
	Name  string `yaml:"name,omitempty"`
	Model string `yaml:"model,omitempty"`
}

// Config is the full dispatcher configuration
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Debug bool `yaml:"debug"`

	Print struct {
		PaperSize        string        `yaml:"paper_size"`
		NetworkTimeout   time.Duration `yaml:"network_timeout"`
		ProbeTimeout     time.Duration `yaml:"probe_timeout"`
		SerializeDevices bool          `yaml:"serialize_devices"`
	} `yaml:"print"`

	Discovery struct {
		MonitorInterval time.Duration `yaml:"monitor_interval"`
		NetworkHosts    []NetworkHost `yaml:"network_hosts,omitempty"`
		USBVendorIDs    []uint16      `yaml:"usb_vendor_ids,omitempty"`
		Serial          bool          `yaml:"serial"`
	} `yaml:"discovery"`

	Registry struct {
		Path string `yaml:"path"`
	} `yaml:"registry"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`

	TUI struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"tui"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 12212
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Print.PaperSize = "mm80"
	cfg.Print.NetworkTimeout = 5 * time.Second
	cfg.Print.ProbeTimeout = 2 * time.Second
	cfg.Print.SerializeDevices = true
	cfg.Discovery.MonitorInterval = 5 * time.Second
	cfg.Metrics.Enabled = true
	return cfg
}

// Addr returns host:port for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads path over the defaults, then applies environment overrides. A
// missing file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would make the server unusable
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	switch c.Print.PaperSize {
	case "", "mm58", "mm80":
	default:
		return fmt.Errorf("invalid print.paper_size: %s", c.Print.PaperSize)
	}
	if c.Print.NetworkTimeout < 0 || c.Print.ProbeTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	for i, h := range c.Discovery.NetworkHosts {
		if h.Host == "" {
			return fmt.Errorf("discovery.network_hosts[%d]: host is required", i)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"server.host", "server.port", "logging.level", "logging.format", "debug",
		"print.paper_size", "print.network_timeout", "print.probe_timeout", "print.serialize_devices",
		"discovery.monitor_interval", "discovery.serial", "registry.path", "metrics.enabled", "tui.enabled",
	} {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}

	if v.IsSet("server.host") {
		cfg.Server.Host = v.GetString("server.host")
	}
	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}
	if v.IsSet("debug") {
		cfg.Debug = v.GetBool("debug")
	}
	if v.IsSet("print.paper_size") {
		cfg.Print.PaperSize = strings.ToLower(v.GetString("print.paper_size"))
	}
	if v.IsSet("print.network_timeout") {
		cfg.Print.NetworkTimeout = v.GetDuration("print.network_timeout")
	}
	if v.IsSet("print.probe_timeout") {
		cfg.Print.ProbeTimeout = v.GetDuration("print.probe_timeout")
	}
	if v.IsSet("print.serialize_devices") {
		cfg.Print.SerializeDevices = v.GetBool("print.serialize_devices")
	}
	if v.IsSet("discovery.monitor_interval") {
		cfg.Discovery.MonitorInterval = v.GetDuration("discovery.monitor_interval")
	}
	if v.IsSet("discovery.serial") {
		cfg.Discovery.Serial = v.GetBool("discovery.serial")
	}
	if v.IsSet("registry.path") {
		cfg.Registry.Path = v.GetString("registry.path")
	}
	if v.IsSet("metrics.enabled") {
		cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	}
	if v.IsSet("tui.enabled") {
		cfg.TUI.Enabled = v.GetBool("tui.enabled")
	}
	return nil
}

// Save writes cfg as YAML
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
