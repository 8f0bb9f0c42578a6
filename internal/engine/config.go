package engine

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted by NetworkConfig.Transport.
const (
	TransportWebsocket = "websocket"
	TransportQUIC      = "quic"
)

// Config drives engine composition. The zero value is not usable; start
// from DefaultConfig and overlay a YAML file on top.
type Config struct {
	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// FrameRate is the target frames per second of the main loop.
	FrameRate int `json:"frame_rate" yaml:"frame_rate"`
	// Workers sizes the background work queue; 0 derives it from the
	// host CPU count.
	Workers int `json:"workers" yaml:"workers"`
	// ScriptEntry is a Lua file run once at startup, empty for none.
	ScriptEntry string `json:"script_entry" yaml:"script_entry"`

	Network NetworkConfig `json:"network" yaml:"network"`
}

// NetworkConfig selects and configures the replication transport.
type NetworkConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Transport is TransportWebsocket or TransportQUIC.
	Transport string `json:"transport" yaml:"transport"`
	Listen    string `json:"listen" yaml:"listen"`
	// DevTLS generates a self-signed loopback certificate instead of
	// loading one; QUIC only.
	DevTLS   bool   `json:"dev_tls" yaml:"dev_tls"`
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// DefaultConfig returns the development defaults: info logging, 60
// frames per second, networking disabled.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		FrameRate: 60,
		Network: NetworkConfig{
			Transport: TransportWebsocket,
			Listen:    "127.0.0.1:7777",
		},
	}
}

// Load decodes a YAML config over the defaults and validates it.
func Load(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("engine: decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFile reads and decodes a YAML config file over the defaults.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("engine: open config: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Validate rejects configurations the engine cannot run.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("engine: unknown log level %q", c.LogLevel)
	}
	if c.FrameRate < 1 || c.FrameRate > 1000 {
		return fmt.Errorf("engine: frame rate %d out of range [1,1000]", c.FrameRate)
	}
	if c.Workers < 0 {
		return fmt.Errorf("engine: negative worker count %d", c.Workers)
	}
	switch c.Network.Transport {
	case TransportWebsocket, TransportQUIC:
	default:
		return fmt.Errorf("engine: unknown transport %q", c.Network.Transport)
	}
	if c.Network.Enabled {
		if c.Network.Listen == "" {
			return fmt.Errorf("engine: networking enabled without a listen address")
		}
		if c.Network.Transport == TransportQUIC && !c.Network.DevTLS {
			if c.Network.CertFile == "" || c.Network.KeyFile == "" {
				return fmt.Errorf("engine: quic transport needs dev_tls or a cert_file/key_file pair")
			}
		}
	}
	return nil
}

// FrameInterval returns the tick period implied by the frame rate.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}
