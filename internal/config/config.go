// Package config loads the JSON configuration files of both socksrelay
// halves. Loaded values are never modified afterwards and are shared freely.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/die-net/socksrelay/internal/errs"
)

// RelayEndpoint is a downstream hop the local half forwards to. Password and
// EncryptMethod are accepted for compatibility with existing config files
// but no cipher consumes them.
type RelayEndpoint struct {
	Host          string `json:"host"`
	Password      string `json:"password"`
	EncryptMethod string `json:"encrypt_method"`
}

// Config is the local half's configuration.
type Config struct {
	Host       string          `json:"host"`
	ServerList []RelayEndpoint `json:"server_list"`
	UDP        bool            `json:"udp"`
}

// ServerConfig is the remote half's configuration.
type ServerConfig struct {
	Host string `json:"host"`
	UDP  bool   `json:"udp"`
}

// Relay returns the endpoint every session uses: always the first entry.
func (c Config) Relay() (RelayEndpoint, error) {
	if len(c.ServerList) == 0 {
		return RelayEndpoint{}, errs.Configf("server_list is empty")
	}
	return c.ServerList[0], nil
}

func (c Config) Validate() error {
	if err := validateHostPort("host", c.Host); err != nil {
		return err
	}
	if _, err := c.Relay(); err != nil {
		return err
	}
	for i, ep := range c.ServerList {
		if err := validateHostPort(fmt.Sprintf("server_list[%d].host", i), ep.Host); err != nil {
			return err
		}
	}
	return nil
}

func (c ServerConfig) Validate() error {
	return validateHostPort("host", c.Host)
}

// Load reads and validates the local half's configuration from path.
func Load(path string) (Config, error) {
	var cfg Config
	if err := decodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadServer reads and validates the remote half's configuration from path.
func LoadServer(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := decodeFile(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func decodeFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Config(err, "open config")
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Config(err, "parse "+path)
	}
	return nil
}

func validateHostPort(field, addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errs.Config(err, field)
	}
	if port == "" {
		return errs.Configf("%s: missing port", field)
	}
	if host != "" && net.ParseIP(host) == nil {
		return errs.Configf("%s: %q is not an IP address", field, host)
	}
	return nil
}
