// Package config assembles server settings from the environment and
// command-line flags.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// Transports selectable with MOCKMCP_TRANSPORT or -transport.
const (
	TransportStdio    = "stdio"
	TransportEnvelope = "envelope"
	TransportSDK      = "sdk"
	TransportHTTP     = "http"
)

// Config holds the server settings.
type Config struct {
	Name      string
	Version   string
	Transport string
	Addr      string
	LogLevel  string
	LogFormat string
	RateLimit bool
}

// FromEnv reads the configuration through getenv, usually os.Getenv.
// Unset variables take their defaults.
func FromEnv(getenv func(string) string, defaults Config) Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	getBool := func(key string, def bool) bool {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}

	return Config{
		Name:      get("MOCKMCP_NAME", defaults.Name),
		Version:   get("MOCKMCP_VERSION", defaults.Version),
		Transport: get("MOCKMCP_TRANSPORT", orDefault(defaults.Transport, TransportStdio)),
		Addr:      get("MOCKMCP_ADDR", orDefault(defaults.Addr, ":8080")),
		LogLevel:  get("LOG_LEVEL", defaults.LogLevel),
		LogFormat: get("MOCKMCP_LOG_FORMAT", defaults.LogFormat),
		RateLimit: getBool("MOCKMCP_RATE_LIMIT", defaults.RateLimit),
	}
}

// RegisterFlags binds flags on fs that override the fields of c.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Name, "name", c.Name, "server name advertised on initialize")
	fs.StringVar(&c.Version, "version", c.Version, "server version advertised on initialize")
	fs.StringVar(&c.Transport, "transport", c.Transport, "transport: stdio, envelope, sdk or http")
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address for the http transport")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: json or console")
	fs.BoolVar(&c.RateLimit, "rate-limit", c.RateLimit, "throttle protocol methods and tool calls")
}

// Validate reports settings the server cannot run with.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportEnvelope, TransportSDK:
	case TransportHTTP:
		if c.Addr == "" {
			return fmt.Errorf("http transport requires an address")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Name == "" {
		return fmt.Errorf("server name required")
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
