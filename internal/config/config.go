// Package config handles loading and parsing of Handoff configuration, and
// holds the live RuntimeConfig snapshot the Runtime Config Observer (RCO)
// swaps on change.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/objectgate/handoff/internal/acc"
)

// GRPCMode selects the primary transport. Boot-only: carried on
// RuntimeConfig for convenience but never mutated at runtime.
type GRPCMode int

const (
	TransportGRPC GRPCMode = iota
	TransportHTTP
)

func (m GRPCMode) String() string {
	if m == TransportHTTP {
		return "http"
	}
	return "grpc"
}

// Config is the top-level boot configuration for Handoff.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Index         IndexConfig         `yaml:"index"`
	Transport     TransportConfig     `yaml:"transport"`
	Runtime       RuntimeToggles      `yaml:"runtime"`
}

// ServerConfig holds the demo HTTP harness's listen settings.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig holds settings for metrics and health endpoints.
type ObservabilityConfig struct {
	Metrics     bool `yaml:"metrics"`
	HealthCheck bool `yaml:"health_check"`
}

// IndexConfig selects the BucketIndex backend StoreQuery queries.
type IndexConfig struct {
	// Engine is "memory" or "sqlite".
	Engine string       `yaml:"engine"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// TransportConfig holds the boot-time wiring for the Authenticator
// connection: which transport is primary, and settings for both.
type TransportConfig struct {
	// Mode is "grpc" or "http"; boot-only (RuntimeConfig.GRPCMode).
	Mode string       `yaml:"mode"`
	GRPC GRPCSettings `yaml:"grpc"`
	HTTP HTTPSettings `yaml:"http"`
}

// GRPCSettings holds the gRPC channel URI and reconnect backoff tuning.
type GRPCSettings struct {
	URI                     string `yaml:"uri"`
	InitialReconnectBackoff int    `yaml:"initial_reconnect_backoff_ms"`
	MinReconnectBackoff     int    `yaml:"min_reconnect_backoff_ms"`
	MaxReconnectBackoff     int    `yaml:"max_reconnect_backoff_ms"`
}

// HTTPSettings mirrors handoff_uri / handoff_verify_ssl.
type HTTPSettings struct {
	URI       string `yaml:"uri"`
	VerifySSL bool   `yaml:"verify_ssl"`
}

// RuntimeToggles seeds the mutable RuntimeConfig fields at boot; the RCO
// takes over from here.
type RuntimeToggles struct {
	PresignedExpiryCheck bool `yaml:"enable_presigned_expiry_check"`
	SignatureV2Enabled   bool `yaml:"enable_signature_v2"`
	ChunkedUploadEnabled bool `yaml:"enable_chunked_upload"`
	AuthParamAlways      bool `yaml:"authparam_always"`
	AuthParamWithToken   bool `yaml:"authparam_withtoken"`
}

// ReduceCaptureMode reduces the toggle pair by precedence: Always
// dominates, then
// WithToken, else Never.
func (t RuntimeToggles) ReduceCaptureMode() acc.CaptureMode {
	switch {
	case t.AuthParamAlways:
		return acc.Always
	case t.AuthParamWithToken:
		return acc.WithToken
	default:
		return acc.Never
	}
}

// Load reads a YAML configuration file from path and returns a parsed
// Config with defaults applied for anything left unset.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		fallback := filepath.Join(filepath.Dir(path), "handoff.example.yaml")
		var fallbackErr error
		data, fallbackErr = os.ReadFile(fallback)
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Default returns a Config populated with the same defaults Load falls
// back to for unset fields. Useful for tests.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8443,
			ShutdownTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics:     true,
			HealthCheck: true,
		},
		Index: IndexConfig{
			Engine: "memory",
			SQLite: SQLiteConfig{Path: "./data/index.db"},
		},
		Transport: TransportConfig{
			Mode: "grpc",
			GRPC: GRPCSettings{
				URI:                     "dns:///authenticator:4312",
				InitialReconnectBackoff: 1000,
				MinReconnectBackoff:     1000,
				MaxReconnectBackoff:     30000,
			},
			HTTP: HTTPSettings{
				URI:       "https://authenticator:4312",
				VerifySSL: true,
			},
		},
		Runtime: RuntimeToggles{
			PresignedExpiryCheck: true,
			SignatureV2Enabled:   true,
			ChunkedUploadEnabled: true,
			AuthParamAlways:      false,
			AuthParamWithToken:   true,
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8443
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Index.Engine == "" {
		cfg.Index.Engine = "memory"
	}
	if cfg.Index.SQLite.Path == "" {
		cfg.Index.SQLite.Path = "./data/index.db"
	}
	if cfg.Transport.Mode == "" {
		cfg.Transport.Mode = "grpc"
	}
	if cfg.Transport.GRPC.InitialReconnectBackoff == 0 {
		cfg.Transport.GRPC.InitialReconnectBackoff = 1000
	}
	if cfg.Transport.GRPC.MinReconnectBackoff == 0 {
		cfg.Transport.GRPC.MinReconnectBackoff = 1000
	}
	if cfg.Transport.GRPC.MaxReconnectBackoff == 0 {
		cfg.Transport.GRPC.MaxReconnectBackoff = 30000
	}
}

// GRPCMode translates the boot config's transport.mode string.
func (c *Config) GRPCMode() GRPCMode {
	if c.Transport.Mode == "http" {
		return TransportHTTP
	}
	return TransportGRPC
}
