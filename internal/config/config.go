// Package config provides Viper-based configuration loading for the session server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP/WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP/WebSocket listener.
	Port int `mapstructure:"port"`
	// ReadBufferSize is the per-connection websocket read buffer in bytes.
	ReadBufferSize int `mapstructure:"read_buffer_size"`
	// WriteBufferSize is the per-connection websocket write buffer in bytes.
	WriteBufferSize int `mapstructure:"write_buffer_size"`
	// WriteTimeout is the deadline applied to each websocket write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PongTimeout is the duration without a pong after which a connection is
	// considered dead and closed.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// SendBuffer is the capacity of each connection's outbound event queue.
	SendBuffer int `mapstructure:"send_buffer"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RoomsConfig holds room lifecycle and play-field settings.
type RoomsConfig struct {
	// MaxPlayers is the membership cap applied to every room at creation.
	MaxPlayers int `mapstructure:"max_players"`
	// GameMode is the mode stamped into each room's settings at creation.
	GameMode string `mapstructure:"game_mode"`
	// IdleTimeout is how long a room may sit empty before it is reaped.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// ReapInterval is the period of the idle-room sweep. Zero means
	// "same as idle_timeout", which checks once per threshold window.
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	// SpawnMinX and SpawnMaxX bound the randomized spawn X coordinate.
	SpawnMinX float64 `mapstructure:"spawn_min_x"`
	SpawnMaxX float64 `mapstructure:"spawn_max_x"`
	// SpawnMinY and SpawnMaxY bound the randomized spawn Y coordinate.
	SpawnMinY float64 `mapstructure:"spawn_min_y"`
	SpawnMaxY float64 `mapstructure:"spawn_max_y"`
}

// SweepInterval returns the effective reaper period.
//
// Postcondition: Returns ReapInterval if set, otherwise IdleTimeout.
func (r RoomsConfig) SweepInterval() time.Duration {
	if r.ReapInterval > 0 {
		return r.ReapInterval
	}
	return r.IdleTimeout
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Rooms   RoomsConfig   `mapstructure:"rooms"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRooms(c.Rooms); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadBufferSize < 0 {
		errs = append(errs, "server.read_buffer_size must not be negative")
	}
	if s.WriteBufferSize < 0 {
		errs = append(errs, "server.write_buffer_size must not be negative")
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if s.PongTimeout <= 0 {
		errs = append(errs, "server.pong_timeout must be positive")
	}
	if s.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("server.send_buffer must be >= 1, got %d", s.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRooms(r RoomsConfig) error {
	var errs []string
	if r.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("rooms.max_players must be >= 1, got %d", r.MaxPlayers))
	}
	if r.GameMode == "" {
		errs = append(errs, "rooms.game_mode must not be empty")
	}
	if r.IdleTimeout <= 0 {
		errs = append(errs, "rooms.idle_timeout must be positive")
	}
	if r.ReapInterval < 0 {
		errs = append(errs, "rooms.reap_interval must not be negative")
	}
	if r.SpawnMaxX < r.SpawnMinX {
		errs = append(errs, "rooms.spawn_max_x must not be less than rooms.spawn_min_x")
	}
	if r.SpawnMaxY < r.SpawnMinY {
		errs = append(errs, "rooms.spawn_max_y must not be less than rooms.spawn_min_y")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with PLAYFIELD_ prefix
	v.SetEnvPrefix("PLAYFIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
// Useful for tests and for running the server with no config file on disk.
//
// Postcondition: Returns a Config that passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Unmarshalling pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_buffer_size", 1024)
	v.SetDefault("server.write_buffer_size", 1024)
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.pong_timeout", "60s")
	v.SetDefault("server.send_buffer", 256)

	v.SetDefault("rooms.max_players", 10)
	v.SetDefault("rooms.game_mode", "standard")
	v.SetDefault("rooms.idle_timeout", "1h")
	v.SetDefault("rooms.reap_interval", "0s")
	v.SetDefault("rooms.spawn_min_x", 50)
	v.SetDefault("rooms.spawn_max_x", 750)
	v.SetDefault("rooms.spawn_min_y", 50)
	v.SetDefault("rooms.spawn_max_y", 550)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
