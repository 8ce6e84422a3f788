// Package config loads simulation and server settings. A YAML file supplies
// the base values, ROOMBA_* environment variables override them.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/rules"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Simulation holds the model parameters.
type Simulation struct {
	Agents     int           `yaml:"agents" json:"agents"`
	Obstacles  int           `yaml:"obstacles" json:"obstacles"`
	DirtyTiles int           `yaml:"dirty_tiles" json:"dirty_tiles"`
	Width      int           `yaml:"width" json:"width"`
	Height     int           `yaml:"height" json:"height"`
	Seed       int64         `yaml:"seed" json:"seed"`
	MaxSteps   int           `yaml:"max_steps" json:"max_steps"`
	TickRate   time.Duration `yaml:"tick_rate" json:"tick_rate"`
}

// Server holds HTTP and websocket tuning.
type Server struct {
	Addr                 string `yaml:"addr" json:"addr"`
	BroadcastBuffer      int    `yaml:"broadcast_buffer" json:"broadcast_buffer"`
	ClientSendBuffer     int    `yaml:"client_send_buffer" json:"client_send_buffer"`
	MaxMessagesPerSecond int    `yaml:"max_messages_per_second" json:"max_messages_per_second"`
	MaxClients           int    `yaml:"max_clients" json:"max_clients"`
}

// Storage selects the event store. Driver is memory, sqlite or postgres.
type Storage struct {
	Driver       string `yaml:"driver" json:"driver"`
	DSN          string `yaml:"dsn" json:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" json:"max_idle_conns"`
}

// Cache configures the optional Redis snapshot cache.
type Cache struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"-"`
	DB       int           `yaml:"db" json:"db"`
	PoolSize int           `yaml:"pool_size" json:"pool_size"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Config is the complete configuration.
type Config struct {
	Simulation Simulation   `yaml:"simulation" json:"simulation"`
	Policy     rules.Policy `yaml:"policy" json:"policy"`
	Server     Server       `yaml:"server" json:"server"`
	Storage    Storage      `yaml:"storage" json:"storage"`
	Cache      Cache        `yaml:"cache" json:"cache"`
	Log        Log          `yaml:"log" json:"log"`
}

// DefaultConfig returns the standard 28x28 single-agent setup.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		Simulation: Simulation{
			Agents:     1,
			Obstacles:  15,
			DirtyTiles: 20,
			Width:      28,
			Height:     28,
			Seed:       42,
			MaxSteps:   1000,
			TickRate:   200 * time.Millisecond,
		},
		Policy: rules.DefaultPolicy(),
		Server: Server{
			Addr:                 ":8080",
			BroadcastBuffer:      256,
			ClientSendBuffer:     64,
			MaxMessagesPerSecond: 20,
			MaxClients:           200,
		},
		Storage: Storage{
			Driver:       "memory",
			MaxOpenConns: numCPU * 4,
			MaxIdleConns: numCPU * 2,
		},
		Cache: Cache{
			Addr:     "localhost:6379",
			PoolSize: numCPU * 2,
			TTL:      10 * time.Minute,
		},
		Log: Log{Level: "info", Format: "auto"},
	}
}

// StressTestConfig runs many agents on a larger floor with no tick delay.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	cfg := DefaultConfig()
	cfg.Simulation.Agents = 8
	cfg.Simulation.Width = 64
	cfg.Simulation.Height = 64
	cfg.Simulation.Obstacles = 200
	cfg.Simulation.DirtyTiles = 400
	cfg.Simulation.MaxSteps = 5000
	cfg.Simulation.TickRate = 0
	cfg.Server.BroadcastBuffer = 512
	cfg.Server.ClientSendBuffer = 128
	cfg.Server.MaxMessagesPerSecond = 100
	cfg.Server.MaxClients = 500
	cfg.Storage.MaxOpenConns = numCPU * 8
	cfg.Storage.MaxIdleConns = numCPU * 4
	cfg.Cache.PoolSize = numCPU * 4
	cfg.Log.Level = "warn"
	return cfg
}

// LowResourceConfig keeps buffers and pools small for development.
func LowResourceConfig() *Config {
	cfg := DefaultConfig()
	cfg.Simulation.Width = 12
	cfg.Simulation.Height = 12
	cfg.Simulation.Obstacles = 5
	cfg.Simulation.DirtyTiles = 10
	cfg.Server.BroadcastBuffer = 16
	cfg.Server.ClientSendBuffer = 8
	cfg.Server.MaxMessagesPerSecond = 5
	cfg.Server.MaxClients = 20
	cfg.Storage.MaxOpenConns = 5
	cfg.Storage.MaxIdleConns = 2
	cfg.Cache.PoolSize = 5
	return cfg
}

// Profile returns the named preset: default, stress or low.
func Profile(name string) (*Config, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return DefaultConfig(), nil
	case "stress":
		return StressTestConfig(), nil
	case "low", "low-resource":
		return LowResourceConfig(), nil
	}
	return nil, fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, name)
}

// Load reads the YAML file at path on top of DefaultConfig, applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	return LoadFrom(DefaultConfig(), path)
}

// LoadFrom is Load over a chosen profile instead of DefaultConfig.
func LoadFrom(cfg *Config, path string) (*Config, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ROOMBA_* variables resolved by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"ROOMBA_AGENTS", &c.Simulation.Agents},
		{"ROOMBA_OBSTACLES", &c.Simulation.Obstacles},
		{"ROOMBA_DIRTY_TILES", &c.Simulation.DirtyTiles},
		{"ROOMBA_WIDTH", &c.Simulation.Width},
		{"ROOMBA_HEIGHT", &c.Simulation.Height},
		{"ROOMBA_MAX_STEPS", &c.Simulation.MaxSteps},
		{"ROOMBA_LOW_BATTERY", &c.Policy.LowBatteryThreshold},
		{"ROOMBA_CHARGE_RATE", &c.Policy.ChargeRate},
	}
	for _, f := range ints {
		v, ok := lookup(f.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, f.key, v, err)
		}
		*f.dst = n
	}

	if v, ok := lookup("ROOMBA_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: ROOMBA_SEED=%q: %v", ErrInvalidConfig, v, err)
		}
		c.Simulation.Seed = n
	}
	if v, ok := lookup("ROOMBA_TICK_RATE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: ROOMBA_TICK_RATE=%q: %v", ErrInvalidConfig, v, err)
		}
		c.Simulation.TickRate = d
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"ROOMBA_ADDR", &c.Server.Addr},
		{"ROOMBA_STORAGE_DRIVER", &c.Storage.Driver},
		{"ROOMBA_STORAGE_DSN", &c.Storage.DSN},
		{"ROOMBA_REDIS_ADDR", &c.Cache.Addr},
		{"ROOMBA_REDIS_PASSWORD", &c.Cache.Password},
		{"ROOMBA_LOG_LEVEL", &c.Log.Level},
		{"ROOMBA_LOG_FORMAT", &c.Log.Format},
	}
	for _, f := range strs {
		if v, ok := lookup(f.key); ok {
			*f.dst = v
		}
	}

	if v, ok := lookup("ROOMBA_CACHE_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: ROOMBA_CACHE_ENABLED=%q: %v", ErrInvalidConfig, v, err)
		}
		c.Cache.Enabled = b
	}
	return nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	s := c.Simulation
	var problems []string
	if s.Width < 3 || s.Height < 3 {
		problems = append(problems, fmt.Sprintf("grid %dx%d leaves no interior", s.Width, s.Height))
	}
	if s.Agents < 1 {
		problems = append(problems, "agents must be at least 1")
	} else if s.Width >= 3 && s.Agents > s.Width-2 {
		problems = append(problems, fmt.Sprintf("%d agents do not fit in %d columns", s.Agents, s.Width-2))
	}
	if s.Obstacles < 0 || s.DirtyTiles < 0 {
		problems = append(problems, "obstacle and tile counts must not be negative")
	}
	if s.MaxSteps < 1 {
		problems = append(problems, "max_steps must be at least 1")
	}
	if s.TickRate < 0 {
		problems = append(problems, "tick_rate must not be negative")
	}
	if err := c.Policy.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			problems = append(problems, c.Storage.Driver+" storage needs a dsn")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		problems = append(problems, "cache enabled without an address")
	}
	if c.Server.ClientSendBuffer < 1 || c.Server.BroadcastBuffer < 1 {
		problems = append(problems, "server buffers must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
