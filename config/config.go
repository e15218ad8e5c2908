// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Rates     RatesConfig     `yaml:"rates"`
	Energy    EnergyConfig    `yaml:"energy"`
	Genome    GenomeConfig    `yaml:"genome"`
	Market    MarketConfig    `yaml:"market"`
	Driver    DriverConfig    `yaml:"driver"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Observer  ObserverConfig  `yaml:"observer"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds grid construction parameters. The grid is immutable after construction.
type WorldConfig struct {
	Width             int     `yaml:"width"`
	Height            int     `yaml:"height"`
	Openness          int     `yaml:"openness"`           // Maze merge threshold (4 = no walls)
	CornucopiaDensity float64 `yaml:"cornucopia_density"` // Fraction of open cells that become food sources
	ReserveMultiplier uint64  `yaml:"reserve_multiplier"` // Money supply per cell
}

// RatesConfig holds the live-tunable rates. The driver can replace them between ticks.
type RatesConfig struct {
	SpawnChance       float64 `yaml:"spawn_chance"`
	MutationChance    float64 `yaml:"mutation_chance"`
	GeneralFoodChance float64 `yaml:"general_food_chance"`
	CornucopiaBounty  uint32  `yaml:"cornucopia_bounty"`
	CornucopiaChance  float64 `yaml:"cornucopia_chance"`
}

// EnergyConfig holds food economics.
type EnergyConfig struct {
	MovePenalty uint32 `yaml:"move_penalty"` // Extra food burned by moving or dividing
	SpawnFood   uint32 `yaml:"spawn_food"`   // Food endowment of a spontaneously spawned brain
}

// GenomeConfig holds random genome sampling and trade decoding limits.
type GenomeConfig struct {
	InitialLengthScale  float64 `yaml:"initial_length_scale"`  // Mean codon count of a random genome
	InitialEntriesScale float64 `yaml:"initial_entries_scale"` // Mean entry count of a random genome
	MaxTradeQuantity    int     `yaml:"max_trade_quantity"`
	MaxTradeRate        int     `yaml:"max_trade_rate"`
}

// MarketConfig holds double-auction parameters.
type MarketConfig struct {
	ReserveFallback bool `yaml:"reserve_fallback"` // Trade against the reserve at 1:1 when the book does not cross
	MaxResting      int  `yaml:"max_resting"`      // Per-side book capacity; the worst order is evicted beyond it
}

// DriverConfig holds simulation driver parameters.
type DriverConfig struct {
	Inbound           int `yaml:"inbound"`            // Command queue capacity
	Outbound          int `yaml:"outbound"`           // Output queue capacity
	ParallelThreshold int `yaml:"parallel_threshold"` // Minimum cells before the worker pool is used
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         int `yaml:"stats_window"` // Ticks per stats window
	PerfCollectorWindow int `yaml:"perf_collector_window"`
	HistoryBuffer       int `yaml:"history_buffer"` // Pending market samples before the history writer drops
}

// ObserverConfig holds the websocket bridge parameters.
type ObserverConfig struct {
	Addr          string  `yaml:"addr"`
	TickRateHz    float64 `yaml:"tick_rate_hz"`    // Tick requests per second issued by serve
	TicksPerFrame int     `yaml:"ticks_per_frame"` // Tick count per request
	ClientBuffer  int     `yaml:"client_buffer"`   // Frames queued per client before dropping

	AllowedOrigins []string `yaml:"allowed_origins"` // Cross-origin websocket clients; "*" allows any
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Cells        int    // World.Width * World.Height
	MoneySupply  uint64 // Cells * World.ReserveMultiplier
	TickInterval float64
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Defaults returns a fresh copy of the embedded defaults.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

// Validate reports every out-of-range value.
func (c *Config) Validate() error {
	var errs []error
	if c.World.Width <= 0 || c.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("world: size %dx%d must be positive", c.World.Width, c.World.Height))
	}
	if c.World.Openness < 0 {
		errs = append(errs, fmt.Errorf("world.openness: %d is negative", c.World.Openness))
	}
	if err := probability("world.cornucopia_density", c.World.CornucopiaDensity); err != nil {
		errs = append(errs, err)
	}
	if err := c.Rates.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Genome.InitialLengthScale < 0 || c.Genome.InitialEntriesScale < 0 {
		errs = append(errs, errors.New("genome: scales must not be negative"))
	}
	if c.Genome.MaxTradeQuantity <= 0 || c.Genome.MaxTradeRate <= 0 {
		errs = append(errs, errors.New("genome: trade limits must be positive"))
	}
	if c.Market.MaxResting <= 0 {
		errs = append(errs, fmt.Errorf("market.max_resting: %d must be positive", c.Market.MaxResting))
	}
	if c.Driver.Inbound <= 0 || c.Driver.Outbound <= 0 {
		errs = append(errs, errors.New("driver: queue capacities must be positive"))
	}
	if c.Telemetry.StatsWindow <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.stats_window: %d must be positive", c.Telemetry.StatsWindow))
	}
	return errors.Join(errs...)
}

// Validate checks that every probability lies in [0, 1].
func (r RatesConfig) Validate() error {
	return errors.Join(
		probability("rates.spawn_chance", r.SpawnChance),
		probability("rates.mutation_chance", r.MutationChance),
		probability("rates.general_food_chance", r.GeneralFoodChance),
		probability("rates.cornucopia_chance", r.CornucopiaChance),
	)
}

func probability(name string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%s: %v outside [0, 1]", name, p)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Cells = c.World.Width * c.World.Height
	c.Derived.MoneySupply = uint64(c.Derived.Cells) * c.World.ReserveMultiplier
	if c.Observer.TickRateHz > 0 {
		c.Derived.TickInterval = 1 / c.Observer.TickRateHz
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
