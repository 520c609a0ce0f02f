package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServiceURL      = "http://127.0.0.1:8000"
	DefaultParseTimeout    = 30 * time.Second
	DefaultSimulateTimeout = 2 * time.Minute
	DefaultFitTimeout      = 30 * time.Minute
	DefaultTStart          = 0.0
	DefaultTEnd            = 48.0
	DefaultTSteps          = 200
	DefaultWeighting       = "none"
	DefaultAutoBoundFactor = 10.0
	DefaultLogLevel        = "info"
	DefaultParseCacheTTL   = time.Hour
	DefaultTheme           = "clinical"
)

type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Simulation SimulationConfig `yaml:"simulation"`
	Fit        FitConfig        `yaml:"fit"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	UI         UIConfig         `yaml:"ui"`
}

type ServiceConfig struct {
	URL             string        `yaml:"url"`
	ParseTimeout    time.Duration `yaml:"parse_timeout"`
	SimulateTimeout time.Duration `yaml:"simulate_timeout"`
	FitTimeout      time.Duration `yaml:"fit_timeout"`
	ParseCacheTTL   time.Duration `yaml:"parse_cache_ttl"`
}

type SimulationConfig struct {
	TStart   float64 `yaml:"t_start"`
	TEnd     float64 `yaml:"t_end"`
	TSteps   int     `yaml:"t_steps"`
	LogScale bool    `yaml:"log_scale"`
}

type FitConfig struct {
	Weighting       string  `yaml:"weighting"`
	AutoBoundFactor float64 `yaml:"auto_bound_factor"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

type UIConfig struct {
	Theme string `yaml:"theme"`
}

// env is the subset of the configuration that can be overridden with PKSIM_* variables.
type env struct {
	ServiceURL      string        `envconfig:"SERVICE_URL"`
	ParseTimeout    time.Duration `envconfig:"PARSE_TIMEOUT"`
	SimulateTimeout time.Duration `envconfig:"SIMULATE_TIMEOUT"`
	FitTimeout      time.Duration `envconfig:"FIT_TIMEOUT"`
	LogLevel        string        `envconfig:"LOG_LEVEL"`
	OTelEnabled     *bool         `envconfig:"OTEL_ENABLED"`
	OTelEndpoint    string        `envconfig:"OTEL_ENDPOINT"`
	OTelInsecure    *bool         `envconfig:"OTEL_INSECURE"`
	Theme           string        `envconfig:"THEME"`
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PKSIM"

func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			URL:             DefaultServiceURL,
			ParseTimeout:    DefaultParseTimeout,
			SimulateTimeout: DefaultSimulateTimeout,
			FitTimeout:      DefaultFitTimeout,
			ParseCacheTTL:   DefaultParseCacheTTL,
		},
		Simulation: SimulationConfig{
			TStart: DefaultTStart,
			TEnd:   DefaultTEnd,
			TSteps: DefaultTSteps,
		},
		Fit: FitConfig{
			Weighting:       DefaultWeighting,
			AutoBoundFactor: DefaultAutoBoundFactor,
		},
		Log: LogConfig{Level: DefaultLogLevel},
		UI:  UIConfig{Theme: DefaultTheme},
	}
}

// Load reads path over the defaults. An empty path skips the file. Environment
// overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from PKSIM_* environment variables.
func (c *Config) ApplyEnv() error {
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	if e.ServiceURL != "" {
		c.Service.URL = e.ServiceURL
	}
	if e.ParseTimeout > 0 {
		c.Service.ParseTimeout = e.ParseTimeout
	}
	if e.SimulateTimeout > 0 {
		c.Service.SimulateTimeout = e.SimulateTimeout
	}
	if e.FitTimeout > 0 {
		c.Service.FitTimeout = e.FitTimeout
	}
	if e.LogLevel != "" {
		c.Log.Level = e.LogLevel
	}
	if e.OTelEnabled != nil {
		c.Telemetry.Enabled = *e.OTelEnabled
	}
	if e.OTelEndpoint != "" {
		c.Telemetry.Endpoint = e.OTelEndpoint
	}
	if e.OTelInsecure != nil {
		c.Telemetry.Insecure = *e.OTelInsecure
	}
	if e.Theme != "" {
		c.UI.Theme = e.Theme
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Service.URL) == "" {
		return fmt.Errorf("config: service.url is empty")
	}
	if c.Simulation.TEnd <= c.Simulation.TStart {
		return fmt.Errorf("config: simulation.t_end must be greater than t_start")
	}
	if c.Simulation.TSteps < 2 {
		return fmt.Errorf("config: simulation.t_steps must be at least 2")
	}
	if c.Fit.AutoBoundFactor <= 0 {
		return fmt.Errorf("config: fit.auto_bound_factor must be positive")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel maps log.level to a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}
