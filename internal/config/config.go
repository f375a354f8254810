package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all rocketdash configuration.
type Config struct {
	Port    string `yaml:"port"`
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"`

	// Launches maps the launch id shown in the UI to a CSV file in DataDir.
	Launches map[string]string `yaml:"launches"`

	Logging    LoggingConfig    `yaml:"logging"`
	Simulator  SimulatorConfig  `yaml:"simulator"`
	Prediction PredictionConfig `yaml:"prediction"`
	Weather    WeatherConfig    `yaml:"weather"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// SimulatorConfig holds the calibration flights of the PSI simulator.
type SimulatorConfig struct {
	Gravity     float64   `yaml:"gravity"`
	RealHeights []float64 `yaml:"real_heights"`
	CalibPSI    float64   `yaml:"calib_psi"`
	MinPSI      float64   `yaml:"min_psi"`
	MaxPSI      float64   `yaml:"max_psi"`
	Uncertainty float64   `yaml:"uncertainty"`
}

// PredictionConfig sizes the random forest.
type PredictionConfig struct {
	Trees int    `yaml:"trees"`
	Seed  uint64 `yaml:"seed"`
}

// WeatherConfig configures the optional external weather comparison.
type WeatherConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	UserAgent string  `yaml:"user_agent"`
	BaseURL   string  `yaml:"base_url"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:    "5000",
		DataDir: "data",
		DBPath:  "rocketdash.db",
		Launches: map[string]string{
			"1": "lanzamiento_1.csv",
			"2": "lanzamiento_2.csv",
			"3": "lanzamiento_3.csv",
			"4": "lanzamiento_4.csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Simulator: SimulatorConfig{
			Gravity:     9.78, // Popayán
			RealHeights: []float64{19, 17, 16, 21, 14},
			CalibPSI:    60,
			MinPSI:      0,
			MaxPSI:      80,
			Uncertainty: 0.05,
		},
		Prediction: PredictionConfig{
			Trees: 500,
			Seed:  42,
		},
		Weather: WeatherConfig{
			Enabled:   false,
			Latitude:  2.4448,
			Longitude: -76.6147,
			UserAgent: "rocketdash/1.0",
			BaseURL:   "https://api.open-meteo.com/v1/forecast",
		},
	}
}

// Load reads the optional .env file and YAML config at path, then applies
// environment overrides. A missing config file yields the defaults.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			// A launches map in the file replaces the default one.
			defaults := cfg.Launches
			cfg.Launches = nil
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
			if len(cfg.Launches) == 0 {
				cfg.Launches = defaults
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.DataDir = getEnvOrDefault("DATA_DIR", c.DataDir)
	c.DBPath = getEnvOrDefault("DB_PATH", c.DBPath)
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)
	c.Weather.UserAgent = getEnvOrDefault("WEATHER_USER_AGENT", c.Weather.UserAgent)

	if v := os.Getenv("WEATHER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Weather.Enabled = b
		}
	}
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if _, ok := c.Launches["1"]; !ok {
		return fmt.Errorf("launch \"1\" must be configured (it is the fallback launch)")
	}
	s := c.Simulator
	if s.Gravity <= 0 {
		return fmt.Errorf("simulator gravity must be positive, got %v", s.Gravity)
	}
	if len(s.RealHeights) == 0 {
		return fmt.Errorf("simulator needs at least one real height")
	}
	if s.CalibPSI <= 0 {
		return fmt.Errorf("simulator calib_psi must be positive, got %v", s.CalibPSI)
	}
	if s.MaxPSI < s.MinPSI {
		return fmt.Errorf("simulator max_psi (%v) below min_psi (%v)", s.MaxPSI, s.MinPSI)
	}
	if c.Prediction.Trees <= 0 {
		return fmt.Errorf("prediction trees must be positive, got %d", c.Prediction.Trees)
	}
	return nil
}

// LaunchIDs returns the configured launch ids in natural order.
func (c *Config) LaunchIDs() []string {
	ids := make([]string, 0, len(c.Launches))
	for id := range c.Launches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true // numeric ids first
		case errB == nil:
			return false
		}
		return strings.Compare(ids[i], ids[j]) < 0
	})
	return ids
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
