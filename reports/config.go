package reports

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SimulatorConfig drives the background worker that stands in for the scraper.
type SimulatorConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	FilesPerTick int           `yaml:"files_per_tick"`
	// ErrorEvery adds one error every N ticks. Zero never adds errors.
	ErrorEvery int `yaml:"error_every"`
}

type FileConfig struct {
	Addr  string `yaml:"addr"`
	DB    string `yaml:"db"`
	Debug bool   `yaml:"debug"`

	// ArchiveCacheURL is a gocloud blob URL. Empty disables the cache.
	ArchiveCacheURL string `yaml:"archive_cache_url"`

	// AssumedTotalFiles is the denominator of the progress estimate.
	AssumedTotalFiles int `yaml:"assumed_total_files"`

	ServerURL    string        `yaml:"server_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	UserID       string        `yaml:"user_id"`

	Simulator SimulatorConfig `yaml:"simulator"`
}

func DefaultConfig() FileConfig {
	return FileConfig{
		Addr:              ":8080",
		DB:                "refinery.db",
		AssumedTotalFiles: AssumedTotalFiles,
		ServerURL:         "http://localhost:8080",
		PollInterval:      time.Second,
		UserID:            "anonymous",
		Simulator: SimulatorConfig{
			Enabled:      true,
			Interval:     time.Second,
			FilesPerTick: 12,
		},
	}
}

// LoadConfig reads path on top of DefaultConfig. Keys missing from the file
// keep their defaults.
func LoadConfig(path string) (*FileConfig, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

const envPrefix = "REFINERY_"

// ApplyEnv overrides fields from REFINERY_* variables. Values that fail to
// parse are reported rather than ignored.
func (c *FileConfig) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(k string) (string, bool) {
		v := strings.TrimSpace(getenv(envPrefix + k))
		return v, v != ""
	}

	if v, ok := get("ADDR"); ok {
		c.Addr = v
	}
	if v, ok := get("DB"); ok {
		c.DB = v
	}
	if v, ok := get("ARCHIVE_CACHE_URL"); ok {
		c.ArchiveCacheURL = v
	}
	if v, ok := get("SERVER_URL"); ok {
		c.ServerURL = v
	}
	if v, ok := get("USER_ID"); ok {
		c.UserID = v
	}
	if v, ok := get("DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEBUG: %w", envPrefix, err)
		}
		c.Debug = b
	}
	if v, ok := get("SIMULATOR_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSIMULATOR_ENABLED: %w", envPrefix, err)
		}
		c.Simulator.Enabled = b
	}
	if v, ok := get("ASSUMED_TOTAL_FILES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sASSUMED_TOTAL_FILES: %w", envPrefix, err)
		}
		c.AssumedTotalFiles = n
	}
	if v, ok := get("POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sPOLL_INTERVAL: %w", envPrefix, err)
		}
		c.PollInterval = d
	}
	return nil
}

func (c *FileConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr is required")
	}
	if strings.TrimSpace(c.DB) == "" {
		return fmt.Errorf("db is required")
	}
	if c.AssumedTotalFiles <= 0 {
		return fmt.Errorf("assumed_total_files must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Simulator.Enabled {
		if c.Simulator.Interval <= 0 {
			return fmt.Errorf("simulator.interval must be positive")
		}
		if c.Simulator.FilesPerTick <= 0 {
			return fmt.Errorf("simulator.files_per_tick must be positive")
		}
		if c.Simulator.ErrorEvery < 0 {
			return fmt.Errorf("simulator.error_every must not be negative")
		}
	}
	return nil
}
