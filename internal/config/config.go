package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines configuration for the era5dl CLI.
type Config struct {
	OutputDir   string      `yaml:"output_dir"`
	LogFile     string      `yaml:"log_file"`
	Dataset     string      `yaml:"dataset"`
	ProductType string      `yaml:"product_type"`
	Variables   []string    `yaml:"variables"`
	StartYear   int         `yaml:"start_year"`
	EndYear     int         `yaml:"end_year"`
	Months      []string    `yaml:"months"`
	Days        []string    `yaml:"days"`
	Hours       []string    `yaml:"hours"`
	Format      string      `yaml:"format"`
	Workers     int         `yaml:"workers"`
	Mirror      string      `yaml:"mirror"`
	Progress    bool        `yaml:"progress"`
	Retry       RetryConfig `yaml:"retry"`
	CDS         CDSConfig   `yaml:"cds"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	Factor   float64       `yaml:"factor"`
}

// CDSConfig defines the connection to the CDS API.
type CDSConfig struct {
	URL          string        `yaml:"url"`
	Key          string        `yaml:"key"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns a Config with sensible defaults: full calendar
// coverage of years 1993-2023 with 4 workers.
func Default() Config {
	return Config{
		LogFile:     "era5_download.log",
		Dataset:     "reanalysis-era5-single-levels",
		ProductType: "reanalysis",
		Variables:   []string{"2m_temperature"},
		StartYear:   1993,
		EndYear:     2023,
		Months:      allMonths(),
		Days:        allDays(),
		Hours:       allHours(),
		Format:      "netcdf",
		Workers:     4,
		Retry: RetryConfig{
			Attempts: 5,
			Delay:    60 * time.Second,
			Factor:   2,
		},
		CDS: CDSConfig{
			PollInterval: 5 * time.Second,
		},
	}
}

// allMonths returns "01".."12".
func allMonths() []string {
	out := make([]string, 12)
	for i := range out {
		out[i] = fmt.Sprintf("%02d", i+1)
	}
	return out
}

// allDays returns "01".."31".
func allDays() []string {
	out := make([]string, 31)
	for i := range out {
		out[i] = fmt.Sprintf("%02d", i+1)
	}
	return out
}

// allHours returns "00:00".."23:00".
func allHours() []string {
	out := make([]string, 24)
	for i := range out {
		out[i] = fmt.Sprintf("%02d:00", i)
	}
	return out
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	OutputDir   string          `yaml:"output_dir"`
	LogFile     string          `yaml:"log_file"`
	Dataset     string          `yaml:"dataset"`
	ProductType string          `yaml:"product_type"`
	Variables   []string        `yaml:"variables"`
	StartYear   int             `yaml:"start_year"`
	EndYear     int             `yaml:"end_year"`
	Months      []string        `yaml:"months"`
	Days        []string        `yaml:"days"`
	Hours       []string        `yaml:"hours"`
	Format      string          `yaml:"format"`
	Workers     int             `yaml:"workers"`
	Mirror      string          `yaml:"mirror"`
	Progress    bool            `yaml:"progress"`
	Retry       yamlRetryConfig `yaml:"retry"`
	CDS         yamlCDSConfig   `yaml:"cds"`
}

type yamlRetryConfig struct {
	Attempts int     `yaml:"attempts"`
	Delay    string  `yaml:"delay"`
	Factor   float64 `yaml:"factor"`
}

type yamlCDSConfig struct {
	URL          string `yaml:"url"`
	Key          string `yaml:"key"`
	PollInterval string `yaml:"poll_interval"`
}

// LoadFromFile loads configuration from a YAML file on top of defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.OutputDir != "" {
		cfg.OutputDir = yc.OutputDir
	}
	if yc.LogFile != "" {
		cfg.LogFile = yc.LogFile
	}
	if yc.Dataset != "" {
		cfg.Dataset = yc.Dataset
	}
	if yc.ProductType != "" {
		cfg.ProductType = yc.ProductType
	}
	if len(yc.Variables) > 0 {
		cfg.Variables = yc.Variables
	}
	if yc.StartYear != 0 {
		cfg.StartYear = yc.StartYear
	}
	if yc.EndYear != 0 {
		cfg.EndYear = yc.EndYear
	}
	if len(yc.Months) > 0 {
		cfg.Months = yc.Months
	}
	if len(yc.Days) > 0 {
		cfg.Days = yc.Days
	}
	if len(yc.Hours) > 0 {
		cfg.Hours = yc.Hours
	}
	if yc.Format != "" {
		cfg.Format = yc.Format
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.Mirror != "" {
		cfg.Mirror = yc.Mirror
	}
	cfg.Progress = yc.Progress
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Delay != "" {
		d, err := time.ParseDuration(yc.Retry.Delay)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.delay: %w", err)
		}
		cfg.Retry.Delay = d
	}
	if yc.Retry.Factor != 0 {
		cfg.Retry.Factor = yc.Retry.Factor
	}
	if yc.CDS.URL != "" {
		cfg.CDS.URL = yc.CDS.URL
	}
	if yc.CDS.Key != "" {
		cfg.CDS.Key = yc.CDS.Key
	}
	if yc.CDS.PollInterval != "" {
		d, err := time.ParseDuration(yc.CDS.PollInterval)
		if err != nil {
			return Config{}, fmt.Errorf("parse cds.poll_interval: %w", err)
		}
		cfg.CDS.PollInterval = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ERA5DL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("ERA5DL_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("ERA5DL_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("ERA5DL_DATASET"); v != "" {
		c.Dataset = v
	}
	if v := os.Getenv("ERA5DL_PRODUCT_TYPE"); v != "" {
		c.ProductType = v
	}
	if v := os.Getenv("ERA5DL_VARIABLES"); v != "" {
		c.Variables = SplitList(v)
	}
	if v := os.Getenv("ERA5DL_START_YEAR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ERA5DL_START_YEAR: %w", err)
		}
		c.StartYear = n
	}
	if v := os.Getenv("ERA5DL_END_YEAR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ERA5DL_END_YEAR: %w", err)
		}
		c.EndYear = n
	}
	if v := os.Getenv("ERA5DL_MONTHS"); v != "" {
		c.Months = SplitList(v)
	}
	if v := os.Getenv("ERA5DL_DAYS"); v != "" {
		c.Days = SplitList(v)
	}
	if v := os.Getenv("ERA5DL_HOURS"); v != "" {
		c.Hours = SplitList(v)
	}
	if v := os.Getenv("ERA5DL_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("ERA5DL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ERA5DL_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("ERA5DL_MIRROR"); v != "" {
		c.Mirror = v
	}
	if v := os.Getenv("ERA5DL_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("ERA5DL_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ERA5DL_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("ERA5DL_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ERA5DL_RETRY_DELAY: %w", err)
		}
		c.Retry.Delay = d
	}
	if v := os.Getenv("ERA5DL_RETRY_FACTOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse ERA5DL_RETRY_FACTOR: %w", err)
		}
		c.Retry.Factor = f
	}

	return nil
}

// LoadCredentials resolves CDS API credentials the way the Python cdsapi
// client does: from ~/.cdsapirc, overridden by the CDSAPI_URL and
// CDSAPI_KEY environment variables. Values already present in the config
// (from file or flags) take precedence.
func (c *Config) LoadCredentials() error {
	var url, key string

	if home, err := os.UserHomeDir(); err == nil {
		data, err := os.ReadFile(filepath.Join(home, ".cdsapirc"))
		if err == nil {
			var rc struct {
				URL string `yaml:"url"`
				Key string `yaml:"key"`
			}
			if err := yaml.Unmarshal(data, &rc); err != nil {
				return fmt.Errorf("parse .cdsapirc: %w", err)
			}
			url, key = rc.URL, rc.Key
		}
	}

	if v := os.Getenv("CDSAPI_URL"); v != "" {
		url = v
	}
	if v := os.Getenv("CDSAPI_KEY"); v != "" {
		key = v
	}

	if c.CDS.URL == "" {
		c.CDS.URL = url
	}
	if c.CDS.Key == "" {
		c.CDS.Key = key
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("config: output_dir is required")
	}
	if c.Dataset == "" {
		return errors.New("config: dataset is required")
	}
	if len(c.Variables) == 0 {
		return errors.New("config: at least one variable is required")
	}
	if c.StartYear > c.EndYear {
		return fmt.Errorf("config: start_year %d is after end_year %d", c.StartYear, c.EndYear)
	}
	if c.StartYear < 1900 {
		return fmt.Errorf("config: start_year %d is out of range", c.StartYear)
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.Format != "netcdf" && c.Format != "grib" {
		return fmt.Errorf("config: unknown format %q", c.Format)
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("config: retry.attempts must be positive")
	}
	if c.Retry.Factor < 1 {
		return errors.New("config: retry.factor must be at least 1")
	}
	return nil
}

// Years returns the inclusive range of requested years.
func (c Config) Years() []int {
	years := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.OutputDir != "" {
		c.OutputDir = override.OutputDir
	}
	if override.LogFile != "" {
		c.LogFile = override.LogFile
	}
	if override.Dataset != "" {
		c.Dataset = override.Dataset
	}
	if override.ProductType != "" {
		c.ProductType = override.ProductType
	}
	if len(override.Variables) > 0 {
		c.Variables = override.Variables
	}
	if override.StartYear != 0 {
		c.StartYear = override.StartYear
	}
	if override.EndYear != 0 {
		c.EndYear = override.EndYear
	}
	if len(override.Months) > 0 {
		c.Months = override.Months
	}
	if len(override.Days) > 0 {
		c.Days = override.Days
	}
	if len(override.Hours) > 0 {
		c.Hours = override.Hours
	}
	if override.Format != "" {
		c.Format = override.Format
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Mirror != "" {
		c.Mirror = override.Mirror
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Delay != 0 {
		c.Retry.Delay = override.Retry.Delay
	}
	if override.Retry.Factor != 0 {
		c.Retry.Factor = override.Retry.Factor
	}
	if override.CDS.URL != "" {
		c.CDS.URL = override.CDS.URL
	}
	if override.CDS.Key != "" {
		c.CDS.Key = override.CDS.Key
	}
	if override.CDS.PollInterval != 0 {
		c.CDS.PollInterval = override.CDS.PollInterval
	}
	return c
}

// SplitList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
