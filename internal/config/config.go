package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the application needs at startup. It is built
// once in main and passed into constructors; nothing reads it ambiently.
type Config struct {
	Google    GoogleConfig    `yaml:"google"`
	Database  DatabaseConfig  `yaml:"database"`
	Limits    LimitsConfig    `yaml:"limits"`
	Scheduler SchedulerConfig `yaml:"scheduler,omitempty"`
	Keywords  []string        `yaml:"keywords,omitempty"`
}

// GoogleConfig carries the Custom Search credentials.
type GoogleConfig struct {
	APIKey          string `yaml:"api_key,omitempty"`
	SearchContextID string `yaml:"search_context_id,omitempty"`
	BaseURL         string `yaml:"base_url,omitempty"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LimitsConfig struct {
	DailyRequestLimit      int `yaml:"daily_request_limit"`
	DefaultResultsPerQuery int `yaml:"default_results_per_query"`
}

type SchedulerConfig struct {
	IntervalHours     int `yaml:"interval_hours,omitempty"`
	ResultsPerKeyword int `yaml:"results_per_keyword,omitempty"`
	MaxDays           int `yaml:"max_days,omitempty"`
}

// DefaultKeywords is the keyword set used when the config names none.
var DefaultKeywords = []string{
	"Data Analysis",
	"Data Analytics",
	"Data Analyst",
	"Data Mining",
	"Data Modeling",
	"Data Visualization",
	"Business Intelligence",
	"Machine Learning",
	"Deep Learning",
}

func DefaultConfig() *Config {
	return &Config{
		Google: GoogleConfig{
			BaseURL: "https://www.googleapis.com/customsearch/v1",
		},
		Database: DatabaseConfig{
			Path: "searchledger.db",
		},
		Limits: LimitsConfig{
			DailyRequestLimit:      50,
			DefaultResultsPerQuery: 10,
		},
		Scheduler: SchedulerConfig{
			IntervalHours:     25,
			ResultsPerKeyword: 10,
		},
		Keywords: append([]string(nil), DefaultKeywords...),
	}
}

// Load reads the YAML config at path (missing file falls back to defaults),
// then applies .env and environment overrides on top.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load(envFile)
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Google.APIKey = v
	}
	if v := os.Getenv("GOOGLE_SEARCH_ENGINE_ID"); v != "" {
		c.Google.SearchContextID = v
	}
	if v := os.Getenv("SEARCHLEDGER_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v, ok := envInt("MAX_DAILY_REQUESTS"); ok {
		c.Limits.DailyRequestLimit = v
	}
	if v, ok := envInt("DEFAULT_RESULTS_PER_QUERY"); ok {
		c.Limits.DefaultResultsPerQuery = v
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Save writes the config back to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// IsConfigured reports whether both Custom Search credentials are present.
func (c *Config) IsConfigured() bool {
	return c.Google.APIKey != "" && c.Google.SearchContextID != ""
}

// Validate collects every missing required option instead of stopping at
// the first, so the operator can fix the whole file in one pass.
func (c *Config) Validate() []error {
	var errs []error
	if c.Google.APIKey == "" {
		errs = append(errs, fmt.Errorf("google.api_key (or GOOGLE_API_KEY) is required"))
	}
	if c.Google.SearchContextID == "" {
		errs = append(errs, fmt.Errorf("google.search_context_id (or GOOGLE_SEARCH_ENGINE_ID) is required"))
	}
	if c.Limits.DailyRequestLimit <= 0 {
		errs = append(errs, fmt.Errorf("limits.daily_request_limit must be positive"))
	}
	if c.Limits.DefaultResultsPerQuery < 1 || c.Limits.DefaultResultsPerQuery > 100 {
		errs = append(errs, fmt.Errorf("limits.default_results_per_query must be in [1,100]"))
	}
	return errs
}
