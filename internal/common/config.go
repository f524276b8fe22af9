package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Blog        BlogConfig      `toml:"blog"`
	Exchange    ExchangeConfig  `toml:"exchange"`
	Search      SearchConfig    `toml:"search"`
	EODHD       EODHDConfig     `toml:"eodhd"`
	Resolver    ResolverConfig  `toml:"resolver"`
	Retry       RetryConfig     `toml:"retry"`
	Cache       CacheConfig     `toml:"cache"`
	Output      OutputConfig    `toml:"output"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port         int    `toml:"port" validate:"min=1,max=65535"`
	Host         string `toml:"host" validate:"required"`
	TemplatesDir string `toml:"templates_dir"` // Optional directory of page overrides
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`                // Keep everything in memory, nothing is written to Path
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format"`
}

// BlogConfig describes the dividends blog and how the listing page paginates
type BlogConfig struct {
	TopicURL        string        `toml:"topic_url" validate:"required,url"`     // Listing page with the dividend articles
	BaseURL         string        `toml:"base_url" validate:"required,url"`      // Articles outside this prefix are skipped
	DateSelector    string        `toml:"date_selector" validate:"required"`     // Post date elements on the listing
	LinkSelector    string        `toml:"link_selector" validate:"required"`     // Article links on the listing
	LoadMoreButton  string        `toml:"load_more_selector" validate:"required"` // Pagination button
	LoadMoreWait    time.Duration `toml:"load_more_wait"`                        // Wait after clicking load more
	NavigateTimeout time.Duration `toml:"navigate_timeout"`
	MaxPages        int           `toml:"max_pages" validate:"min=1"`
	TitleMaxLength  int           `toml:"title_max_length" validate:"min=1"`
	RequestTimeout  time.Duration `toml:"request_timeout"` // Article page fetch timeout
	Headless        bool          `toml:"headless"`
}

// ExchangeConfig describes the primary exchange website
type ExchangeConfig struct {
	BaseURL        string        `toml:"base_url" validate:"required,url"`
	Domain         string        `toml:"domain" validate:"required"` // URLs on this domain are parsed as exchange pages
	RequestTimeout time.Duration `toml:"request_timeout"`
	RateLimit      float64       `toml:"rate_limit"` // Requests per second, 0 = unlimited
}

// SearchConfig describes the generic web search provider
type SearchConfig struct {
	BaseURL          string        `toml:"base_url" validate:"required,url"` // HTML results endpoint, query passed as q=
	ResultSelector   string        `toml:"result_selector" validate:"required"`
	NumResults       int           `toml:"num_results" validate:"min=1"`
	QuoteDomain      string        `toml:"quote_domain" validate:"required"` // Provider used for quote scraping
	QuoteSelector    string        `toml:"quote_selector" validate:"required"`
	FinancialDomains []string      `toml:"financial_domains" validate:"min=1"`
	RequestTimeout   time.Duration `toml:"request_timeout"`
	RateLimit        float64       `toml:"rate_limit"` // Requests per second, 0 = unlimited
	UserAgent        string        `toml:"user_agent"`
}

// EODHDConfig contains the market-data API settings
type EODHDConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url" validate:"required,url"`
	RateLimit int    `toml:"rate_limit" validate:"min=1"` // Requests per second
}

// ResolverConfig tunes name normalization and the manual overrides
type ResolverConfig struct {
	OverridesFile  string   `toml:"overrides_file"` // Optional YAML file of name -> symbol overrides
	MaxNameLength  int      `toml:"max_name_length" validate:"min=1"`
	NoiseKeywords  []string `toml:"noise_keywords"`
	CorporateWords []string `toml:"corporate_words"`
}

// RetryPolicyConfig is one retry policy: attempts and base delay
type RetryPolicyConfig struct {
	MaxAttempts int           `toml:"max_attempts" validate:"min=1"`
	BaseDelay   time.Duration `toml:"base_delay"`
}

// RetryConfig holds the policy for each remote call family
type RetryConfig struct {
	WebSearch   RetryPolicyConfig `toml:"web_search"`
	SearchQuote RetryPolicyConfig `toml:"search_quote"`
	MarketData  RetryPolicyConfig `toml:"market_data"`
}

// CacheConfig bounds the per-run lookup caches
type CacheConfig struct {
	Capacity int `toml:"capacity" validate:"min=1"`
}

// OutputConfig controls the exported table and audit artifacts
type OutputConfig struct {
	CSVPath        string        `toml:"csv_path" validate:"required"`
	ArtifactsDir   string        `toml:"artifacts_dir"` // Empty disables per-article text artifacts
	StalenessAfter time.Duration `toml:"staleness_after"`
	HistoryLimit   int           `toml:"history_limit"` // Run reports kept in storage, 0 keeps all
}

// SchedulerConfig controls the periodic refresh
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule with seconds field
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Blog: BlogConfig{
			TopicURL:        "https://blogs.easyequities.co.za/topic/dividends-update",
			BaseURL:         "https://blogs.easyequities.co.za/",
			DateSelector:    "div.post-date",
			LinkSelector:    "a.LinkBox",
			LoadMoreButton:  "a#loadMore",
			LoadMoreWait:    6 * time.Second,
			NavigateTimeout: 60 * time.Second,
			MaxPages:        20,
			TitleMaxLength:  30,
			RequestTimeout:  30 * time.Second,
			Headless:        true,
		},
		Exchange: ExchangeConfig{
			BaseURL:        "https://www.jse.co.za",
			Domain:         "jse.co.za",
			RequestTimeout: 30 * time.Second,
			RateLimit:      2,
		},
		Search: SearchConfig{
			BaseURL:          "https://html.duckduckgo.com/html/",
			ResultSelector:   "a.result__a",
			NumResults:       3,
			QuoteDomain:      "finance.google.com",
			QuoteSelector:    "div.YMlKec.fxKbKc",
			FinancialDomains: []string{"bloomberg", "reuters", "finance.yahoo.com"},
			RequestTimeout:   10 * time.Second,
			RateLimit:        0.3, // One request roughly every 3s
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		EODHD: EODHDConfig{
			BaseURL:   "https://eodhd.com/api",
			RateLimit: 10,
		},
		Resolver: ResolverConfig{
			MaxNameLength:  100,
			NoiseKeywords:  []string{"tariff", "investor sentiment", "bear market"},
			CorporateWords: []string{"Limited", "Corporation", "Incorporated", "PLC", "SE", "Group", "Ltd"},
		},
		Retry: RetryConfig{
			WebSearch:   RetryPolicyConfig{MaxAttempts: 3, BaseDelay: 10 * time.Second},
			SearchQuote: RetryPolicyConfig{MaxAttempts: 3, BaseDelay: 10 * time.Second},
			MarketData:  RetryPolicyConfig{MaxAttempts: 7, BaseDelay: 5 * time.Second},
		},
		Cache: CacheConfig{
			Capacity: 100,
		},
		Output: OutputConfig{
			CSVPath:        "./static/data/dividends_with_prices_current_month.csv",
			ArtifactsDir:   "./data/articles",
			StalenessAfter: time.Hour,
			HistoryLimit:   50,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 0 6 * * *", // Daily at 06:00
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks struct constraints and the scheduler expression
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Scheduler.Enabled {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Scheduler.Schedule); err != nil {
			return fmt.Errorf("invalid scheduler.schedule %q: %w", c.Scheduler.Schedule, err)
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DIVTRACK_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("DIVTRACK_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DIVTRACK_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("DIVTRACK_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("DIVTRACK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("DIVTRACK_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Market data: EODHD_API_KEY is accepted for parity with other EODHD tooling
	if apiKey := os.Getenv("DIVTRACK_EODHD_API_KEY"); apiKey != "" {
		config.EODHD.APIKey = apiKey
	} else if apiKey := os.Getenv("EODHD_API_KEY"); apiKey != "" && config.EODHD.APIKey == "" {
		config.EODHD.APIKey = apiKey
	}

	// Output configuration
	if csvPath := os.Getenv("DIVTRACK_CSV_PATH"); csvPath != "" {
		config.Output.CSVPath = csvPath
	}
	if dir := os.Getenv("DIVTRACK_ARTIFACTS_DIR"); dir != "" {
		config.Output.ArtifactsDir = dir
	}

	// Scheduler configuration
	if enabled := os.Getenv("DIVTRACK_SCHEDULER_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = b
		}
	}
	if schedule := os.Getenv("DIVTRACK_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
// Flags have the highest priority
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
