package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"security-reviews/models"
)

// Configuration validation errors.
var (
	ErrNoCompanies          = errors.New("at least one company is required")
	ErrNoSources            = errors.New("at least one source is required")
	ErrUnknownSource        = errors.New("unknown source")
	ErrInvalidConcurrency   = errors.New("max_concurrency must be at least 1")
	ErrInvalidRetries       = errors.New("max_retries must be at least 1")
	ErrInvalidReviewLimit   = errors.New("max_reviews_per_source must be at least 1")
	ErrInvalidLengthBounds  = errors.New("cleaning.min_review_length cannot exceed cleaning.max_review_length")
	ErrInvalidStorageDriver = errors.New("storage driver must be one of: postgres, sqlite, none")
)

// KnownSources lists the review sources the collector can run.
var KnownSources = []string{"reddit", "playstore", "appstore", "amazon"}

// Config holds all application configuration loaded from environment
// variables and, optionally, a YAML file.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	StorageDriver string
	SQLitePath    string

	MaxConcurrency      int
	RateLimitMs         int
	MaxRetries          int
	MaxReviewsPerSource int
	MinReviewsPerSource int

	Companies []string
	Sources   []string
	Cleaning  models.CleaningConfig

	RawDataDir       string
	ProcessedDataDir string
	ChromeBin        string
	LogLevel         string
	MetricsTextfile  string
}

// fileConfig is the YAML layout accepted through CONFIG_FILE. Any key left out
// keeps the value from the environment.
type fileConfig struct {
	DataCollection struct {
		TargetCompanies     []string `yaml:"target_companies"`
		Sources             []string `yaml:"sources"`
		MaxReviewsPerSource int      `yaml:"max_reviews_per_source"`
		MinReviewsPerSource int      `yaml:"min_reviews_per_source"`
	} `yaml:"data_collection"`
	Scrapers struct {
		MaxConcurrency int `yaml:"max_concurrency"`
		RateLimitMs    int `yaml:"rate_limit_ms"`
		MaxRetries     int `yaml:"max_retries"`
	} `yaml:"scrapers"`
	Cleaning *models.CleaningConfig `yaml:"cleaning"`
}

// Load reads the .env file and the environment, applies CONFIG_FILE when set,
// and returns a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := FromEnv()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() *Config {
	cleaning := models.DefaultCleaningConfig()
	cleaning.MinReviewLength = getEnvInt("MIN_REVIEW_LENGTH", cleaning.MinReviewLength)
	cleaning.MaxReviewLength = getEnvInt("MAX_REVIEW_LENGTH", cleaning.MaxReviewLength)
	cleaning.RemoveDuplicates = getEnvBool("REMOVE_DUPLICATES", cleaning.RemoveDuplicates)
	cleaning.StandardizeRatings = getEnvBool("STANDARDIZE_RATINGS", cleaning.StandardizeRatings)
	cleaning.CleanText = getEnvBool("CLEAN_TEXT", cleaning.CleanText)
	cleaning.RemoveSpam = getEnvBool("REMOVE_SPAM", cleaning.RemoveSpam)
	cleaning.NormalizeDates = getEnvBool("NORMALIZE_DATES", cleaning.NormalizeDates)

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "reviews"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "reviews123"),
		PostgresDB:       getEnv("POSTGRES_DB", "reviews_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "sqlite")),
		SQLitePath:    getEnv("SQLITE_PATH", "./data/reviews.db"),

		MaxConcurrency:      getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:         getEnvInt("RATE_LIMIT_MS", 1500),
		MaxRetries:          getEnvInt("MAX_RETRIES", 3),
		MaxReviewsPerSource: getEnvInt("MAX_REVIEWS_PER_SOURCE", 100),
		MinReviewsPerSource: getEnvInt("MIN_REVIEWS_PER_SOURCE", 5),

		Companies: getEnvList("TARGET_COMPANIES", []string{"McAfee", "Norton", "Kaspersky", "Bitdefender", "Avast"}),
		Sources:   getEnvList("SOURCES", KnownSources),
		Cleaning:  cleaning,

		RawDataDir:       getEnv("RAW_DATA_DIR", "./data/raw"),
		ProcessedDataDir: getEnv("PROCESSED_DATA_DIR", "./data/processed"),
		ChromeBin:        getEnv("CHROME_BIN", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MetricsTextfile:  getEnv("METRICS_TEXTFILE", ""),
	}
}

// ApplyFile overlays the YAML file at path onto c.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}

	// cleaning keys missing from the file keep their current values
	cleaning := c.Cleaning
	fc := fileConfig{Cleaning: &cleaning}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}

	dc := fc.DataCollection
	if len(dc.TargetCompanies) > 0 {
		c.Companies = dc.TargetCompanies
	}
	if len(dc.Sources) > 0 {
		c.Sources = dc.Sources
	}
	if dc.MaxReviewsPerSource > 0 {
		c.MaxReviewsPerSource = dc.MaxReviewsPerSource
	}
	if dc.MinReviewsPerSource > 0 {
		c.MinReviewsPerSource = dc.MinReviewsPerSource
	}
	if fc.Scrapers.MaxConcurrency > 0 {
		c.MaxConcurrency = fc.Scrapers.MaxConcurrency
	}
	if fc.Scrapers.RateLimitMs > 0 {
		c.RateLimitMs = fc.Scrapers.RateLimitMs
	}
	if fc.Scrapers.MaxRetries > 0 {
		c.MaxRetries = fc.Scrapers.MaxRetries
	}
	if fc.Cleaning != nil {
		c.Cleaning = *fc.Cleaning
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Companies) == 0 {
		return ErrNoCompanies
	}
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	for _, s := range c.Sources {
		if !isKnownSource(s) {
			return fmt.Errorf("%w: %q", ErrUnknownSource, s)
		}
	}
	if c.MaxConcurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.MaxRetries < 1 {
		return ErrInvalidRetries
	}
	if c.MaxReviewsPerSource < 1 {
		return ErrInvalidReviewLimit
	}
	if c.Cleaning.MinReviewLength > c.Cleaning.MaxReviewLength {
		return ErrInvalidLengthBounds
	}
	switch c.StorageDriver {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStorageDriver, c.StorageDriver)
	}
	return nil
}

// DSN returns the connection string for the configured storage driver.
func (c *Config) DSN() string {
	if c.StorageDriver == "sqlite" {
		return c.SQLitePath
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func isKnownSource(s string) bool {
	for _, k := range KnownSources {
		if s == k {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
