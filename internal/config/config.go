package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings in correct types
type Config struct {
	Port              int           `yaml:"port"`
	Extractor         string        `yaml:"extractor"`
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
	QueueWait         time.Duration `yaml:"queue_wait"`
	SocketTimeout     time.Duration `yaml:"socket_timeout"`
	ExtractTimeout    time.Duration `yaml:"extract_timeout"`
	TempDir           string        `yaml:"temp_dir"`
	DownloadDir       string        `yaml:"download_dir"`
	KeepDownloads     bool          `yaml:"keep_downloads"`
	DownloadRetention time.Duration `yaml:"download_retention"`
	CleanupAfter      time.Duration `yaml:"cleanup_after"`
	AllowedOrigins    string        `yaml:"allowed_origins"`
	RatePerMinute     int           `yaml:"rate_limit_per_minute"`
	RateBurst         int           `yaml:"rate_burst"`
	RequestLogging    bool          `yaml:"request_logging"`
	BodyLimit         string        `yaml:"body_limit"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Port:              5000,
		Extractor:         "ytdlp",
		MaxConcurrentJobs: 3,
		QueueWait:         10 * time.Second,
		SocketTimeout:     10 * time.Second,
		ExtractTimeout:    10 * time.Minute,
		TempDir:           filepath.Join(os.TempDir(), "ytaudio"),
		DownloadDir:       "downloads",
		KeepDownloads:     false,
		CleanupAfter:      15 * time.Minute,
		RatePerMinute:     30,
		RateBurst:         5,
		RequestLogging:    true,
		BodyLimit:         "1M",
	}
}

// Load: defaults, then the CONFIG_FILE yaml if set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// 🛡️ Post-load Validation
	validate(cfg)

	return cfg, nil
}

// Addr is the listen address on all interfaces.
func (c *Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.Extractor = getEnv("EXTRACTOR", c.Extractor)
	c.MaxConcurrentJobs = getEnvAsInt("MAX_CONCURRENT_JOBS", c.MaxConcurrentJobs)
	c.QueueWait = getEnvAsDuration("QUEUE_WAIT_SECONDS", time.Second, c.QueueWait)
	c.SocketTimeout = getEnvAsDuration("SOCKET_TIMEOUT_SECONDS", time.Second, c.SocketTimeout)
	c.ExtractTimeout = getEnvAsDuration("EXTRACT_TIMEOUT_MINUTES", time.Minute, c.ExtractTimeout)
	c.TempDir = getEnv("TEMP_DIR", c.TempDir)
	c.DownloadDir = getEnv("DOWNLOAD_DIR", c.DownloadDir)
	c.KeepDownloads = getEnvAsBool("KEEP_DOWNLOADS", c.KeepDownloads)
	c.DownloadRetention = getEnvAsDuration("DOWNLOAD_RETENTION_MINUTES", time.Minute, c.DownloadRetention)
	c.CleanupAfter = getEnvAsDuration("CLEAN_UP_AFTER_MINUTES", time.Minute, c.CleanupAfter)
	c.AllowedOrigins = getEnv("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.RatePerMinute = getEnvAsInt("RATE_LIMIT_PER_MINUTE", c.RatePerMinute)
	c.RateBurst = getEnvAsInt("RATE_BURST", c.RateBurst)
	c.RequestLogging = getEnvAsBool("REQUEST_LOGGING", c.RequestLogging)
	c.BodyLimit = getEnv("BODY_LIMIT", c.BodyLimit)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	str := getEnv(key, "")
	if val, err := strconv.Atoi(str); err == nil {
		return val
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	str := getEnv(key, "")
	if val, err := strconv.ParseBool(strings.TrimSpace(str)); err == nil {
		return val
	}
	return fallback
}

func getEnvAsDuration(key string, unit time.Duration, fallback time.Duration) time.Duration {
	str := getEnv(key, "")
	if val, err := strconv.Atoi(str); err == nil {
		return time.Duration(val) * unit
	}
	return fallback
}

// validate ensures the server won't crash due to misconfiguration
func validate(cfg *Config) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		log.Printf("⚠️ Warning: PORT %d is out of range. Resetting to 5000.", cfg.Port)
		cfg.Port = 5000
	}
	if cfg.MaxConcurrentJobs < 1 {
		log.Println("⚠️ Warning: MAX_CONCURRENT_JOBS must be at least 1. Resetting to 3.")
		cfg.MaxConcurrentJobs = 3
	}
	if cfg.SocketTimeout <= 0 {
		log.Println("⚠️ Warning: SOCKET_TIMEOUT_SECONDS must be positive. Resetting to 10.")
		cfg.SocketTimeout = 10 * time.Second
	}
	if cfg.ExtractTimeout <= 0 {
		log.Println("⚠️ Warning: EXTRACT_TIMEOUT_MINUTES must be positive. Resetting to 10.")
		cfg.ExtractTimeout = 10 * time.Minute
	}
	if cfg.CleanupAfter <= 0 {
		log.Println("⚠️ Warning: CLEAN_UP_AFTER_MINUTES must be positive. Resetting to 15.")
		cfg.CleanupAfter = 15 * time.Minute
	}
	if cfg.CleanupAfter <= cfg.ExtractTimeout {
		log.Printf("⚠️ Warning: CLEAN_UP_AFTER_MINUTES must exceed EXTRACT_TIMEOUT_MINUTES. Using %s.", cfg.ExtractTimeout+time.Minute)
		cfg.CleanupAfter = cfg.ExtractTimeout + time.Minute
	}
	if cfg.QueueWait < 0 {
		cfg.QueueWait = 0
	}
	if cfg.DownloadRetention < 0 {
		cfg.DownloadRetention = 0
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "ytaudio")
	}
}
