package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the archiver.
type Config struct {
	Store   StoreConfig
	Fetch   FetchConfig
	Whisper WhisperConfig
}

// StoreConfig holds paths and write tuning for the master store.
type StoreConfig struct {
	Path         string
	ProgressPath string
	OutputDir    string
	BatchSize    int
	FlushEvery   int
	TikTokOnly   bool
}

// FetchConfig holds yt-dlp and pacing settings.
type FetchConfig struct {
	MSToken           string
	CookiesPath       string
	ProxyURL          string
	Quality           string
	RequestsPerMinute int
	ItemTimeout       time.Duration
	MaxComments       int
	MaxReplies        int
	DownloadLimitMBps float64
}

// WhisperConfig holds transcription settings.
type WhisperConfig struct {
	Enabled bool
	Binary  string
	Model   string
}

// Load reads configuration from a .env file plus the environment. A
// missing .env file is fine; every setting has a default except none —
// the archiver runs against local files and needs no credentials
// (TIKTOK_MS_TOKEN only improves comment extraction).
func Load(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}
	if err := godotenv.Load(envPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
		log.WithField("file", envPath).Debug("No .env file, using environment only")
	}

	config := &Config{
		Store: StoreConfig{
			Path:         getEnv("ARCHIVE_STORE_PATH", "master_videos.json"),
			ProgressPath: getEnv("ARCHIVE_PROGRESS_PATH", "download_progress.json"),
			OutputDir:    getEnv("ARCHIVE_OUTPUT_DIR", "downloads"),
			BatchSize:    getEnvAsInt("ARCHIVE_BATCH_SIZE", 5),
			FlushEvery:   getEnvAsInt("ARCHIVE_FLUSH_EVERY", 5),
			TikTokOnly:   getEnvAsBool("ARCHIVE_TIKTOK_ONLY", true),
		},
		Fetch: FetchConfig{
			MSToken:           getEnv("TIKTOK_MS_TOKEN", ""),
			CookiesPath:       getEnv("ARCHIVE_COOKIES_PATH", ""),
			ProxyURL:          getEnv("ARCHIVE_PROXY_URL", ""),
			Quality:           getEnv("ARCHIVE_QUALITY", "best"),
			RequestsPerMinute: getEnvAsInt("ARCHIVE_REQUESTS_PER_MINUTE", 12),
			ItemTimeout:       time.Duration(getEnvAsInt("ARCHIVE_ITEM_TIMEOUT_SECONDS", 300)) * time.Second,
			MaxComments:       getEnvAsInt("ARCHIVE_MAX_COMMENTS", 10),
			MaxReplies:        getEnvAsInt("ARCHIVE_MAX_REPLIES", 5),
			DownloadLimitMBps: getEnvAsFloat("ARCHIVE_DOWNLOAD_LIMIT_MBPS", 0),
		},
		Whisper: WhisperConfig{
			Enabled: getEnvAsBool("ARCHIVE_WHISPER_ENABLED", false),
			Binary:  getEnv("ARCHIVE_WHISPER_BINARY", "whisper"),
			Model:   getEnv("ARCHIVE_WHISPER_MODEL", "small.en"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Debug("Config loaded")
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func validateConfig(config *Config) error {
	if config.Store.Path == "" {
		return fmt.Errorf("ARCHIVE_STORE_PATH must not be empty")
	}
	if config.Store.BatchSize < 1 {
		return fmt.Errorf("ARCHIVE_BATCH_SIZE must be positive")
	}
	if config.Store.FlushEvery < 1 {
		return fmt.Errorf("ARCHIVE_FLUSH_EVERY must be positive")
	}
	if config.Fetch.RequestsPerMinute < 1 {
		return fmt.Errorf("ARCHIVE_REQUESTS_PER_MINUTE must be positive")
	}
	if config.Fetch.MaxComments < 1 {
		return fmt.Errorf("ARCHIVE_MAX_COMMENTS must be positive")
	}
	if config.Fetch.MaxReplies < 1 {
		return fmt.Errorf("ARCHIVE_MAX_REPLIES must be positive")
	}
	if config.Fetch.ItemTimeout < time.Second {
		return fmt.Errorf("ARCHIVE_ITEM_TIMEOUT_SECONDS must be at least 1")
	}

	// The output dir may be nested; create it up front so the first
	// download does not fail on a missing parent.
	if config.Store.OutputDir != "" {
		if err := os.MkdirAll(config.Store.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	storeDir := filepath.Dir(config.Store.Path)
	if storeDir != "." && storeDir != "" {
		if err := os.MkdirAll(storeDir, 0o755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return nil
}
