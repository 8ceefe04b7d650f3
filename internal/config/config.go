package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	Transport    string
	APIBaseURL   string
	WSBaseURL    string
	StudentToken string
	JWTSecret    string
	EntryToken   string
	ExamID       string
	PracticeFile string

	AutosaveDelay   time.Duration
	DefaultDuration time.Duration
	RequestTimeout  time.Duration

	RedisURL    string
	DatabaseURL string
	MaxDBConns  int32
	JournalPath string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		Transport:       getEnv("TRANSPORT", "ws"),
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8080"),
		WSBaseURL:       getEnv("WS_BASE_URL", ""),
		StudentToken:    getEnv("STUDENT_TOKEN", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		EntryToken:      getEnv("ENTRY_TOKEN", ""),
		ExamID:          getEnv("EXAM_ID", ""),
		PracticeFile:    getEnv("PRACTICE_FILE", ""),
		AutosaveDelay:   time.Duration(getEnvInt("AUTOSAVE_DELAY_SECONDS", 30)) * time.Second,
		DefaultDuration: time.Duration(getEnvInt("DEFAULT_DURATION_MINUTES", 15)) * time.Minute,
		RequestTimeout:  time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MaxDBConns:      int32(getEnvInt("MAX_DB_CONNS", 2)),
		JournalPath:     getEnv("JOURNAL_PATH", cachePath("journal.db", "exstem-journal.db")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "pretty"),
		LogFile:         getEnv("LOG_FILE", cachePath("client.log", "exstem-client.log")),
	}
}

// StreamBaseURL is the WebSocket origin, derived from APIBaseURL when unset.
func (c *Config) StreamBaseURL() string {
	if c.WSBaseURL != "" {
		return c.WSBaseURL
	}
	switch {
	case strings.HasPrefix(c.APIBaseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.APIBaseURL, "https://")
	case strings.HasPrefix(c.APIBaseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.APIBaseURL, "http://")
	}
	return c.APIBaseURL
}

// Validate checks the settings the selected transport depends on.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Transport) {
	case "practice":
		if c.PracticeFile == "" {
			return fmt.Errorf("PRACTICE_FILE is required for the practice transport")
		}
		return nil
	case "ws", "rest", "hall":
	default:
		return fmt.Errorf("unknown TRANSPORT %q", c.Transport)
	}

	if c.ExamID == "" {
		return fmt.Errorf("EXAM_ID is required")
	}
	if c.StudentToken == "" {
		return fmt.Errorf("STUDENT_TOKEN is required")
	}
	if strings.EqualFold(c.Transport, "hall") && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the hall transport")
	}
	return nil
}

// cachePath places name under the user cache dir, or uses fallback in the
// working directory when there is none.
func cachePath(name, fallback string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(dir, "exstem", name)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
