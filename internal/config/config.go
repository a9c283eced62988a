package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Storage
	DataDir       string
	LegacyDataDir string

	// Time handling
	Timezone string

	// Primary analysis provider (OpenAI-compatible chat completions)
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	// Fallback analysis provider
	GeminiAPIKey string
	GeminiModel  string

	// Voice transcription
	TranscribeURL      string
	TranscribeModel    string
	TranscribeLanguage string

	// Cloud reconciliation
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// Tuning
	RecentLimit      int
	AutoSyncInterval time.Duration
	HTTPTimeout      time.Duration
}

func Load() *Config {
	cfg := &Config{
		DataDir:       getEnv("MONEYTALK_DATA_DIR", "./data"),
		LegacyDataDir: getEnv("MONEYTALK_LEGACY_DATA_DIR", ""),

		Timezone: getEnv("MONEYTALK_TIMEZONE", "Asia/Jakarta"),

		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		TranscribeURL:      getEnv("TRANSCRIBE_URL", ""),
		TranscribeModel:    getEnv("TRANSCRIBE_MODEL", "whisper-1"),
		TranscribeLanguage: getEnv("TRANSCRIBE_LANGUAGE", "id"),

		SupabaseURL:    getEnv("SUPABASE_URL", ""),
		SupabaseKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseBucket: getEnv("SUPABASE_BUCKET", "receipts"),

		RecentLimit:      getEnvInt("RECENT_LIMIT", 5),
		AutoSyncInterval: getEnvDuration("AUTO_SYNC_INTERVAL", time.Hour),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.DataDir == "" {
		errors = append(errors, "data directory cannot be empty")
	} else if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DataDir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create data directory '%s': %v", c.DataDir, err))
		}
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
		}
	}

	if c.OpenAIAPIKey != "" {
		if err := validateHTTPURL(c.OpenAIBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid OpenAI base URL '%s': %v", c.OpenAIBaseURL, err))
		}
		if c.OpenAIModel == "" {
			errors = append(errors, "OpenAI model cannot be empty when an OpenAI API key is provided")
		}
	}

	if c.GeminiAPIKey != "" && c.GeminiModel == "" {
		errors = append(errors, "Gemini model cannot be empty when a Gemini API key is provided")
	}

	if c.TranscribeURL != "" {
		if err := validateHTTPURL(c.TranscribeURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid transcription URL '%s': %v", c.TranscribeURL, err))
		}
	}

	if c.SupabaseURL != "" {
		if err := validateHTTPURL(c.SupabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Supabase URL '%s': %v", c.SupabaseURL, err))
		}
		if c.SupabaseKey == "" {
			errors = append(errors, "Supabase anon key cannot be empty when a Supabase URL is provided")
		}
		if c.SupabaseBucket == "" {
			errors = append(errors, "Supabase bucket cannot be empty when a Supabase URL is provided")
		}
	}

	if c.RecentLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid recent limit %d: must be at least 1", c.RecentLimit))
	} else if c.RecentLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid recent limit %d: must be at most 100", c.RecentLimit))
	}

	if c.AutoSyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid auto sync interval %v: must be at least 1 minute", c.AutoSyncInterval))
	} else if c.AutoSyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid auto sync interval %v: must be at most 24 hours", c.AutoSyncInterval))
	}

	if c.HTTPTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	} else if c.HTTPTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at most 5 minutes", c.HTTPTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// CloudEnabled reports whether remote reconciliation is configured.
func (c *Config) CloudEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme '%s': must be 'http' or 'https'", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
