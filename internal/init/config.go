package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// App mode
	Mode string

	// Remote API
	APIBaseURL  string
	APITimeout  time.Duration
	APILogin    string
	APIPassword string
	APIToken    string

	// Action arguments for one-shot modes
	TargetID string
	ParentID string
	Text     string

	// Invalidation
	RefreshDelay     time.Duration
	VerifyAttempts   int
	VerifyBackoffMax time.Duration
	WatchInterval    time.Duration
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	v := viper.New()

	v.SetDefault("MODE", "feed")

	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("API_TIMEOUT", "10s")
	// Optional: API_LOGIN/API_PASSWORD or API_TOKEN can be empty

	v.SetDefault("REFRESH_DELAY", "1000ms")
	v.SetDefault("VERIFY_ATTEMPTS", 1)
	v.SetDefault("VERIFY_BACKOFF_MAX", "8s")
	v.SetDefault("WATCH_INTERVAL", "0s")

	// Load env variables
	v.AutomaticEnv()

	// Optional config file support
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // ignore error if no file

	cfg = fromViper(v)
	return cfg
}

func fromViper(v *viper.Viper) *Config {
	attempts := v.GetInt("VERIFY_ATTEMPTS")
	if attempts < 1 {
		attempts = 1
	}
	return &Config{
		Mode:             v.GetString("MODE"),
		APIBaseURL:       v.GetString("API_BASE_URL"),
		APITimeout:       parseDuration(v.GetString("API_TIMEOUT"), 10*time.Second),
		APILogin:         v.GetString("API_LOGIN"),
		APIPassword:      v.GetString("API_PASSWORD"),
		APIToken:         v.GetString("API_TOKEN"),
		TargetID:         v.GetString("TARGET_ID"),
		ParentID:         v.GetString("PARENT_ID"),
		Text:             v.GetString("TEXT"),
		RefreshDelay:     parseDuration(v.GetString("REFRESH_DELAY"), time.Second),
		VerifyAttempts:   attempts,
		VerifyBackoffMax: parseDuration(v.GetString("VERIFY_BACKOFF_MAX"), 8*time.Second),
		WatchInterval:    parseDuration(v.GetString("WATCH_INTERVAL"), 0),
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
