package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the debounce, retry and reminder policies. The timing knobs
// are independent policies and are configured independently.
const (
	DefaultThreadTimeout      = 1 * time.Second
	DefaultVoiceThreadTimeout = 30 * time.Second
	DefaultReminderInterval   = 60 * time.Second
	DefaultMaxRetries         = 3
	DefaultBackoffFactor      = 2.0
)

// Config holds all runtime settings for the bot
type Config struct {
	TelegramToken string
	OpenAIKey     string
	StatePath     string

	ThreadTimeout      time.Duration
	VoiceThreadTimeout time.Duration
	ReminderInterval   time.Duration

	MaxRetries    int
	BackoffFactor float64
}

// fileConfig is the YAML shape; durations are strings ("2s") or bare
// second counts ("30").
type fileConfig struct {
	TelegramToken string `yaml:"telegram_token"`
	OpenAIKey     string `yaml:"openai_key"`
	StatePath     string `yaml:"state_path"`

	ThreadTimeout      string `yaml:"thread_timeout"`
	VoiceThreadTimeout string `yaml:"voice_thread_timeout"`
	ReminderInterval   string `yaml:"reminder_interval"`

	MaxRetries    int     `yaml:"max_retries"`
	BackoffFactor float64 `yaml:"backoff_factor"`
}

// Load reads an optional YAML config file, then overlays environment
// variables. Env always wins so deployments can override a checked-in
// file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		StatePath:          "state",
		ThreadTimeout:      DefaultThreadTimeout,
		VoiceThreadTimeout: DefaultVoiceThreadTimeout,
		ReminderInterval:   DefaultReminderInterval,
		MaxRetries:         DefaultMaxRetries,
		BackoffFactor:      DefaultBackoffFactor,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if cfg.ThreadTimeout <= 0 {
		cfg.ThreadTimeout = DefaultThreadTimeout
	}
	if cfg.VoiceThreadTimeout <= 0 {
		cfg.VoiceThreadTimeout = DefaultVoiceThreadTimeout
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = DefaultReminderInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.TelegramToken != "" {
		c.TelegramToken = fc.TelegramToken
	}
	if fc.OpenAIKey != "" {
		c.OpenAIKey = fc.OpenAIKey
	}
	if fc.StatePath != "" {
		c.StatePath = fc.StatePath
	}
	if d, ok := parseDuration(fc.ThreadTimeout); ok {
		c.ThreadTimeout = d
	}
	if d, ok := parseDuration(fc.VoiceThreadTimeout); ok {
		c.VoiceThreadTimeout = d
	}
	if d, ok := parseDuration(fc.ReminderInterval); ok {
		c.ReminderInterval = d
	}
	if fc.MaxRetries > 0 {
		c.MaxRetries = fc.MaxRetries
	}
	if fc.BackoffFactor > 1 {
		c.BackoffFactor = fc.BackoffFactor
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.TelegramToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIKey = v
	}
	if v := os.Getenv("STATE_PATH"); v != "" {
		c.StatePath = v
	}
	if d, ok := parseDuration(os.Getenv("THREAD_TIMEOUT")); ok {
		c.ThreadTimeout = d
	}
	if d, ok := parseDuration(os.Getenv("VOICE_THREAD_TIMEOUT")); ok {
		c.VoiceThreadTimeout = d
	}
	if d, ok := parseDuration(os.Getenv("REMINDER_INTERVAL")); ok {
		c.ReminderInterval = d
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("BACKOFF_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.BackoffFactor = f
		}
	}
}

// parseDuration accepts Go duration syntax ("1s", "250ms") or a bare
// number of seconds ("30")
func parseDuration(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), true
	}
	return 0, false
}
