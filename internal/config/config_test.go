package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ThreadTimeout != 1*time.Second {
		t.Errorf("ThreadTimeout = %s, want 1s", cfg.ThreadTimeout)
	}
	if cfg.VoiceThreadTimeout != 30*time.Second {
		t.Errorf("VoiceThreadTimeout = %s, want 30s", cfg.VoiceThreadTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BackoffFactor != 2.0 {
		t.Errorf("BackoffFactor = %v, want 2.0", cfg.BackoffFactor)
	}
	if cfg.ReminderInterval != 60*time.Second {
		t.Errorf("ReminderInterval = %s, want 60s", cfg.ReminderInterval)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "thread_timeout: 2s\nvoice_thread_timeout: 45s\nmax_retries: 5\nstate_path: /tmp/bot\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ThreadTimeout != 2*time.Second {
		t.Errorf("ThreadTimeout = %s, want 2s", cfg.ThreadTimeout)
	}
	if cfg.VoiceThreadTimeout != 45*time.Second {
		t.Errorf("VoiceThreadTimeout = %s, want 45s", cfg.VoiceThreadTimeout)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.StatePath != "/tmp/bot" {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("thread_timeout: 2s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("THREAD_TIMEOUT", "250ms")
	t.Setenv("VOICE_THREAD_TIMEOUT", "10") // bare seconds
	t.Setenv("BACKOFF_FACTOR", "3.5")
	t.Setenv("TELEGRAM_TOKEN", "tok-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ThreadTimeout != 250*time.Millisecond {
		t.Errorf("ThreadTimeout = %s, want 250ms", cfg.ThreadTimeout)
	}
	if cfg.VoiceThreadTimeout != 10*time.Second {
		t.Errorf("VoiceThreadTimeout = %s, want 10s", cfg.VoiceThreadTimeout)
	}
	if cfg.BackoffFactor != 3.5 {
		t.Errorf("BackoffFactor = %v, want 3.5", cfg.BackoffFactor)
	}
	if cfg.TelegramToken != "tok-123" {
		t.Errorf("TelegramToken = %q", cfg.TelegramToken)
	}
}

func TestMissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
}
