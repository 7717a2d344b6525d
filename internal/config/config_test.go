package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(flags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.PingPeriod != 54*time.Second || cfg.Upload.TTL != 10*time.Minute || cfg.MaxInflated != 16<<20 {
		t.Errorf("defaults: %+v", cfg)
	}
	if cfg.Upload.MaxChunks != 4096 || cfg.Answer.RateLimit != 5 || cfg.Assets.PublicBase != "/assets" {
		t.Errorf("nested defaults: %+v", cfg)
	}
	if cfg.Level() != zerolog.InfoLevel {
		t.Errorf("level: got %v", cfg.Level())
	}
}

func TestFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("port: 9000\nlog_level: debug\nrooms:\n  evict_empty: true\nupload:\n  ttl: 30s\nanswer:\n  url: http://llm.local/v1\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SLIDEBOARD_ANSWER_MODEL", "tiny")

	cfg, err := Load(flags(t, "--config", path, "--port", "9100"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("flag should win over file: got %d", cfg.Port)
	}
	if !cfg.Rooms.EvictEmpty || cfg.Upload.TTL != 30*time.Second || cfg.Answer.URL != "http://llm.local/v1" {
		t.Errorf("file values: %+v", cfg)
	}
	if cfg.Answer.Model != "tiny" {
		t.Errorf("env override: got %q", cfg.Answer.Model)
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Errorf("level: got %v", cfg.Level())
	}
}

func TestLevelFallback(t *testing.T) {
	cfg := &Config{LogLevel: "loud"}
	if cfg.Level() != zerolog.InfoLevel {
		t.Errorf("unknown level: got %v", cfg.Level())
	}
}
