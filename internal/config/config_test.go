package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "LISTEN_ADDR", "ENGINE_PATH", "ENGINE_ARGS", "ENGINE_CALL_TIMEOUT",
		"PLAY_MODE", "STRENGTH_FIRST", "STRENGTH_SECOND", "THINK_DELAY", "SELF_PLAY_DELAY",
		"KIFU_DIALECT", "MESSAGES_DIR", "REDIS_URL", "KIFU_SHARE_TTL", "OTEL_ENDPOINT",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_TO_CONSOLE", "LOG_TO_FILE", "LOG_FILE", "LOG_CALLER",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlayMode != "pvp" || cfg.KifuDialect != "ja" || cfg.StrengthFirst != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SelfPlayDelay != 500*time.Millisecond || cfg.Log.ToFile {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "play_mode: ai-black\nstrength_second: 5\nself_play_delay: 2s\nengine_args: [\"--threads\", \"1\"]\nlog:\n  format: json\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STRENGTH_SECOND", "7")
	t.Setenv("KIFU_DIALECT", " EN ")
	t.Setenv("ENGINE_ARGS", "--level fast")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlayMode != "ai-black" {
		t.Fatalf("play mode = %q", cfg.PlayMode)
	}
	if cfg.StrengthSecond != 7 {
		t.Fatalf("env should override file: %d", cfg.StrengthSecond)
	}
	if cfg.SelfPlayDelay != 2*time.Second || cfg.Log.Format != "json" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.KifuDialect != "en" {
		t.Fatalf("dialect = %q", cfg.KifuDialect)
	}
	if strings.Join(cfg.EngineArgs, "|") != "--level|fast" {
		t.Fatalf("engine args = %v", cfg.EngineArgs)
	}
	st, err := cfg.Strengths()
	if err != nil || st[1].Depth != 7 || st[0].Depth != 3 {
		t.Fatalf("Strengths = %+v, %v", st, err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*AppConfig)
		want string
	}{
		{"mode", func(c *AppConfig) { c.PlayMode = "solo" }, "PLAY_MODE"},
		{"strength", func(c *AppConfig) { c.StrengthFirst = 9 }, "STRENGTH_FIRST"},
		{"dialect", func(c *AppConfig) { c.KifuDialect = "fr" }, "KIFU_DIALECT"},
		{"delay", func(c *AppConfig) { c.SelfPlayDelay = 0 }, "SELF_PLAY_DELAY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mut(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
