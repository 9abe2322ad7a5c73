package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/notation"
	"github.com/park285/chaturanga-session/internal/session"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	EnginePath        string        `yaml:"engine_path" env:"ENGINE_PATH"`
	EngineArgs        []string      `yaml:"engine_args" env:"ENGINE_ARGS" envSeparator:" "`
	EngineCallTimeout time.Duration `yaml:"engine_call_timeout" env:"ENGINE_CALL_TIMEOUT"`

	PlayMode       string        `yaml:"play_mode" env:"PLAY_MODE"`
	StrengthFirst  int           `yaml:"strength_first" env:"STRENGTH_FIRST"`
	StrengthSecond int           `yaml:"strength_second" env:"STRENGTH_SECOND"`
	ThinkDelay     time.Duration `yaml:"think_delay" env:"THINK_DELAY"`
	SelfPlayDelay  time.Duration `yaml:"self_play_delay" env:"SELF_PLAY_DELAY"`

	KifuDialect string `yaml:"kifu_dialect" env:"KIFU_DIALECT"`
	MessagesDir string `yaml:"messages_dir" env:"MESSAGES_DIR"`

	RedisURL     string        `yaml:"redis_url" env:"REDIS_URL"`
	KifuShareTTL time.Duration `yaml:"kifu_share_ttl" env:"KIFU_SHARE_TTL"`

	OTelEndpoint string `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`

	Log LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level     string `yaml:"level" env:"LOG_LEVEL"`
	Format    string `yaml:"format" env:"LOG_FORMAT"`
	ToConsole bool   `yaml:"to_console" env:"LOG_TO_CONSOLE"`
	ToFile    bool   `yaml:"to_file" env:"LOG_TO_FILE"`
	File      string `yaml:"file" env:"LOG_FILE"`
	Caller    bool   `yaml:"caller" env:"LOG_CALLER"`
}

func Default() *AppConfig {
	return &AppConfig{
		ListenAddr:        ":8080",
		EngineCallTimeout: 10 * time.Second,
		PlayMode:          string(session.HumanVsHuman),
		StrengthFirst:     engine.DefaultLevel,
		StrengthSecond:    engine.DefaultLevel,
		ThinkDelay:        10 * time.Millisecond,
		SelfPlayDelay:     500 * time.Millisecond,
		KifuDialect:       string(notation.DialectJapanese),
		KifuShareTTL:      24 * time.Hour,
		Log: LogConfig{
			Level:     "info",
			Format:    "legacy",
			ToConsole: true,
			File:      filepath.Join("logs", "server.log"),
		},
	}
}

// Load builds the config from defaults, the optional CONFIG_FILE and the
// environment, in that order.
func Load() (*AppConfig, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) normalize() {
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	c.EnginePath = strings.TrimSpace(c.EnginePath)
	c.PlayMode = strings.ToLower(strings.TrimSpace(c.PlayMode))
	c.KifuDialect = strings.ToLower(strings.TrimSpace(c.KifuDialect))
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.OTelEndpoint = strings.TrimSpace(c.OTelEndpoint)
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("LISTEN_ADDR is required"))
	}
	if _, err := session.ParsePlayMode(c.PlayMode); err != nil {
		errs = append(errs, fmt.Errorf("PLAY_MODE: %w", err))
	}
	if _, err := engine.StrengthForLevel(c.StrengthFirst); err != nil {
		errs = append(errs, fmt.Errorf("STRENGTH_FIRST: %w", err))
	}
	if _, err := engine.StrengthForLevel(c.StrengthSecond); err != nil {
		errs = append(errs, fmt.Errorf("STRENGTH_SECOND: %w", err))
	}
	if _, ok := notation.ParseDialect(c.KifuDialect); !ok {
		errs = append(errs, fmt.Errorf("KIFU_DIALECT %q is not ja or en", c.KifuDialect))
	}
	if c.ThinkDelay < 0 {
		errs = append(errs, errors.New("THINK_DELAY must not be negative"))
	}
	if c.SelfPlayDelay <= 0 {
		errs = append(errs, errors.New("SELF_PLAY_DELAY must be positive"))
	}
	if c.EngineCallTimeout <= 0 {
		errs = append(errs, errors.New("ENGINE_CALL_TIMEOUT must be positive"))
	}
	if c.KifuShareTTL <= 0 {
		errs = append(errs, errors.New("KIFU_SHARE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// Strengths returns the configured per-side search presets.
func (c *AppConfig) Strengths() ([2]engine.Strength, error) {
	first, err := engine.StrengthForLevel(c.StrengthFirst)
	if err != nil {
		return [2]engine.Strength{}, err
	}
	second, err := engine.StrengthForLevel(c.StrengthSecond)
	if err != nil {
		return [2]engine.Strength{}, err
	}
	return [2]engine.Strength{first, second}, nil
}
