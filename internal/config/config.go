// Package config loads process configuration from the environment, after
// merging any .env file found in the working directory.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	VerifyToken   string   `env:"VERIFY_TOKEN,required,notEmpty"`
	AccessToken   string   `env:"WHATSAPP_ACCESS_TOKEN,required,notEmpty"`
	PhoneNumberID string   `env:"WHATSAPP_PHONE_NUMBER_ID,required,notEmpty"`
	APIVersion    string   `env:"WHATSAPP_API_VERSION" envDefault:"v21.0"`
	GraphBaseURL  string   `env:"WHATSAPP_BASE_URL" envDefault:"https://graph.facebook.com"`
	AdminPhones   []string `env:"ADMIN_PHONE_NUMBERS" envSeparator:","`
	NotifyPhone   string   `env:"NOTIFICATION_PHONE_NUMBER"`

	ParamPrefix    string `env:"PARAM_PREFIX,required,notEmpty"`
	LLMBaseURL     string `env:"LLM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	Moderation     bool   `env:"MODERATION_ENABLED" envDefault:"false"`
	MaxQuestionLen int    `env:"MAX_QUESTION_LENGTH" envDefault:"4096"`

	DedupTable     string `env:"DEDUP_TABLE"`
	DedupCacheSize int    `env:"DEDUP_CACHE_SIZE" envDefault:"0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env files (existing variables win) and parses the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// A missing file is normal outside local development.
		_ = godotenv.Load(f)
	}
	return Parse()
}

// Parse reads the current environment without touching .env files.
func Parse() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	admins := make([]string, 0, len(c.AdminPhones))
	for _, a := range c.AdminPhones {
		if a = strings.TrimSpace(a); a != "" {
			admins = append(admins, a)
		}
	}
	c.AdminPhones = admins
	c.NotifyPhone = strings.TrimSpace(c.NotifyPhone)
	c.ParamPrefix = strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/")
	c.DedupTable = strings.TrimSpace(c.DedupTable)
}

func (c *Config) validate() error {
	if c.ParamPrefix == "" {
		return errors.New("config: PARAM_PREFIX must not be only slashes")
	}
	if c.DedupCacheSize < 0 {
		return errors.New("config: DEDUP_CACHE_SIZE must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// AdminFeatures reports whether admin commands and handoff notifications
// are configured. Without them the relay only answers questions.
func (c Config) AdminFeatures() bool {
	return len(c.AdminPhones) > 0 || c.NotifyPhone != ""
}
