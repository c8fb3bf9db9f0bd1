package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Env is the environment overlay applied on top of the config file.
type Env struct {
	DiscordToken  string `envconfig:"DISCORD_BOT_TOKEN"`
	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	Platform      string `envconfig:"WELCOMEBOT_PLATFORM"`
	LogLevel      string `envconfig:"WELCOMEBOT_LOG_LEVEL"`
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding variables already set. It reports whether any file was loaded.
// A missing file is not an error.
func LoadDotEnv(files ...string) (bool, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	loaded := false
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = true
	}
	return loaded, nil
}

// ReadEnv reads the overlay from the process environment.
func ReadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("", &e); err != nil {
		return Env{}, err
	}
	return e, nil
}

// apply overlays non-empty environment values onto cfg.
func (e Env) apply(cfg *Config) {
	if p := strings.ToLower(strings.TrimSpace(e.Platform)); p != "" {
		cfg.Gateway.Platform = p
	}
	if lvl := strings.TrimSpace(e.LogLevel); lvl != "" {
		cfg.Logging.Level = strings.ToLower(lvl)
	}
	var token string
	switch cfg.Gateway.Platform {
	case PlatformTelegram:
		token = e.TelegramToken
	default:
		token = e.DiscordToken
	}
	if token = strings.TrimSpace(token); token != "" {
		cfg.Gateway.Token = token
	}
}
