package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that fill empty secrets.
const (
	EnvResendAPIKey  = "RESEND_API_KEY"
	EnvSMTPPassword  = "SMTP_PASSWORD"
	EnvTelegramToken = "TELEGRAM_TOKEN"
)

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; variables already set are not overwritten.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv fills secrets left empty in the file from the environment.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	fill(&cfg.Gateway.Resend.APIKey, EnvResendAPIKey)
	fill(&cfg.Gateway.SMTP.Password, EnvSMTPPassword)
	fill(&cfg.Gateway.Telegram.Token, EnvTelegramToken)
}

func fill(dst *string, key string) {
	if strings.TrimSpace(*dst) != "" {
		return
	}
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}
