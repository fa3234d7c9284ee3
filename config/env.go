package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvHost            = "IBKR_HOST"
	EnvPort            = "IBKR_PORT"
	EnvClientID        = "IBKR_CLIENT_ID"
	EnvRefreshInterval = "MONITORING_REFRESH_INTERVAL"
	EnvLogLevel        = "LOG_LEVEL"
	EnvTelegramToken   = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID  = "TELEGRAM_CHAT_ID"
	EnvWebhookURL      = "ALERT_WEBHOOK_URL"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding what is already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment overrides using lookup, normally
// os.LookupEnv. Credentials are only ever taken from here or the file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvHost); ok {
		c.Connection.Host = v
	}
	if v, ok := get(EnvPort); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Connection.Port = n
	}
	if v, ok := get(EnvClientID); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvClientID, err)
		}
		c.Connection.ClientID = n
	}
	if v, ok := get(EnvRefreshInterval); ok {
		var d Duration
		if err := d.parse(v); err != nil {
			return fmt.Errorf("%s: %w", EnvRefreshInterval, err)
		}
		c.Monitoring.Interval = d
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := get(EnvTelegramToken); ok {
		c.Alerts.TelegramToken = v
	}
	if v, ok := get(EnvTelegramChatID); ok {
		c.Alerts.TelegramChatID = v
	}
	if v, ok := get(EnvWebhookURL); ok {
		c.Alerts.WebhookURL = v
	}
	return nil
}
