package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Notifier names accepted in NOTIFIERS.
const (
	NotifierLog      = "log"
	NotifierResend   = "resend"
	NotifierSMTP     = "smtp"
	NotifierTelegram = "telegram"
	NotifierTwilio   = "twilio"
	NotifierInbox    = "inbox"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for the portfolio service
type Config struct {
	// Server
	Environment string `env:"ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	GinMode     string `env:"GIN_MODE" envDefault:"debug"`
	StaticDir   string `env:"STATIC_DIR"`

	// Logging
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSize    int    `env:"LOG_MAX_SIZE" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAge     int    `env:"LOG_MAX_AGE" envDefault:"7"`

	// Notification step
	Notifiers     []string      `env:"NOTIFIERS" envSeparator:"," envDefault:"log"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
	NotifyRate    float64       `env:"NOTIFY_RATE" envDefault:"0"`
	NotifyBurst   int           `env:"NOTIFY_BURST" envDefault:"5"`
	ContactTo     string        `env:"CONTACT_TO"`
	ContactFrom   string        `env:"CONTACT_FROM" envDefault:"noreply@localhost"`

	SMTP     SMTPConfig
	Resend   ResendConfig
	Telegram TelegramConfig
	Twilio   TwilioConfig
	Inbox    InboxConfig
	Admin    AdminConfig

	PrivacySalt string `env:"PRIVACY_SALT"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Port     string `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
}

type ResendConfig struct {
	APIKey  string `env:"RESEND_API_KEY"`
	BaseURL string `env:"RESEND_BASE_URL" envDefault:"https://api.resend.com"`
}

type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `env:"TELEGRAM_CHAT_ID"`
	BaseURL  string `env:"TELEGRAM_BASE_URL" envDefault:"https://api.telegram.org"`
}

type TwilioConfig struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	From       string `env:"TWILIO_FROM"`
	To         string `env:"TWILIO_TO"`
	BaseURL    string `env:"TWILIO_BASE_URL" envDefault:"https://api.twilio.com"`
}

// InboxConfig configures the optional database-backed inbox channel.
type InboxConfig struct {
	Driver    string        `env:"INBOX_DRIVER" envDefault:"sqlite"`
	DSN       string        `env:"INBOX_DSN" envDefault:"./data/inbox.db"`
	Retention time.Duration `env:"INBOX_RETENTION" envDefault:"8760h"`
}

type AdminConfig struct {
	Username     string `env:"ADMIN_USERNAME" envDefault:"admin"`
	Password     string `env:"ADMIN_PASSWORD"`
	PasswordHash string `env:"ADMIN_PASSWORD_HASH"`
	Secret       string `env:"ADMIN_SECRET"`
}

// Load reads .env files (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	envLocations := []string{".env"}
	if envName := os.Getenv("ENV"); envName != "" {
		envLocations = append([]string{fmt.Sprintf(".env.%s", envName)}, envLocations...)
	}

	for _, loc := range envLocations {
		// godotenv.Load never overrides variables that are already set
		if err := godotenv.Load(loc); err == nil {
			break
		}
	}

	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	names := cfg.Notifiers[:0]
	for _, n := range cfg.Notifiers {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			names = append(names, n)
		}
	}
	cfg.Notifiers = names

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasNotifier reports whether the named channel is enabled.
func (c *Config) HasNotifier(name string) bool {
	for _, n := range c.Notifiers {
		if n == name {
			return true
		}
	}
	return false
}

// Validate checks that every enabled notifier has the settings it needs.
func (c *Config) Validate() error {
	if len(c.Notifiers) == 0 {
		return fmt.Errorf("%w: NOTIFIERS must name at least one channel", ErrInvalidConfig)
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("%w: NOTIFY_TIMEOUT must be positive", ErrInvalidConfig)
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("%w: GIN_MODE must be debug, release or test", ErrInvalidConfig)
	}

	for _, n := range c.Notifiers {
		var missing []string
		switch n {
		case NotifierLog:
		case NotifierResend:
			if c.Resend.APIKey == "" {
				missing = append(missing, "RESEND_API_KEY")
			}
			if c.ContactTo == "" {
				missing = append(missing, "CONTACT_TO")
			}
		case NotifierSMTP:
			if c.SMTP.User == "" || c.SMTP.Password == "" {
				missing = append(missing, "SMTP_USER", "SMTP_PASS")
			}
			if c.ContactTo == "" {
				missing = append(missing, "CONTACT_TO")
			}
		case NotifierTelegram:
			if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
				missing = append(missing, "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID")
			}
		case NotifierTwilio:
			if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
				missing = append(missing, "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN")
			}
			if c.Twilio.From == "" || c.Twilio.To == "" {
				missing = append(missing, "TWILIO_FROM", "TWILIO_TO")
			}
		case NotifierInbox:
			if c.Inbox.Driver != "sqlite" && c.Inbox.Driver != "postgres" {
				return fmt.Errorf("%w: unsupported INBOX_DRIVER %q", ErrInvalidConfig, c.Inbox.Driver)
			}
		default:
			return fmt.Errorf("%w: unknown notifier %q", ErrInvalidConfig, n)
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: notifier %s requires %s", ErrInvalidConfig, n, strings.Join(missing, ", "))
		}
	}

	if c.IsProduction() && c.HasNotifier(NotifierInbox) && c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		return fmt.Errorf("%w: ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required in production", ErrInvalidConfig)
	}
	return nil
}
