package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

const (
	envPrefix                    = "HABITUAL"
	defaultHTTPAddress           = "0.0.0.0:8080"
	defaultDatabaseDriver        = DatabaseDriverSQLite
	defaultDatabasePath          = "habitual.db"
	defaultLogLevel              = "info"
	defaultCookieName            = "app_session"
	defaultIssuer                = "tauth"
	defaultTimezone              = "Local"
	defaultBaseURL               = "http://localhost:3000"
	defaultEmailFrom             = "Habit Tracker <notifications@example.com>"
	defaultPushSubscriber        = "mailto:notifications@example.com"
	defaultChannelTimeout        = 10 * time.Second
	defaultNotificationListLimit = 50
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabaseDriver  string
	DatabasePath    string
	DatabaseDSN     string
	LogLevel        string
	LogFile         string
	TAuthSigningKey string
	TAuthIssuer     string
	TAuthCookieName string
	CronSecret      string
	Location        *time.Location
	BaseURL         string
	Email           EmailConfig
	Push            PushConfig
	ChannelTimeout  time.Duration
	NotificationCap int
}

// EmailConfig holds the outbound email channel settings. An empty API key disables the channel.
type EmailConfig struct {
	ResendAPIKey string
	From         string
}

// PushConfig holds the VAPID credentials for browser push. Missing keys disable the channel.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Enabled reports whether both halves of the VAPID key pair are present.
func (p PushConfig) Enabled() bool {
	return strings.TrimSpace(p.VAPIDPublicKey) != "" && strings.TrimSpace(p.VAPIDPrivateKey) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultIssuer)
	configViper.SetDefault("app.timezone", defaultTimezone)
	configViper.SetDefault("app.base_url", defaultBaseURL)
	configViper.SetDefault("email.from", defaultEmailFrom)
	configViper.SetDefault("push.subscriber", defaultPushSubscriber)
	configViper.SetDefault("notifications.channel_timeout", defaultChannelTimeout)
	configViper.SetDefault("notifications.list_limit", defaultNotificationListLimit)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	location, err := time.LoadLocation(strings.TrimSpace(configViper.GetString("app.timezone")))
	if err != nil {
		return AppConfig{}, fmt.Errorf("app.timezone: %w", err)
	}

	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:    configViper.GetString("database.path"),
		DatabaseDSN:     configViper.GetString("database.dsn"),
		LogLevel:        configViper.GetString("log.level"),
		LogFile:         configViper.GetString("log.file"),
		TAuthSigningKey: configViper.GetString("tauth.signing_secret"),
		TAuthIssuer:     configViper.GetString("tauth.issuer"),
		TAuthCookieName: configViper.GetString("tauth.cookie_name"),
		CronSecret:      configViper.GetString("cron.secret"),
		Location:        location,
		BaseURL:         strings.TrimRight(configViper.GetString("app.base_url"), "/"),
		Email: EmailConfig{
			ResendAPIKey: configViper.GetString("email.resend_api_key"),
			From:         configViper.GetString("email.from"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  configViper.GetString("push.vapid_public_key"),
			VAPIDPrivateKey: configViper.GetString("push.vapid_private_key"),
			Subscriber:      configViper.GetString("push.subscriber"),
		},
		ChannelTimeout:  configViper.GetDuration("notifications.channel_timeout"),
		NotificationCap: configViper.GetInt("notifications.list_limit"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("tauth.signing_secret is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	if strings.TrimSpace(c.TAuthIssuer) == "" {
		return fmt.Errorf("tauth.issuer is required")
	}
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DatabaseDriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.ChannelTimeout <= 0 {
		return fmt.Errorf("notifications.channel_timeout must be positive")
	}
	if c.NotificationCap <= 0 {
		return fmt.Errorf("notifications.list_limit must be positive")
	}
	return nil
}
