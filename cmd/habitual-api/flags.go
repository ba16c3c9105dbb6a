package main

import (
	"github.com/MarcoPoloResearchLab/habitual/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("database-dsn", "", "PostgreSQL connection string")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Optional rotating log file path")
	flags.String("tauth-signing-secret", "", "Session JWT signing secret (overrides env)")
	flags.String("tauth-issuer", defaults.GetString("tauth.issuer"), "Expected session JWT issuer")
	flags.String("tauth-cookie-name", defaults.GetString("tauth.cookie_name"), "Session cookie name")
	flags.String("cron-secret", "", "Shared secret for the reminder trigger (overrides env)")
	flags.String("timezone", defaults.GetString("app.timezone"), "IANA time zone for calendar days and reminder times")
	flags.String("base-url", defaults.GetString("app.base_url"), "Public URL of the web app, used for notification links")
	flags.String("resend-api-key", "", "Resend API key enabling the email channel")
	flags.String("email-from", defaults.GetString("email.from"), "Sender address for notification email")
	flags.String("vapid-public-key", "", "VAPID public key enabling the push channel")
	flags.String("vapid-private-key", "", "VAPID private key enabling the push channel")
	flags.String("push-subscriber", defaults.GetString("push.subscriber"), "VAPID subscriber contact (mailto: or https: URL)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "tauth.signing_secret", "tauth-signing-secret")
	bindFlag(cmd, "tauth.issuer", "tauth-issuer")
	bindFlag(cmd, "tauth.cookie_name", "tauth-cookie-name")
	bindFlag(cmd, "cron.secret", "cron-secret")
	bindFlag(cmd, "app.timezone", "timezone")
	bindFlag(cmd, "app.base_url", "base-url")
	bindFlag(cmd, "email.resend_api_key", "resend-api-key")
	bindFlag(cmd, "email.from", "email-from")
	bindFlag(cmd, "push.vapid_public_key", "vapid-public-key")
	bindFlag(cmd, "push.vapid_private_key", "vapid-private-key")
	bindFlag(cmd, "push.subscriber", "push-subscriber")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}
