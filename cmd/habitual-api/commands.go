package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/MarcoPoloResearchLab/habitual/internal/client"
	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const cronSecretBytes = 32

// newRemindCommand runs one reminder pass against a running server, for use from cron.
func newRemindCommand() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Trigger a reminder pass on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := client.New(client.Config{BaseURL: serverURL})
			if err != nil {
				return err
			}
			result, err := apiClient.TriggerReminders(cmd.Context(), viper.GetString("cron.secret"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reminders processed: %d\n", result.RemindersProcessed)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server-url", "http://localhost:8080", "Base URL of the habitual API")
	return cmd
}

func newKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate a VAPID key pair and a cron secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			secret := make([]byte, cronSecretBytes)
			if _, err := rand.Read(secret); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "HABITUAL_PUSH_VAPID_PUBLIC_KEY=%s\n", publicKey)
			fmt.Fprintf(out, "HABITUAL_PUSH_VAPID_PRIVATE_KEY=%s\n", privateKey)
			fmt.Fprintf(out, "HABITUAL_CRON_SECRET=%s\n", hex.EncodeToString(secret))
			return nil
		},
	}
}
