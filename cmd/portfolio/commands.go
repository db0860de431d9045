package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/inbox"
	"github.com/Zachkp/portfolio/internal/notify"
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a sample submission through the configured notifiers",
	Long: `Runs a submission through the same validation and notification path as the
contact endpoint, using the current NOTIFIERS configuration.

Example:
  portfolio notify-test --name "Jane" --email jane@example.com --message "Hello"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		notifier, err := notify.Build(a.cfg, notify.Deps{
			Logger:     a.logger,
			HTTPClient: notify.NewHTTPClient(a.cfg.NotifyTimeout),
			Inbox:      a.store,
		})
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		message, _ := cmd.Flags().GetString("message")

		svc := contact.NewService(notifier, a.logger, contact.WithTimeout(a.cfg.NotifyTimeout))
		sub, err := svc.Submit(cmd.Context(), contact.Payload{Name: name, Email: email, Message: message},
			contact.Source{RequestID: "cli"})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", contact.MsgReceived, sub.SubmittedAt.Format(time.RFC3339))
		return nil
	},
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Inspect and maintain the stored inbox",
}

var inboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print stored messages as JSON, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		store, err := a.inbox(cmd.Context())
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		pending, _ := cmd.Flags().GetBool("pending")
		msgs, err := store.List(cmd.Context(), inbox.ListOptions{Limit: limit, UnacknowledgedOnly: pending})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	},
}

var inboxPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete messages older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		store, err := a.inbox(cmd.Context())
		if err != nil {
			return err
		}

		retention, _ := cmd.Flags().GetDuration("older-than")
		if retention <= 0 {
			retention = a.cfg.Inbox.Retention
		}
		n, err := store.Purge(cmd.Context(), time.Now().Add(-retention))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d message(s) older than %s\n", n, retention)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

func init() {
	notifyTestCmd.Flags().String("name", "Portfolio Test", "Sender name")
	notifyTestCmd.Flags().String("email", "test@example.com", "Sender email")
	notifyTestCmd.Flags().String("message", "This is a test message from the portfolio CLI.", "Message body")

	inboxListCmd.Flags().Int("limit", 50, "Maximum number of messages")
	inboxListCmd.Flags().Bool("pending", false, "Only unacknowledged messages")
	inboxPurgeCmd.Flags().Duration("older-than", 0, "Override INBOX_RETENTION")

	inboxCmd.AddCommand(inboxListCmd, inboxPurgeCmd)
	rootCmd.AddCommand(notifyTestCmd, inboxCmd, hashPasswordCmd)
}
