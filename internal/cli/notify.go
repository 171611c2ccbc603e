package cli

import (
	"fmt"

	"github.com/ihavespoons/attn/internal/logger"
	"github.com/ihavespoons/attn/internal/notify"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage push notifications",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long: `Send a test notification to the configured ntfy topic.

The test bypasses pause, quiet hours, and debouncing, so it verifies
the server and topic configuration directly.

Example:
  attn notify test`,
	RunE: runNotifyTest,
}

var notifyTopicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Show the subscription topic",
	RunE:  runNotifyTopic,
}

var notifyTopicResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Generate a new subscription topic",
	Long: `Generate a new random subscription topic.

Anyone who knows the topic name can read your notifications, so reset
it if the old one may have leaked. Re-subscribe your devices afterward.`,
	RunE: runNotifyTopicReset,
}

func init() {
	notifyTopicCmd.AddCommand(notifyTopicResetCmd)
	notifyCmd.AddCommand(notifyTestCmd)
	notifyCmd.AddCommand(notifyTopicCmd)
	rootCmd.AddCommand(notifyCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadManager()
	if err != nil {
		return err
	}
	logger.InitQuiet()

	dispatcher := notify.NewDispatcher(cfg, nil)
	if err := dispatcher.SendTest(); err != nil {
		return fmt.Errorf("test notification failed: %w", err)
	}

	fmt.Printf("Test notification sent to %s\n", cfg.Settings().Ntfy.SubscribeURL())
	return nil
}

func runNotifyTopic(cmd *cobra.Command, args []string) error {
	cfg, err := loadManager()
	if err != nil {
		return err
	}

	settings := cfg.Settings()
	fmt.Printf("Topic: %s\n", settings.Ntfy.Topic)
	fmt.Printf("Subscribe at: %s\n", settings.Ntfy.SubscribeURL())
	return nil
}

func runNotifyTopicReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadManager()
	if err != nil {
		return err
	}

	topic, err := cfg.RegenerateTopic()
	if err != nil {
		return fmt.Errorf("failed to regenerate topic: %w", err)
	}

	fmt.Printf("New topic: %s\n", topic)
	fmt.Printf("Subscribe at: %s\n", cfg.Settings().Ntfy.SubscribeURL())
	return nil
}
