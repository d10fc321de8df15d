package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/callgear-sync/cg-webhook/internal/seeder"
)

var (
	seedURL      string
	seedCount    int
	seedInterval time.Duration
	seedSeed     int64
	seedQuirks   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Send generated notifications to a running webhook",
	Long: `Generates CallGear-style notifications (mixed timestamp formats, message
shapes and optional visitor info) and posts them to a webhook URL.

Examples:
  cg-webhook seed --count 100
  cg-webhook seed --url http://webhook:8005/webhook --quirks --interval 50ms`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedURL, "url", "http://localhost:8005/webhook", "webhook URL")
	seedCmd.Flags().IntVar(&seedCount, "count", 10, "number of notifications to send")
	seedCmd.Flags().DurationVar(&seedInterval, "interval", 0, "delay between notifications")
	seedCmd.Flags().Int64Var(&seedSeed, "seed", 0, "random seed (0 picks one)")
	seedCmd.Flags().BoolVar(&seedQuirks, "quirks", false, "corrupt some bodies with doubled quotes like the vendor does")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	sender := seeder.NewSender(seedURL, seeder.NewGenerator(seedSeed, seedQuirks), 10*time.Second)
	result, err := sender.Run(cmd.Context(), seedCount, seedInterval)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sent %d notifications to %s\n", result.Sent, seedURL)
	for status, n := range result.ByStatus {
		fmt.Fprintf(out, "  HTTP %d: %d\n", status, n)
	}
	if result.Errors > 0 {
		fmt.Fprintf(out, "  transport errors: %d\n", result.Errors)
	}
	return err
}
