package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/callgear-sync/cg-webhook/internal/config"
	"github.com/callgear-sync/cg-webhook/internal/dlq"
	"github.com/callgear-sync/cg-webhook/internal/logging"
)

var (
	dlqListLimit int
	dlqOlderThan time.Duration
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect captured rejected payloads",
	Long:  "Inspect or purge the payloads captured when dlq.enabled is set (file or jetstream backend).",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured payloads, oldest first",
	RunE:  runDLQList,
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete captured payloads",
	Long: `Deletes captured payloads. The file backend honours --older-than;
the jetstream backend purges the whole stream.`,
	RunE: runDLQPurge,
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show capture counts for the configured backend",
	RunE:  runDLQStats,
}

func init() {
	dlqListCmd.Flags().IntVar(&dlqListLimit, "limit", 20, "maximum entries to show")
	dlqPurgeCmd.Flags().DurationVar(&dlqOlderThan, "older-than", 7*24*time.Hour, "file backend: only delete entries older than this")
	dlqCmd.AddCommand(dlqListCmd, dlqStatsCmd, dlqPurgeCmd)
	rootCmd.AddCommand(dlqCmd)
}

// dlqInspector is implemented by both backends.
type dlqInspector interface {
	List(ctx context.Context, limit int) ([]dlq.FailedPayload, error)
	Close() error
}

func openDLQ(ctx context.Context, cfg config.DLQConfig, logger *logging.Logger) (dlqInspector, error) {
	switch cfg.Backend {
	case "jetstream":
		return dlq.NewJetStreamQueue(ctx, cfg.NatsURL, logger)
	default:
		return dlq.NewQueue(cfg.BasePath, logger)
	}
}

func runDLQList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	q, err := openDLQ(cmd.Context(), cfg.DLQ, newLogger(cfg, os.Stderr))
	if err != nil {
		return err
	}
	defer q.Close()

	entries, err := q.List(cmd.Context(), dlqListLimit)
	if err != nil {
		return err
	}

	printEntries(cmd.OutOrStdout(), entries)
	return nil
}

func printEntries(w io.Writer, entries []dlq.FailedPayload) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No captured payloads")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-17s  %6d bytes  %s\n",
			e.Timestamp.Format(time.RFC3339), e.Reason, e.Size, e.Error)
	}
}

func runDLQPurge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)
	out := cmd.OutOrStdout()

	if cfg.DLQ.Backend == "jetstream" {
		q, err := dlq.NewJetStreamQueue(cmd.Context(), cfg.DLQ.NatsURL, logger)
		if err != nil {
			return err
		}
		defer q.Close()
		if err := q.Purge(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(out, "Purged stream %s\n", dlq.StreamName)
		return nil
	}

	q, err := dlq.NewQueue(cfg.DLQ.BasePath, logger)
	if err != nil {
		return err
	}
	removed, err := q.Purge(dlqOlderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed %d entries older than %s\n", removed, dlqOlderThan)
	return nil
}

func runDLQStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	var stats map[string]interface{}
	if cfg.DLQ.Backend == "jetstream" {
		q, err := dlq.NewJetStreamQueue(cmd.Context(), cfg.DLQ.NatsURL, logger)
		if err != nil {
			return err
		}
		defer q.Close()
		stats = q.Stats(cmd.Context())
	} else {
		q, err := dlq.NewQueue(cfg.DLQ.BasePath, logger)
		if err != nil {
			return err
		}
		stats = q.Stats()
	}

	printStats(cmd.OutOrStdout(), stats)
	return nil
}

func printStats(w io.Writer, stats map[string]interface{}) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-15s %v\n", k+":", stats[k])
	}
}
