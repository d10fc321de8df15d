package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/callgear-sync/cg-webhook/internal/config"
	"github.com/callgear-sync/cg-webhook/internal/logging"
)

// Version is reported by `version` and GET /. Overridden at build time with -ldflags.
var Version = "1.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cg-webhook",
	Short: "CallGear notification webhook",
	Long: `cg-webhook receives CallGear call and chat notifications over HTTP,
repairs the vendor's malformed JSON, normalizes the fields and stores each
notification as one row in PostgreSQL.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml, then /etc/cg-webhook/config.yaml)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *logging.Logger {
	return logging.New(w, cfg.Logging)
}
