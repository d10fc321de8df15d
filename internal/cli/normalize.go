package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/callgear-sync/cg-webhook/internal/models"
	"github.com/callgear-sync/cg-webhook/internal/normalizer"
)

var normalizeOutput string

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Normalize a notification body without storing it",
	Long: `Reads a webhook body from a file (or stdin when no file or "-" is given),
applies the same repair and normalization as POST /webhook and prints the
record that would be stored.

Examples:
  cg-webhook normalize payload.json
  cat payload.json | cg-webhook normalize --output yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeOutput, "output", "o", "json", "output format: json, yaml")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	if normalizeOutput != "json" && normalizeOutput != "yaml" {
		return fmt.Errorf("unsupported output format %q (supported: json, yaml)", normalizeOutput)
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	formats := normalizer.DefaultTimestampLayouts
	if cfg, err := loadConfig(); err == nil {
		formats = cfg.Normalizer.TimestampFormats
	}

	record, err := normalizer.New(formats...).Normalize(body)
	if err != nil {
		return err
	}

	return writeRecord(cmd.OutOrStdout(), record, normalizeOutput)
}

// recordView is a NormalizedRecord with messages decoded, so YAML output shows
// structure instead of a byte string.
type recordView struct {
	NotificationTime   *string     `json:"notification_time" yaml:"notification_time"`
	ChatIdentifier     *string     `json:"chat_identifier" yaml:"chat_identifier"`
	VisitorPhoneNumber *string     `json:"visitor_phone_number" yaml:"visitor_phone_number"`
	Messages           interface{} `json:"messages" yaml:"messages"`
	EmployeeFullName   *string     `json:"employee_full_name" yaml:"employee_full_name"`
	VisitorName        *string     `json:"visitor_name" yaml:"visitor_name"`
	VisitorID          *string     `json:"visitor_id" yaml:"visitor_id"`
	Status             string      `json:"status" yaml:"status"`
}

func newRecordView(r *models.NormalizedRecord) (recordView, error) {
	v := recordView{
		ChatIdentifier:     r.ChatIdentifier,
		VisitorPhoneNumber: r.VisitorPhoneNumber,
		EmployeeFullName:   r.EmployeeFullName,
		VisitorName:        r.VisitorName,
		VisitorID:          r.VisitorID,
		Status:             r.Status,
	}
	if r.NotificationTime != nil {
		ts := r.NotificationTime.Format(time.RFC3339Nano)
		v.NotificationTime = &ts
	}
	if r.Messages != nil {
		if err := json.Unmarshal(r.Messages, &v.Messages); err != nil {
			return recordView{}, fmt.Errorf("failed to decode messages: %w", err)
		}
	}
	return v, nil
}

func writeRecord(w io.Writer, record *models.NormalizedRecord, format string) error {
	view, err := newRecordView(record)
	if err != nil {
		return err
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
}
