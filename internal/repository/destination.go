package repository

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/callgear-sync/cg-webhook/internal/config"
	"github.com/callgear-sync/cg-webhook/internal/models"
)

// Destination names the table and the eight columns a record is written to.
// Column order matches Args.
type Destination struct {
	Table   pgx.Identifier
	Columns [8]string
}

// DestinationFromConfig builds a Destination. The table may be schema-qualified.
func DestinationFromConfig(cfg config.DatabaseConfig) (Destination, error) {
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return Destination{}, fmt.Errorf("destination table is empty")
	}

	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return Destination{}, fmt.Errorf("destination table %q has too many parts", table)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return Destination{}, fmt.Errorf("destination table %q is malformed", table)
		}
	}

	c := cfg.Columns
	dest := Destination{
		Table: pgx.Identifier(parts),
		Columns: [8]string{
			c.NotificationTime,
			c.ChatIdentifier,
			c.VisitorPhoneNumber,
			c.Messages,
			c.EmployeeFullName,
			c.VisitorName,
			c.VisitorID,
			c.Status,
		},
	}

	seen := make(map[string]bool, len(dest.Columns))
	for _, col := range dest.Columns {
		if col == "" {
			return Destination{}, fmt.Errorf("destination column name is empty")
		}
		if seen[col] {
			return Destination{}, fmt.Errorf("destination column %q is mapped twice", col)
		}
		seen[col] = true
	}

	return dest, nil
}

// InsertSQL renders the parameterized insert for this destination.
func (d Destination) InsertSQL() string {
	cols := make([]string, len(d.Columns))
	params := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		cols[i] = pgx.Identifier{col}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Table.Sanitize(),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
}

// Args returns the insert parameters for record, positionally aligned with Columns.
func Args(record *models.NormalizedRecord) []any {
	var messages []byte
	if record.Messages != nil {
		messages = []byte(record.Messages)
	}
	return []any{
		record.NotificationTime,
		record.ChatIdentifier,
		record.VisitorPhoneNumber,
		messages,
		record.EmployeeFullName,
		record.VisitorName,
		record.VisitorID,
		record.Status,
	}
}
