package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"saaskit/internal/profiles"
)

// SchemaVersion identifies the CSV export format version.
// Increment it when columns are added or reordered.
const SchemaVersion = "1"

var csvColumns = []string{
	"schemaVersion",
	"id",
	"email",
	"fullName",
	"avatarUrl",
	"role",
	"isSubscriber",
	"hasAcceptedTerms",
	"lastActiveAt",
	"createdAt",
	"updatedAt",
}

// CSVExporter exports profiles to CSV format.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Export writes profiles to w, header first, in the given order.
func (e *CSVExporter) Export(w io.Writer, list []profiles.Profile) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, p := range list {
		if err := writer.Write(e.profileToRow(p)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *CSVExporter) profileToRow(p profiles.Profile) []string {
	row := make([]string, len(csvColumns))

	row[0] = SchemaVersion
	row[1] = p.ID.String()
	row[2] = p.Email
	row[3] = formatOptionalString(p.FullName)
	row[4] = formatOptionalString(p.AvatarURL)
	row[5] = string(p.Role)
	row[6] = strconv.FormatBool(p.IsSubscriber)
	row[7] = strconv.FormatBool(p.HasAcceptedTerms)
	row[8] = formatOptionalTime(p.LastActiveAt)
	row[9] = formatTime(p.CreatedAt)
	row[10] = formatTime(p.UpdatedAt)

	return row
}

func formatOptionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// formatOptionalTime formats an optional time pointer to RFC3339 string.
func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
