// Package export renders stored records as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/models"
)

// Format is an export encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Header is the CSV column order
var Header = []string{"id", "category", "media_url", "description", "captured_at", "is_video", "local_media_path", "account"}

// ParseFormat validates a format name. An empty name means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", errs.New(errs.ErrorTypeInput, fmt.Sprintf("unsupported export format %q", s))
}

// ContentType returns the HTTP media type for f
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Extension returns the file extension for f, including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// Write encodes records to w in format f
func Write(w io.Writer, f Format, records []models.ContentRecord) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	}
	return errs.New(errs.ErrorTypeInput, fmt.Sprintf("unsupported export format %q", f))
}

// WriteJSON writes records as an indented JSON array. A nil slice is
// written as [].
func WriteJSON(w io.Writer, records []models.ContentRecord) error {
	if records == nil {
		records = []models.ContentRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// WriteCSV writes a header row followed by one row per record
func WriteCSV(w io.Writer, records []models.ContentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		local := ""
		if r.LocalMediaPath != nil {
			local = *r.LocalMediaPath
		}
		row := []string{
			strconv.FormatInt(r.ID, 10),
			string(r.Category),
			r.MediaURL,
			r.Description,
			r.CapturedAt.UTC().Format(time.RFC3339Nano),
			strconv.FormatBool(r.IsVideo),
			local,
			r.Account,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
