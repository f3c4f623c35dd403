package alerts

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Format is an export encoding of a report
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// IsValid returns true if the format is a known value
func (f Format) IsValid() bool {
	return f == FormatJSON || f == FormatMsgpack
}

// NewReport builds the export document of an evaluation, alerts ordered Critical first
func NewReport(ev Evaluation, at time.Time) Report {
	return Report{
		Timestamp: at.UTC(),
		Summary:   ev.Summary,
		Alerts:    SortBySeverity(ev.Alerts),
	}
}

// Encode writes the report in the given format
func (r Report) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report as json: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewEncoder(w).Encode(r); err != nil {
			return fmt.Errorf("failed to encode report as msgpack: %w", err)
		}
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	return nil
}

// DecodeReport reads a report written by Encode
func DecodeReport(rd io.Reader, format Format) (Report, error) {
	var r Report
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(rd).Decode(&r); err != nil {
			return Report{}, fmt.Errorf("failed to decode json report: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(rd).Decode(&r); err != nil {
			return Report{}, fmt.Errorf("failed to decode msgpack report: %w", err)
		}
	default:
		return Report{}, fmt.Errorf("unknown report format %q", format)
	}
	return r, nil
}
