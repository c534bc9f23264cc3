package ingest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"energy_forecast/internal/model"
)

// Parser reads measurements from a source.
type Parser interface {
	Parse(r io.Reader) ([]model.Measurement, error)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts RFC 3339 and the common ISO 8601 variants. A
// timestamp without a zone is taken as UTC. The result is always UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", model.ErrInvalidMeasurement, s)
}
