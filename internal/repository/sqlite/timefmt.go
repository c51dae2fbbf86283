package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// timeLayout is how the store writes timestamps: the same text form SQLite's
// CURRENT_TIMESTAMP produces, so rows written by Go and rows defaulted by
// SQLite sort and compare alike.
const timeLayout = "2006-01-02 15:04:05"

// readLayouts are tried in order when reading a timestamp back. Bulk-loaded
// rows may carry any of these forms.
var readLayouts = []string{
	timeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime decodes a timestamp column selected as TEXT. An empty or NULL
// value yields the zero time.
func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s.String)
}
