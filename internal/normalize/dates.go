package normalize

import (
	"time"
)

// Date formats found in discharge spreadsheet exports. Slash and dash
// forms are day-first.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02-01-2006",
	"2-1-2006",
	"02-01-2006 15:04",
	"02-01-2006 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2006/01/02",
}

// ParseDate attempts to parse a date string in multiple common formats.
// Returns nil if the input is nil, blank or unparseable.
func ParseDate(v *string) *time.Time {
	s := Clean(v)
	if s == nil {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}
