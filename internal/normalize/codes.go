package normalize

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// NormalizeCode trims whitespace, uppercases, and strips non-alphanumeric characters.
// Returns nil if the input is nil or the result is empty.
func NormalizeCode(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	s = strings.ToUpper(s)
	s = nonAlphanumeric.ReplaceAllString(s, "")
	if s == "" {
		return nil
	}
	return &s
}

// placeholderIDs are values the discharge spreadsheets use when the patient's
// national identifier was not captured.
var placeholderIDs = map[string]bool{
	"SINRUT": true,
	"SR":     true,
	"0":      true,
	"NN":     true,
}

// NationalID normalizes a RUT-like identifier: uppercased, dots and spaces
// removed, dash kept before the check digit. Placeholders map to
// model.UnknownNationalID by the caller via IsPlaceholderID.
func NationalID(v *string) *string {
	s := Clean(v)
	if s == nil {
		return nil
	}
	id := strings.ToUpper(*s)
	id = strings.NewReplacer(".", "", " ", "").Replace(id)
	if id == "" {
		return nil
	}
	return &id
}

// IsPlaceholderID reports whether id is a known "not captured" marker.
// A value with no alphanumerics at all, like "-", counts as one.
func IsPlaceholderID(id string) bool {
	key := nonAlphanumeric.ReplaceAllString(strings.ToUpper(id), "")
	return key == "" || placeholderIDs[key]
}
