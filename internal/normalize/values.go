package normalize

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

var (
	multiSpace     = regexp.MustCompile(`\s+`)
	thousandsDots  = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)
	currencySymbol = strings.NewReplacer("$", "", "CLP", "", "clp", "", " ", "")
)

// Clean trims the input and collapses internal whitespace. Blank values and
// the literal "null" are treated as absent.
func Clean(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(multiSpace.ReplaceAllString(*v, " "))
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

// ParseFloat parses a plain decimal number. A comma is accepted as the
// decimal separator. Unparseable or non-finite values are absent.
func ParseFloat(v *string) *float64 {
	s := Clean(v)
	if s == nil {
		return nil
	}
	t := strings.ReplaceAll(*s, " ", "")
	if strings.Contains(t, ",") {
		t = strings.ReplaceAll(t, ".", "")
		t = strings.ReplaceAll(t, ",", ".")
	}
	f, err := cast.ToFloat64E(t)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseInt parses an integer count, rounding fractional input.
func ParseInt(v *string) *int {
	f := ParseFloat(v)
	if f == nil {
		return nil
	}
	if *f > math.MaxInt32 || *f < math.MinInt32 {
		return nil
	}
	n := int(math.Round(*f))
	return &n
}

// ParseAmount parses a monetary value. Currency markers are dropped and
// dot-grouped thousands ("1.234.567") are accepted alongside a decimal comma.
func ParseAmount(v *string) *decimal.Decimal {
	s := Clean(v)
	if s == nil {
		return nil
	}
	t := currencySymbol.Replace(*s)
	switch {
	case strings.Contains(t, ","):
		t = strings.ReplaceAll(t, ".", "")
		t = strings.ReplaceAll(t, ",", ".")
	case thousandsDots.MatchString(t):
		t = strings.ReplaceAll(t, ".", "")
	}
	d, err := decimal.NewFromString(t)
	if err != nil {
		return nil
	}
	return &d
}

// ParseBool accepts true/false, the spreadsheet codes S/N, si/sí/no and 1/0.
// Anything else is absent.
func ParseBool(v *string) *bool {
	s := Clean(v)
	if s == nil {
		return nil
	}
	var b bool
	switch strings.ToLower(*s) {
	case "s", "si", "sí", "true", "1", "y", "yes":
		b = true
	case "n", "no", "false", "0":
		b = false
	default:
		return nil
	}
	return &b
}
