package db

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 100},
		{"1020000", 102000000},
		{"12.34", 1234},
		{"0.005", 1},
		{"-0.005", -1},
		{"99.999", 10000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ToCents(decimal.RequireFromString(tt.in))
			if got != tt.want {
				t.Errorf("ToCents(%s) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}

	if got := FromCents(1234); !got.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("FromCents(1234) = %s", got)
	}
	if centsPtr(nil) != nil || fromCentsPtr(nil) != nil {
		t.Error("nil pointers should stay nil")
	}
}
