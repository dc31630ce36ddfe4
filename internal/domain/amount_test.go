package domain

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"50000", 50000},
		{"50,000", 50000},
		{"₩1,234,000", 1234000},
		{"50,000원", 50000},
		{"-3,000", -3000},
		{"1234.5", 1234.5},
		{"", 0},
		{"-", 0},
		{"n/a", 0},
		{"1.2.3", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseAmount(tt.raw); got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[float64]string{
		50000:  "50000",
		1234.5: "1234.5",
		0:      "0",
	}
	for in, want := range tests {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}
