package http

import "testing"

func TestFormatNaira(t *testing.T) {
	tests := []struct {
		name string
		kobo int64
		want string
	}{
		{"zero", 0, "₦0,00"},
		{"under one naira", 99, "₦0,99"},
		{"simple", 12_34, "₦12,34"},
		{"thousands", 1_234_567_89, "₦1.234.567,89"},
		{"exact thousand", 1_000_00, "₦1.000,00"},
		{"negative", -50_000_00, "-₦50.000,00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatNaira(tt.kobo); got != tt.want {
				t.Errorf("formatNaira(%d) = %q, want %q", tt.kobo, got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"with\x00null", "withnull"},
		{"keeps\ttabs", "keeps\ttabs"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
