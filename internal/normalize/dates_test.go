package normalize

import "testing"

func TestNormalizeExpiry(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "month abbreviation form", input: "Jul-18-2025", expected: "2025-07-18", ok: true},
		{name: "lowercase month", input: "jul-18-2025", expected: "2025-07-18", ok: true},
		{name: "iso passes through unchanged", input: "2025-07-18", expected: "2025-07-18", ok: true},
		{name: "single digit day", input: "Mar-5-2026", expected: "2026-03-05", ok: true},
		{name: "december", input: "Dec-31-2025", expected: "2025-12-31", ok: true},
		{name: "invalid day of month", input: "Feb-30-2025", expected: "Feb-30-2025", ok: false},
		{name: "unknown month", input: "Juk-18-2025", expected: "Juk-18-2025", ok: false},
		{name: "us slash format unsupported", input: "07/18/2025", expected: "07/18/2025", ok: false},
		{name: "placeholder text", input: "Unknown", expected: "Unknown", ok: false},
		{name: "empty", input: "", expected: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeExpiry(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("NormalizeExpiry(%q) = (%q, %v), expected (%q, %v)",
					tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestNormalizeExpiryRoundTrip(t *testing.T) {
	// Normalizing an already-normalized date must be a no-op.
	first, ok := NormalizeExpiry("Jul-18-2025")
	if !ok {
		t.Fatal("expected Jul-18-2025 to parse")
	}
	second, ok := NormalizeExpiry(first)
	if !ok || second != first {
		t.Errorf("round trip changed value: %q -> %q", first, second)
	}
}
