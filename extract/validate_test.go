package extract

import "testing"

func TestValidEAN(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"9300000000001", true},
		{"87118340", true},          // 8 digits, shortest valid
		{"12345678901234", true},    // 14 digits, longest valid
		{"1234567", false},          // too short
		{"123456789012345", false},  // too long
		{"93000000 00001", false},   // embedded whitespace
		{"93000000a0001", false},    // non-digit
		{"", false},
		{"  9300000000001  ", true}, // surrounding whitespace is trimmed
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := ValidEAN(tt.value); got != tt.want {
				t.Fatalf("ValidEAN(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		whole    string
		fraction string
		want     string
		ok       bool
	}{
		{name: "plain", whole: "129", fraction: "99", want: "129.99", ok: true},
		{name: "no fraction", whole: "129", fraction: "", want: "129.00", ok: true},
		{name: "dash fraction", whole: "129", fraction: "-", want: "129.00", ok: true},
		{name: "thousands separator", whole: "1.299", fraction: "95", want: "1299.95", ok: true},
		{name: "currency text", whole: "€ 49", fraction: "50", want: "49.50", ok: true},
		{name: "zero", whole: "0", fraction: "00", ok: false},
		{name: "no digits", whole: "gratis", fraction: "", ok: false},
		{name: "empty", whole: "", fraction: "99", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePrice(tt.whole, tt.fraction)
			if ok != tt.ok {
				t.Fatalf("NormalizePrice(%q, %q) ok=%v, want %v", tt.whole, tt.fraction, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("NormalizePrice(%q, %q) = %q, want %q", tt.whole, tt.fraction, got, tt.want)
			}
		})
	}
}
