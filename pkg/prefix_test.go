package pkg

import "testing"

// TestParsePrefix tests CIDR parsing for both address families
func TestParsePrefix(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		expectError bool
	}{
		{
			name:  "IPv4 prefix",
			input: "192.0.2.0/24",
			want:  "192.0.2.0/24",
		},
		{
			name:  "IPv4 default route",
			input: "0.0.0.0/0",
			want:  "0.0.0.0/0",
		},
		{
			name:  "IPv4 host route",
			input: "192.0.2.1/32",
			want:  "192.0.2.1/32",
		},
		{
			name:  "IPv6 prefix",
			input: "2001:db8::/32",
			want:  "2001:db8::/32",
		},
		{
			name:  "Bracketed IPv6 prefix",
			input: "[2001:db8::]/32",
			want:  "2001:db8::/32",
		},
		{
			name:        "IPv4 host bits below mask",
			input:       "192.0.2.1/24",
			expectError: true,
		},
		{
			name:        "IPv6 host bits below mask",
			input:       "2001:db8::1/32",
			expectError: true,
		},
		{
			name:        "IPv4 length out of range",
			input:       "192.0.2.0/33",
			expectError: true,
		},
		{
			name:        "IPv6 length out of range",
			input:       "2001:db8::/129",
			expectError: true,
		},
		{
			name:        "Missing length",
			input:       "192.0.2.0",
			expectError: true,
		},
		{
			name:        "Trailing garbage",
			input:       "192.0.2.0/24x",
			expectError: true,
		},
		{
			name:        "Bracket without slash",
			input:       "[2001:db8::]32",
			expectError: true,
		},
		{
			name:        "Unclosed bracket",
			input:       "[2001:db8::/32",
			expectError: true,
		},
		{
			name:        "Not a prefix at all",
			input:       "once upon a time",
			expectError: true,
		},
		{
			name:        "Empty input",
			input:       "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrefix(tt.input)
			if (err != nil) != tt.expectError {
				t.Fatalf("ParsePrefix(%q) error = %v, expectError %v", tt.input, err, tt.expectError)
			}
			if tt.expectError {
				return
			}
			if got.String() != tt.want {
				t.Errorf("ParsePrefix(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
