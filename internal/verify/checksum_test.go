package verify

import (
	"strings"
	"testing"
)

func TestChecksum(t *testing.T) {
	t.Parallel()

	// sha256("abc")
	const abcSHA256 = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	tests := []struct {
		name     string
		data     string
		algo     string
		expected string
		wantErr  string
	}{
		{
			name:     "sha256 match",
			data:     "abc",
			algo:     "sha256",
			expected: abcSHA256,
		},
		{
			name:     "case-insensitive comparison",
			data:     "abc",
			algo:     "sha256",
			expected: strings.ToUpper(abcSHA256),
		},
		{
			name:     "surrounding whitespace tolerated",
			data:     "abc",
			algo:     "sha256",
			expected: "  " + abcSHA256 + "\n",
		},
		{
			name:     "mismatch",
			data:     "abc",
			algo:     "sha256",
			expected: strings.Repeat("0", 64),
			wantErr:  "checksum mismatch",
		},
		{
			name:     "wrong digest length",
			data:     "abc",
			algo:     "sha256",
			expected: "abcd",
			wantErr:  "not a valid sha256",
		},
		{
			name:     "non-hex digest",
			data:     "abc",
			algo:     "sha256",
			expected: strings.Repeat("z", 64),
			wantErr:  "not a valid sha256",
		},
		{
			name: "sha512 match",
			data: "abc",
			algo: "sha512",
			expected: "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a" +
				"2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
		},
		{
			name:     "unknown algo",
			data:     "abc",
			algo:     "md5",
			expected: strings.Repeat("a", 32),
			wantErr:  "unknown hash algo",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Checksum([]byte(tc.data), tc.algo, tc.expected)
			if tc.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", tc.wantErr)
				}
				if !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("error: got %q want substring %q", err.Error(), tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestIsHexDigest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		len   int
		want  bool
	}{
		{"valid lowercase", strings.Repeat("ab", 32), 64, true},
		{"valid uppercase", strings.Repeat("AB", 32), 64, true},
		{"wrong length", "abcd", 64, false},
		{"odd length", "abc", 0, false},
		{"non-hex rune", strings.Repeat("g", 64), 64, false},
		{"any even length when unspecified", "deadbeef", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsHexDigest(tc.value, tc.len); got != tc.want {
				t.Errorf("IsHexDigest(%q, %d) = %v, want %v", tc.value, tc.len, got, tc.want)
			}
		})
	}
}
