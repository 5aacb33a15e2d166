package validation

import (
	"testing"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

func TestIsValidIdentity(t *testing.T) {
	tests := []struct {
		name  string
		id    model.Identity
		valid bool
	}{
		{
			name:  "wallet address",
			id:    "0x52908400098527886e0f7030069857d2e4169ee7",
			valid: true,
		},
		{
			name:  "plain principal",
			id:    "alice",
			valid: true,
		},
		{
			name:  "short wallet address",
			id:    "0x1234",
			valid: false,
		},
		{
			name:  "non hex wallet address",
			id:    "0xz2908400098527886e0f7030069857d2e4169ee7",
			valid: false,
		},
		{
			name:  "contains space",
			id:    "al ice",
			valid: false,
		},
		{
			name:  "empty string",
			id:    "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidIdentity(tt.id)
			if got != tt.valid {
				t.Fatalf("IsValidIdentity(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}

func TestNormalizeIdentity(t *testing.T) {
	got := NormalizeIdentity(" 0XAbCdEF0000000000000000000000000000000001 ")
	if got != "0xabcdef0000000000000000000000000000000001" {
		t.Fatalf("NormalizeIdentity = %q", got)
	}

	if got := NormalizeIdentity("Bob"); got != "Bob" {
		t.Fatalf("NormalizeIdentity(Bob) = %q, want Bob", got)
	}
}

func TestIsNullIdentity(t *testing.T) {
	if !IsNullIdentity("") {
		t.Fatalf("empty identity must be null")
	}
	if !IsNullIdentity("0x0000000000000000000000000000000000000000") {
		t.Fatalf("zero address must be null")
	}
	if IsNullIdentity("0x0000000000000000000000000000000000000001") {
		t.Fatalf("non-zero address must not be null")
	}
}
