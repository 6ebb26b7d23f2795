package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", hash)
	}
	if !CheckPassword("Str0ng!Passw0rd", hash) {
		t.Fatalf("expected matching password to pass")
	}
	if CheckPassword("str0ng!Passw0rd", hash) {
		t.Fatalf("password check must be case sensitive")
	}
	if CheckPassword("Str0ng!Passw0rd", "") {
		t.Fatalf("empty stored hash must never match")
	}
	if _, err := HashPassword(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"valid", "Str0ng!Passw0rd", nil},
		{"unicode symbol counts as special", "Learn1ngCircle€", nil},
		{"too short", "Sh0rt!a", ErrPasswordTooShort},
		{"too long", "Aa1!" + strings.Repeat("x", 69), ErrPasswordTooLong},
		{"no upper", "str0ng!passw0rd", ErrPasswordTooWeak},
		{"no lower", "STR0NG!PASSW0RD", ErrPasswordTooWeak},
		{"no digit", "Strong!Password", ErrPasswordTooWeak},
		{"no special", "Str0ngPassw0rd", ErrPasswordTooWeak},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidatePassword(tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("ValidatePassword(%q) = %v, want %v", tc.password, err, tc.want)
			}
		})
	}
}
