package auth

import (
	"strings"
	"testing"
)

func TestGenerateAPIToken(t *testing.T) {
	token, hash, prefix, masked, err := GenerateAPIToken("lb_")
	if err != nil {
		t.Fatalf("GenerateAPIToken: %v", err)
	}

	if !strings.HasPrefix(token, "lb_") {
		t.Errorf("token %q does not carry the lb_ prefix", token)
	}
	if prefix != token[:LookupPrefixLength] {
		t.Errorf("lookup prefix = %q, want %q", prefix, token[:LookupPrefixLength])
	}
	if hash == token {
		t.Error("hash must not equal the raw token")
	}
	if !ValidateAPIToken(token, hash) {
		t.Error("generated token does not validate against its own hash")
	}
	if ValidateAPIToken(token+"x", hash) {
		t.Error("tampered token validated")
	}

	// The masked preview must never contain the full secret.
	if strings.Contains(masked, token) {
		t.Errorf("masked preview %q leaks the full token", masked)
	}
	if !strings.HasPrefix(masked, prefix) || !strings.HasSuffix(masked, token[len(token)-4:]) {
		t.Errorf("masked preview %q does not match first/last characters of %q", masked, token)
	}
}

func TestGenerateAPIToken_Unique(t *testing.T) {
	a, _, _, _, err := GenerateAPIToken("lb_")
	if err != nil {
		t.Fatal(err)
	}
	b, _, _, _, err := GenerateAPIToken("lb_")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two generated tokens are identical")
	}
}

func TestMaskToken_Short(t *testing.T) {
	// Tokens at or below prefix+4 chars cannot be meaningfully masked.
	if got := MaskToken("short"); got != "short" {
		t.Errorf("MaskToken(short) = %q", got)
	}
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}
	b, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}
	if a == b {
		t.Error("session tokens must be unique")
	}
	if len(a) < 40 {
		t.Errorf("session token too short: %d chars", len(a))
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer lb_abc123", "lb_abc123", false},
		{"valid with padding", "Bearer   lb_abc123  ", "lb_abc123", false},
		{"empty header", "", "", true},
		{"missing scheme", "lb_abc123", "", true},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "", true},
		{"empty token", "Bearer   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("correct-horse-battery", hash) {
		t.Error("password does not verify against its own hash")
	}
	if CheckPassword("wrong-password", hash) {
		t.Error("wrong password verified")
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Error("expected error for password below minimum length")
	}
}
