package utils

import (
	"strings"
	"testing"
)

func TestVerificationCode(t *testing.T) {
	code := NewVerificationCode()
	t.Logf("Generated verification code: %s", code)

	if len(code) != VerificationCodeLength {
		t.Fatalf("length mismatch: got %d, want %d", len(code), VerificationCodeLength)
	}
	if !ValidVerificationCode(code) {
		t.Errorf("fresh code %s should be valid", code)
	}
	if strings.ContainsAny(code, "IOSZ") {
		t.Errorf("code %s contains excluded letters", code)
	}

	if other := NewVerificationCode(); other == code {
		t.Errorf("two codes collided: %s", code)
	}
}

func TestVerificationCodeTypos(t *testing.T) {
	const code = "0123456789ABCDEFGHJKT3"
	if !ValidVerificationCode(code) {
		t.Fatalf("%s should be valid", code)
	}

	tests := []struct {
		name, code string
	}{
		{"changed character", "0127456789ABCDEFGHJKT3"},
		{"excluded letter", code[:4] + "O" + code[5:]},
		{"truncated", code[:10]},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ValidVerificationCode(tt.code) {
				t.Errorf("%q should be rejected", tt.code)
			}
		})
	}
}

func TestNormalizeVerificationCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ab12-cd34", "AB12CD34"},
		{"  x y ", "XY"},
		{"O1I5", "0115"},
		{"sz", "52"},
	}
	for _, tt := range tests {
		if got := NormalizeVerificationCode(tt.in); got != tt.want {
			t.Errorf("NormalizeVerificationCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	code := NewVerificationCode()
	readable := strings.ToLower(code[:5] + "-" + code[5:])
	if got := NormalizeVerificationCode(readable); got != code {
		t.Errorf("round trip failed: got %s, want %s", got, code)
	}
}
