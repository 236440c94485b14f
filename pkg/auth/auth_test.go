package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"))
	userID := uuid.New()

	signed, err := tokens.Generate(userID, PurposeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := tokens.Validate(signed, PurposeAccess)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %s, want %s", claims.UserID, userID)
	}
}

func TestTokenPurposeMismatchRejected(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"))

	signed, err := tokens.Generate(uuid.New(), PurposeConfirmEmail, time.Minute)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := tokens.Validate(signed, PurposeAccess); err == nil {
		t.Error("confirm_email token accepted as access token")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"))

	signed, err := tokens.Generate(uuid.New(), PurposeAccess, -time.Minute)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := tokens.Validate(signed, PurposeAccess); err == nil {
		t.Error("expired token accepted")
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	signed, err := NewTokens([]byte("secret-a")).Generate(uuid.New(), PurposeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := NewTokens([]byte("secret-b")).Validate(signed, PurposeAccess); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("wrong password accepted")
	}
}

func TestWeakPasswordRejected(t *testing.T) {
	if err := ValidatePasswordStrength("12345"); err == nil {
		t.Error("trivial password passed strength check")
	}
	if err := ValidatePasswordStrength("fmN8!kQz#2vL9p"); err != nil {
		t.Errorf("strong password rejected: %v", err)
	}
}
