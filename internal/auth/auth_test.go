package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TestJWTRoundTrip tests token generation and validation
func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	claims := UserClaims{UserID: "u-123", Email: "trader@example.com", IsAdmin: true}
	token, err := m.GenerateAccessToken(claims)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	got, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.UserID != "u-123" || got.Email != "trader@example.com" || !got.IsAdmin {
		t.Errorf("Claims did not survive the round trip: %+v", got)
	}
}

// TestJWTWrongSecret tests signature rejection
func TestJWTWrongSecret(t *testing.T) {
	signer := NewJWTManager("correct-secret", 15*time.Minute, time.Hour)
	verifier := NewJWTManager("wrong-secret", 15*time.Minute, time.Hour)

	token, err := signer.GenerateAccessToken(UserClaims{UserID: "u-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := verifier.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

// TestJWTExpired tests expiry detection
func TestJWTExpired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute, time.Hour)

	token, err := m.GenerateAccessToken(UserClaims{UserID: "u-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.ValidateAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

// TestJWTGarbageToken tests rejection of non-token input
func TestJWTGarbageToken(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, time.Hour)
	if _, err := m.ValidateAccessToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

// TestGenerateTokenPair tests the combined pair
func TestGenerateTokenPair(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	pair, err := m.GenerateTokenPair(UserClaims{UserID: "u-1"})
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("Expected Bearer type, got %s", pair.TokenType)
	}
	if pair.ExpiresIn != 900 {
		t.Errorf("Expected 900s expiry, got %d", pair.ExpiresIn)
	}
	if pair.RefreshToken == "" || pair.RefreshToken == pair.AccessToken {
		t.Error("Refresh token should be a distinct opaque value")
	}
}

// TestPasswordHashAndVerify tests the bcrypt round trip
func TestPasswordHashAndVerify(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, 8)

	hash, err := pm.HashPassword("Str0ng!pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !pm.VerifyPassword("Str0ng!pass", hash) {
		t.Error("Correct password should verify")
	}
	if pm.VerifyPassword("Wr0ng!pass", hash) {
		t.Error("Wrong password should not verify")
	}
}

// TestPasswordStrength tests the 3-of-4 character class rule
func TestPasswordStrength(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost, 8)

	cases := []struct {
		password string
		ok       bool
	}{
		{"Str0ngpass", true},    // upper, lower, number
		{"str0ng!pass", true},   // lower, number, special
		{"alllowercase", false}, // one class
		{"short1A", false},      // under min length
		{"UPPER1234567", false}, // two classes
	}
	for _, tc := range cases {
		err := pm.ValidatePasswordStrength(tc.password)
		if tc.ok && err != nil {
			t.Errorf("%q should pass, got %v", tc.password, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%q should fail", tc.password)
		}
	}
}

// TestHashRefreshToken tests deterministic opaque hashing
func TestHashRefreshToken(t *testing.T) {
	a := HashRefreshToken("token-a")
	b := HashRefreshToken("token-b")

	if a == b {
		t.Error("Different tokens should hash differently")
	}
	if a != HashRefreshToken("token-a") {
		t.Error("Hashing should be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("Expected hex SHA-256, got length %d", len(a))
	}
}
