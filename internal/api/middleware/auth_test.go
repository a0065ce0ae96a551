package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appErr "gavel/pkg/errors"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret, subject, role, typ string, expires time.Time) string {
	t.Helper()
	claims := tokenClaims{
		Role:      role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "gavel",
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	auth, err := NewAuthenticator(AuthConfig{Secret: testSecret, Issuer: "gavel"})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return auth
}

func TestAuthenticateValidToken(t *testing.T) {
	auth := newTestAuthenticator(t)
	raw := signToken(t, testSecret, "42", RoleAdmin, "access", time.Now().Add(time.Hour))

	identity, err := auth.Authenticate(raw)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if identity.UserID != 42 || identity.Role != RoleAdmin {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	auth := newTestAuthenticator(t)
	tests := []struct {
		name string
		raw  string
		code appErr.ErrorCode
	}{
		{"empty", "", appErr.TokenInvalid},
		{"garbage", "not.a.token", appErr.TokenInvalid},
		{"wrong secret", signToken(t, "other-secret", "42", "", "access", time.Now().Add(time.Hour)), appErr.TokenInvalid},
		{"expired", signToken(t, testSecret, "42", "", "access", time.Now().Add(-time.Hour)), appErr.TokenExpired},
		{"refresh token", signToken(t, testSecret, "42", "", "refresh", time.Now().Add(time.Hour)), appErr.TokenInvalid},
		{"non-numeric subject", signToken(t, testSecret, "alice", "", "access", time.Now().Add(time.Hour)), appErr.TokenInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := auth.Authenticate(tc.raw); appErr.GetCode(err) != tc.code {
				t.Fatalf("code = %d, want %d", appErr.GetCode(err), tc.code)
			}
		})
	}
}

func TestAuthenticateIssuerMismatch(t *testing.T) {
	auth, err := NewAuthenticator(AuthConfig{Secret: testSecret, Issuer: "someone-else"})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	raw := signToken(t, testSecret, "42", "", "access", time.Now().Add(time.Hour))
	if _, err := auth.Authenticate(raw); appErr.GetCode(err) != appErr.TokenInvalid {
		t.Fatalf("expected TokenInvalid, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := BearerToken(tc.header); got != tc.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
