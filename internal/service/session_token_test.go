package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	svc := NewSessionTokenService("secret", time.Hour)
	token, exp, err := svc.Issue("s1", "user@example.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiration")
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.SessionID != "s1" || claims.UserID != "user@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestSessionTokenInvalid(t *testing.T) {
	svc := NewSessionTokenService("secret", time.Hour)

	if _, _, err := NewSessionTokenService("", time.Hour).Issue("s1", "u1"); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected invalid without secret, got %v", err)
	}
	if _, _, err := svc.Issue("", "u1"); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected invalid without session id, got %v", err)
	}
	if _, err := svc.Parse("  "); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected invalid for blank token, got %v", err)
	}

	other := NewSessionTokenService("other", time.Hour)
	token, _, _ := other.Issue("s1", "u1")
	if _, err := svc.Parse(token); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected invalid signature, got %v", err)
	}

	claims := SessionClaims{
		SessionID: "s1",
		UserID:    "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "s1",
			Issuer:    "servechat",
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if _, err := svc.Parse(expired); !errors.Is(err, ErrSessionTokenExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
	claims.Subject = "someone-else"
	tampered, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if _, err := svc.Parse(tampered); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected invalid subject, got %v", err)
	}
}
