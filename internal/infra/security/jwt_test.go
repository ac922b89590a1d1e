package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/infra/config"
)

func newTestVerifier(t *testing.T, now time.Time) *TokenVerifier {
	t.Helper()
	v, err := NewTokenVerifier(config.JWTSettings{
		Secret:   "test-secret",
		Issuer:   "identity",
		Audience: "maintenance",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v.WithClock(func() time.Time { return now })
}

func TestVerifyRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	v := newTestVerifier(t, now)
	email := "tech@example.com"

	token, err := v.Issue(domain.Actor{ID: "user-1", Role: domain.RoleTechnician, Email: &email}, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	actor, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if actor.ID != "user-1" || actor.Role != domain.RoleTechnician {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if actor.Email == nil || *actor.Email != email {
		t.Fatalf("expected email to round-trip")
	}
}

func TestVerifyExpired(t *testing.T) {
	issuedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	token, err := newTestVerifier(t, issuedAt).Issue(domain.Actor{ID: "user-1", Role: domain.RoleClient}, time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	_, err = newTestVerifier(t, issuedAt.Add(time.Hour)).Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	claims := &ActorClaims{
		Role: "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "identity",
			Audience:  jwt.ClaimStrings{"maintenance"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = newTestVerifier(t, now).Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	other, err := NewTokenVerifier(config.JWTSettings{Secret: "other-secret", Issuer: "identity", Audience: "maintenance"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token, err := other.WithClock(func() time.Time { return now }).Issue(domain.Actor{ID: "user-1", Role: domain.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := newTestVerifier(t, now).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenVerifierRequiresSecret(t *testing.T) {
	if _, err := NewTokenVerifier(config.JWTSettings{}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
