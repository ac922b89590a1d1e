package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/infra/config"
)

var (
	// ErrInvalidToken indicates the bearer token is malformed, forged or carries unusable claims.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrExpiredToken indicates the bearer token has expired.
	ErrExpiredToken = errors.New("jwt: token expired")
)

const defaultAccessTokenTTL = 15 * time.Minute

// ActorClaims carries the identity fields the service needs to build a domain.Actor.
type ActorClaims struct {
	Role  string  `json:"role"`
	Email *string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens issued by the identity provider.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewTokenVerifier constructs a verifier from configuration.
func NewTokenVerifier(cfg config.JWTSettings) (*TokenVerifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("jwt: secret is required")
	}
	return &TokenVerifier{
		secret:   []byte(cfg.Secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		leeway:   cfg.Leeway,
		now:      time.Now,
	}, nil
}

// WithClock allows injection of a custom clock (primarily for testing).
func (v *TokenVerifier) WithClock(now func() time.Time) *TokenVerifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Verify parses raw and returns the actor it identifies. Unknown roles are rejected as invalid tokens.
func (v *TokenVerifier) Verify(raw string) (*domain.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &ActorClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &domain.Actor{ID: subject, Role: role, Email: claims.Email}, nil
}

// Issue signs a token for actor. It backs the development token command and tests.
func (v *TokenVerifier) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return "", fmt.Errorf("jwt: actor id is required")
	}
	if !actor.Role.Valid() {
		return "", fmt.Errorf("jwt: %w: %q", domain.ErrInvalidRole, actor.Role)
	}
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	now := v.now().UTC()
	claims := &ActorClaims{
		Role:  string(actor.Role),
		Email: actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}
