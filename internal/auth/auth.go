// Package auth resolves the current user of a request from a bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned for missing, malformed, expired or forged tokens.
var ErrUnauthorized = errors.New("unauthorized")

// Verifier checks HS256 access tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier for secret. now defaults to time.Now.
func NewVerifier(secret string, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: []byte(secret), now: now}
}

// Verify parses token and returns the user id carried in its sub claim.
func (v *Verifier) Verify(token string) (uuid.UUID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, fmt.Errorf("%w: token is required", ErrUnauthorized)
	}
	if len(v.secret) == 0 {
		return uuid.Nil, errors.New("token verifier is not configured")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return uuid.Nil, mapJWTError(err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrUnauthorized)
	}
	return userID, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: token is expired", ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: signature is invalid", ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: signing method is not allowed", ErrUnauthorized)
	default:
		return fmt.Errorf("%w: token is invalid", ErrUnauthorized)
	}
}

// Sign issues an HS256 token for userID valid for ttl. Used by local tooling
// and tests; production tokens come from the identity provider.
func (v *Verifier) Sign(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type contextKey struct{}

// WithUser returns ctx carrying userID.
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserFromContext returns the authenticated user of ctx.
func UserFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Middleware rejects requests without a valid bearer token. When devUser is
// not uuid.Nil every request runs as that user and no token is checked.
func Middleware(v *Verifier, devUser uuid.UUID, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if devUser != uuid.Nil {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), devUser)))
				return
			}
			userID, err := v.Verify(BearerToken(r))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}
