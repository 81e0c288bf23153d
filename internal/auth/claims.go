package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL applies when a non-positive TTL is requested.
const DefaultTTL = 15 * time.Minute

// RoleOperator is the only role the local surface knows about.
const RoleOperator = "operator"

// Claims extends JWT standard claims with the operator session.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	Offline   bool   `json:"offline,omitempty"`
}

// GenerateAccessToken creates a signed JWT access token for an operator.
// Offline records whether the session was granted from the credential cache.
func GenerateAccessToken(operatorID string, offline bool, secret string, ttl time.Duration) (string, *Claims, error) {
	if secret == "" {
		return "", nil, ErrNoSecret
	}
	if operatorID == "" {
		return "", nil, ErrNoSubject
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role:      RoleOperator,
		SessionID: uuid.NewString(),
		Offline:   offline,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, fmt.Errorf("signing access token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken validates and parses an access token, returning its claims.
// It checks the signature, expiry and required fields.
func ParseToken(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session", ErrTokenInvalid)
	}
	return claims, nil
}

// Revocations remembers logged-out sessions until their tokens expire.
// The zero value is ready to use.
type Revocations struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time
}

// Revoke marks the session as logged out. The entry is kept until expires.
func (r *Revocations) Revoke(sessionID string, expires time.Time) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions == nil {
		r.sessions = make(map[string]time.Time)
	}
	r.pruneLocked()
	r.sessions[sessionID] = expires
}

// Check returns ErrTokenRevoked if the claims belong to a revoked session.
func (r *Revocations) Check(c *Claims) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[c.SessionID]; ok {
		return ErrTokenRevoked
	}
	return nil
}

// Len reports the number of tracked revocations.
func (r *Revocations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	return len(r.sessions)
}

func (r *Revocations) pruneLocked() {
	now := time.Now()
	if r.now != nil {
		now = r.now()
	}
	for id, exp := range r.sessions {
		if !exp.After(now) {
			delete(r.sessions, id)
		}
	}
}
