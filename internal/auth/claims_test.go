package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-000"

func TestGenerateAndParseAccessToken(t *testing.T) {
	token, issued, err := GenerateAccessToken("dealer01", true, testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "dealer01" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "dealer01")
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}
	if !claims.Offline {
		t.Error("Offline = false, want true")
	}
	if claims.SessionID == "" || claims.SessionID != issued.SessionID {
		t.Errorf("SessionID = %q, want %q", claims.SessionID, issued.SessionID)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
}

func TestGenerateAccessToken_Validation(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
		want   error
	}{
		{"no secret", "dealer01", "", ErrNoSecret},
		{"no operator", "", testSecret, ErrNoSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := GenerateAccessToken(tt.id, false, tt.secret, time.Minute)
			if !errors.Is(err, tt.want) {
				t.Errorf("GenerateAccessToken() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateAccessToken_DefaultTTL(t *testing.T) {
	token, _, err := GenerateAccessToken("dealer01", false, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(DefaultTTL))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL should be ~15 minutes, got expiry diff of %v", diff)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, _, err := GenerateAccessToken("dealer01", false, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	expired := signClaims(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dealer01",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role:      RoleOperator,
		SessionID: "sid-1",
	})
	noSession := signClaims(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dealer01",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: RoleOperator,
	})
	noExpiry := signClaims(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "dealer01"},
		Role:             RoleOperator,
		SessionID:        "sid-1",
	})

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "another-secret-key-for-jwt-signing"},
		{"garbage", "not-a-valid-jwt", testSecret},
		{"empty", "", testSecret},
		{"malformed", "abc.def", testSecret},
		{"expired", expired, testSecret},
		{"missing session", noSession, testSecret},
		{"missing expiry", noExpiry, testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dealer01",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		SessionID: "sid-1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	if _, err := ParseToken(token, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestRevocations(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Revocations{now: func() time.Time { return now }}

	live := &Claims{SessionID: "live"}
	if err := r.Check(live); err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}

	r.Revoke("live", now.Add(time.Minute))
	r.Revoke("", now.Add(time.Minute))
	if err := r.Check(live); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Check() error = %v, want ErrTokenRevoked", err)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}

	now = now.Add(2 * time.Minute)
	if got := r.Len(); got != 0 {
		t.Errorf("Len() after expiry = %d, want 0", got)
	}
}

func signClaims(t *testing.T, c *Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}
