package api

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/dealerdesk-core/internal/auth"
	"github.com/nerrad567/dealerdesk-core/internal/relay"
)

// loginRequest mirrors the POS front end's login form.
type loginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"user_pwd"`
}

// loginResponse is the facade's login result plus the operator token.
type loginResponse struct {
	relay.LoginResult
	AccessToken string    `json:"access_token,omitempty"`
	TokenType   string    `json:"token_type,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

// handleLogin authenticates through the relay facade and issues a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.allow(clientHost(r)) {
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "too many login attempts")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "user_id and user_pwd are required")
		return
	}

	res := s.relay.Login(r.Context(), req.UserID, req.Password)
	switch res.Status {
	case relay.LoginFailed:
		writeJSON(w, http.StatusUnauthorized, loginResponse{LoginResult: res})
		return
	case relay.LoginError:
		writeJSON(w, http.StatusServiceUnavailable, loginResponse{LoginResult: res})
		return
	}

	token, claims, err := auth.GenerateAccessToken(req.UserID, res.Offline, s.secCfg.JWT.Secret, s.tokenTTL)
	if err != nil {
		s.logger.Error("issuing access token failed", "user_id", req.UserID, "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		LoginResult: res,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
	})
}

// handleLogout tears down the relay session and revokes the caller's token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c := claimsFromContext(r.Context()); c != nil && c.ExpiresAt != nil {
		s.revoked.Revoke(c.SessionID, c.ExpiresAt.Time)
	}
	if !s.relay.Logout() {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  string(relay.LoginFailed),
			"message": "logout failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  string(relay.LoginSuccess),
		"message": "logged out",
	})
}

// loginLimiter keeps one token bucket per client host.
type loginLimiter struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

// loginLimiterMaxClients caps the bucket map; it is reset when exceeded.
const loginLimiterMaxClients = 1024

func newLoginLimiter(perMinute int) *loginLimiter {
	return &loginLimiter{perMin: perMinute, limiters: make(map[string]*rate.Limiter)}
}

func (l *loginLimiter) allow(host string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		if len(l.limiters) >= loginLimiterMaxClients {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[host] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
