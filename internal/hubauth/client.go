package hubauth

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
	"github.com/nerrad567/dealerdesk-core/internal/vault"
)

const (
	loginPath       = "/api/login"
	channelAuthPath = "/api/pusher/user-auth"
	healthPath      = "/api/health"

	defaultRequestTimeout = 10 * time.Second
	defaultHealthTimeout  = 3 * time.Second

	// maxResponseBytes bounds hub response bodies.
	maxResponseBytes = 1 << 20
)

// Logger is the logging surface the client needs; *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// CredentialCache is the offline credential store; *vault.Vault satisfies it.
type CredentialCache interface {
	Load() (*vault.Credentials, error)
	Save(userID, secret string, tenants []cardroom.Tenant) error
}

// Config configures a Client.
type Config struct {
	// BaseURL is scheme://host[:port] of the hub. Empty means not configured.
	BaseURL string

	// TokenPath is where the last bearer token is persisted. Empty disables it.
	TokenPath string

	InsecureSkipVerify bool
	RequestTimeout     time.Duration
	HealthTimeout      time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the hub's REST endpoints.
type Client struct {
	baseURL       string
	http          *http.Client
	healthTimeout time.Duration
	cache         CredentialCache
	tokens        *tokenFile
	logger        Logger
}

// New creates a Client. cache may be nil, which disables offline login.
func New(cfg Config, cache CredentialCache) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaultHealthTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS12,
					InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in for self-signed hubs
				},
			},
		}
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          httpClient,
		healthTimeout: cfg.HealthTimeout,
		cache:         cache,
		tokens:        &tokenFile{path: cfg.TokenPath},
		logger:        slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Health probes GET /api/health within the health timeout.
func (c *Client) Health(ctx context.Context) error {
	if c.baseURL == "" {
		return authErr(KindNotConfigured, "health", 0, nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return authErr(KindNotConfigured, "health", 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return authErr(KindNetworkFailure, "health", 0, err)
	}
	defer drainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return authErr(KindNetworkFailure, "health", resp.StatusCode, ErrUnhealthy)
	}
	return nil
}

// Login authenticates userID. It returns an online Session when the hub
// accepts the credentials, an offline Session when the hub is unhealthy or
// rejects the attempt but the cache holds the same pair, and an *AuthError
// otherwise.
func (c *Client) Login(ctx context.Context, userID, password string) (*Session, error) {
	cached := c.loadCache()

	if err := c.Health(ctx); err != nil {
		c.logger.Warn("hub unavailable, trying cached credentials", "user_id", userID, "error", err)
		return c.offline(cached, userID, password, err)
	}

	sess, err := c.loginOnline(ctx, userID, password)
	if err != nil {
		c.logger.Warn("online login failed, trying cached credentials", "user_id", userID, "error", err)
		return c.offline(cached, userID, password, err)
	}

	if c.cache != nil && (!cached.Matches(userID, password) || !cached.SameTenants(sess.Tenants)) {
		if err := c.cache.Save(userID, password, sess.Tenants); err != nil {
			c.logger.Error("caching credentials failed", "user_id", userID, "error", err)
		}
	}
	if err := c.tokens.save(userID, sess.BearerToken); err != nil {
		c.logger.Error("persisting bearer token failed", "error", err)
	}

	c.logger.Info("online login succeeded", "user_id", userID, "tenants", len(sess.Tenants))
	return sess, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  *string           `json:"token"`
	Stores []cardroom.Tenant `json:"stores"`
}

func (c *Client) loginOnline(ctx context.Context, userID, password string) (*Session, error) {
	body, err := json.Marshal(loginRequest{Email: userID, Password: password})
	if err != nil {
		return nil, authErr(KindInvalid, "login", 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, authErr(KindNotConfigured, "login", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, authErr(KindNetworkFailure, "login", 0, err)
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, authErr(kindForStatus(resp.StatusCode), "login", resp.StatusCode, nil)
	}

	var out loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, authErr(KindNetworkFailure, "login", resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	if out.Token == nil || *out.Token == "" {
		return nil, authErr(KindInvalid, "login", resp.StatusCode, ErrNoToken)
	}

	return &Session{
		UserID:      userID,
		BearerToken: *out.Token,
		Tenants:     out.Stores,
	}, nil
}

// offline answers a login from the cache, or returns cause as an AuthError.
func (c *Client) offline(cached *vault.Credentials, userID, password string, cause error) (*Session, error) {
	if cached.Matches(userID, password) {
		c.logger.Info("offline login with cached credentials", "user_id", userID, "tenants", len(cached.Tenants))
		tenants := make([]cardroom.Tenant, len(cached.Tenants))
		copy(tenants, cached.Tenants)
		return &Session{UserID: userID, Tenants: tenants, IsOffline: true}, nil
	}

	var ae *AuthError
	if errors.As(cause, &ae) {
		return nil, ae
	}
	return nil, authErr(KindNetworkFailure, "login", 0, cause)
}

func (c *Client) loadCache() *vault.Credentials {
	if c.cache == nil {
		return nil
	}
	creds, err := c.cache.Load()
	if err != nil {
		if !errors.Is(err, vault.ErrNoCredentials) {
			c.logger.Warn("loading cached credentials failed", "error", err)
		}
		return nil
	}
	return creds
}

// AuthorizeChannel asks the hub to sign socketID's subscription to channel.
// Any failure is fatal for the socket it was requested for.
func (c *Client) AuthorizeChannel(ctx context.Context, socketID, channel, bearerToken string) (*ChannelAuth, error) {
	if c.baseURL == "" {
		return nil, authErr(KindNotConfigured, "authorize channel", 0, nil)
	}
	if bearerToken == "" {
		return nil, authErr(KindInvalid, "authorize channel", 0, errors.New("no bearer token"))
	}

	q := url.Values{}
	q.Set("socket_id", socketID)
	q.Set("channel_name", channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+channelAuthPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, authErr(KindNotConfigured, "authorize channel", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, authErr(KindNetworkFailure, "authorize channel", 0, err)
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, authErr(kindForStatus(resp.StatusCode), "authorize channel", resp.StatusCode, nil)
	}

	var out ChannelAuth
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, authErr(KindInvalid, "authorize channel", resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	if out.Auth == "" {
		return nil, authErr(KindInvalid, "authorize channel", resp.StatusCode, errors.New("empty auth signature"))
	}
	c.logger.Debug("channel authorized", "channel", channel, "socket_id", socketID)
	return &out, nil
}

// StoredToken returns the persisted bearer token for userID, if any.
func (c *Client) StoredToken(userID string) (string, bool) {
	return c.tokens.load(userID)
}

// ForgetToken deletes the persisted bearer token.
func (c *Client) ForgetToken() error {
	return c.tokens.remove()
}

func drainClose(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, maxResponseBytes)) //nolint:errcheck // best effort connection reuse
	body.Close()                                                //nolint:errcheck // nothing to do on close failure
}
