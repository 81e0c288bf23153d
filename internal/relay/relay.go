package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
	"github.com/nerrad567/dealerdesk-core/internal/hubauth"
	"github.com/nerrad567/dealerdesk-core/internal/outbox"
)

const defaultSubscribeTimeout = 30 * time.Second

// AuthClient is the hub REST surface the facade needs; *hubauth.Client
// satisfies it.
type AuthClient interface {
	Authorizer
	Login(ctx context.Context, userID, password string) (*hubauth.Session, error)
	Health(ctx context.Context) error
	StoredToken(userID string) (string, bool)
	ForgetToken() error
}

// Queue holds undelivered frames per tenant; *outbox.Store satisfies it.
type Queue interface {
	Enqueue(tenantID string, e outbox.Entry) error
	Drain(tenantID string) ([]outbox.Entry, error)
	Clear(tenantID string) error
}

// Options configures a Relay. Auth, Queue and Dialer are required.
type Options struct {
	Auth   AuthClient
	Queue  Queue
	Dialer Dialer

	// Store receives inbound domain events; nil discards them.
	Store    Store
	Logger   Logger
	Observer Observer

	SocketURL        string
	ChannelPrefix    string
	EventName        string
	SubscribeTimeout time.Duration
	AuthTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxAttempts      int
	Backoff          Backoff

	// Sleep and Now are replaceable for tests.
	Sleep SleepFunc
	Now   func() time.Time
}

// LoginStatus is the tagged outcome of Login.
type LoginStatus string

const (
	LoginSuccess LoginStatus = "success"
	LoginFailed  LoginStatus = "failed"
	LoginError   LoginStatus = "error"
)

// CodeAuthError tags a LoginResult whose credentials were rejected.
const CodeAuthError = "AUTH_ERROR"

// LoginResult is what Login reports to the REST layer.
type LoginResult struct {
	Status    LoginStatus       `json:"status"`
	Offline   bool              `json:"offline"`
	StoreName string            `json:"store_name,omitempty"`
	Tenants   []cardroom.Tenant `json:"stores,omitempty"`
	Message   string            `json:"message,omitempty"`
	Code      string            `json:"code,omitempty"`
}

// Status is a read-only snapshot of the relay.
type Status struct {
	State        ConnectionState `json:"state"`
	IsOffline    bool            `json:"is_offline"`
	IsSubscribed bool            `json:"is_subscribed"`
	StoreName    string          `json:"store_name"`
	TenantID     string          `json:"tenant_id,omitempty"`
	LoggedIn     bool            `json:"logged_in"`
}

// Relay is the facade over authentication, the socket supervisor and the
// outbound queue. It is safe for concurrent use.
type Relay struct {
	auth     AuthClient
	queue    Queue
	sup      *Supervisor
	logger   Logger
	observer Observer

	prefix           string
	eventName        string
	subscribeTimeout time.Duration
	now              func() time.Time

	mu       sync.Mutex
	session  *hubauth.Session
	password string
	tenants  []cardroom.Tenant
}

// New wires a Relay. It does not touch the network.
func New(opts Options) (*Relay, error) {
	switch {
	case opts.Auth == nil:
		return nil, fmt.Errorf("%w: auth client", ErrMissingDependency)
	case opts.Queue == nil:
		return nil, fmt.Errorf("%w: queue", ErrMissingDependency)
	case opts.Dialer == nil:
		return nil, fmt.Errorf("%w: dialer", ErrMissingDependency)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.ChannelPrefix == "" {
		opts.ChannelPrefix = DefaultChannelPrefix
	}
	if opts.EventName == "" {
		opts.EventName = DefaultRelayEvent
	}
	if opts.SubscribeTimeout <= 0 {
		opts.SubscribeTimeout = defaultSubscribeTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Relay{
		auth:             opts.Auth,
		queue:            opts.Queue,
		logger:           opts.Logger,
		observer:         opts.Observer,
		prefix:           opts.ChannelPrefix,
		eventName:        opts.EventName,
		subscribeTimeout: opts.SubscribeTimeout,
		now:              opts.Now,
	}
	r.sup = NewSupervisor(SupervisorConfig{
		URL:          opts.SocketURL,
		MaxAttempts:  opts.MaxAttempts,
		Backoff:      opts.Backoff,
		WriteTimeout: opts.WriteTimeout,
		AuthTimeout:  opts.AuthTimeout,
		Sleep:        opts.Sleep,
		Store:        opts.Store,
		OnSubscribed: r.onSubscribed,
		Observer:     opts.Observer,
	}, opts.Dialer, opts.Auth)
	r.sup.SetLogger(opts.Logger)
	return r, nil
}

// Login authenticates against the hub, or against the credential cache when
// the hub is unreachable. Any previous connection is torn down on success.
func (r *Relay) Login(ctx context.Context, userID, password string) LoginResult {
	sess, err := r.auth.Login(ctx, userID, password)
	if err != nil {
		return loginFailure(err)
	}

	r.sup.Reset()

	r.mu.Lock()
	r.session = sess
	r.password = password
	r.tenants = append([]cardroom.Tenant(nil), sess.Tenants...)
	tenants := append([]cardroom.Tenant(nil), sess.Tenants...)
	r.mu.Unlock()

	r.logger.Info("operator logged in", "user_id", userID, "offline", sess.IsOffline, "tenants", len(tenants))
	return LoginResult{
		Status:    LoginSuccess,
		Offline:   sess.IsOffline,
		StoreName: sess.StoreName,
		Tenants:   tenants,
	}
}

func loginFailure(err error) LoginResult {
	if hubauth.IsKind(err, hubauth.KindInvalid) {
		return LoginResult{
			Status:  LoginFailed,
			Message: "authentication failed: " + err.Error(),
			Code:    CodeAuthError,
		}
	}
	return LoginResult{Status: LoginError, Message: err.Error()}
}

// SelectTenant makes storeID the active tenant and, unless offline, waits
// for its channel subscription. It returns false only when no operator is
// logged in or storeID is unknown; connectivity problems degrade to offline
// mode instead.
func (r *Relay) SelectTenant(ctx context.Context, storeID int64) bool {
	r.mu.Lock()
	sess := r.session
	if sess == nil {
		r.mu.Unlock()
		r.logger.Warn("tenant selection without a session", "store_id", storeID)
		return false
	}
	tenant, ok := sess.Tenant(storeID)
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("unknown store", "store_id", storeID)
		return false
	}
	sess.Select(tenant)
	offline := sess.IsOffline
	userID, password, token := sess.UserID, r.password, sess.BearerToken
	r.mu.Unlock()

	r.logger.Info("tenant selected", "tenant_id", tenant.TenantID, "store_name", tenant.Name, "offline", offline)

	if offline {
		recovered, ok := r.recoverOnline(ctx, userID, password)
		if !ok {
			r.sup.Reset()
			r.logger.Info("hub unavailable, tenant runs offline", "tenant_id", tenant.TenantID)
			return true
		}
		r.mu.Lock()
		if r.session != sess {
			r.mu.Unlock()
			return false
		}
		sess.BearerToken = recovered
		sess.IsOffline = false
		r.mu.Unlock()
		token = recovered
	}

	r.connect(ctx, sess, tenant, token)
	return true
}

// recoverOnline re-authenticates an offline session once the hub answers
// its health probe: the stored token first, then a fresh login.
func (r *Relay) recoverOnline(ctx context.Context, userID, password string) (string, bool) {
	if err := r.auth.Health(ctx); err != nil {
		r.logger.Debug("hub still unhealthy", "error", err)
		return "", false
	}
	if token, ok := r.auth.StoredToken(userID); ok {
		r.logger.Info("hub reachable, reusing stored token", "user_id", userID)
		return token, true
	}
	if password == "" {
		return "", false
	}

	fresh, err := r.auth.Login(ctx, userID, password)
	if err != nil || fresh.IsOffline {
		r.logger.Warn("hub reachable but re-login failed", "user_id", userID, "error", err)
		return "", false
	}

	r.mu.Lock()
	if r.session != nil && r.session.UserID == userID {
		r.session.Tenants = fresh.Tenants
		r.tenants = append([]cardroom.Tenant(nil), fresh.Tenants...)
	}
	r.mu.Unlock()
	r.logger.Info("hub reachable, logged in again", "user_id", userID)
	return fresh.BearerToken, true
}

func (r *Relay) connect(ctx context.Context, sess *hubauth.Session, tenant cardroom.Tenant, token string) {
	hs, err := r.sup.Connect(Target{
		TenantID:    tenant.TenantID,
		Channel:     ChannelName(r.prefix, tenant.TenantID),
		BearerToken: token,
	})
	if err != nil {
		r.logger.Warn("connect refused", "tenant_id", tenant.TenantID, "error", err)
		r.markOffline(sess)
		return
	}

	timer := time.NewTimer(r.subscribeTimeout)
	defer timer.Stop()

	select {
	case <-hs.Done():
		err = hs.Err()
	case <-timer.C:
		r.logger.Warn("subscription not confirmed in time, continuing offline",
			"tenant_id", tenant.TenantID,
			"timeout", r.subscribeTimeout.String(),
		)
		r.markOffline(sess)
		return
	case <-ctx.Done():
		r.logger.Warn("tenant selection cancelled before subscription", "tenant_id", tenant.TenantID)
		r.markOffline(sess)
		return
	}

	if err == nil {
		return
	}
	if errors.Is(err, ErrAuthRejected) {
		// The token is no good; the next recovery must log in afresh.
		if ferr := r.auth.ForgetToken(); ferr != nil {
			r.logger.Warn("forgetting rejected token failed", "error", ferr)
		}
		r.mu.Lock()
		if r.session == sess {
			sess.BearerToken = ""
		}
		r.mu.Unlock()
	}
	r.logger.Warn("tenant connection failed, continuing offline", "tenant_id", tenant.TenantID, "error", err)
	r.markOffline(sess)
}

// markOffline flags sess offline unless a subscription has already landed.
func (r *Relay) markOffline(sess *hubauth.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == sess && r.sup.State() != StateSubscribed {
		sess.IsOffline = true
	}
}

// onSubscribed runs on the read loop with Publish held off.
func (r *Relay) onSubscribed(tenantID string, send func([]byte) error) {
	r.mu.Lock()
	if r.session != nil && r.session.TenantID == tenantID {
		r.session.IsOffline = false
	}
	r.mu.Unlock()

	r.flush(tenantID, send)
}

// flush sends the tenant's backlog in order and clears it only if every
// frame was written. It reports whether the queue is now empty.
func (r *Relay) flush(tenantID string, send func([]byte) error) bool {
	entries, err := r.queue.Drain(tenantID)
	if err != nil {
		r.logger.Error("reading queued events failed", "tenant_id", tenantID, "error", err)
		return false
	}
	if len(entries) == 0 {
		return true
	}

	r.logger.Info("flushing queued events", "tenant_id", tenantID, "count", len(entries))
	for i, e := range entries {
		if err := send(e.Message); err != nil {
			r.logger.Warn("flush interrupted, queue kept for next subscription",
				"tenant_id", tenantID,
				"sent", i,
				"queued", len(entries),
				"error", err,
			)
			return false
		}
	}

	if err := r.queue.Clear(tenantID); err != nil {
		r.logger.Error("clearing flushed queue failed, events will be resent",
			"tenant_id", tenantID,
			"error", err,
		)
		return false
	}
	for _, e := range entries {
		r.observer.Delivered(tenantID, DataType(e.DataType), OutcomeFlushed)
	}
	return true
}

// SendDomainEvent relays p for the active tenant. It returns true when the
// frame was written to the hub and false when it was queued for later or
// could not be accepted; false is not an error for end users.
func (r *Relay) SendDomainEvent(eventName string, p Payload) bool {
	if p == nil {
		return false
	}
	if eventName == "" {
		eventName = r.eventName
	}

	r.mu.Lock()
	tenantID := ""
	if r.session != nil {
		tenantID = r.session.TenantID
	}
	r.mu.Unlock()

	if tenantID == "" {
		r.logger.Warn("no tenant selected, domain event not relayed", "data_type", string(p.DataType()))
		return false
	}

	now := r.now()
	frame, err := EncodeRelayFrame(eventName, ChannelName(r.prefix, tenantID), tenantID, p, now)
	if err != nil {
		r.logger.Error("encoding domain event failed", "tenant_id", tenantID, "data_type", string(p.DataType()), "error", err)
		return false
	}

	entry := outbox.Entry{
		TenantID:  tenantID,
		Event:     eventName,
		DataType:  string(p.DataType()),
		Message:   frame,
		Timestamp: now,
	}
	sent, qerr := r.sup.Publish(tenantID, frame, func() error {
		return r.queue.Enqueue(tenantID, entry)
	})

	switch {
	case sent:
		r.logger.Debug("domain event sent", "tenant_id", tenantID, "data_type", entry.DataType)
		r.observer.Delivered(tenantID, p.DataType(), OutcomeSent)
		return true
	case qerr != nil:
		r.logger.Error("queueing domain event failed",
			"tenant_id", tenantID,
			"data_type", entry.DataType,
			"risk", "message_loss",
			"error", qerr,
		)
		r.observer.Delivered(tenantID, p.DataType(), OutcomeLost)
	default:
		r.logger.Info("domain event queued", "tenant_id", tenantID, "data_type", entry.DataType)
		r.observer.Delivered(tenantID, p.DataType(), OutcomeQueued)
	}
	return false
}

// Logout tears down the connection and forgets the session. Cached
// credentials and the tenant list survive.
func (r *Relay) Logout() bool {
	r.sup.Logout()

	r.mu.Lock()
	userID := ""
	if r.session != nil {
		userID = r.session.UserID
	}
	r.session = nil
	r.password = ""
	r.mu.Unlock()

	if err := r.auth.ForgetToken(); err != nil {
		r.logger.Warn("forgetting token on logout failed", "error", err)
	}
	r.logger.Info("operator logged out", "user_id", userID)
	return true
}

// ConnectionStatus returns a snapshot for UI and REST callers.
func (r *Relay) ConnectionStatus() Status {
	state := r.sup.State()

	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		State:        state,
		IsSubscribed: state == StateSubscribed,
		IsOffline:    state == StateOfflineMode,
	}
	if r.session != nil {
		st.LoggedIn = true
		st.IsOffline = st.IsOffline || r.session.IsOffline
		st.StoreName = r.session.StoreName
		st.TenantID = r.session.TenantID
	}
	return st
}

// Tenants returns the tenant list of the current or last session.
func (r *Relay) Tenants() []cardroom.Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cardroom.Tenant(nil), r.tenants...)
}

// Close stops the connection for good.
func (r *Relay) Close() {
	r.sup.Close()
}
