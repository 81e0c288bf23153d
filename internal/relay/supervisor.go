package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nerrad567/dealerdesk-core/internal/hubauth"
)

const defaultAuthTimeout = 10 * time.Second

// Logger is the logging surface the relay needs; *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Authorizer signs channel subscriptions; *hubauth.Client satisfies it.
type Authorizer interface {
	AuthorizeChannel(ctx context.Context, socketID, channel, bearerToken string) (*hubauth.ChannelAuth, error)
}

// Target is what one connect cycle subscribes to.
type Target struct {
	TenantID    string
	Channel     string
	BearerToken string
}

// SubscribedFunc runs on the read loop once a subscription is confirmed.
// send writes directly to the live socket. Publish is held off until it
// returns, so frames it sends precede any newer event.
type SubscribedFunc func(tenantID string, send func([]byte) error)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// URL is the hub socket endpoint (ws:// or wss://).
	URL string

	// MaxAttempts is the number of consecutive failed dials before the
	// supervisor gives up and enters OfflineMode.
	MaxAttempts int

	Backoff      Backoff
	WriteTimeout time.Duration
	AuthTimeout  time.Duration

	// Sleep waits between attempts; nil uses a timer.
	Sleep SleepFunc

	Store        Store
	OnSubscribed SubscribedFunc
	Observer     Observer
}

// Handshake reports the outcome of one connect cycle: nil once subscribed,
// or the reason the cycle ended first.
type Handshake struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newHandshake() *Handshake {
	return &Handshake{done: make(chan struct{})}
}

func (h *Handshake) complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed when the outcome is known.
func (h *Handshake) Done() <-chan struct{} {
	return h.done
}

// Err returns the outcome, or nil while still pending.
func (h *Handshake) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the outcome is known or ctx is done.
func (h *Handshake) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Supervisor owns the hub socket. At most one connect cycle, and so at most
// one socket and one read loop, is alive at any time.
type Supervisor struct {
	cfg      SupervisorConfig
	dialer   Dialer
	auth     Authorizer
	dispatch *dispatcher
	logger   Logger
	observer Observer

	// connectMu serialises Connect, Reset and Close.
	connectMu sync.Mutex
	// sendMu orders Publish against the post-subscription flush.
	sendMu sync.Mutex

	mu       sync.Mutex
	state    ConnectionState
	target   Target
	link     *link
	attempts int
	cancel   context.CancelFunc
	closed   bool

	wg sync.WaitGroup
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(cfg SupervisorConfig, dialer Dialer, auth Authorizer) *Supervisor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	logger := slog.New(slog.DiscardHandler)
	return &Supervisor{
		cfg:      cfg,
		dialer:   dialer,
		auth:     auth,
		dispatch: &dispatcher{store: cfg.Store, logger: logger, observer: cfg.Observer},
		logger:   logger,
		observer: cfg.Observer,
		state:    StateIdle,
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	s.logger = logger
	s.dispatch.logger = logger
}

// State returns the current connection state.
func (s *Supervisor) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Target returns the target of the current or last connect cycle.
func (s *Supervisor) Target() Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Connect starts a connect cycle for target in the background. Any existing
// cycle is stopped, and its socket closed, before the new one dials.
func (s *Supervisor) Connect(target Target) (*Handshake, error) {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.stopCycle()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.target = target
	s.attempts = 0
	s.wg.Add(1)
	s.mu.Unlock()

	hs := newHandshake()
	go s.run(ctx, target, hs)
	return hs, nil
}

// Reset stops the current cycle and returns to Idle.
func (s *Supervisor) Reset() {
	s.stop(StateIdle, false)
}

// Logout stops the current cycle and enters LoggedOut.
func (s *Supervisor) Logout() {
	s.stop(StateLoggedOut, false)
}

// Close stops the current cycle and refuses further connects.
func (s *Supervisor) Close() {
	s.stop(StateIdle, true)
}

func (s *Supervisor) stop(next ConnectionState, closing bool) {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.stopCycle()

	s.mu.Lock()
	if closing {
		s.closed = true
	}
	tenant := s.target.TenantID
	if next == StateLoggedOut {
		s.target = Target{}
	}
	s.mu.Unlock()
	s.setState(tenant, next)
}

// stopCycle cancels the running cycle and waits until its read loop has
// returned and its socket is closed. Callers hold connectMu.
func (s *Supervisor) stopCycle() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Publish writes frame if the link is subscribed to tenantID, and calls
// fallback otherwise or when the write fails. A failed write also drops the
// link so the cycle reconnects.
func (s *Supervisor) Publish(tenantID string, frame []byte, fallback func() error) (sent bool, err error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	state, l, target := s.state, s.link, s.target
	s.mu.Unlock()

	if state != StateSubscribed || l == nil || target.TenantID != tenantID {
		return false, fallback()
	}
	if err := l.write(frame); err != nil {
		s.logger.Warn("relay write failed, queueing", "tenant_id", tenantID, "error", err)
		ferr := fallback()
		l.interrupt()
		return false, ferr
	}
	return true, nil
}

// run is the connect cycle: dial, read until the link fails, back off,
// repeat. It is the only goroutine that opens or closes sockets.
func (s *Supervisor) run(ctx context.Context, target Target, hs *Handshake) {
	defer s.wg.Done()
	defer hs.complete(ErrStopped)

	for {
		s.setState(target.TenantID, StateConnecting)

		conn, err := s.dialer.Dial(ctx, s.cfg.URL)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("hub dial failed", "tenant_id", target.TenantID, "error", err)
			if !s.retry(ctx, target, hs, err) {
				return
			}
			continue
		}

		l := newLink(conn, s.cfg.WriteTimeout)
		s.mu.Lock()
		s.attempts = 0
		s.link = l
		s.mu.Unlock()
		s.logger.Info("hub socket open", "tenant_id", target.TenantID)

		stopInterrupt := context.AfterFunc(ctx, l.interrupt)
		err = s.readLoop(ctx, target, l, hs)
		stopInterrupt()
		s.detach(l)

		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrAuthRejected) {
			s.logger.Error("hub rejected authentication, not reconnecting",
				"tenant_id", target.TenantID,
				"error", err,
			)
			s.setState(target.TenantID, StateDisconnected)
			hs.complete(err)
			return
		}

		s.logger.Warn("hub link lost", "tenant_id", target.TenantID, "error", err)
		if !s.retry(ctx, target, hs, err) {
			return
		}
	}
}

// retry counts a failure and sleeps before the next attempt. It returns
// false when the cycle should end.
func (s *Supervisor) retry(ctx context.Context, target Target, hs *Handshake, cause error) bool {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	if attempt >= s.cfg.MaxAttempts {
		s.logger.Error("reconnect attempts exhausted, entering offline mode",
			"tenant_id", target.TenantID,
			"attempts", attempt,
			"error", cause,
		)
		s.setState(target.TenantID, StateOfflineMode)
		hs.complete(fmt.Errorf("%w: %w", ErrAttemptsExhausted, cause))
		return false
	}

	s.setState(target.TenantID, StateDisconnected)
	delay := s.cfg.Backoff.Delay(attempt)
	s.logger.Info("reconnecting after backoff",
		"tenant_id", target.TenantID,
		"attempt", attempt,
		"max_attempts", s.cfg.MaxAttempts,
		"delay", delay.String(),
	)
	return s.cfg.Sleep(ctx, delay) == nil
}

func (s *Supervisor) detach(l *link) {
	s.mu.Lock()
	if s.link == l {
		s.link = nil
	}
	s.mu.Unlock()
	l.close()
}

func (s *Supervisor) readLoop(ctx context.Context, target Target, l *link, hs *Handshake) error {
	for {
		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}
		if err := s.handleFrame(ctx, target, l, hs, raw); err != nil {
			return err
		}
	}
}

// handleFrame processes one inbound frame. A non-nil error ends the link;
// decoding problems never do.
func (s *Supervisor) handleFrame(ctx context.Context, target Target, l *link, hs *Handshake, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while handling hub frame", "tenant_id", target.TenantID, "panic", r)
			err = nil
		}
	}()

	f, derr := decodeFrame(raw)
	if derr != nil {
		s.logger.Warn("dropping malformed hub frame", "tenant_id", target.TenantID, "error", derr)
		return nil
	}

	switch f.Event {
	case EventPing:
		if err := l.write(pongFrame); err != nil {
			return fmt.Errorf("answering ping: %w", err)
		}
		return nil
	case EventPong:
		return nil
	case EventConnectionEstablished:
		return s.authorize(ctx, target, l, f)
	case EventSubscriptionSucceeded:
		return s.confirm(target, l, hs, f)
	case EventError:
		return s.hubError(target, f)
	default:
		if err := s.dispatch.dispatch(ctx, target.TenantID, f); err != nil {
			s.logger.Warn("dropping hub event", "tenant_id", target.TenantID, "event", f.Event, "error", err)
		}
		return nil
	}
}

func (s *Supervisor) setState(tenantID string, next ConnectionState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev == next {
		return
	}
	s.logger.Debug("relay state changed", "tenant_id", tenantID, "from", prev.String(), "to", next.String())
	s.observer.StateChanged(tenantID, next)
}
