package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
	"github.com/nerrad567/dealerdesk-core/internal/hubauth"
)

const (
	testTenant  = "tenant-a"
	testChannel = DefaultChannelPrefix + testTenant
)

var errFakeWrite = errors.New("fake: write failed")

// fakeConn is an in-memory hub socket. Frames pushed onto it are read by
// the supervisor; frames it writes are recorded. onWrite lets a test act as
// the hub, answering or failing writes.
type fakeConn struct {
	inbound     chan []byte
	interrupted chan struct{}
	interrupt   sync.Once

	mu      sync.Mutex
	written [][]byte
	closed  bool
	onWrite func(c *fakeConn, data []byte) error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:     make(chan []byte, 64),
		interrupted: make(chan struct{}),
	}
}

// newHubConn returns a conn that greets with connection_established and
// confirms any subscribe it receives.
func newHubConn() *fakeConn {
	c := newFakeConn()
	c.push(`{"event":"pusher:connection_established","data":"{\"socket_id\":\"123.456\",\"activity_timeout\":30}"}`)
	c.onWrite = confirmSubscribe
	return c
}

func confirmSubscribe(c *fakeConn, data []byte) error {
	var f Frame
	if err := json.Unmarshal(data, &f); err == nil && f.Event == EventSubscribe {
		var sub subscribeData
		_ = json.Unmarshal(f.Data, &sub)
		c.push(fmt.Sprintf(`{"event":"pusher_internal:subscription_succeeded","channel":%q,"data":"{}"}`, sub.Channel))
	}
	return nil
}

func (c *fakeConn) push(frame string) {
	c.inbound <- []byte(frame)
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.interrupted:
		return 0, nil, errors.New("fake: read interrupted")
	default:
	}
	select {
	case b := <-c.inbound:
		return websocket.TextMessage, b, nil
	case <-c.interrupted:
		return 0, nil, errors.New("fake: read interrupted")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("fake: write on closed conn")
	}
	hook := c.onWrite
	c.mu.Unlock()

	if messageType != websocket.TextMessage {
		return nil
	}
	if hook != nil {
		if err := hook(c, data); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.written = append(c.written, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	if !t.IsZero() && !t.After(time.Now()) {
		c.interrupt.Do(func() { close(c.interrupted) })
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.interrupt.Do(func() { close(c.interrupted) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// frames returns written frames whose event matches, decoded.
func (c *fakeConn) frames(event string) []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Frame
	for _, raw := range c.written {
		var f Frame
		if err := json.Unmarshal(raw, &f); err == nil && f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// fakeDialer hands out conns from next, counting dials.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	conns []*fakeConn
	next  func(n int) (*fakeConn, error)
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	next := d.next
	d.mu.Unlock()

	c, err := next(n)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) openConns() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	var open []*fakeConn
	for _, c := range d.conns {
		if !c.isClosed() {
			open = append(open, c)
		}
	}
	return open
}

func hubDialer() *fakeDialer {
	return &fakeDialer{next: func(int) (*fakeConn, error) { return newHubConn(), nil }}
}

// fakeAuthorizer signs every channel unless err is set.
type fakeAuthorizer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *fakeAuthorizer) AuthorizeChannel(_ context.Context, socketID, channel, bearer string) (*hubauth.ChannelAuth, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &hubauth.ChannelAuth{Auth: "key:" + socketID + ":" + channel + ":" + bearer}, nil
}

// fakeStore records what the dispatcher persists.
type fakeStore struct {
	mu        sync.Mutex
	purchases []cardroom.Purchase
	customers []cardroom.Customer
	points    []cardroom.PointEntry
	exits     []cardroom.PlayerExit
	err       error
}

func (s *fakeStore) SavePurchase(_ context.Context, _ string, p *cardroom.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.purchases = append(s.purchases, *p)
	return nil
}

func (s *fakeStore) SaveCustomer(_ context.Context, _ string, c *cardroom.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.customers = append(s.customers, *c)
	return nil
}

func (s *fakeStore) SavePointEntry(_ context.Context, _ string, e *cardroom.PointEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.points = append(s.points, *e)
	return nil
}

func (s *fakeStore) RecordPlayerExit(_ context.Context, _ string, x *cardroom.PlayerExit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.exits = append(s.exits, *x)
	return nil
}

func (s *fakeStore) purchaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.purchases)
}

// stateRecorder is an Observer capturing state transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []ConnectionState
}

func (r *stateRecorder) StateChanged(_ string, s ConnectionState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}
func (r *stateRecorder) Delivered(string, DataType, Outcome) {}
func (r *stateRecorder) Received(string, Inbound)            {}

func (r *stateRecorder) seen(s ConnectionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.states {
		if got == s {
			return true
		}
	}
	return false
}

// blockSleep waits for cancellation, so a cycle never redials by itself.
func blockSleep(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitHandshake(t *testing.T, hs *Handshake) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := hs.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("handshake did not complete")
	}
	return err
}
