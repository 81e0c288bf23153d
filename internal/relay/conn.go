package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second

	// maxFrameSize bounds inbound frames; hub domain events are small.
	maxFrameSize = 1 << 20
)

// Conn is the socket surface the supervisor uses. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a Conn to the hub socket URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials the hub with gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout   time.Duration
	InsecureSkipVerify bool
	Header             http.Header
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: d.InsecureSkipVerify, //nolint:gosec // operator opt-in for self-signed hubs
		},
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake response body is unused
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}

// link is one open socket and the bookkeeping around its read loop.
type link struct {
	conn         Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  bool
}

func newLink(conn Conn, writeTimeout time.Duration) *link {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &link{conn: conn, writeTimeout: writeTimeout}
}

// write sends one text frame. Writes are serialised; gorilla allows one
// concurrent writer.
func (l *link) write(data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.closed {
		return errLinkClosed
	}
	//nolint:errcheck // Best-effort deadline; write error caught below
	l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

// interrupt unblocks a pending read so the read loop exits.
func (l *link) interrupt() {
	//nolint:errcheck // Best-effort; Close follows in any case
	l.conn.SetReadDeadline(time.Now())
}

// close sends a close frame and releases the socket. Only the read loop's
// owner calls it, after the loop has returned.
func (l *link) close() {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	//nolint:errcheck // Best-effort close message
	l.conn.SetWriteDeadline(time.Now().Add(time.Second))
	//nolint:errcheck // Best-effort close message
	l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	l.conn.Close() //nolint:errcheck // nothing to do on close failure
}
