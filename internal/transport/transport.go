// Package transport implements the outbound WebSocket client: TLS TCP
// socket plus RFC 6455 framing. Framing, masking, and the opening
// handshake are delegated to github.com/gorilla/websocket — reimplementing
// what that library already gets right is not the point of this exercise —
// and this package narrows gorilla's generic dial/read/write errors down
// to the typed contract the rest of the agent depends on.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	maxFrameBytes     = 16 << 20 // §4.A: oversized frames rejected as ProtocolViolation
	handshakeDeadline = 10 * time.Second
	pingWait          = 60 * time.Second
)

// Transport is the client-side WebSocket connection. All exported methods
// are safe for concurrent use; sends are serialized behind sendMu so
// concurrent send_text calls never interleave frame bytes (testable
// property 5).
type Transport struct {
	log zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	sendMu sync.Mutex
}

// New builds an idle Transport; call Connect to open it.
func New(log zerolog.Logger) *Transport {
	return &Transport{log: log}
}

// Connect performs DNS resolution, TCP dial, TLS handshake (for wss://),
// and the WebSocket opening handshake, in that order, so failures can be
// classified precisely per §4.A.
func (t *Transport) Connect(ctx context.Context, rawURL string) error {
	parsed, err := parseURL(rawURL)
	if err != nil {
		return err
	}

	if _, err := net.DefaultResolver.LookupHost(ctx, parsed.hostOnly); err != nil {
		return fmt.Errorf("%w: %s", ErrDNSFailure, err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeDeadline,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrTCPRefused, err)
			}
			return conn, nil
		},
	}
	if parsed.tls {
		dialer.TLSClientConfig = &tls.Config{
			ServerName: parsed.hostOnly,
			MinVersion: tls.VersionTLS12,
		}
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != 0 {
			return fmt.Errorf("%w: status %d", ErrWebSocketHandshake, resp.StatusCode)
		}
		if errors.Is(err, ErrTCPRefused) {
			return err
		}
		if isTLSError(err) {
			return fmt.Errorf("%w: %s", ErrTLSHandshake, err)
		}
		return fmt.Errorf("%w: %s", ErrWebSocketHandshake, err)
	}

	conn.SetReadLimit(maxFrameBytes)
	t.armKeepalive(conn)

	t.mu.Lock()
	t.conn = conn
	t.closed = false
	t.mu.Unlock()
	return nil
}

// armKeepalive wires gorilla's ping/pong handlers to the masked-pong-echo
// and read-deadline-refresh behavior §4.A calls for.
func (t *Transport) armKeepalive(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(payload string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		// gorilla writes the pong masked automatically for a client conn.
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
	})
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		return nil
	})
}

// SendText sends a single masked FIN+text frame. Safe from any goroutine.
func (t *Transport) SendText(payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	t.mu.Unlock()
	if conn == nil || closed {
		return ErrClosed
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %s", ErrTransportLost, err)
	}
	return nil
}

// Recv blocks for the next complete text frame payload. Ping/pong/close
// handling happens transparently inside gorilla's ReadMessage via the
// handlers armed in Connect; unexpected binary/continuation frames are
// logged and dropped rather than surfaced.
func (t *Transport) Recv() ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil, ErrClosed
	}

	for {
		mt, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrClosed
			}
			if _, ok := err.(*websocket.CloseError); ok {
				return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, err)
			}
			return nil, fmt.Errorf("%w: %s", ErrTransportLost, err)
		}
		switch mt {
		case websocket.TextMessage:
			return payload, nil
		default:
			t.log.Warn().Int("opcode", mt).Msg("dropping unexpected non-text frame")
			continue
		}
	}
}

// Close is idempotent and shuts down the read side first so a reader
// blocked in Recv unblocks promptly.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.conn == nil {
		t.closed = true
		return nil
	}
	t.closed = true
	_ = t.conn.SetReadDeadline(time.Now())
	err := t.conn.Close()
	return err
}

func isTLSError(err error) bool {
	if err == nil {
		return false
	}
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var headerErr tls.RecordHeaderError
	return errors.As(err, &headerErr)
}
