package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeConn is an in-memory Conn used to drive the Client's state machine
// without a real socket.
type fakeConn struct {
	mu     sync.Mutex
	toSrv  chan []byte
	toCli  chan []byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{toSrv: make(chan []byte, 16), toCli: make(chan []byte, 16)}
}

func (f *fakeConn) Connect(ctx context.Context, url string) error { return nil }

func (f *fakeConn) SendText(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fakeConn: closed")
	}
	f.toSrv <- payload
	return nil
}

func (f *fakeConn) Recv() ([]byte, error) {
	frame, ok := <-f.toCli
	if !ok {
		return nil, errors.New("fakeConn: eof")
	}
	return frame, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.toCli)
	}
	return nil
}

type stubDispatcher struct {
	result any
	err    error
}

func (s stubDispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return s.result, s.err
}

func TestClientRegisterThenRegistered(t *testing.T) {
	conn := newFakeConn()
	c := NewClient(zerolog.Nop(), conn, Registration{MachineID: "m1"}, stubDispatcher{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, "ws://example") }()

	select {
	case raw := <-conn.toSrv:
		var msg RegisterMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode register: %v", err)
		}
		if msg.Type != TypeRegister || msg.MachineID != "m1" {
			t.Fatalf("unexpected register message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for register frame")
	}

	conn.toCli <- []byte(`{"type":"registered","agentId":"agent-123"}`)

	waitForState(t, c, StateRegistered)
	if c.AgentID() != "agent-123" {
		t.Fatalf("AgentID() = %q, want agent-123", c.AgentID())
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil on ctx cancel", err)
	}
}

func waitForState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if c.State() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("state never reached %v, stuck at %v", want, c.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestClientPermissionsChangeFiresOnce(t *testing.T) {
	conn := newFakeConn()
	c := NewClient(zerolog.Nop(), conn, Registration{MachineID: "m1"}, stubDispatcher{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = c.Run(ctx, "ws://example") }()
	<-conn.toSrv // register

	conn.toCli <- []byte(`{"type":"registered","agentId":"a1"}`)
	waitForState(t, c, StateRegistered)

	conn.toCli <- []byte(`{"type":"heartbeat_ack","permissions":{"masterMode":true,"fileTransfer":false,"localSettingsLocked":false}}`)
	ev := nextEvent(t, c, EventPermissionsChanged)
	if !ev.Permissions.MasterMode {
		t.Fatalf("expected masterMode true, got %+v", ev.Permissions)
	}

	// Same permissions again must not re-fire.
	conn.toCli <- []byte(`{"type":"heartbeat_ack","permissions":{"masterMode":true,"fileTransfer":false,"localSettingsLocked":false}}`)
	select {
	case ev := <-c.Events():
		if ev.Kind == EventPermissionsChanged {
			t.Fatal("permissions changed event fired twice for identical permissions")
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func nextEvent(t *testing.T, c *Client, want EventKind) Event {
	t.Helper()
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == want {
				return ev
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event kind %v", want)
		}
	}
}

func TestClientRequestDispatchRoundTrip(t *testing.T) {
	conn := newFakeConn()
	c := NewClient(zerolog.Nop(), conn, Registration{MachineID: "m1"}, stubDispatcher{result: map[string]any{"ok": true}}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx, "ws://example") }()
	<-conn.toSrv // register

	conn.toCli <- []byte(`{"type":"registered","agentId":"a1"}`)
	waitForState(t, c, StateRegistered)

	conn.toCli <- []byte(`{"type":"request","id":"req-1","method":"fs_list","params":{}}`)

	select {
	case raw := <-conn.toSrv:
		var resp ResponseMessage
		if err := json.Unmarshal(raw, &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.ID != "req-1" || resp.Error != "" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response frame")
	}
}

func TestRelayTimesOutOnShutdown(t *testing.T) {
	conn := newFakeConn()
	c := NewClient(zerolog.Nop(), conn, Registration{MachineID: "m1"}, stubDispatcher{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx, "ws://example") }()
	<-conn.toSrv // register
	conn.toCli <- []byte(`{"type":"registered","agentId":"a1"}`)
	waitForState(t, c, StateRegistered)

	result := make(chan error, 1)
	if err := c.Relay("other-agent", "ping", nil, func(_ any, err error) { result <- err }); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	<-conn.toSrv // relay frame

	cancel() // tears down the connection, which must resolve all pending relays

	select {
	case err := <-result:
		if !errors.Is(err, ErrRelayTimeout) {
			t.Fatalf("expected ErrRelayTimeout, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("relay callback never invoked on shutdown")
	}
}
