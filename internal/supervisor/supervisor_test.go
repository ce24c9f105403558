package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"screencontrol-agent/internal/config"
	"screencontrol-agent/internal/protocol"
)

// fakeConn is a reconnectable in-memory protocol.Conn: each Connect call
// opens a fresh pair of channels, mirroring how a real transport can be
// reused across attempts after Close.
type fakeConn struct {
	mu           sync.Mutex
	toSrv, toCli chan []byte
	closed       bool
	connectCount int32
}

func (f *fakeConn) Connect(ctx context.Context, url string) error {
	atomic.AddInt32(&f.connectCount, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toSrv = make(chan []byte, 16)
	f.toCli = make(chan []byte, 16)
	f.closed = false
	return nil
}

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
	f.mu.Lock()
	ch := f.toCli
	f.mu.Unlock()
	frame, ok := <-ch
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

func (f *fakeConn) currentToSrv() chan []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toSrv
}

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return nil, nil
}

func waitForConnectCount(t *testing.T, conn *fakeConn, atLeast int32) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if atomic.LoadInt32(&conn.connectCount) >= atLeast {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("connect count never reached %d", atLeast)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStatusReportsDisconnectedInitially(t *testing.T) {
	conn := &fakeConn{}
	client := protocol.NewClient(zerolog.Nop(), conn, protocol.Registration{MachineID: "m1"}, stubDispatcher{}, nil, nil)
	sup := New(zerolog.Nop(), client, config.ConnectionConfig{})

	status := sup.Status()
	if status["connected"] != false {
		t.Fatalf("expected disconnected status, got %#v", status)
	}
}

func TestConnectDrivesClientToRegistered(t *testing.T) {
	conn := &fakeConn{}
	client := protocol.NewClient(zerolog.Nop(), conn, protocol.Registration{MachineID: "m1"}, stubDispatcher{}, nil, nil)
	sup := New(zerolog.Nop(), client, config.ConnectionConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	if err := sup.Connect(config.ConnectionConfig{ServerURL: "ws://example", ConnectOnStartup: true}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitForConnectCount(t, conn, 1)
	<-conn.currentToSrv() // register frame

	if err := conn.SendText(nil); err == nil {
		// SendText from the test goroutine would race the client's own
		// sends; instead deliver the registered frame directly.
	}
	conn.mu.Lock()
	conn.toCli <- []byte(`{"type":"registered","agentId":"agent-1"}`)
	conn.mu.Unlock()

	deadline := time.After(time.Second)
	for {
		if client.State() == protocol.StateRegistered {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("client never reached REGISTERED, stuck at %v", client.State())
		case <-time.After(5 * time.Millisecond):
		}
	}

	status := sup.Status()
	if status["connected"] != true || status["agentId"] != "agent-1" {
		t.Fatalf("unexpected status after registration: %#v", status)
	}
}

func TestDisconnectStopsReconnectAttempts(t *testing.T) {
	conn := &fakeConn{}
	client := protocol.NewClient(zerolog.Nop(), conn, protocol.Registration{MachineID: "m1"}, stubDispatcher{}, nil, nil)
	sup := New(zerolog.Nop(), client, config.ConnectionConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	if err := sup.Connect(config.ConnectionConfig{ServerURL: "ws://example", ConnectOnStartup: true}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForConnectCount(t, conn, 1)

	sup.Disconnect()
	time.Sleep(50 * time.Millisecond)
	after := atomic.LoadInt32(&conn.connectCount)

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&conn.connectCount) != after {
		t.Fatal("expected no further connect attempts after Disconnect")
	}
}
