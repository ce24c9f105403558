package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func isTimeoutError(err error) bool {
	var netErr net.Error
	return err != nil && errors.As(err, &netErr) && netErr.Timeout()
}

func newTestServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	if len(httpURL) >= 7 && httpURL[:7] == "http://" {
		return "ws://" + httpURL[7:]
	}
	return httpURL
}

func TestConnectSendRecvRoundTrip(t *testing.T) {
	received := make(chan []byte, 1)
	srv := newTestServer(t, func(conn *websocket.Conn) {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("server read failed: %v", err)
			return
		}
		received <- payload
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`)); err != nil {
			t.Errorf("server write failed: %v", err)
		}
	})

	tr := New(zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx, wsURL(srv.URL)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close()

	payload := []byte(`{"type":"register"}`)
	if err := tr.SendText(payload); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(payload) {
			t.Fatalf("server received %q, want %q", got, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive frame")
	}

	got, err := tr.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if string(got) != `{"type":"pong"}` {
		t.Fatalf("Recv got %q", got)
	}
}

func TestConnectBadURL(t *testing.T) {
	tr := New(zerolog.Nop())
	err := tr.Connect(context.Background(), "not-a-url")
	if err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	const n = 50
	frames := make(chan []byte, n)
	srv := newTestServer(t, func(conn *websocket.Conn) {
		for i := 0; i < n; i++ {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- payload
		}
	})

	tr := New(zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx, wsURL(srv.URL)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close()

	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func(i int) {
			_ = tr.SendText([]byte("frame-payload-marker"))
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	seen := 0
	timeout := time.After(3 * time.Second)
	for seen < n {
		select {
		case payload := <-frames:
			if string(payload) != "frame-payload-marker" {
				t.Fatalf("frame corrupted by interleaving: %q", payload)
			}
			seen++
		case <-timeout:
			t.Fatalf("only received %d/%d frames", seen, n)
		}
	}
}

func TestFrameSizeBoundaries(t *testing.T) {
	sizes := []int{125, 126, 65535, 65536}
	for _, size := range sizes {
		size := size
		t.Run("", func(t *testing.T) {
			payload := make([]byte, size)
			for i := range payload {
				payload[i] = byte('a' + i%26)
			}

			echoed := make(chan []byte, 1)
			srv := newTestServer(t, func(conn *websocket.Conn) {
				_, got, err := conn.ReadMessage()
				if err != nil {
					t.Errorf("server read failed: %v", err)
					return
				}
				echoed <- got
			})

			tr := New(zerolog.Nop())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tr.Connect(ctx, wsURL(srv.URL)); err != nil {
				t.Fatalf("Connect failed: %v", err)
			}
			defer tr.Close()

			if err := tr.SendText(payload); err != nil {
				t.Fatalf("SendText failed: %v", err)
			}
			select {
			case got := <-echoed:
				if len(got) != size {
					t.Fatalf("payload size mismatch: got %d want %d", len(got), size)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for echoed frame")
			}
		})
	}
}

func TestPingElicitsMaskedPongEcho(t *testing.T) {
	pingPayload := make([]byte, 125)
	for i := range pingPayload {
		pingPayload[i] = byte(i)
	}

	pongReceived := make(chan []byte, 1)
	srv := newTestServer(t, func(conn *websocket.Conn) {
		conn.SetPongHandler(func(data string) error {
			pongReceived <- []byte(data)
			return nil
		})
		if err := conn.WriteControl(websocket.PingMessage, pingPayload, time.Now().Add(time.Second)); err != nil {
			t.Errorf("server ping failed: %v", err)
			return
		}
		// Drive the server's own read loop so gorilla's pong handler fires;
		// keep it running long enough for the client to process the ping
		// and emit the pong.
		deadline := time.Now().Add(300 * time.Millisecond)
		for time.Now().Before(deadline) {
			conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
			if _, _, err := conn.ReadMessage(); err != nil && !isTimeoutError(err) {
				return
			}
		}
	})

	tr := New(zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx, wsURL(srv.URL)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close()

	// Drive the client's read loop so gorilla's ping handler fires.
	go func() { _, _ = tr.Recv() }()

	select {
	case got := <-pongReceived:
		if string(got) != string(pingPayload) {
			t.Fatalf("pong payload mismatch: got %v want %v", got, pingPayload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pong")
	}
}
