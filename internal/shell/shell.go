// Package shell implements the interactive shell session manager:
// PTY-backed sessions on POSIX, pipe-backed sessions on Windows, behind a
// single Manager that owns the session table.
package shell

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"screencontrol-agent/internal/filter"
	"screencontrol-agent/internal/idgen"
)

// ErrSessionNotFound is returned by any operation on an unknown session ID.
var ErrSessionNotFound = errors.New("SessionNotFound")

// ErrCommandBlocked is returned when the command filter rejects a session
// start command.
var ErrCommandBlocked = errors.New("CommandBlocked")

// backend is the platform-specific half of a session: a PTY on POSIX,
// three pipes on Windows. Kept minimal so both implementations share the
// Manager's table logic and drain-buffer plumbing.
type backend interface {
	write(data []byte) (int, error)
	// drain returns whatever has accumulated since the last call, never
	// blocking.
	drain() (stdout, stderr []byte)
	stop(signal string) error
	pid() int
	running() bool
	kind() string
}

// Session is the shell session record exposed to callers.
type Session struct {
	ID   string
	PID  int
	Kind string
}

type entry struct {
	id string
	b  backend
}

// Manager owns the session table. All table mutations happen under a
// single mutex; no I/O is ever performed while it is held.
type Manager struct {
	log    zerolog.Logger
	filter *filter.Filter

	mu       sync.Mutex
	sessions map[string]*entry
}

// New builds a Manager. filt may be nil, in which case no commands are
// blocked.
func New(log zerolog.Logger, filt *filter.Filter) *Manager {
	return &Manager{log: log, filter: filt, sessions: make(map[string]*entry)}
}

// StartSession allocates a new PTY (POSIX) or pipe trio (Windows) running
// command in cwd, defaulting to an interactive shell when command is
// empty or one of the recognized aliases.
func (m *Manager) StartSession(command, cwd string) (Session, error) {
	if m.filter != nil {
		if verdict := m.filter.Check(command); !verdict.Allowed {
			return Session{}, fmt.Errorf("%w: %s", ErrCommandBlocked, verdict.Reason)
		}
	}

	b, err := startBackend(command, cwd)
	if err != nil {
		return Session{}, err
	}

	id := idgen.SessionID()
	m.mu.Lock()
	m.sessions[id] = &entry{id: id, b: b}
	m.mu.Unlock()

	return Session{ID: id, PID: b.pid(), Kind: b.kind()}, nil
}

// SendInput writes data to the session's input channel. Partial writes are
// not retried, per the core's contract.
func (m *Manager) SendInput(id string, data []byte) (int, error) {
	b, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	n, err := b.write(data)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	return n, nil
}

// ReadOutput drains whatever output has accumulated without blocking.
func (m *Manager) ReadOutput(id string) (stdout, stderr []byte, err error) {
	b, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	stdout, stderr = b.drain()
	return stdout, stderr, nil
}

// StopSession signals the child (default TERM), reaps it, and erases the
// record. Stopping an unknown or already-stopped session returns
// ErrSessionNotFound.
func (m *Manager) StopSession(id, signal string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return e.b.stop(signal)
}

// ListSessions returns a snapshot of {session_id, pid} pairs.
func (m *Manager) ListSessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for id, e := range m.sessions {
		out = append(out, Session{ID: id, PID: e.b.pid(), Kind: e.b.kind()})
	}
	return out
}

func (m *Manager) lookup(id string) (backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.b, nil
}

// signalNumbers is the set of signal names StopSession accepts (the spec's
// fixed list); Windows treats every one of them as TerminateProcess.
var signalNumbers = map[string]bool{
	"TERM": true,
	"KILL": true,
	"INT":  true,
	"HUP":  true,
}

func normalizeSignal(signal string) string {
	if signal == "" || !signalNumbers[signal] {
		return "TERM"
	}
	return signal
}
