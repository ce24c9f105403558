package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"screencontrol-agent/internal/idgen"
)

const defaultHeartbeatInterval = 5 * time.Second

// Conn is the subset of transport.Transport the protocol client needs,
// kept as an interface so tests can substitute a fake without pulling in
// real sockets.
type Conn interface {
	Connect(ctx context.Context, url string) error
	SendText(payload []byte) error
	Recv() ([]byte, error)
	Close() error
}

// Dispatcher demultiplexes server-issued requests to internal handlers.
// Implemented by internal/dispatcher.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// Registration carries the fields the client sends in the register
// message; identity/versioning details are supplied by the caller so this
// package has no dependency on the identity package.
type Registration struct {
	MachineID    string
	MachineName  string
	OSType       string
	OSVersion    string
	Arch         string
	AgentVersion string
	AgentName    string
	LicenseUUID  string
	CustomerID   string
	Fingerprint  Fingerprint
	HasDisplay   func() bool
}

// Client is the protocol client (component B). One Client owns one Conn
// for its lifetime; reconnection is driven externally by a supervisor that
// constructs a fresh Client (or calls Run again) per attempt.
type Client struct {
	log      zerolog.Logger
	conn     Conn
	reg      Registration
	dispatch Dispatcher

	heartbeatInterval time.Duration

	mu          sync.RWMutex
	state       State
	agentID     string
	permissions Permissions
	havePerms   bool

	events chan Event
	relays *relayTable

	powerState     func() string
	isScreenLocked func() bool
}

// NewClient builds a Client bound to conn and reg. hasDisplay/powerState/
// isScreenLocked are injected so this package stays independent of
// platform-specific system-info collection.
func NewClient(log zerolog.Logger, conn Conn, reg Registration, dispatch Dispatcher, powerState func() string, isScreenLocked func() bool) *Client {
	return &Client{
		log:               log,
		conn:              conn,
		reg:               reg,
		dispatch:          dispatch,
		heartbeatInterval: defaultHeartbeatInterval,
		events:            make(chan Event, 16),
		relays:            newRelayTable(),
		powerState:        powerState,
		isScreenLocked:    isScreenLocked,
	}
}

// Events returns the client's typed event stream. There is exactly one
// publisher (this Client) and callers should treat it as broadcast-to-one:
// route a single consumer goroutine, fanning out further if needed.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the client's current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AgentID returns the server-assigned agent ID, empty until registered.
func (c *Client) AgentID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agentID
}

// Permissions returns the last-latched permission bits. Per §9's
// ambiguous-source note, getFileTransferEnabled-equivalent reads return
// the last latched value, defaulting to all-false before any ack arrives.
func (c *Client) Permissions() Permissions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.permissions
}

// Run drives one connection lifetime: connect, register, then loop reading
// frames and heartbeating until the connection dies or ctx is cancelled.
// It returns the terminal error (nil on clean ctx cancellation).
func (c *Client) Run(ctx context.Context, url string) (runErr error) {
	c.setState(StateConnecting)
	if err := c.conn.Connect(ctx, url); err != nil {
		c.setState(StateDisconnected)
		return err
	}
	// A previous Run's teardown stopped the relay table; accept relay
	// calls again for this connection.
	c.relays.mu.Lock()
	c.relays.stopped = false
	c.relays.mu.Unlock()
	c.publish(Event{Kind: EventConnected})
	defer func() { c.teardown(runErr) }()

	if err := c.sendRegister(); err != nil {
		return err
	}

	frames := make(chan []byte)
	readErrs := make(chan error, 1)
	go c.readLoop(frames, readErrs)

	var heartbeat *time.Ticker
	var heartbeatC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErrs:
			return err
		case frame := <-frames:
			if err := c.handleFrame(ctx, frame); err != nil {
				c.log.Warn().Err(err).Msg("failed to handle inbound frame")
			}
			if c.State() == StateRegistered && heartbeat == nil {
				heartbeat = time.NewTicker(c.currentHeartbeatInterval())
				heartbeatC = heartbeat.C
			}
		case <-heartbeatC:
			if err := c.sendHeartbeat(); err != nil {
				return err
			}
		}
	}
}

func (c *Client) currentHeartbeatInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heartbeatInterval
}

func (c *Client) readLoop(out chan<- []byte, errs chan<- error) {
	for {
		frame, err := c.conn.Recv()
		if err != nil {
			errs <- err
			return
		}
		out <- frame
	}
}

func (c *Client) teardown(err error) {
	c.setState(StateDisconnected)
	c.relays.shutdown()
	_ = c.conn.Close()
	c.publish(Event{Kind: EventDisconnected, Err: err})
}

func (c *Client) publish(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Msg("event channel full, dropping event")
	}
}

func (c *Client) sendRegister() error {
	hasDisplay := true
	if c.reg.HasDisplay != nil {
		hasDisplay = c.reg.HasDisplay()
	}
	msg := RegisterMessage{
		Type:         TypeRegister,
		MachineID:    c.reg.MachineID,
		MachineName:  c.reg.MachineName,
		OSType:       c.reg.OSType,
		OSVersion:    c.reg.OSVersion,
		Arch:         c.reg.Arch,
		AgentVersion: c.reg.AgentVersion,
		AgentName:    c.reg.AgentName,
		LicenseUUID:  c.reg.LicenseUUID,
		CustomerID:   c.reg.CustomerID,
		Fingerprint:  c.reg.Fingerprint,
		HasDisplay:   hasDisplay,
	}
	return c.sendJSON(msg)
}

func (c *Client) sendHeartbeat() error {
	locked := false
	if c.isScreenLocked != nil {
		locked = c.isScreenLocked()
	}
	power := "unknown"
	if c.powerState != nil {
		power = c.powerState()
	}
	msg := HeartbeatMessage{
		Type:           TypeHeartbeat,
		TimestampMS:    time.Now().UnixMilli(),
		PowerState:     power,
		IsScreenLocked: locked,
		HasDisplay:     c.reg.HasDisplay == nil || c.reg.HasDisplay(),
	}
	return c.sendJSON(msg)
}

func (c *Client) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", v, err)
	}
	return c.conn.SendText(b)
}

// Relay issues a relay call to another agent through the server and
// invokes cb exactly once when it resolves, times out, or the connection
// is torn down.
func (c *Client) Relay(target, method string, params any, cb RelayCallback) error {
	id := idgen.RelayID()
	msg := RelayMessage{Type: TypeRelay, ID: id, TargetAgentID: target, Method: method, Params: params}
	c.relays.add(id, cb)
	if err := c.sendJSON(msg); err != nil {
		c.relays.complete(id, nil) // best effort; entry will otherwise time out
		return err
	}
	return nil
}

func (c *Client) handleFrame(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed frame")
		return nil
	}

	switch env.Type {
	case TypeRegistered:
		return c.handleRegistered(raw)
	case TypeHeartbeatAck:
		return c.handleHeartbeatAck(raw)
	case TypeRequest:
		return c.handleRequest(ctx, raw)
	case TypeRelayResponse:
		return c.handleRelayResponse(raw)
	case TypePing:
		return c.handlePing(raw)
	case TypePong:
		return nil
	case TypeError:
		var em ErrorMessage
		_ = json.Unmarshal(raw, &em)
		c.log.Warn().Str("code", em.Code).Str("message", em.Message).Msg("server error frame")
		return nil
	case TypeConfig:
		return nil // acknowledged silently, per §4.B
	default:
		c.log.Info().Str("type", env.Type).Msg("ignoring unknown message type")
		return nil
	}
}

func (c *Client) handleRegistered(raw []byte) error {
	var msg RegisteredMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode registered: %w", err)
	}
	c.mu.Lock()
	c.agentID = msg.AgentID
	if msg.Config != nil && msg.Config.HeartbeatIntervalMS > 0 {
		c.heartbeatInterval = time.Duration(msg.Config.HeartbeatIntervalMS) * time.Millisecond
	}
	c.mu.Unlock()
	c.setState(StateRegistered)
	c.publish(Event{Kind: EventRegistered, AgentID: msg.AgentID})
	return nil
}

func (c *Client) handleHeartbeatAck(raw []byte) error {
	var msg HeartbeatAckMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode heartbeat_ack: %w", err)
	}

	if msg.Permissions != nil {
		c.mu.Lock()
		changed := !c.havePerms || c.permissions != *msg.Permissions
		c.permissions = *msg.Permissions
		c.havePerms = true
		c.mu.Unlock()
		if changed {
			c.publish(Event{Kind: EventPermissionsChanged, Permissions: *msg.Permissions})
		}
	}

	c.publish(Event{Kind: EventUpdateFlag, UpdateFlag: msg.updateFlagValue()})
	return nil
}

func (c *Client) handleRequest(ctx context.Context, raw []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	result, dispatchErr := c.dispatch.Dispatch(ctx, req.Method, req.Params)
	resp := ResponseMessage{Type: TypeResponse, ID: req.ID}
	if dispatchErr != nil {
		resp.Error = dispatchErr.Error()
	} else {
		resp.Result = result
	}
	// If the connection died while the handler ran, sendJSON fails and the
	// reply is silently dropped, per §4.B.
	_ = c.sendJSON(resp)
	return nil
}

func (c *Client) handleRelayResponse(raw []byte) error {
	var msg RelayResponseMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode relay_response: %w", err)
	}
	c.relays.complete(msg.ID, msg.Result)
	return nil
}

func (c *Client) handlePing(raw []byte) error {
	var msg PingMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode ping: %w", err)
	}
	return c.sendJSON(PongMessage{Type: TypePong, Timestamp: msg.Timestamp})
}
