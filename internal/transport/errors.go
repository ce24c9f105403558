package transport

import "errors"

// Typed connection errors per the transport contract (§4.A, §7).
var (
	ErrBadURL             = errors.New("transport: bad url")
	ErrDNSFailure         = errors.New("transport: dns failure")
	ErrTCPRefused         = errors.New("transport: tcp connection refused")
	ErrTLSHandshake       = errors.New("transport: tls handshake failed")
	ErrWebSocketHandshake = errors.New("transport: websocket handshake failed")
	ErrProtocolViolation  = errors.New("transport: protocol violation")
	ErrTransportLost      = errors.New("transport: connection lost")
	ErrClosed             = errors.New("transport: closed")
)
