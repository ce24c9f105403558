package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// parsedURL is the validated result of the ws://|wss:// URL grammar in
// §4.A: ws:// defaults to port 80, wss:// to port 443 with TLS required.
type parsedURL struct {
	tls      bool
	hostOnly string
}

func parseURL(raw string) (*parsedURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadURL, err)
	}

	var tlsRequired bool
	switch strings.ToLower(u.Scheme) {
	case "ws":
		tlsRequired = false
	case "wss":
		tlsRequired = true
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrBadURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrBadURL)
	}

	return &parsedURL{tls: tlsRequired, hostOnly: host}, nil
}
