// Package idgen mints identifiers. Wire-format identifiers the spec
// prescribes literally (session_<hex16>, relay_<hex16>) are generated from
// crypto/rand; Internal mints a google/uuid for identifiers the spec leaves
// unspecified.
package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

func hex16() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on a real OS never fails; fall back to a UUID's
		// randomness so callers never receive an empty ID.
		u := uuid.New()
		return hex.EncodeToString(u[:8])
	}
	return hex.EncodeToString(buf)
}

// SessionID mints a "session_<hex16>" identifier per the shell session
// record's ID format.
func SessionID() string {
	return "session_" + hex16()
}

// RelayID mints a "relay_<hex16>" identifier for outstanding relay calls.
func RelayID() string {
	return "relay_" + hex16()
}

// Internal mints a UUID for identifiers the spec leaves unspecified.
func Internal() string {
	return uuid.NewString()
}
