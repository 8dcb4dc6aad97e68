// Package uid generates transaction identifiers for Handoff.
package uid

import "github.com/google/uuid"

// New generates a time-ordered transaction id (UUIDv7) suitable for log
// correlation across the gateway and the Authenticator. Unlike a purely
// random id, successive calls sort in roughly chronological order, which
// makes it easier to locate a request's RPC and log lines in an
// otherwise-unordered store.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// crypto/rand exhaustion is effectively unrecoverable; fall back to
		// a random v4 rather than propagate an error from a context where
		// every caller expects an id.
		return uuid.NewString()
	}
	return id.String()
}
