// Package streaming implements the Streaming Key Fetcher: for chunked
// uploads only, it requests a day-bounded HMAC signing key tied to the
// Authorization header and attaches it to a successful Verdict.
package streaming

import (
	"context"
	"errors"

	"github.com/objectgate/handoff/internal/transport"
)

// ErrChunkedUploadDisabled names the fail-closed rejection of a chunked
// request while chunked_upload_enabled is false. Nothing in this package
// returns it: the Handoff Engine rejects such a request itself, before
// verification, with an access-denied verdict.
var ErrChunkedUploadDisabled = errors.New("streaming: chunked upload disabled")

// Fetch requests the per-day signing key for a chunked upload. Callers must
// only invoke this after a successful verification verdict; a failure here
// is the caller's signal to downgrade the whole authentication to
// access-denied, not to retry or fall back to an unsigned
// chunk-verification path.
//
// The returned key is a raw HMAC-SHA256 output. This package does nothing
// to cache it: the key is only valid for the UTC day of issue and
// long-lived caching is disallowed, so each
// chunked request pays for its own fetch.
func Fetch(ctx context.Context, verifier transport.Verifier, transactionID, authorizationHeader string) ([]byte, error) {
	key, err := verifier.GetSigningKey(ctx, transactionID, authorizationHeader)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, errors.New("streaming: signing key response was empty")
	}
	return key, nil
}
