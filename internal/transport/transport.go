// Package transport defines a single Verifier capability
// abstracting the two ways a verification request can reach the
// Authenticator, with one implementation per transport. The Handoff Engine
// depends only on the Verifier interface; it is chosen once at construction
// time based on RuntimeConfig.GRPCMode (a boot-only field).
package transport

import (
	"context"

	"github.com/objectgate/handoff/internal/gwerrors"
	"github.com/objectgate/handoff/internal/snapshot"
)

// VerifyRequest carries the common request fields shared by both
// transports.
type VerifyRequest struct {
	TransactionID       string
	AccessKeyID         string
	StringToSign        []byte
	AuthorizationHeader string
	// ACC is nil when Authorization Context Capture did not run or
	// produced an invalid snapshot for this request.
	ACC *snapshot.AuthorizationParameters
}

// VerifyResult is the parsed outcome of a verification call. When Ok is
// false, Err carries the gateway error code the Authenticator's structured
// denial translates to; a nil Err with Ok false never happens —
// transports that cannot produce a structured denial fall back to
// gwerrors.ErrAccess rather than leaving Err nil.
type VerifyResult struct {
	Ok      bool
	UserID  string
	Message string
	Err     *gwerrors.S3Error
}

// Verifier is the capability the Handoff Engine depends on.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
	GetSigningKey(ctx context.Context, transactionID, authorizationHeader string) ([]byte, error)
}
