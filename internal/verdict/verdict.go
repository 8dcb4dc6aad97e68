// Package verdict defines the typed authentication result returned by the
// Handoff Engine.
//
// Verdict is a discriminated sum: exactly one of Ok or Err
// is meaningful for a given value, and callers must use the total accessors
// OK and Failure rather than reading the underlying fields directly. There
// is no panic-on-misuse path here — a caller that ignores the bool and reads
// a zero-value Ok or Err gets the zero value, not a crash, but that zero
// value is never what a well-behaved caller wants, so the accessors exist
// precisely so nobody needs to do that.
package verdict

import "github.com/objectgate/handoff/internal/gwerrors"

// ErrorCategory classifies why a Verdict is an Err.
type ErrorCategory int

const (
	// NoError is the zero value and never appears on a constructed Err.
	NoError ErrorCategory = iota
	// TransportError means the Authenticator call itself failed, or
	// returned a response this gateway could not interpret.
	TransportError
	// AuthError means the Authenticator issued a structured denial.
	AuthError
	// InternalError means a local invariant was violated or a response
	// failed to parse.
	InternalError
)

func (c ErrorCategory) String() string {
	switch c {
	case TransportError:
		return "TransportError"
	case AuthError:
		return "AuthError"
	case InternalError:
		return "InternalError"
	default:
		return "NoError"
	}
}

// Ok is the successful-authentication payload.
type Ok struct {
	UserID  string
	Message string
	// SigningKey is non-nil only when the request was a chunked upload and
	// the Streaming Key Fetcher successfully attached a per-day HMAC key.
	SigningKey []byte
}

// Err is the denied/failed-authentication payload.
type Err struct {
	Category ErrorCategory
	Code     *gwerrors.S3Error
	Message  string
}

// Verdict is the sum type itself. The zero value is neither a valid Ok nor
// a valid Err; it must be constructed via OkVerdict or ErrVerdict.
type Verdict struct {
	ok     *Ok
	err    *Err
	isErr  bool
	filled bool
}

// OkVerdict constructs a successful Verdict.
func OkVerdict(userID, message string, signingKey []byte) Verdict {
	return Verdict{ok: &Ok{UserID: userID, Message: message, SigningKey: signingKey}, filled: true}
}

// ErrVerdict constructs a denied Verdict.
func ErrVerdict(category ErrorCategory, code *gwerrors.S3Error, message string) Verdict {
	return Verdict{err: &Err{Category: category, Code: code, Message: message}, isErr: true, filled: true}
}

// OK returns the success payload and true if the Verdict is successful.
// This is the only sanctioned way to read UserID/SigningKey off a Verdict;
// reading the zero value of an unchecked Verdict is a programmer error that
// this accessor turns into a plain false rather than a panic.
func (v Verdict) OK() (Ok, bool) {
	if !v.filled || v.isErr || v.ok == nil {
		return Ok{}, false
	}
	return *v.ok, true
}

// Failure returns the failure payload and true if the Verdict is a denial.
func (v Verdict) Failure() (Err, bool) {
	if !v.filled || !v.isErr || v.err == nil {
		return Err{}, false
	}
	return *v.err, true
}

// IsOk reports whether the Verdict is successful, without exposing payload.
func (v Verdict) IsOk() bool {
	_, ok := v.OK()
	return ok
}
