// Package gwerrors defines the gateway's S3 error taxonomy and the table
// that translates an Authenticator error into one of those codes.
package gwerrors

import "fmt"

// S3Error represents an S3-API-shaped error: a machine-readable code, a
// human-readable message, and the HTTP status the REST layer should render.
type S3Error struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *S3Error) Error() string {
	return fmt.Sprintf("S3Error %s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// WithMessage returns a copy of the error with Message replaced, so the
// Authenticator's human-readable text can be preserved without losing the
// underlying code/status pairing.
func (e *S3Error) WithMessage(msg string) *S3Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Gateway error codes. Names mirror the Authenticator's own vocabulary where
// a 1:1 mapping exists (see Translate). The engine's own rejections (V2
// disabled, chunked upload disabled, missing credential) use ErrAccess.
var (
	ErrAccess = &S3Error{
		Code:       "ACCESS",
		Message:    "Access Denied",
		HTTPStatus: 403,
	}
	ErrInvalidRequest = &S3Error{
		Code:       "INVALID_REQUEST",
		Message:    "The request could not be parsed or was malformed",
		HTTPStatus: 400,
	}
	ErrInternalError = &S3Error{
		Code:       "INTERNAL_ERROR",
		Message:    "We encountered an internal error. Please try again.",
		HTTPStatus: 500,
	}
	ErrInvalidAccessKey = &S3Error{
		Code:       "INVALID_ACCESS_KEY",
		Message:    "The access key id you provided does not exist in our records",
		HTTPStatus: 403,
	}
	ErrInvalid = &S3Error{
		Code:       "INVALID",
		Message:    "Invalid request",
		HTTPStatus: 400,
	}
	ErrInvalidIdentityToken = &S3Error{
		Code:       "INVALID_IDENTITY_TOKEN",
		Message:    "The session token provided is invalid",
		HTTPStatus: 400,
	}
	ErrMethodNotAllowed = &S3Error{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "The specified method is not allowed against this resource",
		HTTPStatus: 405,
	}
	ErrRequestTimeSkewed = &S3Error{
		Code:       "REQUEST_TIME_SKEWED",
		Message:    "The difference between the request time and the server's time is too large",
		HTTPStatus: 403,
	}
	ErrSignatureNoMatch = &S3Error{
		Code:       "SIGNATURE_NO_MATCH",
		Message:    "The request signature we calculated does not match the signature you provided",
		HTTPStatus: 403,
	}
	ErrNotFound = &S3Error{
		Code:       "NOT_FOUND",
		Message:    "The specified resource does not exist",
		HTTPStatus: 404,
	}
)

// errorTranslationTable is the authoritative Authenticator-type to
// gateway-code mapping. Built once at package load rather than lazily
// behind a one-shot barrier: the map is immutable and
// small enough that paying for its construction at init time is simpler than
// any lazy-init scheme.
var errorTranslationTable = map[string]*S3Error{
	"ACCESS_DENIED":                  ErrAccess,
	"AUTHORIZATION_HEADER_MALFORMED": ErrInvalidRequest,
	"EXPIRED_TOKEN":                  ErrAccess,
	"INTERNAL_ERROR":                 ErrInternalError,
	"INVALID_ACCESS_KEY_ID":          ErrInvalidAccessKey,
	"INVALID_REQUEST":                ErrInvalid,
	"INVALID_SECURITY":               ErrInvalid,
	"INVALID_TOKEN":                  ErrInvalidIdentityToken,
	"INVALID_URI":                    ErrInvalidRequest,
	"METHOD_NOT_ALLOWED":             ErrMethodNotAllowed,
	"MISSING_SECURITY_HEADER":        ErrInvalidRequest,
	"REQUEST_TIME_TOO_SKEWED":        ErrRequestTimeSkewed,
	"SIGNATURE_DOES_NOT_MATCH":       ErrSignatureNoMatch,
	"TOKEN_REFRESH_REQUIRED":         ErrInvalidRequest,
}

// Translate maps an Authenticator error type and the Authenticator's desired
// HTTP status to a gateway S3Error. When errType matches no entry in the
// table, the fallback is driven by httpStatus alone: 400 -> INVALID,
// 404 -> NOT_FOUND, anything else (including 403) -> ACCESS.
//
// Translate is a pure function: equal (errType, httpStatus, message)
// always yields an equal result.
func Translate(errType string, httpStatus int, message string) *S3Error {
	base, ok := errorTranslationTable[errType]
	if !ok {
		switch httpStatus {
		case 400:
			base = ErrInvalid
		case 404:
			base = ErrNotFound
		default:
			base = ErrAccess
		}
	}
	if message == "" {
		return base
	}
	return base.WithMessage(message)
}
