// Package rpc defines the Authenticator RPC wire types and a JSON payload
// codec for google.golang.org/grpc.
//
// The real system this subsystem embeds in generates its RPC stubs with
// protoc; reproducing that pipeline here is out of reach without a build
// step this exercise cannot run. Instead this package registers a small
// encoding.Codec that marshals these structs as JSON and drives them over a
// genuine grpc.ClientConn selected per-call with
// grpc.CallContentSubtype("json") (see internal/transport). The transport,
// connection lifecycle, and reconnect-backoff machinery are all the real
// thing; only the wire format differs from upstream Ceph RGW's protobuf.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const CodecName = "json"

// jsonCodec implements encoding.Codec by delegating to encoding/json.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// AuthenticateRESTRequest is the wire request for the AuthenticateREST
// RPC. StringToSign marshals to a base64 string automatically via
// encoding/json's []byte handling.
type AuthenticateRESTRequest struct {
	TransactionID       string            `json:"transactionId"`
	StringToSign        []byte            `json:"stringToSign"`
	AuthorizationHeader string            `json:"authorizationHeader"`
	HTTPMethod          string            `json:"httpMethod"`
	BucketName          string            `json:"bucketName,omitempty"`
	ObjectKey           string            `json:"objectKey,omitempty"`
	XAmzHeaders         map[string]string `json:"xAmzHeaders,omitempty"`
	QueryParameters     map[string]string `json:"queryParameters,omitempty"`
}

// ErrorDetails is the "S3 error details" payload embedded in a failed
// AuthenticateREST response.
type ErrorDetails struct {
	Type           string `json:"type"`
	HTTPStatusCode int    `json:"httpStatusCode"`
	Message        string `json:"message"`
}

// AuthenticateRESTResponse is the wire response. Exactly one of UserID
// (success) or Error (failure) is populated. GRPCVerifier.Verify reports a
// response with neither as an error, which the Handoff Engine classifies as
// a TransportError; no path turns it into an InternalError verdict.
type AuthenticateRESTResponse struct {
	UserID  string        `json:"userId,omitempty"`
	Message string        `json:"message,omitempty"`
	Error   *ErrorDetails `json:"error,omitempty"`
}

// GetSigningKeyRequest is the wire request for the GetSigningKey RPC.
type GetSigningKeyRequest struct {
	TransactionID       string `json:"transactionId"`
	AuthorizationHeader string `json:"authorizationHeader"`
}

// GetSigningKeyResponse is the wire response. SigningKey is 32 octets on
// success; Error is populated on failure.
type GetSigningKeyResponse struct {
	SigningKey []byte        `json:"signingKey,omitempty"`
	Error      *ErrorDetails `json:"error,omitempty"`
}

const (
	MethodAuthenticateREST = "/handoff.Authenticator/AuthenticateREST"
	MethodGetSigningKey    = "/handoff.Authenticator/GetSigningKey"
)
