package transport

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/objectgate/handoff/internal/gwerrors"
	"github.com/objectgate/handoff/internal/rpc"
	"github.com/objectgate/handoff/internal/snapshot"
)

// BackoffParams is the transport channel's tuneable reconnect backoff:
// (initial_ms, min_ms, max_ms).
type BackoffParams struct {
	InitialMs int
	MinMs     int
	MaxMs     int
}

// NewGRPCConn dials a gRPC channel to uri with the given backoff tuning.
// The triple maps directly onto grpc.ConnectParams{Backoff:
// backoff.Config{BaseDelay, MaxDelay}, MinConnectTimeout}. An error here
// is treated as fatal at boot and as a logged, non-fatal failed rebuild
// at runtime.
func NewGRPCConn(uri string, bp BackoffParams) (*grpc.ClientConn, error) {
	cp := grpc.ConnectParams{
		Backoff: backoff.Config{
			BaseDelay: time.Duration(bp.InitialMs) * time.Millisecond,
			MaxDelay:  time.Duration(bp.MaxMs) * time.Millisecond,
		},
		MinConnectTimeout: time.Duration(bp.MinMs) * time.Millisecond,
	}
	conn, err := grpc.NewClient(uri,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(cp),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing %s: %w", uri, err)
	}
	return conn, nil
}

// GRPCVerifier is the primary Verifier implementation: a stub bound to a
// single shared *grpc.ClientConn (the TransportChannel).
type GRPCVerifier struct {
	conn *grpc.ClientConn
}

// NewGRPCVerifier wraps an already-dialed connection. The RCO owns
// replacing conn atomically on a channel rebuild; GRPCVerifier itself holds
// no mutable channel state.
func NewGRPCVerifier(conn *grpc.ClientConn) *GRPCVerifier {
	return &GRPCVerifier{conn: conn}
}

func (v *GRPCVerifier) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	wireReq := &rpc.AuthenticateRESTRequest{
		TransactionID:       req.TransactionID,
		StringToSign:        req.StringToSign,
		AuthorizationHeader: req.AuthorizationHeader,
		HTTPMethod:          snapshot.MethodUnspecified.String(),
	}
	if req.ACC != nil && req.ACC.Valid {
		wireReq.HTTPMethod = req.ACC.Method.String()
		wireReq.BucketName = req.ACC.Bucket
		wireReq.ObjectKey = req.ACC.ObjectKey
		wireReq.XAmzHeaders = req.ACC.Headers
		wireReq.QueryParameters = req.ACC.Query
	}

	resp := new(rpc.AuthenticateRESTResponse)
	if err := v.conn.Invoke(ctx, rpc.MethodAuthenticateREST, wireReq, resp, grpc.CallContentSubtype(rpc.CodecName)); err != nil {
		return VerifyResult{}, fmt.Errorf("transport: AuthenticateREST: %w", err)
	}

	if resp.Error != nil {
		return VerifyResult{
			Ok:      false,
			Message: resp.Error.Message,
			Err:     gwerrors.Translate(resp.Error.Type, resp.Error.HTTPStatusCode, resp.Error.Message),
		}, nil
	}
	if resp.UserID == "" {
		return VerifyResult{}, fmt.Errorf("transport: AuthenticateREST: response had neither userId nor error")
	}
	return VerifyResult{Ok: true, UserID: resp.UserID, Message: resp.Message}, nil
}

func (v *GRPCVerifier) GetSigningKey(ctx context.Context, transactionID, authorizationHeader string) ([]byte, error) {
	wireReq := &rpc.GetSigningKeyRequest{TransactionID: transactionID, AuthorizationHeader: authorizationHeader}
	resp := new(rpc.GetSigningKeyResponse)
	if err := v.conn.Invoke(ctx, rpc.MethodGetSigningKey, wireReq, resp, grpc.CallContentSubtype(rpc.CodecName)); err != nil {
		return nil, fmt.Errorf("transport: GetSigningKey: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("transport: GetSigningKey: %s", resp.Error.Message)
	}
	if len(resp.SigningKey) == 0 {
		return nil, fmt.Errorf("transport: GetSigningKey: empty signing key")
	}
	return resp.SigningKey, nil
}

// Close releases the underlying connection. Callers must not invoke it
// while holding the config read-lock.
func (v *GRPCVerifier) Close() error {
	return v.conn.Close()
}
