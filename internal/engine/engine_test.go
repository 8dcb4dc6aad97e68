package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/objectgate/handoff/internal/config"
	"github.com/objectgate/handoff/internal/gwerrors"
	"github.com/objectgate/handoff/internal/snapshot"
	"github.com/objectgate/handoff/internal/transport"
)

var errSigningFetchFailed = errors.New("signing key fetch failed")

type fakeVerifier struct {
	verifyResult transport.VerifyResult
	verifyErr    error
	signingKey   []byte
	signingErr   error

	lastVerifyReq transport.VerifyRequest
}

func (f *fakeVerifier) Verify(ctx context.Context, req transport.VerifyRequest) (transport.VerifyResult, error) {
	f.lastVerifyReq = req
	return f.verifyResult, f.verifyErr
}

func (f *fakeVerifier) GetSigningKey(ctx context.Context, transactionID, authorizationHeader string) ([]byte, error) {
	return f.signingKey, f.signingErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *config.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Runtime.ChunkedUploadEnabled = true
	return config.NewStore(cfg)
}

func baseRequest() *snapshot.RequestSnapshot {
	return &snapshot.RequestSnapshot{
		AccessKeyID:  "0555b35654ad1656d804",
		StringToSign: []byte("GET\n\n\n\n/test/"),
		Method:       "GET",
		Path:         "/test/",
		Headers: map[string]string{
			"HTTP_AUTHORIZATION": "AWS 0555b35654ad1656d804:ZbQ5signature=",
		},
		Query: map[string]string{},
	}
}

func TestAuthenticateV2InboundHeaderOk(t *testing.T) {
	v := &fakeVerifier{verifyResult: transport.VerifyResult{Ok: true, UserID: "testid"}}
	e := New(testStore(t), v, testLogger())

	got := e.Authenticate(context.Background(), baseRequest())
	ok, isOk := got.OK()
	if !isOk {
		t.Fatalf("expected Ok verdict, got %+v", got)
	}
	if ok.UserID != "testid" {
		t.Errorf("UserID = %q, want testid", ok.UserID)
	}
}

func TestAuthenticateV4SignatureMismatch(t *testing.T) {
	v := &fakeVerifier{verifyResult: transport.VerifyResult{
		Ok:  false,
		Err: gwerrors.ErrSignatureNoMatch,
	}}
	e := New(testStore(t), v, testLogger())

	req := baseRequest()
	req.Headers["HTTP_AUTHORIZATION"] = "AWS4-HMAC-SHA256 Credential=0555b35654ad1656d804/20231012/eu-west-2/s3/aws4_request, SignedHeaders=host, Signature=deadbeef"

	got := e.Authenticate(context.Background(), req)
	fail, isErr := got.Failure()
	if !isErr {
		t.Fatalf("expected Err verdict, got %+v", got)
	}
	if fail.Code.Code != "SIGNATURE_NO_MATCH" {
		t.Errorf("Code = %q, want SIGNATURE_NO_MATCH", fail.Code.Code)
	}
}

func TestAuthenticateV2DisabledRejectsBeforeTransport(t *testing.T) {
	store := testStore(t)
	store.Swap(config.RuntimeConfig{SignatureV2Enabled: false, ChunkedUploadEnabled: true})

	v := &fakeVerifier{verifyResult: transport.VerifyResult{Ok: true, UserID: "testid"}}
	e := New(store, v, testLogger())

	got := e.Authenticate(context.Background(), baseRequest())
	fail, isErr := got.Failure()
	if !isErr {
		t.Fatalf("expected Err verdict, got %+v", got)
	}
	if fail.Message != "V2 signatures disabled" {
		t.Errorf("Message = %q, want V2 signatures disabled", fail.Message)
	}
	if v.lastVerifyReq.TransactionID != "" {
		t.Error("expected the transport to never be called once v2 is rejected")
	}
}

func TestAuthenticateChunkedUploadSuccessAttachesSigningKey(t *testing.T) {
	v := &fakeVerifier{
		verifyResult: transport.VerifyResult{Ok: true, UserID: "testid"},
		signingKey:   make([]byte, 32),
	}
	e := New(testStore(t), v, testLogger())

	req := baseRequest()
	req.Headers["HTTP_X_AMZ_CONTENT_SHA256"] = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"

	got := e.Authenticate(context.Background(), req)
	ok, isOk := got.OK()
	if !isOk {
		t.Fatalf("expected Ok verdict, got %+v", got)
	}
	if len(ok.SigningKey) != 32 {
		t.Errorf("SigningKey length = %d, want 32", len(ok.SigningKey))
	}
}

func TestAuthenticateChunkedUploadDisabledFailsClosed(t *testing.T) {
	store := testStore(t)
	store.Swap(config.RuntimeConfig{SignatureV2Enabled: true, ChunkedUploadEnabled: false})

	v := &fakeVerifier{verifyResult: transport.VerifyResult{Ok: true, UserID: "testid"}}
	e := New(store, v, testLogger())

	req := baseRequest()
	req.Headers["HTTP_X_AMZ_CONTENT_SHA256"] = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"

	got := e.Authenticate(context.Background(), req)
	if _, isErr := got.Failure(); !isErr {
		t.Fatalf("expected Err verdict, got %+v", got)
	}
	if v.lastVerifyReq.TransactionID != "" {
		t.Error("expected the transport to never be called once chunked upload is rejected")
	}
}

func TestAuthenticateStreamingKeyFetchFailureDowngradesToAccessDenied(t *testing.T) {
	v := &fakeVerifier{
		verifyResult: transport.VerifyResult{Ok: true, UserID: "testid"},
		signingErr:   errSigningFetchFailed,
	}
	e := New(testStore(t), v, testLogger())

	req := baseRequest()
	req.Headers["HTTP_X_AMZ_CONTENT_SHA256"] = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"

	got := e.Authenticate(context.Background(), req)
	fail, isErr := got.Failure()
	if !isErr {
		t.Fatalf("expected Err verdict after a signing-key fetch failure, got %+v", got)
	}
	if fail.Code.Code != "ACCESS" {
		t.Errorf("Code = %q, want ACCESS (downgrade)", fail.Code.Code)
	}
}

func TestAuthenticateMissingCredentialFailsClosedWithoutTransport(t *testing.T) {
	v := &fakeVerifier{verifyResult: transport.VerifyResult{Ok: true, UserID: "testid"}}
	e := New(testStore(t), v, testLogger())

	req := baseRequest()
	delete(req.Headers, "HTTP_AUTHORIZATION")

	got := e.Authenticate(context.Background(), req)
	if _, isErr := got.Failure(); !isErr {
		t.Fatalf("expected Err verdict, got %+v", got)
	}
	if v.lastVerifyReq.TransactionID != "" {
		t.Error("expected the transport to never be called without a credential")
	}
}
