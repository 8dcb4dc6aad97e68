package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/objectgate/handoff/internal/gwerrors"
)

type httpVerifyRequest struct {
	StringToSign  string             `json:"stringToSign"`
	AccessKeyID   string             `json:"accessKeyId"`
	Authorization string             `json:"authorization"`
	EAKParameters *httpEAKParameters `json:"eakParameters,omitempty"`
}

type httpEAKParameters struct {
	Method        string `json:"method"`
	BucketName    string `json:"bucketName"`
	ObjectKeyName string `json:"objectKeyName"`
}

type httpVerifyResponse struct {
	Message string `json:"message"`
	UID     string `json:"uid"`
}

// HTTPVerifier is the alternate/legacy Verifier implementation: plain
// JSON-over-HTTP to the Authenticator's /verify endpoint.
type HTTPVerifier struct {
	BaseURI string
	Client  *http.Client
}

// NewHTTPVerifier builds an HTTPVerifier. verifySSL governs whether the
// client validates the Authenticator's TLS certificate, per the
// verify_ssl configuration key.
func NewHTTPVerifier(baseURI string, verifySSL bool) *HTTPVerifier {
	rt := &http.Transport{}
	if !verifySSL {
		rt.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &HTTPVerifier{
		BaseURI: baseURI,
		Client:  &http.Client{Transport: rt},
	}
}

func (v *HTTPVerifier) verifyURL() string {
	return strings.TrimSuffix(v.BaseURI, "/") + "/verify"
}

func (v *HTTPVerifier) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	body := httpVerifyRequest{
		StringToSign:  base64.StdEncoding.EncodeToString(req.StringToSign),
		AccessKeyID:   req.AccessKeyID,
		Authorization: req.AuthorizationHeader,
	}
	if req.ACC != nil && req.ACC.Valid {
		body.EAKParameters = &httpEAKParameters{
			Method:        req.ACC.Method.String(),
			BucketName:    req.ACC.Bucket,
			ObjectKeyName: req.ACC.ObjectKey,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("transport: marshaling verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL(), bytes.NewReader(payload))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("transport: building verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.Client.Do(httpReq)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("transport: verify request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out httpVerifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return VerifyResult{}, fmt.Errorf("transport: decoding verify response: %w", err)
		}
		if out.UID == "" || out.Message == "" {
			return VerifyResult{}, fmt.Errorf("transport: verify response missing message or uid")
		}
		return VerifyResult{Ok: true, UserID: out.UID, Message: out.Message}, nil
	case http.StatusUnauthorized:
		return VerifyResult{Ok: false, Err: gwerrors.ErrSignatureNoMatch}, nil
	case http.StatusNotFound:
		return VerifyResult{Ok: false, Err: gwerrors.ErrInvalidAccessKey}, nil
	default:
		return VerifyResult{Ok: false, Err: gwerrors.ErrAccess}, nil
	}
}

// GetSigningKey has no endpoint over the HTTP transport; it exists only
// as an RPC. A gateway configured for the HTTP
// fallback cannot serve chunked uploads; the Streaming Key Fetcher treats
// this failure as grounds to downgrade the whole authentication to
// access-denied.
func (v *HTTPVerifier) GetSigningKey(ctx context.Context, transactionID, authorizationHeader string) ([]byte, error) {
	return nil, fmt.Errorf("transport: streaming signing keys are not available over the HTTP verifier")
}
