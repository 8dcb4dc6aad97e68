// Package sin implements the Signature Input Normalizer: it produces one
// canonical AuthorizationHeader for a request, or fails closed. It never
// reads or derives a secret key — verification itself happens downstream,
// delegated to the Authenticator.
package sin

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/objectgate/handoff/internal/snapshot"
)

// ErrMissingCredential is returned when neither an Authorization header nor
// a complete set of presigned-URL parameters is present.
var ErrMissingCredential = errors.New("sin: missing or incomplete credential")

// ErrExpired is returned when a synthesized presigned header's expiry has
// passed, or the expiry parameters are absent or unparseable (fail closed).
var ErrExpired = errors.New("sin: presigned request expired")

// ErrV2Disabled is returned when the normalized header is a v2 header but
// v2 signatures are administratively disabled.
var ErrV2Disabled = errors.New("sin: v2 signatures disabled")

const amzDateFormat = "20060102T150405Z"

// Options carries the subset of RuntimeConfig the normalizer consults.
type Options struct {
	PresignedExpiryCheck bool
	SignatureV2Enabled   bool
	// Now, if set, overrides time.Now for expiry checks. Tests set this;
	// production leaves it nil.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Normalize produces the one canonical Authorization header for a request,
// or fails closed.
func Normalize(req *snapshot.RequestSnapshot, opts Options) (snapshot.AuthorizationHeader, error) {
	header, synthesized, err := extract(req)
	if err != nil {
		return "", err
	}

	if synthesized && opts.PresignedExpiryCheck {
		if err := checkExpiry(req.Query, opts.now()); err != nil {
			return "", err
		}
	}

	ah := snapshot.AuthorizationHeader(header)
	if ah.IsV2() && !opts.SignatureV2Enabled {
		return "", ErrV2Disabled
	}
	return ah, nil
}

// extract implements steps 1-2: take the inbound header verbatim, or
// synthesize one from presigned-URL query parameters.
func extract(req *snapshot.RequestSnapshot) (header string, synthesized bool, err error) {
	if raw, ok := req.Headers["HTTP_AUTHORIZATION"]; ok && raw != "" {
		return raw, false, nil
	}

	if accessKey, ok := req.Query["AWSAccessKeyId"]; ok {
		sig, sigOK := req.Query["Signature"]
		if !sigOK || accessKey == "" || sig == "" {
			return "", false, ErrMissingCredential
		}
		return fmt.Sprintf("AWS %s:%s", accessKey, sig), true, nil
	}

	if cred, ok := req.Query["x-amz-credential"]; ok {
		signedHeaders, shOK := req.Query["x-amz-signedheaders"]
		sig, sigOK := req.Query["x-amz-signature"]
		if !shOK || !sigOK || cred == "" || signedHeaders == "" || sig == "" {
			return "", false, ErrMissingCredential
		}
		return fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s, SignedHeaders=%s, Signature=%s", cred, signedHeaders, sig), true, nil
	}

	return "", false, ErrMissingCredential
}

// checkExpiry implements step 3: the v2 and v4 presigned-expiry checks.
// Any missing or unparseable parameter fails closed as expired.
func checkExpiry(query map[string]string, now time.Time) error {
	if _, ok := query["AWSAccessKeyId"]; ok {
		expiresStr, ok := query["Expires"]
		if !ok {
			return ErrExpired
		}
		expires, err := strconv.ParseInt(expiresStr, 10, 64)
		if err != nil {
			return ErrExpired
		}
		if expires < now.Unix() {
			return ErrExpired
		}
		return nil
	}

	dateStr, ok := query["x-amz-date"]
	if !ok {
		return ErrExpired
	}
	date, err := time.Parse(amzDateFormat, dateStr)
	if err != nil {
		return ErrExpired
	}
	expiresStr, ok := query["x-amz-expires"]
	if !ok {
		return ErrExpired
	}
	deltaSecs, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil || deltaSecs < 0 {
		return ErrExpired
	}
	deadline := date.Add(time.Duration(deltaSecs) * time.Second)
	if deadline.Before(now) {
		return ErrExpired
	}
	return nil
}

// DetectChunked reports whether the request declares a chunked streaming
// payload via X-Amz-Content-SHA256.
func DetectChunked(req *snapshot.RequestSnapshot) bool {
	return req.Headers["HTTP_X_AMZ_CONTENT_SHA256"] == "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"
}
