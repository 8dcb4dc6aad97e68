// Package acc implements Authorization Context Capture: an optional,
// enriched snapshot of request context (method, bucket, object key,
// selected headers, path, query parameters) that accompanies verification
// when the runtime capture policy calls for it.
package acc

import (
	"strings"

	"github.com/objectgate/handoff/internal/snapshot"
)

// CaptureMode mirrors RuntimeConfig.AuthorizationCaptureMode.
type CaptureMode int

const (
	Never CaptureMode = iota
	WithToken
	Always
)

func (m CaptureMode) String() string {
	switch m {
	case WithToken:
		return "WithToken"
	case Always:
		return "Always"
	default:
		return "Never"
	}
}

// ShouldCapture implements the capture policy: capture when mode is
// Always, or when mode is WithToken and a session token is present.
func ShouldCapture(mode CaptureMode, sessionToken string) bool {
	switch mode {
	case Always:
		return true
	case WithToken:
		return sessionToken != ""
	default:
		return false
	}
}

// Capture builds an AuthorizationParameters snapshot from a RequestSnapshot.
// It never fails: a request that cannot be captured well-formed comes back
// with Valid == false, and the caller (the Handoff Engine) is responsible
// for suppressing an invalid capture rather than treating it as an
// authentication failure.
func Capture(req *snapshot.RequestSnapshot) snapshot.AuthorizationParameters {
	if req.Method == "" {
		return snapshot.AuthorizationParameters{Valid: false}
	}
	if !strings.HasPrefix(req.Path, "/") {
		return snapshot.AuthorizationParameters{Valid: false}
	}

	bucket, key := splitBucketKey(req.Path)

	headers := make(map[string]string)
	for envKey, value := range req.Headers {
		if strings.HasPrefix(envKey, "HTTP_X_AMZ_") {
			headers[toHeaderName(envKey)] = value
		}
	}

	path := req.Path
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}

	query := make(map[string]string, len(req.Query))
	for k, v := range req.Query {
		query[k] = v
	}

	return snapshot.AuthorizationParameters{
		Valid:     true,
		Method:    snapshot.ParseMethod(req.Method),
		Bucket:    bucket,
		ObjectKey: key,
		Headers:   headers,
		Path:      path,
		Query:     query,
	}
}

// splitBucketKey splits the request path into bucket and key: strip the
// leading "/"; the portion up to the next "/" is the bucket, the remainder
// (possibly empty) is the object key. No subsequent "/" means the entire
// remainder is the bucket.
func splitBucketKey(path string) (bucket, key string) {
	rest := path[1:] // strip leading "/"; caller already checked the prefix
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return rest, ""
	}
	return rest[:idx], rest[idx+1:]
}

// toHeaderName converts an environment-map key like HTTP_X_AMZ_DATE into
// the lowercase hyphenated header name x-amz-date.
func toHeaderName(envKey string) string {
	trimmed := strings.TrimPrefix(envKey, "HTTP_")
	lower := strings.ToLower(trimmed)
	return strings.ReplaceAll(lower, "_", "-")
}
