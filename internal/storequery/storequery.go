// Package storequery implements the x-rgw-storequery side-channel: a
// header-triggered set of out-of-band commands embedded in S3 requests that
// bypass requester authorization and surface object-presence information by
// consulting the bucket index and the in-flight multipart upload table. All
// commands are read-only.
package storequery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/objectgate/handoff/internal/index"
	"github.com/objectgate/handoff/internal/metrics"
)

// HeaderName is the HTTP request header that triggers the side-channel.
const HeaderName = "x-rgw-storequery"

// HandlerContext identifies which kind of request handler the dispatch site
// is running in; it restricts which commands are accepted.
type HandlerContext int

const (
	ServiceContext HandlerContext = iota
	BucketContext
	ObjectContext
)

func (c HandlerContext) String() string {
	switch c {
	case BucketContext:
		return "bucket"
	case ObjectContext:
		return "object"
	default:
		return "service"
	}
}

// ErrUnknownCommand is returned when the command name matches no handler.
var ErrUnknownCommand = errors.New("storequery: unknown command")

// ErrWrongContext is returned when a known command is dispatched from a
// handler context it does not accept.
var ErrWrongContext = errors.New("storequery: command not valid in this handler context")

// ErrBadParams is returned when a command receives the wrong number of
// parameters.
var ErrBadParams = errors.New("storequery: wrong parameter count")

// ErrNotFound is returned by objectstatus when the key exists neither as a
// committed object nor as an in-progress multipart upload. The HTTP layer
// renders it as 404; every other dispatch error aborts the request with an
// internal-error status per the side-channel's terminal-parse-error rule.
var ErrNotFound = errors.New("storequery: object not found")

// Request carries the bounded request-path context a command may need:
// the bucket and object key the surrounding S3 request addressed.
type Request struct {
	Bucket    string
	ObjectKey string
}

// Response is a completed command's reply. Body is a JSON document;
// the HTTP layer writes it with Content-Type: application/json.
type Response struct {
	Body []byte
}

// Dispatcher parses x-rgw-storequery headers and routes commands to their
// handlers. It holds the BucketIndex collaborator objectstatus and
// listbucket consult.
type Dispatcher struct {
	Index index.BucketIndex
	Log   *slog.Logger

	// lastPingID records the request_id of the most recent ping, which is
	// all the execution side of ping amounts to.
	lastPingID string
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(idx index.BucketIndex, log *slog.Logger) *Dispatcher {
	return &Dispatcher{Index: idx, Log: log}
}

// Dispatch tokenizes the header value and runs the named command. A
// tokenization failure, unknown command, context violation, or parameter
// mismatch is terminal: the caller aborts the surrounding request rather
// than falling through to normal S3 processing.
func (d *Dispatcher) Dispatch(ctx context.Context, hctx HandlerContext, header string, req Request) (*Response, error) {
	cmd, err := Tokenize(header)
	if err != nil {
		metrics.StoreQueryTotal.WithLabelValues("parse", "error").Inc()
		return nil, err
	}

	resp, err := d.run(ctx, hctx, cmd, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(cmd.Name, outcome).Inc()
	if err != nil {
		d.Log.Info("storequery: command failed",
			"command", cmd.Name, "context", hctx.String(), "error", err)
		return nil, err
	}
	return resp, nil
}

func (d *Dispatcher) run(ctx context.Context, hctx HandlerContext, cmd Command, req Request) (*Response, error) {
	switch cmd.Name {
	case "ping":
		return d.ping(cmd)
	case "objectstatus":
		if hctx != ObjectContext {
			return nil, fmt.Errorf("%w: objectstatus requires object context, got %s", ErrWrongContext, hctx)
		}
		if len(cmd.Params) != 0 {
			return nil, fmt.Errorf("%w: objectstatus takes no parameters", ErrBadParams)
		}
		return d.objectStatus(ctx, req)
	case "listbucket":
		if hctx != BucketContext {
			return nil, fmt.Errorf("%w: listbucket requires bucket context, got %s", ErrWrongContext, hctx)
		}
		if len(cmd.Params) > 1 {
			return nil, fmt.Errorf("%w: listbucket takes at most one parameter", ErrBadParams)
		}
		return d.listBucket(ctx, req, cmd.Params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
}

func jsonResponse(v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("storequery: encoding response: %w", err)
	}
	return &Response{Body: body}, nil
}
