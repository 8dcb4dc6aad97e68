// Package engine implements the Handoff Engine: the
// per-request orchestrator that runs SIN, ACC, the Verdict Client, and the
// Streaming Key Fetcher in sequence and returns a typed Verdict.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/objectgate/handoff/internal/acc"
	"github.com/objectgate/handoff/internal/config"
	"github.com/objectgate/handoff/internal/gwerrors"
	"github.com/objectgate/handoff/internal/metrics"
	"github.com/objectgate/handoff/internal/sin"
	"github.com/objectgate/handoff/internal/snapshot"
	"github.com/objectgate/handoff/internal/streaming"
	"github.com/objectgate/handoff/internal/transport"
	"github.com/objectgate/handoff/internal/uid"
	"github.com/objectgate/handoff/internal/verdict"
)

// Engine holds the collaborators the Handoff Engine depends on: a runtime
// config store (read under a shared lock once per request), a
// transport Verifier, and a logger. It holds no mutable per-request state.
type Engine struct {
	Store    *config.Store
	Verifier transport.Verifier
	Log      *slog.Logger
}

// New builds an Engine.
func New(store *config.Store, verifier transport.Verifier, log *slog.Logger) *Engine {
	return &Engine{Store: store, Verifier: verifier, Log: log}
}

// Authenticate runs the full handoff pipeline for one inbound request and
// returns a Verdict. If req carries no TransactionID, one is generated for
// this call; req itself is not modified.
func (e *Engine) Authenticate(ctx context.Context, req *snapshot.RequestSnapshot) (v verdict.Verdict) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if fail, isErr := v.Failure(); isErr {
			outcome = "denied"
			if fail.Category != verdict.AuthError {
				outcome = "error"
			}
		}
		metrics.VerifyTotal.WithLabelValues(outcome).Inc()
		metrics.VerifyDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	txID := req.TransactionID
	if txID == "" {
		txID = uid.New()
	}
	rc := e.Store.Get()
	log := e.Log.With("transaction_id", txID)

	authHeader, err := sin.Normalize(req, sin.Options{
		PresignedExpiryCheck: rc.PresignedExpiryCheck,
		SignatureV2Enabled:   rc.SignatureV2Enabled,
	})
	if err != nil {
		log.Info("handoff: signature input normalization failed", "error", err)
		if err == sin.ErrV2Disabled {
			return accessDenied("V2 signatures disabled")
		}
		return accessDenied(err.Error())
	}

	var accParams *snapshot.AuthorizationParameters
	if acc.ShouldCapture(rc.AuthorizationCaptureMode, req.SessionToken) {
		captured := acc.Capture(req)
		if captured.Valid {
			accParams = &captured
		}
	}

	chunked := sin.DetectChunked(req)
	if chunked && !rc.ChunkedUploadEnabled {
		log.Info("handoff: rejecting chunked upload, disabled by runtime config")
		return accessDenied("chunked upload disabled")
	}

	result, err := e.Verifier.Verify(ctx, transport.VerifyRequest{
		TransactionID:       txID,
		AccessKeyID:         req.AccessKeyID,
		StringToSign:        req.StringToSign,
		AuthorizationHeader: string(authHeader),
		ACC:                 accParams,
	})
	if err != nil {
		log.Warn("handoff: verification transport failure", "error", err)
		return verdict.ErrVerdict(verdict.TransportError, gwerrors.ErrAccess, err.Error())
	}
	if !result.Ok {
		code := result.Err
		if code == nil {
			code = gwerrors.ErrAccess
		}
		log.Info("handoff: verification denied", "code", code.Code, "message", result.Message)
		return verdict.ErrVerdict(verdict.AuthError, code, result.Message)
	}

	if !chunked {
		return verdict.OkVerdict(result.UserID, result.Message, nil)
	}

	key, err := streaming.Fetch(ctx, e.Verifier, txID, string(authHeader))
	if err != nil {
		log.Warn("handoff: streaming signing key fetch failed, downgrading to access denied", "error", err)
		return accessDenied("unable to fetch streaming signing key")
	}
	return verdict.OkVerdict(result.UserID, result.Message, key)
}

func accessDenied(message string) verdict.Verdict {
	return verdict.ErrVerdict(verdict.AuthError, gwerrors.ErrAccess, message)
}
