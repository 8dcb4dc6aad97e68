package config

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/objectgate/handoff/internal/acc"
	"github.com/objectgate/handoff/internal/transport"
)

var errRebuildFailed = errors.New("rebuild failed")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestObserverOnChangeUpdatesToggles(t *testing.T) {
	cfg := defaultConfig()
	store := NewStore(cfg)
	rebuildCalls := 0
	obs := NewObserver(cfg, store, nil, func(uri string, bp transport.BackoffParams) (*transport.GRPCVerifier, error) {
		rebuildCalls++
		return nil, nil
	}, discardLogger())

	obs.v.Set("runtime.enable_signature_v2", false)
	obs.v.Set("runtime.authparam_always", true)
	obs.onChange()

	got := store.Get()
	if got.SignatureV2Enabled {
		t.Error("SignatureV2Enabled should be false after reload")
	}
	if got.AuthorizationCaptureMode != acc.Always {
		t.Errorf("AuthorizationCaptureMode = %v, want Always", got.AuthorizationCaptureMode)
	}
	if rebuildCalls != 0 {
		t.Errorf("rebuildCalls = %d, want 0 (uri/backoff unchanged)", rebuildCalls)
	}
}

func TestObserverOnChangeRebuildsOnURIChange(t *testing.T) {
	cfg := defaultConfig()
	store := NewStore(cfg)
	var gotURI string
	var gotBP transport.BackoffParams
	obs := NewObserver(cfg, store, nil, func(uri string, bp transport.BackoffParams) (*transport.GRPCVerifier, error) {
		gotURI = uri
		gotBP = bp
		return &transport.GRPCVerifier{}, nil
	}, discardLogger())

	obs.v.Set("transport.grpc.uri", "dns:///new-authenticator:4312")
	obs.onChange()

	if gotURI != "dns:///new-authenticator:4312" {
		t.Errorf("rebuild called with uri %q, want new-authenticator", gotURI)
	}
	if gotBP != backoffOf(cfg) {
		t.Errorf("rebuild called with backoff %+v, want unchanged %+v", gotBP, backoffOf(cfg))
	}
}

func TestObserverOnChangeKeepsPreviousChannelOnRebuildFailure(t *testing.T) {
	cfg := defaultConfig()
	store := NewStore(cfg)
	existing := &transport.GRPCVerifier{}
	obs := NewObserver(cfg, store, existing, func(uri string, bp transport.BackoffParams) (*transport.GRPCVerifier, error) {
		return nil, errRebuildFailed
	}, discardLogger())

	obs.v.Set("transport.grpc.uri", "dns:///unreachable:4312")
	obs.onChange()

	if obs.Verifier() != existing {
		t.Error("expected the previous verifier to be kept after a failed rebuild")
	}
}

func TestObserverOnChangeBackoffBeforeURIOrdering(t *testing.T) {
	cfg := defaultConfig()
	store := NewStore(cfg)
	calls := 0
	obs := NewObserver(cfg, store, nil, func(uri string, bp transport.BackoffParams) (*transport.GRPCVerifier, error) {
		calls++
		if bp.InitialMs != 5000 {
			t.Errorf("rebuild saw InitialMs = %d, want 5000 (applied before the uri-triggered rebuild)", bp.InitialMs)
		}
		return &transport.GRPCVerifier{}, nil
	}, discardLogger())

	obs.v.Set("transport.grpc.initial_reconnect_backoff_ms", 5000)
	obs.v.Set("transport.grpc.uri", "dns:///second:4312")
	obs.onChange()

	if calls != 1 {
		t.Errorf("rebuild called %d times, want exactly 1 for a single change batch", calls)
	}
}
