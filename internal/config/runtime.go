package config

import (
	"sync"

	"github.com/objectgate/handoff/internal/acc"
)

// RuntimeConfig is the immutable snapshot the Handoff Engine reads under a
// shared lock once per request. GRPCMode and
// PresignedExpiryCheck are carried here for convenience but are boot-only:
// nothing in this package ever mutates them after the initial Store is
// built.
type RuntimeConfig struct {
	GRPCMode                 GRPCMode
	PresignedExpiryCheck     bool
	SignatureV2Enabled       bool
	ChunkedUploadEnabled     bool
	AuthorizationCaptureMode acc.CaptureMode
}

// Store holds the current RuntimeConfig behind a RWMutex. Readers
// (the Handoff Engine) call Get once per request and use the returned
// value for the request's lifetime; writers (the RCO) call Swap to
// install a new, fully-built snapshot.
type Store struct {
	mu  sync.RWMutex
	cur RuntimeConfig
}

// NewStore seeds a Store from boot configuration.
func NewStore(cfg *Config) *Store {
	return &Store{cur: RuntimeConfig{
		GRPCMode:                 cfg.GRPCMode(),
		PresignedExpiryCheck:     cfg.Runtime.PresignedExpiryCheck,
		SignatureV2Enabled:       cfg.Runtime.SignatureV2Enabled,
		ChunkedUploadEnabled:     cfg.Runtime.ChunkedUploadEnabled,
		AuthorizationCaptureMode: cfg.Runtime.ReduceCaptureMode(),
	}}
}

// Get returns a copy of the current snapshot. Safe for concurrent callers;
// the returned value is stable even if a writer swaps concurrently.
func (s *Store) Get() RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Swap installs next as the current snapshot. GRPCMode and
// PresignedExpiryCheck are carried over from the existing snapshot
// regardless of what next specifies, since both are boot-only.
func (s *Store) Swap(next RuntimeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next.GRPCMode = s.cur.GRPCMode
	next.PresignedExpiryCheck = s.cur.PresignedExpiryCheck
	s.cur = next
}
