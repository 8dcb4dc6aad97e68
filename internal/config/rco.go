package config

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/objectgate/handoff/internal/metrics"
	"github.com/objectgate/handoff/internal/transport"
)

// ChannelRebuilder is the callback the RCO invokes when grpc_uri or any
// backoff argument changes. It must return a freshly dialed *GRPCVerifier
// (or equivalent) without holding the config read-lock: writers that swap
// the transport channel must never be invoked from a path already holding
// the config lock, or a reader could deadlock a writer. The RCO
// satisfies that by doing the dial work before taking its own lock.
type ChannelRebuilder func(uri string, backoff transport.BackoffParams) (*transport.GRPCVerifier, error)

// Observer is the Runtime Config Observer: it watches the
// runtime-mutable configuration keys via viper's file watcher and
// atomically re-derives RuntimeConfig and, when warranted, the transport
// channel.
type Observer struct {
	v   *viper.Viper
	log *slog.Logger

	store   *Store
	rebuild ChannelRebuilder

	// chanMu guards the live verifier handle. It is deliberately distinct
	// from store.mu so channel swaps never contend with config readers.
	chanMu   sync.RWMutex
	verifier *transport.GRPCVerifier

	lastURI     string
	lastBackoff transport.BackoffParams
}

// NewObserver builds an Observer over an already-loaded Config, seeding the
// RCO's own viper instance with the runtime-mutable keys so that a
// later OnConfigChange has something to diff against.
func NewObserver(cfg *Config, store *Store, initialVerifier *transport.GRPCVerifier, rebuild ChannelRebuilder, log *slog.Logger) *Observer {
	v := viper.New()
	v.SetDefault("transport.grpc.uri", cfg.Transport.GRPC.URI)
	v.SetDefault("transport.grpc.initial_reconnect_backoff_ms", cfg.Transport.GRPC.InitialReconnectBackoff)
	v.SetDefault("transport.grpc.min_reconnect_backoff_ms", cfg.Transport.GRPC.MinReconnectBackoff)
	v.SetDefault("transport.grpc.max_reconnect_backoff_ms", cfg.Transport.GRPC.MaxReconnectBackoff)
	v.SetDefault("runtime.enable_chunked_upload", cfg.Runtime.ChunkedUploadEnabled)
	v.SetDefault("runtime.enable_signature_v2", cfg.Runtime.SignatureV2Enabled)
	v.SetDefault("runtime.authparam_always", cfg.Runtime.AuthParamAlways)
	v.SetDefault("runtime.authparam_withtoken", cfg.Runtime.AuthParamWithToken)

	return &Observer{
		v:           v,
		log:         log,
		store:       store,
		rebuild:     rebuild,
		verifier:    initialVerifier,
		lastURI:     cfg.Transport.GRPC.URI,
		lastBackoff: backoffOf(cfg),
	}
}

func backoffOf(cfg *Config) transport.BackoffParams {
	return transport.BackoffParams{
		InitialMs: cfg.Transport.GRPC.InitialReconnectBackoff,
		MinMs:     cfg.Transport.GRPC.MinReconnectBackoff,
		MaxMs:     cfg.Transport.GRPC.MaxReconnectBackoff,
	}
}

// Watch arms the underlying viper file watcher against configPath and
// registers OnConfigChange. It returns immediately; notifications arrive
// on viper's own goroutine, stopped when the process exits (viper exposes
// no explicit unwatch; the watcher is a process-lifetime goroutine rather
// than one threaded through a context).
func (o *Observer) Watch(configPath string) error {
	o.v.SetConfigFile(configPath)
	if err := o.v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: RCO initial read of %s: %w", configPath, err)
	}
	o.v.OnConfigChange(func(e fsnotify.Event) {
		o.onChange()
	})
	o.v.WatchConfig()
	return nil
}

// onChange re-derives the runtime snapshot and, when warranted, the
// transport channel. Step ordering is
// load-bearing: backoff arguments are derived and applied before a
// URI-induced rebuild within the same change batch.
func (o *Observer) onChange() {
	uri := o.v.GetString("transport.grpc.uri")
	bp := transport.BackoffParams{
		InitialMs: o.v.GetInt("transport.grpc.initial_reconnect_backoff_ms"),
		MinMs:     o.v.GetInt("transport.grpc.min_reconnect_backoff_ms"),
		MaxMs:     o.v.GetInt("transport.grpc.max_reconnect_backoff_ms"),
	}

	backoffChanged := bp != o.lastBackoff
	uriChanged := uri != o.lastURI

	reloadOutcome := "ok"
	if backoffChanged || uriChanged {
		o.lastBackoff = bp
		rebuiltURI := o.lastURI
		if uriChanged {
			rebuiltURI = uri
			o.lastURI = uri
		}
		if v, err := o.rebuild(rebuiltURI, bp); err != nil {
			reloadOutcome = "channel_rebuild_failed"
			o.log.Warn("config: channel rebuild failed, keeping previous channel", "error", err)
		} else {
			o.chanMu.Lock()
			o.verifier = v
			o.chanMu.Unlock()
		}
	}

	toggles := RuntimeToggles{
		PresignedExpiryCheck: o.store.Get().PresignedExpiryCheck,
		SignatureV2Enabled:   o.v.GetBool("runtime.enable_signature_v2"),
		ChunkedUploadEnabled: o.v.GetBool("runtime.enable_chunked_upload"),
		AuthParamAlways:      o.v.GetBool("runtime.authparam_always"),
		AuthParamWithToken:   o.v.GetBool("runtime.authparam_withtoken"),
	}
	o.store.Swap(RuntimeConfig{
		SignatureV2Enabled:       toggles.SignatureV2Enabled,
		ChunkedUploadEnabled:     toggles.ChunkedUploadEnabled,
		AuthorizationCaptureMode: toggles.ReduceCaptureMode(),
	})

	metrics.RCOReloadTotal.WithLabelValues(reloadOutcome).Inc()
	o.log.Info("config: runtime configuration reloaded",
		"signature_v2_enabled", toggles.SignatureV2Enabled,
		"chunked_upload_enabled", toggles.ChunkedUploadEnabled,
		"authorization_capture_mode", toggles.ReduceCaptureMode(),
		"backoff_changed", backoffChanged,
		"uri_changed", uriChanged,
	)
}

// Verifier returns the current transport channel handle under the
// channel's own shared lock; callers copy the handle, release, then use
// the copy.
func (o *Observer) Verifier() *transport.GRPCVerifier {
	o.chanMu.RLock()
	defer o.chanMu.RUnlock()
	return o.verifier
}
