// Package main is the entry point for handoffd, a demo harness that boots
// the Handoff authentication engine against a config file and exposes a
// debug HTTP surface. It is not the S3 REST framework — it exists so the
// engine, the Runtime Config Observer, and the StoreQuery side-channel can
// be driven and observed end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/objectgate/handoff/internal/config"
	"github.com/objectgate/handoff/internal/engine"
	"github.com/objectgate/handoff/internal/index"
	"github.com/objectgate/handoff/internal/logging"
	"github.com/objectgate/handoff/internal/metrics"
	"github.com/objectgate/handoff/internal/transport"
)

func main() {
	configPath := flag.String("config", "handoff.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config)")
	host := flag.String("host", "", "override listening host (default: from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	metrics.Register()

	// Bucket index backend for the StoreQuery side-channel.
	var idx index.BucketIndex
	switch cfg.Index.Engine {
	case "sqlite":
		dbPath := cfg.Index.SQLite.Path
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create index directory: %v\n", err)
			os.Exit(1)
		}
		sqliteIdx, err := index.NewSQLiteIndex(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize sqlite index: %v\n", err)
			os.Exit(1)
		}
		defer sqliteIdx.Close()
		idx = sqliteIdx
		log.Printf("Bucket index: sqlite (%s)", dbPath)
	default:
		idx = index.NewMemoryIndex()
		log.Printf("Bucket index: memory")
	}

	store := config.NewStore(cfg)

	// Primary transport per the boot-only grpc_mode. A channel construction
	// failure here is fatal; at runtime the RCO downgrades the same failure
	// to a logged, non-fatal rebuild that keeps the previous channel.
	var (
		verifier transport.Verifier
		observer *config.Observer
		grpcConn interface{ Close() error }
	)
	switch cfg.GRPCMode() {
	case config.TransportHTTP:
		verifier = transport.NewHTTPVerifier(cfg.Transport.HTTP.URI, cfg.Transport.HTTP.VerifySSL)
		log.Printf("Authenticator transport: http (%s)", cfg.Transport.HTTP.URI)
	default:
		conn, err := transport.NewGRPCConn(cfg.Transport.GRPC.URI, transport.BackoffParams{
			InitialMs: cfg.Transport.GRPC.InitialReconnectBackoff,
			MinMs:     cfg.Transport.GRPC.MinReconnectBackoff,
			MaxMs:     cfg.Transport.GRPC.MaxReconnectBackoff,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to dial authenticator: %v\n", err)
			os.Exit(1)
		}
		initial := transport.NewGRPCVerifier(conn)
		grpcConn = initial

		observer = config.NewObserver(cfg, store, initial, rebuildChannel, slog.Default())
		if err := observer.Watch(*configPath); err != nil {
			// The RCO only watches a real file; the example-config fallback
			// path has nothing to observe.
			slog.Warn("runtime config observer disabled", "error", err)
			observer = nil
		}
		verifier = &observedVerifier{observer: observer, fallback: initial}
		log.Printf("Authenticator transport: grpc (%s)", cfg.Transport.GRPC.URI)
	}

	eng := engine.New(store, verifier, slog.Default())
	srv := newServer(cfg, eng, idx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("handoffd listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		if grpcConn != nil {
			if err := grpcConn.Close(); err != nil {
				log.Printf("Closing authenticator channel: %v", err)
			}
		}
		log.Printf("Server stopped.")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}

// rebuildChannel is the ChannelRebuilder the RCO invokes when grpc_uri or a
// backoff argument changes at runtime.
func rebuildChannel(uri string, bp transport.BackoffParams) (*transport.GRPCVerifier, error) {
	conn, err := transport.NewGRPCConn(uri, bp)
	if err != nil {
		return nil, err
	}
	return transport.NewGRPCVerifier(conn), nil
}

// observedVerifier resolves the current transport channel through the RCO on
// every call, so a channel rebuild takes effect for subsequent requests
// without restarting the engine. Readers take the channel's shared lock only
// long enough to copy the handle, per the locking discipline in the
// concurrency model.
type observedVerifier struct {
	observer *config.Observer
	fallback *transport.GRPCVerifier
}

func (o *observedVerifier) current() transport.Verifier {
	if o.observer != nil {
		return o.observer.Verifier()
	}
	return o.fallback
}

func (o *observedVerifier) Verify(ctx context.Context, req transport.VerifyRequest) (transport.VerifyResult, error) {
	return o.current().Verify(ctx, req)
}

func (o *observedVerifier) GetSigningKey(ctx context.Context, transactionID, authorizationHeader string) ([]byte, error) {
	return o.current().GetSigningKey(ctx, transactionID, authorizationHeader)
}
