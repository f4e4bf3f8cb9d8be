package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/stevemurr/json-mock-server/config"
	"github.com/stevemurr/json-mock-server/handler"
	"github.com/stevemurr/json-mock-server/policy"
	"github.com/stevemurr/json-mock-server/store"
)

var log = logging.MustGetLogger("jsonmock")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := config.SetupLogging(os.Stderr, cfg.LogLevel); err != nil {
		log.Fatalf("LOG_LEVEL: %v", err)
	}

	backend, err := store.NewBackend(cfg.Backend, cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to create store (backend=%s): %v", cfg.Backend, err)
	}
	db, err := store.Open(backend, store.Defaults())
	if err != nil {
		log.Fatalf("failed to open document (backend=%s, data=%s): %v", cfg.Backend, cfg.DataDir, err)
	}
	defer db.Close()

	readOnly := policy.IsProduction(cfg.Environment)
	if err := seedDocument(db, cfg.SeedFile, readOnly); err != nil {
		log.Fatalf("SEED_FILE: %v", err)
	}

	h := handler.New(policy.New(db, readOnly))
	wrapped := handler.RequestLog(handler.CORS(h, cfg.AllowedOrigins))

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.Addr(), err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:           wrapped,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("JSON Mock Server starting on %s (store=%s, data=%s, environment=%s, read-only=%t)",
		ln.Addr(), cfg.Backend, cfg.DataDir, cfg.Environment, readOnly)
	if err := serve(ctx, srv, ln, 5*time.Second); err != nil {
		log.Errorf("server error: %v", err)
		return
	}
	log.Info("server stopped")
}

// serve runs srv on ln until ctx is cancelled, then shuts it down. It returns
// only after in-flight requests have finished or the grace period ran out.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdown, cancelShutdown := context.WithTimeout(context.Background(), grace)
		defer cancelShutdown()
		done <- srv.Shutdown(shutdown)
	}()

	err := srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done
		return err
	}
	if err := <-done; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// seedDocument merges the JSON object at path into the keys db lacks. A
// read-only server never writes, so the seed is skipped there.
func seedDocument(db *store.DB, path string, readOnly bool) error {
	if path == "" {
		return nil
	}
	if readOnly {
		log.Warningf("read-only: ignoring seed file %s", path)
		return nil
	}
	seed, err := store.ReadSeed(path)
	if err != nil {
		return err
	}
	added, err := db.MergeMissing(seed)
	if err != nil {
		return err
	}
	log.Infof("seeded %d key(s) from %s: %v", len(added), path, added)
	return nil
}
