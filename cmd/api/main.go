package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymgate.dev/internal/audit"
	"gymgate.dev/internal/auth"
	"gymgate.dev/internal/config"
	"gymgate.dev/internal/httpapi"
	"gymgate.dev/internal/obs"
	"gymgate.dev/internal/pin"
	"gymgate.dev/internal/store/pg"
)

var version = "0.3.1"

const sweepInterval = 10 * time.Minute

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("GYMGATE_PG_DSN is required")
	}

	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	applied, err := store.EnsureSchema(context.Background())
	if err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	if applied > 0 {
		log.Printf("Applied %d schema migration(s)", applied)
	}

	var verifier *auth.TokenVerifier
	if cfg.PlatformTokenSecret != "" {
		verifier, err = auth.NewTokenVerifier(cfg.PlatformTokenSecret, cfg.PlatformTokenIssuer)
		if err != nil {
			log.Fatalf("token verifier: %v", err)
		}
	}

	mode := auth.ModeStrict
	if cfg.AuthMode == config.AuthModeDevelopmentBypass {
		mode = auth.ModeDevelopmentBypass
		obs.Warn("auth_development_bypass_enabled", map[string]any{
			"note": "all requests resolve to the synthetic dev-bypass principal",
		})
	}

	resolver, err := auth.NewResolver(store.Staff(), store.Sessions(), store.Profiles(), verifier, mode)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}

	pins, err := pin.NewAuthenticator(store.Staff(), store.Attempts())
	if err != nil {
		log.Fatalf("pin authenticator: %v", err)
	}

	recorder, err := audit.NewRecorder(store.Audit())
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}

	api := httpapi.New(httpapi.Deps{
		DB:         store.DB(),
		Resolver:   resolver,
		Registry:   auth.NewRegistry(),
		PINs:       pins,
		Recorder:   recorder,
		Sessions:   store.Sessions(),
		Staff:      store.Staff(),
		SessionTTL: cfg.SessionTTL,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting gymgate-api %s on %s", version, srv.Addr)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweepSessions(sweepCtx, store)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	recorder.Wait()
	_ = store.Close()
	log.Println("Stopped")
}

// sweepSessions eagerly removes expired branch sessions. The delete is
// idempotent, so overlapping with lazy cleanup on lookup is harmless.
func sweepSessions(ctx context.Context, store *pg.Store) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Sessions().DeleteExpired(ctx)
			if err != nil {
				obs.Warn("session_sweep_failed", map[string]any{"error": err.Error()})
				continue
			}
			if n > 0 {
				obs.SessionsSwept.Add(float64(n))
				obs.Info("session_sweep", map[string]any{"deleted": n})
			}
		}
	}
}
