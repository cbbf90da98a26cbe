// cmd/minisited/main.go
//
// Minisite versioning engine – HTTP entry point.
//
// Startup sequence
// ----------------
//
//  1. Load env vars (system-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load config (YAML + MINISITE_ env overlay, Vault secrets resolved).
//
//  4. Open the MySQL pool and log the live-site count as a sanity check.
//
//  5. Wire the slug reservation store, versioning service, and head cache.
//
//  6. Start the background reservation sweeper (expired holds are purged
//     every few minutes; per-publish cleanup is the primary path, the
//     sweeper just keeps the table small).
//
//  7. Mount Prometheus /metrics and the versioning API under /api/v1,
//     then serve until SIGINT/SIGTERM.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/minisite/internal/api"
	"github.com/yanizio/minisite/internal/config"
	"github.com/yanizio/minisite/internal/database"
	"github.com/yanizio/minisite/internal/headcache"
	"github.com/yanizio/minisite/internal/logger"
	"github.com/yanizio/minisite/internal/middleware"
	"github.com/yanizio/minisite/internal/reservation"
	"github.com/yanizio/minisite/internal/server"
	"github.com/yanizio/minisite/internal/versioning"
)

const (
	serverEnvPath = "/usr/local/etc/minisite/global.env"
	sweepEvery    = 5 * time.Minute
)

// loadEnv prefers the system-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Config + logger ─────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 2.  Database connect ────────────────────────────────────────────
	//
	logOut.Infow("connecting to database")
	db, err := database.Open(cfg.DatabaseDSN())
	if err != nil {
		logOut.Fatalw("connect database", "err", err)
	}
	defer db.Close()

	// Live-site count as an early sanity check.
	var live int
	_ = db.Get(&live, `SELECT COUNT(*) FROM minisite WHERE status = 'published'`)
	logOut.Infow("database online", "live_sites", live)

	//
	// ── 3.  Service wiring ──────────────────────────────────────────────
	//
	reservations := reservation.NewStore(db)
	svc := versioning.New(db, reservations, logOut)

	idleTTL := headcache.IdleTTL
	if cfg.Cache.IdleTTLMinutes > 0 {
		idleTTL = time.Duration(cfg.Cache.IdleTTLMinutes) * time.Minute
	}
	maxEntries := headcache.MaxEntries
	if cfg.Cache.MaxEntries > 0 {
		maxEntries = cfg.Cache.MaxEntries
	}
	cache := headcache.New(db, idleTTL, maxEntries)
	defer cache.Close()

	//
	// ── 4.  Reservation sweeper ─────────────────────────────────────────
	//
	go func() {
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := reservations.CleanupExpired(ctx); err != nil {
					logOut.Warnw("reservation sweep failed", "err", err)
				}
			}
		}
	}()

	//
	// ── 5.  HTTP surface ────────────────────────────────────────────────
	//
	handlers := &api.Handlers{Svc: svc, Cache: cache, Log: logOut}

	r := chi.NewRouter()
	r.Use(middleware.Security)
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/v1", handlers.Router())

	srv := server.New(cfg.HTTP.ListenAddr, r)

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logOut.Fatalw("http server", "err", err)
	}
	logOut.Infow("shutdown complete")
}
