// cmd/web/main.go
//
// Canopy – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (host-wide file → .env fallback) and start the
//     daily rotating logger (tees to console when running in a TTY).
//
//  2. Load and validate the layered config (YAML → env → Vault refs).
//
//  3. Open the template store pool, plus the optional service-role
//     pool, and log the servable-site count as an early sanity check.
//
//  4. Build the resolution cache, site loader, diagnostics logger, and
//     identifier resolver.
//
//  5. Assemble the chi router: host-rewrite middleware in front, then
//     /metrics, /healthz, the version controller under /templates, and
//     the tenant page route under /tenant.
//
//  6. Serve with timeouts, shutting down gracefully on SIGINT/SIGTERM.
//
// Large comment blocks are framed by blank “//” lines; inline comments
// use a single “//”.
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
	"github.com/oschwald/geoip2-golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canopyhq/canopy/internal/config"
	"github.com/canopyhq/canopy/internal/database"
	"github.com/canopyhq/canopy/internal/diaglog"
	"github.com/canopyhq/canopy/internal/logger"
	"github.com/canopyhq/canopy/internal/middleware"
	"github.com/canopyhq/canopy/internal/publish"
	"github.com/canopyhq/canopy/internal/rescache"
	"github.com/canopyhq/canopy/internal/resolver"
	"github.com/canopyhq/canopy/internal/routing"
	"github.com/canopyhq/canopy/internal/server"
	"github.com/canopyhq/canopy/internal/siteloader"
	"github.com/canopyhq/canopy/internal/template"
	"github.com/canopyhq/canopy/internal/tenantpage"
)

const serverEnvPath = "/usr/local/etc/canopy/global.env"

// loadEnv prefers the host-wide env file; on dev it falls back to .env.
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
	rootDir, _ := os.Getwd()
	logOut, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Config ──────────────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx)
	if err != nil {
		logOut.Fatalf("load config: %v", err)
	}

	//
	// ── 2.  Template store connect ──────────────────────────────────────
	//
	logOut.Infof("connecting to template store …")
	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logOut.Fatalf("connect template store: %v", err)
	}
	defer db.Close()
	logOut.Infof("template store online")

	// Optional elevated pool for the service-role retry pass.
	var serviceDB = db
	if cfg.Database.ServiceDSN != "" {
		serviceDB, err = database.Open(ctx, cfg.Database.ServiceDSN)
		if err != nil {
			logOut.Fatalf("connect service-role pool: %v", err)
		}
		defer serviceDB.Close()
	}

	// Log servable-site count as an early sanity check.
	if n, err := template.CountServable(ctx, db); err == nil {
		logOut.Infof("%d servable site(s) found", n)
	} else {
		logOut.Warnf("servable-site count failed: %v", err)
	}

	//
	// ── 3.  Resolution cache, loader, diagnostics, resolver ────────────
	//
	cache := rescache.New(cfg.Cache.ResolutionTTL, cfg.Cache.SweepInterval)
	defer cache.Close()

	loader := siteloader.New(db, serviceDB, cfg.Platform.BaseDomain)

	var geo *geoip2.Reader
	if cfg.Diag.GeoIPPath != "" {
		geo, err = geoip2.Open(cfg.Diag.GeoIPPath)
		if err != nil {
			logOut.Warnf("GeoIP database unavailable, country lookup disabled: %v", err)
		} else {
			defer geo.Close()
		}
	}
	diag := diaglog.New(db, cfg.Diag.DedupWindow, geo)

	var state *resolver.StateClient
	if cfg.Resolver.StateEndpoint != "" {
		state = resolver.NewStateClient(cfg.Resolver.StateEndpoint)
	}
	res := resolver.New(db, state)

	//
	// ── 4.  Router assembly ────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(middleware.Security)
	r.Use(routing.Middleware(routing.Config{
		BaseDomain:    cfg.Platform.BaseDomain,
		PreviewSecret: cfg.Platform.PreviewSecret,
		Cache:         cache,
		Loader:        loader,
		Diag:          diag,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Mount("/templates", publish.NewHandler(publish.NewService(db, res)).Routes())
	r.Mount("/tenant", tenantpage.NewHandler(db, cfg.Platform.PreviewSecret).Routes())
	r.Get(routing.NotFoundPath, tenantpage.NotFound)

	var handler http.Handler = r
	if cfg.HTTP.ForceHTTPS {
		handler = middleware.ForceHTTPS(cfg.Platform.BaseDomain, handler)
	}

	//
	// ── 5.  Serve until signalled ──────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, handler)

	errCh := make(chan error, 1)
	go func() {
		logOut.Infof("listening on %s", cfg.HTTP.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logOut.Fatalf("http server: %v", err)
		}
	case <-ctx.Done():
		logOut.Infof("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logOut.Warnf("graceful shutdown: %v", err)
		}
	}
	logOut.Infof("server stopped")
}
