package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/dstlead/dstlead/internal/api"
	"github.com/dstlead/dstlead/internal/config"
	dbstore "github.com/dstlead/dstlead/internal/db"
	"github.com/dstlead/dstlead/internal/middleware"
	"github.com/dstlead/dstlead/internal/scoring"
	"github.com/dstlead/dstlead/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger())

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := loadEngine(cfg.SchedulePath)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	auth := middleware.NewTokenAuth(cfg.Secret())
	rt := api.NewRouter(store, engine, api.Options{
		Auth:              auth,
		TokenTTL:          cfg.TokenTTL,
		SessionTTL:        cfg.SessionTTL,
		MinPasswordLength: cfg.MinPasswordLen,
	})
	if err := rt.Auth().EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}
	if cfg.SeedFAQs {
		n, err := rt.FAQs().SeedDefaults(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			slog.Info("seeded default FAQs", "count", n)
		}
	}
	go rt.Sessions().Run(ctx, cfg.SweepInterval)

	m := mux.NewRouter()
	rt.Register(m)
	registerInfo(m, cfg)
	registerFrontend(m, cfg)

	handler := middleware.CORS(cfg.CORSOrigins...)(
		middleware.SecureHeaders(
			middleware.NoStore(
				middleware.LocaleMiddleware(
					middleware.WithLogging(m)))))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("dstlead server listening", "addr", cfg.Addr, "commit", cfg.Commit)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func loadEngine(path string) (*scoring.Engine, error) {
	if path == "" {
		return scoring.NewEngine(nil), nil
	}
	sched, err := scoring.LoadSchedule(path)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded scoring schedule", "path", path)
	return scoring.NewEngine(sched), nil
}

// openStore picks SQLite when a path is configured, importing any legacy
// snapshot on first run, and the memory store otherwise.
func openStore(cfg *config.Config) (api.Store, func(), error) {
	if cfg.SQLitePath == "" {
		st, err := api.NewMemoryStoreFromPath(cfg.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using memory store", "snapshot", cfg.SnapshotPath)
		return st, func() {}, nil
	}
	if err := MigrateIfNeeded(cfg.SnapshotPath, cfg.SQLitePath, cfg.MigrationsDir); err != nil {
		return nil, nil, err
	}
	conn, err := dbstore.Open(cfg.SQLitePath, cfg.MigrationsDir)
	if err != nil {
		return nil, nil, err
	}
	st, err := dbstore.NewStore(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	slog.Info("using sqlite store", "path", cfg.SQLitePath)
	return st, closer(conn), nil
}

func closer(conn *sql.DB) func() {
	return func() {
		if err := conn.Close(); err != nil {
			slog.Warn("close sqlite", "error", err)
		}
	}
}

func registerInfo(m *mux.Router, cfg *config.Config) {
	m.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		locale := middleware.LocaleFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "dstlead API",
			"locale":     locale,
			"msg":        utils.T(locale, "health.ok"),
			"commit":     cfg.Commit,
			"build_time": cfg.BuildTime,
		})
	}).Methods(http.MethodGet)

	m.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     cfg.Commit,
			"build_time": cfg.BuildTime,
		})
	}).Methods(http.MethodGet)
}

// Frontend serving strategy (priority):
// 1) Static files if DSTLEAD_STATIC_DIR is set
// 2) Dev proxy if DSTLEAD_DEV_FRONTEND_URL is set
func registerFrontend(m *mux.Router, cfg *config.Config) {
	if cfg.StaticDir != "" {
		m.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
		return
	}
	if cfg.DevFrontendURL == "" {
		return
	}
	u, err := url.Parse(cfg.DevFrontendURL)
	if err != nil {
		slog.Warn("invalid DSTLEAD_DEV_FRONTEND_URL", "url", cfg.DevFrontendURL, "error", err)
		return
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ModifyResponse = func(res *http.Response) error {
		middleware.SetNoStore(res.Header)
		return nil
	}
	m.PathPrefix("/").Handler(rp)
}
