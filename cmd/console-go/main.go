package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nzyme_console/console-go/internal/config"
	"nzyme_console/console-go/internal/db"
	"nzyme_console/console-go/internal/httpapi"
	"nzyme_console/console-go/internal/metrics"
	"nzyme_console/console-go/internal/routes"
	"nzyme_console/console-go/internal/session"
	"nzyme_console/console-go/internal/sweeper"
	"nzyme_console/console-go/internal/upstream"
)

func main() {
	boot := httpapi.NewLogger("info")
	cfg, err := config.Load(envOr("CONFIG_PATH", ""))
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		boot.Fatal().Err(err).Msg("invalid environment override")
	}

	logger := httpapi.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	api, err := upstream.New(upstream.Options{
		BaseURL: cfg.Upstream.URL,
		Timeout: cfg.Upstream.Timeout,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure upstream client")
	}

	var (
		pool  *db.Pool
		store session.Store
	)
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
		store = session.NewPostgresStore(p.Queries())
	} else {
		logger.Warn().Msg("DATABASE_URL not set; console sessions are kept in memory")
		store = session.NewMemoryStore()
	}

	h := httpapi.NewHandler(logger, httpapi.Options{
		Pool:           pool,
		Sessions:       store,
		Upstream:       api,
		Routes:         routes.New(cfg.RoutePrefix),
		Metrics:        m,
		CookieName:     cfg.Session.CookieName,
		SecureCookie:   cfg.Session.SecureCookie,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	sw := sweeper.New(logger, store, sweeper.Options{
		IdleTTL:  cfg.Session.IdleTTL,
		Interval: cfg.Session.SweepInterval,
		Views:    h.ViewState(),
	}, m)
	go sw.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Str("upstream", cfg.Upstream.URL).Msg("console-go listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
