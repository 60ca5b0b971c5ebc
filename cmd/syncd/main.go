package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"capcorn_sync/internal/adapters/bridge"
	server "capcorn_sync/internal/adapters/http_server"
	"capcorn_sync/internal/adapters/observability"
	"capcorn_sync/internal/adapters/redisad"
	"capcorn_sync/internal/app"
	"capcorn_sync/internal/shared"
	mysqlrepo "capcorn_sync/internal/storage/mysql"
)

func main() {
	_ = godotenv.Load()
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// redis: one client for status + cache
	status := redisad.NewStatusStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := status.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}
	if stale, err := status.RecoverStale(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("stale sync status recovery failed")
	} else if len(stale) > 0 {
		log.Warn().Interface("kinds", stale).Msg("recovered interrupted syncs")
	}
	cache := redisad.NewCacheFromClient(status.Client())

	// deps
	repo := mysqlrepo.New(db)
	client, err := bridge.New(cfg.BridgeBase, cfg.BridgeRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("bridge client init failed")
	}
	logs := server.NewRingLog(500)
	eng := app.NewEngine(client, repo, status, cache, cfg.GuestPageSize, logs.Append)
	q := app.NewQueryService(repo, status, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Runner: eng, Bridge: client, Logs: logs})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SyncInterval > 0 {
		go runOnTicker(rootCtx, eng, cfg.SyncInterval)
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("sync service listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
		os.Exit(1)
	}
}

// runOnTicker fires unattended full runs. An overlapping or refused
// run only logs; the next tick tries again.
func runOnTicker(ctx context.Context, eng *app.Engine, every time.Duration) {
	log.Info().Dur("interval", every).Msg("timer-triggered sync enabled")
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := eng.RunFull(ctx); err != nil {
				log.Warn().Err(err).Msg("scheduled sync skipped")
			}
		}
	}
}
