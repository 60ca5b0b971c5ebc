package main

import (
	"context"
	"database/sql"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"capcorn_sync/internal/adapters/bridge"
	"capcorn_sync/internal/adapters/observability"
	"capcorn_sync/internal/adapters/redisad"
	"capcorn_sync/internal/app"
	"capcorn_sync/internal/domain"
	"capcorn_sync/internal/shared"
	mysqlrepo "capcorn_sync/internal/storage/mysql"
)

// One-shot run for cron and manual operation. With no argument it
// performs a full run; with a resource kind it syncs that kind only.
func main() {
	_ = godotenv.Load()
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	status := redisad.NewStatusStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := status.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}
	if stale, err := status.RecoverStale(ctx); err != nil {
		log.Fatal().Err(err).Msg("stale sync status recovery failed")
	} else if len(stale) > 0 {
		log.Warn().Interface("kinds", stale).Msg("recovered interrupted syncs")
	}

	client, err := bridge.New(cfg.BridgeBase, cfg.BridgeRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("bridge client init failed")
	}

	repo := mysqlrepo.New(db)
	cache := redisad.NewCacheFromClient(status.Client())
	eng := app.NewEngine(client, repo, status, cache, cfg.GuestPageSize, func(line string) {
		_, _ = os.Stdout.WriteString(line + "\n")
	})

	if len(os.Args) > 1 {
		kind, err := domain.ParseKind(os.Args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("bad argument")
		}
		n, err := eng.RunSingle(ctx, kind)
		if err != nil {
			log.Fatal().Err(err).Str("kind", string(kind)).Msg("sync failed")
		}
		log.Info().Str("kind", string(kind)).Int("count", n).Msg("sync ok")
		return
	}

	sum, err := eng.RunFull(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("full sync refused")
	}
	if len(sum.Errors) > 0 {
		log.Error().Interface("errors", sum.Errors).Msg("full sync finished with failures")
		os.Exit(1)
	}
	log.Info().Str("run", sum.RunID).Interface("counts", sum.Counts).Msg("full sync ok")
}
