package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/telehealth-booking/internal/booking"
	"github.com/hackgods/telehealth-booking/internal/config"
	"github.com/hackgods/telehealth-booking/internal/db"
	"github.com/hackgods/telehealth-booking/internal/logging"
	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
	"github.com/hackgods/telehealth-booking/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.Init("expiry-worker", "prod")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.Init("expiry-worker", cfg.Env)
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.SweepInterval).
		Dur("hold_ttl", cfg.SlotHoldTTL).
		Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConn)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)

	// The sweeper only releases holds, so it needs the slot store and events.
	svc := booking.NewService(booking.Deps{
		Schedules: schedule.NewPgStore(pgPool),
		Locker:    locker,
		Events:    redisclient.NewEventPublisher(rdb),
	}, cfg, logger)

	sweeper := booking.NewSweeper(svc, locker, cfg.SweepInterval, cfg.SweepTimeout, cfg.SlotHoldTTL, logger)
	sweeper.Run(rootCtx)

	logger.Info().Msg("shutdown signal received, expiry worker stopped")
}
