package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-booking/internal/api"
	"github.com/hackgods/telehealth-booking/internal/booking"
	"github.com/hackgods/telehealth-booking/internal/config"
	"github.com/hackgods/telehealth-booking/internal/db"
	"github.com/hackgods/telehealth-booking/internal/logging"
	"github.com/hackgods/telehealth-booking/internal/notify"
	"github.com/hackgods/telehealth-booking/internal/payment"
	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
	"github.com/hackgods/telehealth-booking/internal/schedule"
	"github.com/hackgods/telehealth-booking/internal/wallet"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.Init("api-server", "prod")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.Init("api-server", cfg.Env)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

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

	if cfg.RunMigrations {
		if err := db.Migrate(rootCtx, pgPool); err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
		logger.Info().Msg("schema applied")
	}

	// Connect Redis
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

	scheduleSvc, bookingSvc := buildServices(cfg, pgPool, rdb, logger)

	router := api.NewRouter(api.RouterConfig{
		Schedules: scheduleSvc,
		Bookings:  bookingSvc,
		Health: api.NewHealthHandler(pgPool, api.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}), cfg.Env, version),
		JWTSecret: []byte(cfg.JWTSecret),
		Location:  cfg.Location,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func buildServices(cfg config.Config, pool *pgxpool.Pool, rdb *redis.Client, logger zerolog.Logger) (*schedule.Service, *booking.Service) {
	schedules := schedule.NewPgStore(pool)

	var sender notify.EmailSender = notify.NewLogSender(logger)
	if cfg.SMTPAddr != "" {
		sender = notify.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	bookingSvc := booking.NewService(booking.Deps{
		Schedules:    schedules,
		Appointments: booking.NewPgAppointmentStore(pool),
		Payments:     payment.NewPgStore(pool),
		Gateway:      payment.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentKeyID, cfg.PaymentKeySecret),
		Ledger:       wallet.NewPgLedger(pool, cfg.Currency),
		Directory:    booking.NewPgDirectory(pool),
		Notifier:     notify.NewNotifier(sender, cfg.Location),
		Tx:           db.NewTransactor(pool),
		Locker:       redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		Events:       redisclient.NewEventPublisher(rdb),
	}, cfg, logger)

	return schedule.NewService(schedules, cfg.Location, logger), bookingSvc
}
