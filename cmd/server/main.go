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

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/avito-tech/go-transaction-manager/trm/v2/settings"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/config"
	"github.com/iliyamo/property-booking/internal/database"
	"github.com/iliyamo/property-booking/internal/metrics"
	"github.com/iliyamo/property-booking/internal/queue"
	"github.com/iliyamo/property-booking/internal/repository"
	"github.com/iliyamo/property-booking/internal/router"
	"github.com/iliyamo/property-booking/internal/service"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Fatal("load .env")
	}
	cfg := config.Load()
	log := newLogger(cfg)

	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	})
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBMigrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migrate schema")
		}
	}

	// Every booking transaction runs serializable and is rolled back when
	// the request context is cancelled.
	txm := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithSettings(trmsql.MustSettings(
			settings.Must(settings.WithCancelable(true)),
			trmsql.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelSerializable}),
		)),
	)
	getter := trmsql.DefaultCtxGetter
	blocked := repository.NewBlockedDateRepo(db, getter)
	properties := repository.NewPropertyRepo(db, getter, blocked)
	bookings := repository.NewBookingRepo(db, getter)

	metrics.Register()

	publisher := queue.NewAMQPPublisher(cfg.AMQPURL, log)
	defer publisher.Close()
	dispatcher := queue.NewDispatcher(publisher, cfg.Booking.NotifyWorkers, cfg.Booking.NotifyBuffer, log)

	svc := service.NewBookingService(properties, bookings, blocked, txm, dispatcher, service.Options{
		RequireHostApproval: cfg.Booking.RequireHostApproval,
		Policy:              booking.CancelPolicy{Window: cfg.Booking.CancellationWindow},
		Rates: booking.Rates{
			ServiceFeePercent: cfg.Booking.ServiceFeePercent,
			TaxPercent:        cfg.Booking.TaxPercent,
		},
		Logger: log,
	})

	rdb := config.NewRedisClient(config.LoadRedisConfig(), log)
	if rdb != nil {
		defer rdb.Close()
	}
	e := router.New(router.Deps{
		API:       svc,
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Logger:    log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return service.RunSweeper(gctx, svc, cfg.Booking.SweepInterval, log)
	})
	g.Go(func() error {
		d := &queue.FileDeliverer{Dir: cfg.Booking.NotifyLogDir}
		return queue.StartNotificationConsumer(gctx, cfg.AMQPURL, d, log)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("server stopped")
	}
	dispatcher.Close()
	log.Info("shutdown complete")
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	if cfg.Env == "dev" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
