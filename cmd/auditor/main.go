package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-reservations/internal/audit"
	"github.com/ariefcatur/go-reservations/internal/booking"
	"github.com/ariefcatur/go-reservations/internal/config"
	kafkax "github.com/ariefcatur/go-reservations/internal/kafka"
	"github.com/ariefcatur/go-reservations/internal/logging"
	"github.com/ariefcatur/go-reservations/internal/postgres"
	"github.com/ariefcatur/go-reservations/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
	}

	svc := &audit.Service{
		Recorder:    &audit.PGRecorder{DB: db},
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-auditor",
		Log:         log.Named("audit"),
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, booking.TopicReservationEvents, cfg.AuditWorkers, log.Named("kafka"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("audit consumer started",
			zap.String("group", cfg.AuditGroup),
			zap.String("topic", booking.TopicReservationEvents),
			zap.Int("workers", cfg.AuditWorkers),
		)
		if err := cons.Start(ctx, svc.HandleReservationEvent); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer...")
	cancel()
	<-done
}
