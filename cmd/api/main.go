package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-reservations/internal/accounts"
	"github.com/ariefcatur/go-reservations/internal/authz"
	"github.com/ariefcatur/go-reservations/internal/booking"
	"github.com/ariefcatur/go-reservations/internal/config"
	"github.com/ariefcatur/go-reservations/internal/httpx"
	"github.com/ariefcatur/go-reservations/internal/items"
	kafkax "github.com/ariefcatur/go-reservations/internal/kafka"
	"github.com/ariefcatur/go-reservations/internal/logging"
	"github.com/ariefcatur/go-reservations/internal/postgres"
	"github.com/ariefcatur/go-reservations/internal/redisx"
	"github.com/ariefcatur/go-reservations/internal/reservation"
	"github.com/joho/godotenv"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var store booking.Store
	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Warn("using in-memory storage; data is lost on exit")
		store = booking.NewMemoryStore()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		store = &booking.PGStore{DB: db}
	}

	// Redis read cache
	var cache booking.Cache
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		cache = redisx.NewJSONCache(rdb, cfg.CacheTTL)
	}

	// Kafka lifecycle events
	resOpts := []reservation.Option{reservation.WithLogger(log.Named("reservation"))}
	if cache != nil {
		resOpts = append(resOpts, reservation.WithCache(cache))
	}
	var prod *kafkax.Producer
	var notifier *reservation.KafkaNotifier
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicReservationEvents, 1024, log.Named("kafka"))
		prod.Start()
		notifier = &reservation.KafkaNotifier{Producer: prod, Service: cfg.ServiceName}
		resOpts = append(resOpts, reservation.WithNotifier(notifier))
	}

	// Services
	acct := accounts.NewService(store, log.Named("accounts"))
	if err := acct.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal("bootstrap admin", zap.Error(err))
	}
	gate := authz.NewGate(store, log.Named("authz"))
	resSvc := reservation.NewService(store, gate, resOpts...)
	itemSvc := items.NewService(store, gate, cache, log.Named("items"))
	if notifier != nil {
		itemSvc.WithNotifier(notifier)
	}

	// HTTP
	router := httpx.NewRouter(log.Named("http"), httpx.RequireAPIKey(cfg.APIKey), httpx.BasicAuth(acct))
	(&httpx.ReservationsHandler{Service: resSvc, Log: log}).Register(router)
	(&httpx.ItemsHandler{Service: itemSvc, Log: log}).Register(router)
	(&httpx.UsersHandler{Accounts: acct, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	cancel()
}
