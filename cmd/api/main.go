package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/app"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/artifact"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/cache"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/config"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/gateway"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/notify"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/scheduler"
	redisstore "github.com/Michaelasereo/ti3ckets.com-sub000/internal/storage/redis"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/storage/postgres"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/ticketsig"
	transporthttp "github.com/Michaelasereo/ti3ckets.com-sub000/internal/transport/http"
	"github.com/Michaelasereo/ti3ckets.com-sub000/migrations"
)

func main() {
	config.LoadEnvFile(slog.Default())

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	buyerFees, err := cfg.Fees.Buyer()
	if err != nil {
		fatal("buyer fees", err)
	}
	payoutFees, err := cfg.Fees.Payout()
	if err != nil {
		fatal("payout fees", err)
	}
	minPayout, err := cfg.Fees.Minimum()
	if err != nil {
		fatal("minimum payout", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.URL)
	if err != nil {
		fatal("parse database url", err)
	}
	poolCfg.MaxConns = cfg.Postgres.MaxConns
	pool, err := pgxpool.NewWithConfig(startupCtx, poolCfg)
	if err != nil {
		fatal("connect to db", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		fatal("db ping", err)
	}
	applied, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		fatal("apply migrations", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "files", applied)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})
	defer rdb.Close()

	counter := redisstore.NewCounterStore(rdb, cfg.Redis.KeyPrefix, cfg.Redis.Timeout)
	if err := counter.Ping(startupCtx); err != nil {
		// Reservations answer 503 until Redis is back; the rest keeps serving.
		logger.Warn("redis ping failed", "addr", cfg.Redis.Addr, "error", err)
	}

	clk := clock.NewSystem()
	var verifyCache cache.Cache
	if cfg.Redis.CacheBackend == "memory" {
		verifyCache = cache.NewMemory(clk)
	} else {
		verifyCache = cache.NewRedis(rdb, cfg.Redis.KeyPrefix+"cache:")
	}

	if cfg.Payment.SecretKey == "" {
		logger.Warn("PAYSTACK_SECRET_KEY not set, paid checkouts and webhooks will fail")
	}
	paystack := gateway.NewPaystack(gateway.Config{
		BaseURL:     cfg.Payment.BaseURL,
		SecretKey:   cfg.Payment.SecretKey,
		CallbackURL: cfg.Payment.CallbackURL,
		Timeout:     cfg.Payment.Timeout,
	}, logger)

	secret := cfg.Tickets.SigningSecret
	if secret == "" {
		logger.Warn("TICKET_SIGNING_SECRET not set, using an ephemeral secret; issued tickets will not verify after restart")
		secret = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	}
	signer, err := ticketsig.NewSigner(secret)
	if err != nil {
		fatal("ticket signer", err)
	}

	store, err := artifact.NewLocalStore(cfg.Tickets.ArtifactDir, cfg.Tickets.ArtifactBaseURL)
	if err != nil {
		fatal("artifact store", err)
	}

	notifiers := notify.Multi{notify.NewLog(logger)}
	if cfg.PubNub.Enabled() {
		notifiers = append(notifiers, notify.NewPubNub(notify.PubNubConfig{
			PublishKey:    cfg.PubNub.PublishKey,
			SubscribeKey:  cfg.PubNub.SubscribeKey,
			UserID:        cfg.PubNub.UserID,
			ChannelPrefix: cfg.PubNub.ChannelPrefix,
		}))
	}

	withLogger := app.WithLogger(logger)
	orderRepo := postgres.NewOrderRepository(pool)

	reservationSvc := app.NewReservationService(postgres.NewReservationRepository(pool), counter, clk, app.ReservationConfig{
		TTL:         cfg.Inventory.ReservationTTL,
		MarkerGrace: cfg.Inventory.MarkerGrace,
		SweepBatch:  cfg.Inventory.SweepBatch,
	}, withLogger)
	issuer := app.NewTicketIssuer(postgres.NewTicketRepository(pool), counter, signer, artifact.NewGenerator(store), notifiers, clk,
		app.IssuerConfig{ArtifactConcurrency: cfg.Tickets.ArtifactConcurrency}, withLogger)
	reconciler := app.NewPaymentReconciler(orderRepo, paystack, paystack, issuer, reservationSvc, verifyCache, clk, app.ReconcilerConfig{
		Currency:       cfg.Payment.Currency,
		PendingTimeout: cfg.Payment.PendingTimeout,
		VerifyCacheTTL: cfg.Payment.VerifyCacheTTL,
	}, withLogger)
	orderSvc := app.NewOrderService(orderRepo, paystack, reconciler, reservationSvc, clk, app.OrderConfig{
		Currency:  cfg.Payment.Currency,
		BuyerFees: buyerFees,
	}, withLogger)
	payoutSvc := app.NewPayoutService(postgres.NewPayoutRepository(pool), clk, app.PayoutConfig{
		Fees:          payoutFees,
		MinimumPayout: minPayout,
	}, withLogger)
	adminSvc := app.NewAdminService(postgres.NewAdminRepository(pool), counter, clk, withLogger)

	handler := transporthttp.NewRouter(transporthttp.Services{
		Reservations: reservationSvc,
		Orders:       orderSvc,
		Payments:     reconciler,
		Tickets:      issuer,
		Payouts:      payoutSvc,
		Admin:        adminSvc,
	}, transporthttp.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimiter: transporthttp.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		ArtifactDir: cfg.Tickets.ArtifactDir,
		Health: map[string]transporthttp.Pinger{
			"postgres": pool,
			"redis":    counter,
		},
		Logger: logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs := scheduler.New(logger,
		scheduler.Job{Name: "reservation_sweep", Interval: cfg.Scheduler.SweepInterval, Task: scheduler.TaskFunc(reservationSvc.SweepExpired)},
		scheduler.Job{Name: "counter_reconcile", Interval: cfg.Scheduler.ReconcileInterval, Task: scheduler.TaskFunc(reservationSvc.Reconcile), RunOnStart: true},
		scheduler.Job{Name: "cache_sweep", Interval: cfg.Scheduler.CacheSweepInterval, Task: scheduler.TaskFunc(verifyCache.Sweep)},
		scheduler.Job{Name: "pending_order_sweep", Interval: cfg.Scheduler.PendingSweepInterval, Task: scheduler.TaskFunc(reconciler.SweepStalePending)},
	)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		jobs.Start(stopCtx)
	}()

	logger.Info("api listening", "addr", server.Addr)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
		stop()
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "error", err)
	}
	<-schedDone
	logger.Info("server stopped")
}
