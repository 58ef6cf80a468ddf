package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/campaign-mailer/internal/account"
	"github.com/unclebandit/campaign-mailer/internal/broker"
	"github.com/unclebandit/campaign-mailer/internal/cache"
	"github.com/unclebandit/campaign-mailer/internal/clock"
	"github.com/unclebandit/campaign-mailer/internal/config"
	"github.com/unclebandit/campaign-mailer/internal/controller"
	"github.com/unclebandit/campaign-mailer/internal/db"
	"github.com/unclebandit/campaign-mailer/internal/delivery"
	"github.com/unclebandit/campaign-mailer/internal/events"
	"github.com/unclebandit/campaign-mailer/internal/gate"
	"github.com/unclebandit/campaign-mailer/internal/handler"
	"github.com/unclebandit/campaign-mailer/internal/logger"
	"github.com/unclebandit/campaign-mailer/internal/metrics"
	"github.com/unclebandit/campaign-mailer/internal/queue"
	"github.com/unclebandit/campaign-mailer/internal/quota"
	"github.com/unclebandit/campaign-mailer/internal/repository"
	"github.com/unclebandit/campaign-mailer/internal/repository/memory"
	"github.com/unclebandit/campaign-mailer/internal/service"
)

const (
	gateCacheTTL    = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

type stores struct {
	campaigns    repository.CampaignStore
	accounts     repository.AccountStore
	usage        repository.UsageStore
	suppressions repository.SuppressionStore
	close        func()
}

func main() {
	if err := run(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Env == "local" || cfg.Env == "dev" {
		logger.InitConsole()
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Component("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	clk := clock.Real()
	bus := events.NewBus(256)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, func() float64 { return float64(bus.Dropped()) })

	var adapter delivery.Adapter
	switch cfg.DeliveryMode {
	case "mock":
		adapter = delivery.NewMockAdapter(90)
	default:
		adapter = delivery.NewSMTPAdapter()
	}
	breakers := delivery.NewBreakers(cfg.Dispatch.BreakerFailures, cfg.Dispatch.BreakerOpenPeriod)

	counters := &service.Counters{}
	g := gate.New(st.suppressions, gateCacheTTL)
	pipeline := &service.Pipeline{
		Gate:          g,
		Ledger:        quota.NewLedger(st.accounts, st.usage, clk, quota.LimitsFromConfig(cfg.Quota)),
		Pool:          account.NewPool(st.accounts, clk, breakers),
		Adapter:       breakers.Guard(adapter),
		Clock:         clk,
		Counters:      counters,
		Metrics:       m,
		SlowThreshold: cfg.Dispatch.SlowThreshold,
	}
	q := queue.NewCampaignQueue()
	campaignService := &service.CampaignService{
		CampaignRepo: st.campaigns,
		Queue:        q,
		Bus:          bus,
		Counters:     counters,
		Pipeline:     pipeline,
		Gate:         g,
		Clock:        clk,
		Metrics:      m,
	}

	dispatcher := service.NewDispatcher(st.campaigns, q, pipeline, bus, m, service.DispatcherConfig{
		Interval:    cfg.Dispatch.Interval,
		Workers:     cfg.Dispatch.Workers,
		UnitTimeout: cfg.Dispatch.UnitTimeout,
	})
	scheduler := service.NewScheduler(st.campaigns, campaignService, bus, quota.NewRollover(st.accounts, clk), clk, service.SchedulerConfig{
		Spec:         cfg.Dispatch.SchedulerSpec,
		RolloverSpec: cfg.Dispatch.RolloverSpec,
		Batch:        cfg.Dispatch.SchedulerBatch,
	})

	router := handler.NewRouter(
		&controller.CampaignController{CampaignService: campaignService},
		handler.NewCampaignHandler(campaignService),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return dispatcher.Run(gctx) })
	eg.Go(func() error { return scheduler.Start(gctx) })

	if cfg.AMQP.URL != "" {
		conn, err := broker.Dial(cfg.AMQP.URL)
		if err != nil {
			return err
		}
		defer conn.Close()
		eg.Go(func() error { return broker.NewRelay(conn.Channel(), cfg.AMQP.Exchange, bus).Run(gctx) })
		eg.Go(func() error {
			return broker.NewConsumer(conn.Channel(), cfg.AMQP.CommandQueue, campaignService).Run(gctx)
		})
	} else {
		log.Info().Msg("AMQP_URL not set, broker disabled")
	}

	eg.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store).Str("delivery", cfg.DeliveryMode).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = eg.Wait()
	log.Info().Msg("server stopped")
	return err
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{close: func() {}}

	switch cfg.Store {
	case "memory":
		ms := memory.New()
		st.campaigns, st.accounts, st.usage, st.suppressions = ms.Campaigns, ms.Accounts, ms.Usage, ms.Suppressions
	default:
		if err := db.MigrateUp(cfg.Database.DSN()); err != nil {
			return nil, err
		}
		sqlDB, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		st.campaigns = &repository.CampaignRepository{DB: sqlDB}
		st.accounts = &repository.AccountRepository{DB: sqlDB}
		st.usage = &repository.UsageRepository{DB: sqlDB}
		st.suppressions = &repository.SuppressionRepository{DB: sqlDB}
		st.close = closer(st.close, func() { sqlDB.Close() })
	}

	if cfg.LedgerBackend == "redis" {
		rc, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			st.close()
			return nil, err
		}
		st.usage = cache.NewUsageLedger(rc)
		st.close = closer(st.close, func() { closeRedis(rc) })
	}
	return st, nil
}

func closer(prev, next func()) func() {
	return func() {
		next()
		prev()
	}
}

func closeRedis(rc *redis.Client) {
	if err := rc.Close(); err != nil {
		logger.Logger.Warn().Err(err).Msg("closing redis client")
	}
}
