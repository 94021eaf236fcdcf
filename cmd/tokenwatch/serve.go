package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/alerts"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/cache"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/config"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/gateway"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/httpapi"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/launch"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/netutil/ratelimit"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/notify"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence/postgres"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/portfolio"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/recommend"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/scheduler"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/scoring"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/strategy"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/wallets"
)

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage and cache failures abort startup; everything downstream
	// degrades at runtime instead.
	db, err := postgres.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	var store cache.Store
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		memStore := cache.NewMemory()
		defer memStore.Stop()
		store = memStore
	}

	limiter := ratelimit.NewLimiter(ratelimit.Quota{MaxRequests: 20, Window: 60 * time.Second})
	limiter.SetQuota(gateway.ProviderPumpFun, ratelimit.Quota{
		MaxRequests: cfg.Providers.PumpFun.MaxRequests,
		Window:      cfg.Providers.PumpFun.Window,
	})
	limiter.SetQuota(gateway.ProviderDexScreener, ratelimit.Quota{
		MaxRequests: cfg.Providers.DexScreener.MaxRequests,
		Window:      cfg.Providers.DexScreener.Window,
	})

	gw := gateway.New(gateway.Config{
		PumpFunBaseURL:     cfg.Providers.PumpFun.BaseURL,
		DexScreenerBaseURL: cfg.Providers.DexScreener.BaseURL,
		HTTPTimeout:        cfg.Providers.HTTPTimeout,
	}, store, limiter)

	timeout := cfg.Postgres.QueryTimeout
	tokenRepo := postgres.NewTokensRepo(db, timeout)
	deployerRepo := postgres.NewDeployersRepo(db, timeout)
	alertRepo := postgres.NewAlertsRepo(db, timeout)
	portfolioRepo := postgres.NewPortfoliosRepo(db, timeout)
	walletRepo := postgres.NewWalletsRepo(db, timeout)

	launchEngine, err := scoring.NewEngine(*cfg.Scoring.LaunchWeights)
	if err != nil {
		return err
	}
	recommendEngine, err := scoring.NewEngine(*cfg.Scoring.RecommendationWeights)
	if err != nil {
		return err
	}
	strategyEngine, err := scoring.NewEngine(*cfg.Scoring.StrategyWeights)
	if err != nil {
		return err
	}

	notifier := notify.NewLogNotifier()
	monitor := launch.NewMonitor(gw, tokenRepo, deployerRepo, launchEngine, notifier,
		cfg.Launch.WhitelistedDeployers, cfg.Launch.NotifyThreshold)
	alertManager := alerts.NewManager(alertRepo, gw, notifier)
	aggregator := portfolio.NewAggregator(portfolioRepo, gw)
	recommender := recommend.New(tokenRepo, recommendEngine)
	advisor := strategy.NewAdvisor(tokenRepo, gw, strategyEngine,
		strategy.Thresholds{Buy: cfg.Strategy.BuyThreshold, Sell: cfg.Strategy.SellThreshold},
		strategy.NewFeedTechnical(gw),
		strategy.NewFeedSentiment(gw),
		nil, // no burn data upstream; the factor stays at its default
		strategy.NewFeedWhale(gw))
	tracker := wallets.NewTracker(walletRepo, gw)

	if err := alertManager.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial alert reload failed, starting cold")
	}

	sched := scheduler.New(ctx)
	jobs := []scheduler.Job{
		{Name: "launch", Interval: cfg.Sweeps.LaunchInterval, Run: monitor.ScanLaunches},
		{Name: "trades", Interval: cfg.Sweeps.TradesInterval, Run: monitor.ScanTrades},
		{Name: "alerts", Interval: cfg.Sweeps.AlertsInterval, Run: alertManager.CheckAlerts},
		{Name: "portfolio", Interval: cfg.Sweeps.PortfolioInterval, Run: aggregator.RecomputeAll},
		{Name: "wallets", Interval: cfg.Sweeps.WalletsInterval, Run: tracker.EnrichAll},
		{Name: "alert-expiry", Interval: time.Hour, Run: func(ctx context.Context) error {
			return alertManager.ExpireStale(ctx, cfg.Alerts.MaxAge)
		}},
	}
	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httpapi.Deps{
		Alerts:     alertManager,
		Portfolios: aggregator,
		Recommend:  recommender,
		Advisor:    advisor,
		Wallets:    tracker,
		Tokens:     tokenRepo,
		Takeovers:  monitor,
		Deployers:  gw,
	})

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	log.Info().Str("addr", cfg.HTTP.Host).Int("port", cfg.HTTP.Port).Msg("tokenwatch running")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
