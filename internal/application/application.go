package application

import (
	"context"
	"fmt"
	"net/http"

	"git.appkode.ru/pub/go/failure"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"items_seller/internal/config"
	"items_seller/internal/domain/entity"
	"items_seller/internal/domain/service/allocator"
	"items_seller/internal/domain/service/selector"
	"items_seller/internal/infrastructure/notifier"
	"items_seller/internal/infrastructure/persistence"
	"items_seller/internal/infrastructure/steam"
	"items_seller/internal/lifecycle"
	"items_seller/internal/pricing"
	"items_seller/internal/server"
	"items_seller/internal/telemetry"
	"items_seller/internal/worker"
	"items_seller/pkg/application/connectors"
	"items_seller/pkg/application/modules"
	"items_seller/pkg/contextx"
)

const summaryBuffer = 8

func Run(ctx context.Context) error {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	log := contextx.LoggerFromContextOrDefault(ctx)

	// 2. Database
	pg := &connectors.Postgres{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}
	db := pg.Client(ctx)
	defer pg.Close(ctx)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	log.Info("database connection OK")

	// 3. Redis
	rd := &connectors.Redis{
		Address:            cfg.Redis.Address,
		Username:           cfg.Redis.Username,
		Password:           cfg.Redis.Password,
		DatabaseNumber:     cfg.Redis.DatabaseNumber,
		PoolSize:           cfg.Redis.PoolSize,
		MinIdleConnections: cfg.Redis.MinIdleConnections,
		MaxIdleConnections: cfg.Redis.MaxIdleConnections,
	}
	redisClient := rd.Client(ctx)
	defer rd.Close(ctx)

	// 4. Repositories
	accountRepo := persistence.NewAccountRepository(db)
	priceRepo := persistence.NewPriceRepository(db)

	// 5. Pricing
	quote := pricing.NewQuoteFetcher(cfg.Selling.QuoteThresholdFraction, cfg.Selling.PriceFloor)
	cache := pricing.NewCache(
		priceRepo,
		quote,
		cfg.Selling.MainItems,
		cfg.Selling.MainStaleness,
		cfg.Selling.CatalogStaleness,
	)
	converter := pricing.NewConverter(
		redisClient,
		cfg.Converter.PrimaryURL,
		cfg.Converter.FallbackURL,
		cfg.Converter.RateTTL,
	)

	// 6. Solver
	sel := selector.New().WithBudget(cfg.Selling.SolverBudget)
	planner := worker.NewTransferPlanner(allocator.New(sel), converter, cfg.Selling.TaxBuffer)

	// 7. Steam
	sessions := steam.NewFileSessionStore(cfg.Steam.SessionDir)

	traders := func(ctx context.Context, account entity.Account, secrets entity.AccountSecrets) (worker.Trader, error) {
		creds := steam.Credentials{
			Username:       account.Username,
			Password:       secrets.Password,
			SharedSecret:   secrets.SharedSecret,
			IdentitySecret: secrets.IdentitySecret,
			SteamID:        account.SteamID,
			Currency:       account.Currency,
			Region:         account.Region,
		}

		factory := steam.NewFactory(
			creds,
			sessions,
			steam.WithBaseURL(cfg.Steam.BaseURL),
			steam.WithApp(cfg.Steam.AppID, cfg.Steam.ContextID),
		)

		client, err := factory.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("factory.New: %w", err)
		}

		return steam.NewCaller(client, factory, steam.WithRetryObserver(func(_ string, code failure.ErrorCode) {
			telemetry.RetryCycles.WithLabelValues(code.String()).Inc()
		})), nil
	}

	// 8. Orchestrator
	registry := worker.NewRegistry()
	summaries := make(chan entity.RunSummary, summaryBuffer)

	orchestrator := worker.NewOrchestrator(
		accountRepo,
		cache,
		sel,
		traders,
		worker.Params{
			Lifecycle: lifecycle.Params{
				SaleMultiplier:    cfg.Selling.SalePriceMultiplier,
				MaxAttempts:       cfg.Selling.MaxCleanupAttempts,
				InitialMultiplier: cfg.Selling.InitialCleanupMultiplier,
				Decrement:         cfg.Selling.CleanupPriceDecrement,
				MinWait:           cfg.Selling.MinWait,
				MaxWait:           cfg.Selling.MaxWait,
			},
			Concurrency:    int64(cfg.Selling.InventoryConcurrency),
			MaxItemsPerRun: cfg.Selling.MaxItemsPerRun,
			TaxBuffer:      cfg.Selling.TaxBuffer,
		},
		registry,
		worker.WithSummaries(summaries),
		worker.WithTransfers(planner),
	)

	// 9. Notifier
	if cfg.Bot.Enabled {
		alertBot, err := notifier.NewTelegramBot(cfg.Bot.Token, cfg.Bot.ChatID)
		if err != nil {
			return fmt.Errorf("notifier bot: %w", err)
		}

		go func() {
			if err := alertBot.Run(ctx, summaries); err != nil && ctx.Err() == nil {
				log.Error("notifier bot stopped", "error", err)
			}
		}()
	}

	// 10. Servers
	g, ctx := errgroup.WithContext(ctx)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DatabaseNumber,
	}

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	opsServer := server.New(registry, asynqClient)

	modules.HTTPServer{ShutdownTimeout: cfg.Servers.ShutdownTimeout}.Run(ctx, g, &http.Server{
		Addr:    cfg.Servers.HTTPListenAddress,
		Handler: opsServer.Router(),
	})

	modules.MetricServer{ListenAddress: cfg.Servers.MetricsListenAddress}.Run(ctx, g)

	probeServer := modules.ProbeServer{
		Name:          cfg.App.Name,
		Version:       cfg.App.Version,
		ListenAddress: cfg.Servers.ProbeListenAddress,
	}.Run(ctx, g)

	// Очередь в один поток: запуски не перекрываются.
	modules.AsynqServer{
		RedisAddress:  cfg.Redis.Address,
		RedisUsername: cfg.Redis.Username,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DatabaseNumber,
		Concurrency:   1,
	}.Run(ctx, g,
		modules.AsynqQueues{worker.QueueLiquidation: 1},
		modules.AsynqHandler{
			Pattern: worker.TaskLiquidationRun,
			Handle:  worker.NewRunHandler(orchestrator).Handle,
		},
	)

	worker.Scheduler{Redis: redisOpt, Interval: cfg.Servers.RunInterval}.Run(ctx, g)

	probeServer.SetReady(true)
	log.Info("application started", "name", cfg.App.Name, "version", cfg.App.Version)

	return g.Wait()
}
