package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"time"

	"rsiTrendBot/config"
	"rsiTrendBot/internal/adapters/binanceclient"
	"rsiTrendBot/internal/adapters/logger"
	"rsiTrendBot/internal/adapters/sqlite"
	"rsiTrendBot/internal/adapters/telegram"
	"rsiTrendBot/internal/adapters/twelvedata"
	"rsiTrendBot/internal/app"
	"rsiTrendBot/internal/monitoring"
	"rsiTrendBot/internal/ports"
	"rsiTrendBot/internal/registry"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Initialize Market Data Sources
	var sources []ports.KlineSource
	if cfg.NeedsSource(config.SourceBinance) {
		binanceClient, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.BinanceAPIKey,
			SecretKey:  cfg.BinanceSecretKey,
			UseTestnet: cfg.IsTestnet,
			BaseURL:    cfg.BinanceBaseURL,
			Logger:     appLogger,
			RetryDelay: cfg.RetryDelay,
			MaxRetries: cfg.RequestRetries,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
			log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
		}
		if err := binanceClient.Ping(ctx); err != nil {
			appLogger.Warn(ctx, "Binance ping failed, continuing", map[string]interface{}{"error": err.Error()})
		}
		sources = append(sources, binanceClient)
	}
	if cfg.NeedsSource(config.SourceTwelveData) {
		tdClient, err := twelvedata.New(twelvedata.Config{
			APIKey:  cfg.TwelveDataAPIKey,
			BaseURL: cfg.TwelveDataBaseURL,
			Timeout: cfg.HTTPTimeout,
			Logger:  appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize Twelve Data client")
			log.Fatalf("FATAL: Failed to initialize Twelve Data client: %v", err)
		}
		sources = append(sources, tdClient)
	}
	appLogger.Info(ctx, "Market data sources initialized", map[string]interface{}{"count": len(sources)})

	// 5. Initialize Strategy Instances
	reg, err := registry.New(cfg.SymbolNames(), cfg.Timeframes, cfg.StrategyConfig(), appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize strategy instances")
		log.Fatalf("FATAL: Failed to initialize strategy instances: %v", err)
	}

	// 6. Initialize Monitoring
	metrics := monitoring.NewMetrics()
	health := monitoring.NewHealthChecker(cfg.InitialDelay + 3*cfg.CheckInterval)

	// 7. Initialize Notifier
	var notifier ports.Notifier
	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.New(telegram.Config{
			Token:        cfg.TelegramToken,
			AdminChatIDs: cfg.AdminChatIDs,
			Strategy:     cfg.StrategyConfig(),
			Subscribers:  repo,
			Logger:       appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize Telegram bot")
			log.Fatalf("FATAL: Failed to initialize Telegram bot: %v", err)
		}
		notifier = bot
	} else {
		appLogger.Warn(ctx, "TELEGRAM_BOT_TOKEN not set, signals will only be logged")
		notifier = telegram.NewLogNotifier(appLogger, cfg.StrategyConfig())
	}

	// 8. Initialize Application Service
	service, err := app.NewSignalService(cfg, appLogger, reg, sources, repo, notifier, metrics, health)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize signal service")
		log.Fatalf("FATAL: Failed to initialize signal service: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 9. Serve metrics and health
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", health)
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		appLogger.Info(ctx, "Monitoring server listening", map[string]interface{}{"addr": cfg.MetricsAddr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(ctx, err, "Monitoring server failed")
		}
	}()

	if bot != nil {
		go func() {
			if err := bot.Run(runCtx, service); err != nil {
				appLogger.Error(ctx, err, "Telegram bot stopped with error")
			}
		}()
	}

	// 10. Start the Service
	if err := service.Start(runCtx); err != nil {
		appLogger.Error(ctx, err, "Signal service exited with error")
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(ctx, 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(ctx, err, "Monitoring server shutdown failed")
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
