package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"binance-signal-monitor/config"
	"binance-signal-monitor/internal/api"
	"binance-signal-monitor/internal/binance"
	"binance-signal-monitor/internal/indicators"
	"binance-signal-monitor/internal/logging"
	"binance-signal-monitor/internal/marketdata"
	"binance-signal-monitor/internal/monitor"
	"binance-signal-monitor/internal/notification"
	"binance-signal-monitor/internal/simulator"
	"binance-signal-monitor/internal/tradestore"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to JSON config file")
	flag.Parse()

	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("configuration invalid", "error", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.Log.Level,
		Output:     cfg.Log.Output,
		JSONFormat: cfg.Log.JSONFormat,
	})
	logging.SetDefault(logger)
	logger.Info("starting signal monitor",
		"symbols", cfg.Monitor.Symbols, "interval", cfg.Monitor.Interval)

	perf := monitor.NewPerformanceTracker()

	client := binance.NewClient(binance.ClientConfig{
		APIKey:    cfg.Binance.APIKey,
		SecretKey: cfg.Binance.SecretKey,
		BaseURL:   cfg.Binance.BaseURL,
	})
	client.SetLatencyRecorder(perf)

	cache := marketdata.NewCache(
		time.Duration(cfg.Cache.DefaultTTLSeconds)*time.Second,
		cfg.Cache.MaxSizeMB,
	)
	provider := marketdata.NewProvider(client, cache)

	var store *tradestore.Store
	if cfg.Store.Path != "" {
		store, err = tradestore.Open(cfg.Store.Path)
		if err != nil {
			logger.Fatal("trade store open failed", "path", cfg.Store.Path, "error", err)
		}
		logger.Info("trade store ready", "path", cfg.Store.Path)
	}

	sim := simulator.New(simulator.Config{
		InitialBalance:    cfg.Trading.InitialBalance,
		MaxPositions:      cfg.Trading.MaxPositions,
		MakerFeeRate:      cfg.Trading.MakerFee,
		TakerFeeRate:      cfg.Trading.TakerFee,
		AutoCloseOnTarget: cfg.Trading.AutoCloseOnTarget,
	}, sinkOrNil(store))

	engine := indicators.NewEngine(cfg.Indicators)

	notifiers := notification.Build(
		notification.TelegramConfig{BotToken: cfg.Notify.TelegramBotToken, ChatID: cfg.Notify.TelegramChatID},
		notification.DiscordConfig{WebhookURL: cfg.Notify.DiscordWebhookURL},
	)
	if len(notifiers) > 0 {
		logger.Info("alert notifiers enabled", "count", len(notifiers))
	}

	stream := binance.NewTickerStream("", cfg.Monitor.Symbols)

	mon, err := monitor.New(monitor.Config{
		Symbols:                 cfg.Monitor.Symbols,
		Interval:                cfg.Monitor.Interval,
		CandleLimit:             cfg.Monitor.CandlesLimit,
		CycleSeconds:            cfg.Monitor.CycleSeconds,
		PerSymbolTimeoutSeconds: cfg.Monitor.PerSymbolTimeoutSeconds,
		MaxInflight:             cfg.Monitor.MaxInflight,
		MaxErrorsPerSymbol:      cfg.Monitor.MaxErrorsPerSymbol,
		ErrorResetMinutes:       cfg.Monitor.ErrorResetMinutes,
		PollSpacingMs:           cfg.Monitor.PollSpacingMs,
	}, monitor.Deps{
		Provider:  provider,
		Engine:    engine,
		Simulator: sim,
		Sizer:     monitor.NewOrderSizer(cfg.Trading.PositionSize, cfg.Trading.RiskReward),
		Alerts:    monitor.NewAlertManager(notifiers...),
		Perf:      perf,
		Pinger:    client,
		Ticker:    stream,
	})
	if err != nil {
		logger.Fatal("monitor setup failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := stream.Start(ctx); err != nil {
		logger.Warn("ticker stream unavailable", "error", err)
	}

	if err := mon.Start(ctx); err != nil {
		logger.Fatal("monitor start failed", "error", err)
	}

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.New(api.Config{ListenAddr: cfg.Server.ListenAddr}, mon, sim, store, cache)
		server.SetPriceSource(stream)
		server.Start()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("api shutdown failed", "error", err)
		}
	}
	stream.Stop()
	mon.Stop()
	cache.Close()
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("trade store close failed", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// sinkOrNil avoids handing the simulator a non-nil interface wrapping
// a nil *Store
func sinkOrNil(store *tradestore.Store) simulator.TradeSink {
	if store == nil {
		return nil
	}
	return store
}
