package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gregtusar/driftarb/api"
	"github.com/gregtusar/driftarb/internal/config"
	"github.com/gregtusar/driftarb/pkg/detector"
	"github.com/gregtusar/driftarb/pkg/feed"
	"github.com/gregtusar/driftarb/pkg/ledger"
	"github.com/gregtusar/driftarb/pkg/models"
	"github.com/gregtusar/driftarb/pkg/notify"
	"github.com/gregtusar/driftarb/pkg/reactor"
	"github.com/gregtusar/driftarb/pkg/venue"
)

var (
	cfgFile string
	logger  *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "arb-monitor",
		Short: "Spot/perp spread monitor with reactive test trading",
		Long:  `Monitors the spread between spot and perpetual prices for configured pairs, alerts on opportunities and optionally reacts with test network orders`,
		Run:   runMonitor,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runMonitor(cmd *cobra.Command, args []string) {
	// Initialize logger
	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Local development credentials
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Set log level
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Error("Invalid log level, using INFO")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize venue clients
	spotClient := venue.NewSpotClient(cfg.Spot.APIKey, cfg.Spot.APISecret, cfg.Spot.Testnet, logger)
	if err := spotClient.Connect(ctx); err != nil {
		logger.WithError(err).Error("Failed to connect to spot venue, reaction disabled")
	}

	var perpAuth *venue.JWTAuthenticator
	if cfg.Perp.KeyName != "" && cfg.Perp.PrivateKeyPEM != "" {
		perpAuth, err = venue.NewJWTAuthenticator(cfg.Perp.KeyName, cfg.Perp.PrivateKeyPEM)
		if err != nil {
			logger.WithError(err).Fatal("Invalid perp gateway private key")
		}
	}
	perpClient := venue.NewPerpClient(cfg.Perp.GatewayURL, perpAuth, logger)
	if err := perpClient.Connect(ctx); err != nil {
		logger.WithError(err).Error("Failed to connect to perp gateway")
	}

	// Spot ticker stream keeps the price cache warm between polls
	if cfg.WebSocket.Enabled {
		symbols := make([]string, 0, len(cfg.Trading.Pairs))
		for _, pair := range cfg.Trading.Pairs {
			symbols = append(symbols, venue.SpotSymbol(pair))
		}
		stream := spotClient.NewStream(symbols,
			time.Duration(cfg.WebSocket.ReconnectDelay)*time.Second,
			cfg.WebSocket.MaxReconnects)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Spot price stream stopped")
			}
		}()
	}

	// Core pipeline
	threshold := decimal.NewFromFloat(cfg.Trading.SpreadThreshold)
	tradeSize := decimal.NewFromFloat(cfg.Trading.TradeSizeUSDC)

	det := detector.NewDetector(threshold, tradeSize, logger)
	ldg := ledger.New()
	notifier := notify.NewDiscordNotifier(cfg.Discord.WebhookURL, logger)
	coordinator := reactor.NewCoordinator(cfg.Trading.ReactiveMode, spotClient, venue.SpotSymbol, ldg, notifier, logger)

	notifier.NotifyStartup(ctx, notify.StartupEvent{
		Mode:            cfg.Mode,
		TestnetEnabled:  cfg.Spot.Testnet,
		Pairs:           cfg.Trading.Pairs,
		SpreadThreshold: threshold,
		TradeSize:       tradeSize,
		SpotConnected:   spotClient.Connected(),
		PerpConnected:   perpClient.Connected(),
	})

	// Start API server
	apiServer := api.NewServer(det, ldg, logger, fmt.Sprintf("%d", cfg.Server.Port))
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start API server")
		}
	}()

	// Start price monitoring
	priceFeed := feed.New(spotClient, perpClient, time.Duration(cfg.Trading.PollInterval)*time.Second, logger)
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		priceFeed.Start(ctx, cfg.Trading.Pairs, func(loopCtx context.Context, sample models.PriceSample) {
			opp, err := det.Evaluate(sample)
			if err != nil {
				logger.WithError(err).WithField("pair", sample.Pair).Warn("Dropping invalid price sample")
				return
			}
			if opp == nil {
				return
			}

			// Reactions run on their own context so an in-flight order can
			// complete during shutdown instead of being hard-aborted.
			reactCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
			defer done()
			coordinator.React(reactCtx, *opp)
		})
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Spread monitor is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case <-feedDone:
		logger.Error("All pair monitors stopped")
	}

	// Graceful shutdown
	cancel()
	<-feedDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	notifier.NotifyShutdown(shutdownCtx, notify.ShutdownEvent{
		OpenPositions:  ldg.Count(),
		TestnetEnabled: cfg.Spot.Testnet,
	})

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to stop API server")
	}

	logger.WithField("open_positions", ldg.Count()).Info("Spread monitor stopped")
}
