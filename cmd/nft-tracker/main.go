package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/0xmhha/nft-tracker"
	"github.com/0xmhha/nft-tracker/consumers/logconsumer"
	"github.com/0xmhha/nft-tracker/consumers/wsbroadcast"
	"github.com/0xmhha/nft-tracker/events"
	"github.com/0xmhha/nft-tracker/internal/config"
	"github.com/0xmhha/nft-tracker/internal/healthserver"
	"github.com/0xmhha/nft-tracker/internal/logger"
	"github.com/0xmhha/nft-tracker/internal/trackermetrics"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")
		rpcEndpoint = flag.String("rpc", "", "Ethereum-compatible RPC endpoint URL")
		dataDir     = flag.String("data-dir", "", "Metadata cache directory")
		enableWS    = flag.Bool("ws", false, "Enable the websocket fan-out consumer")
		wsAddr      = flag.String("ws-addr", ":8090", "Listen address for the websocket consumer")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("nft-tracker version %s (%s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *rpcEndpoint != "" {
		cfg.RPC.Endpoint = *rpcEndpoint
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting nft-tracker",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("chain", cfg.Chain.Name),
		zap.String("rpc_endpoint", cfg.RPC.Endpoint),
		zap.String("data_dir", cfg.DataDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	metrics := trackermetrics.NewMetrics("nft_tracker", cfg.Chain.Name)

	var health *healthserver.Server
	if cfg.Health.Enabled {
		health = healthserver.New(healthserver.Config{Host: cfg.Health.Host, Port: cfg.Health.Port}, log)
		go func() {
			if err := health.Start(); err != nil {
				log.Error("health server failed", zap.Error(err))
			}
		}()
		log.Info("health server listening", zap.String("address", health.Address()))
	}

	logConsumer := logconsumer.New(log)
	erc721Cb := tracker.Erc721EventCallback(logConsumer.OnErc721Event)
	erc1155Cb := tracker.Erc1155EventCallback(logConsumer.OnErc1155Event)

	var hub *wsbroadcast.Hub
	if *enableWS {
		hub = wsbroadcast.NewHub(log)
		defer hub.Stop()

		wsServer := wsbroadcast.NewServer(hub, log)
		httpServer := &http.Server{Addr: *wsAddr, Handler: wsServer}
		go func() {
			log.Info("websocket consumer listening", zap.String("address", *wsAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("websocket consumer failed", zap.Error(err))
			}
		}()
		defer httpServer.Close()

		loggingErc721Cb := erc721Cb
		loggingErc1155Cb := erc1155Cb
		erc721Cb = func(ctx context.Context, event events.Erc721Event, name, symbol, tokenURI *string) {
			loggingErc721Cb(ctx, event, name, symbol, tokenURI)
			hub.OnErc721Event(ctx, event, name, symbol, tokenURI)
		}
		erc1155Cb = func(ctx context.Context, event events.Erc1155Event, tokenURI *string) {
			loggingErc1155Cb(ctx, event, tokenURI)
			hub.OnErc1155Event(ctx, event, tokenURI)
		}
	}

	trackerCfg := tracker.Config{
		Chain:   cfg.Chain,
		RPC:     cfg.RPC,
		DataDir: cfg.DataDir,
		Erc721:  cfg.Erc721,
		Erc1155: cfg.Erc1155,
		Logger:  log,
		Metrics: metrics,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- tracker.Start(ctx, trackerCfg, erc721Cb, erc1155Cb)
	}()

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("tracker stopped with error", zap.Error(err))
		}
	}

	log.Info("shutting down gracefully...")

	if health != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := health.Stop(shutdownCtx); err != nil {
			log.Error("failed to stop health server", zap.Error(err))
		}
	}

	<-errChan
	log.Info("nft-tracker stopped")
}

func loadConfig(configFile string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return config.Load(configFile)
}

func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}
