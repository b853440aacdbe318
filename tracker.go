// Package tracker is the public library surface: it assembles an RPC
// client, the two metadata stores, the standards prober, and one
// scanner+dispatcher pair per token standard, then runs both scan
// loops until they terminate (SPEC_FULL.md §5.9).
package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/0xmhha/nft-tracker/events"
	"github.com/0xmhha/nft-tracker/internal/config"
	"github.com/0xmhha/nft-tracker/internal/dispatcher"
	"github.com/0xmhha/nft-tracker/internal/metadatastore"
	"github.com/0xmhha/nft-tracker/internal/prober"
	"github.com/0xmhha/nft-tracker/internal/rpcclient"
	"github.com/0xmhha/nft-tracker/internal/scanner"
	"github.com/0xmhha/nft-tracker/internal/trackermetrics"
)

// Erc721EventCallback receives a decoded ERC-721 Transfer and its
// resolved collection/token metadata. name/symbol/tokenURI are nil
// wherever resolution failed (spec.md §4.6).
type Erc721EventCallback = dispatcher.Erc721Callback

// Erc1155EventCallback receives a decoded ERC-1155 transfer and its
// resolved token URI.
type Erc1155EventCallback = dispatcher.Erc1155Callback

// Config is the library-level configuration, built by a caller from
// whatever config source they prefer (internal/config's YAML loader,
// or constructed directly).
type Config struct {
	Chain   config.ChainConfig
	RPC     config.RPCConfig
	DataDir string
	Erc721  config.StandardConfig
	Erc1155 config.StandardConfig

	// Logger and Metrics are both optional; nil disables them.
	Logger  *zap.Logger
	Metrics *trackermetrics.Metrics
}

// Start assembles the tracker and runs both scanners until they
// terminate — only possible via an `end_block` on both standards or
// ctx cancellation (spec.md §5's "no built-in per-RPC timeout beyond
// the 30s backoff" means this call otherwise blocks forever).
func Start(ctx context.Context, cfg Config, erc721Cb Erc721EventCallback, erc1155Cb Erc1155EventCallback) error {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout, err := time.ParseDuration(cfg.RPC.Timeout)
	if err != nil {
		return fmt.Errorf("tracker: invalid rpc timeout %q: %w", cfg.RPC.Timeout, err)
	}

	client, err := rpcclient.Dial(ctx, rpcclient.Config{
		Endpoint:  cfg.RPC.Endpoint,
		Timeout:   timeout,
		RateLimit: cfg.RPC.RateLimit,
		RateBurst: cfg.RPC.RateBurst,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("tracker: failed to dial rpc endpoint: %w", err)
	}
	defer client.Close()

	erc721Store, err := metadatastore.Open(filepath.Join(cfg.DataDir, "erc721.db"), logger)
	if err != nil {
		return fmt.Errorf("tracker: failed to open erc721 metadata store: %w", err)
	}
	defer erc721Store.Close()

	erc1155Store, err := metadatastore.Open(filepath.Join(cfg.DataDir, "erc1155.db"), logger)
	if err != nil {
		return fmt.Errorf("tracker: failed to open erc1155 metadata store: %w", err)
	}
	defer erc1155Store.Close()

	standardsProber := prober.New(client)

	erc721Dispatcher := dispatcher.NewErc721Dispatcher(client, standardsProber, erc721Store, erc721Cb, logger)
	erc721Dispatcher.Metrics = cfg.Metrics

	erc1155Dispatcher := dispatcher.NewErc1155Dispatcher(client, standardsProber, erc1155Store, erc1155Cb, logger)
	erc1155Dispatcher.Metrics = cfg.Metrics

	erc721Scanner := scanner.New(client, scanner.Config{
		Name:      "erc721",
		Topics:    []common.Hash{events.TopicErc721Transfer},
		StartFrom: cfg.Erc721.StartFrom,
		Step:      cfg.Erc721.Step,
		EndBlock:  cfg.Erc721.EndBlock,
		Metrics:   cfg.Metrics,
	}, processErc721Window(erc721Dispatcher), logger)

	erc1155Scanner := scanner.New(client, scanner.Config{
		Name:      "erc1155",
		Topics:    []common.Hash{events.TopicErc1155TransferSingle, events.TopicErc1155TransferBatch},
		StartFrom: cfg.Erc1155.StartFrom,
		Step:      cfg.Erc1155.Step,
		EndBlock:  cfg.Erc1155.EndBlock,
		Metrics:   cfg.Metrics,
	}, processErc1155Window(erc1155Dispatcher), logger)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = erc721Scanner.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		errs[1] = erc1155Scanner.Run(ctx)
	}()
	wg.Wait()

	for _, e := range errs {
		if e != nil && !errors.Is(e, context.Canceled) && !errors.Is(e, context.DeadlineExceeded) {
			return e
		}
	}
	return nil
}

// processErc721Window returns a scanner.WindowProcessor that decodes
// every 4-topic ERC-721 Transfer log in a window and dispatches it.
func processErc721Window(d *dispatcher.Erc721Dispatcher) scanner.WindowProcessor {
	return func(ctx context.Context, logs []types.Log) error {
		for i := range logs {
			log := &logs[i]
			if !events.IsErc721TransferShape(log) {
				continue
			}
			d.Dispatch(ctx, events.DecodeErc721Transfer(log))
		}
		return nil
	}
}

// processErc1155Window returns a scanner.WindowProcessor that decodes
// every TransferSingle/TransferBatch log in a window (a batch log
// expands into N events, dispatched in array order) and dispatches
// each resulting event.
func processErc1155Window(d *dispatcher.Erc1155Dispatcher) scanner.WindowProcessor {
	return func(ctx context.Context, logs []types.Log) error {
		for i := range logs {
			log := &logs[i]
			if len(log.Topics) == 0 {
				continue
			}
			switch log.Topics[0] {
			case events.TopicErc1155TransferSingle:
				d.Dispatch(ctx, events.DecodeErc1155TransferSingle(log))
			case events.TopicErc1155TransferBatch:
				for _, event := range events.DecodeErc1155TransferBatch(log) {
					d.Dispatch(ctx, event)
				}
			}
		}
		return nil
	}
}
