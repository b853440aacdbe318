// Package scanner implements the windowed block-range scan loop
// (spec.md §4.5): one instance per token standard, advancing a
// confirmed, capped window over the chain and handing each window's
// logs to a caller-supplied processor.
package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/0xmhha/nft-tracker/internal/constants"
	"github.com/0xmhha/nft-tracker/internal/rpcclient"
	"github.com/0xmhha/nft-tracker/internal/trackermetrics"
)

// Client is the subset of *rpcclient.Client the scanner depends on.
// Accepting an interface keeps the loop unit-testable without a fake
// JSON-RPC server.
type Client interface {
	LatestBlock(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, address *common.Address, topics []common.Hash, from, to uint64) ([]types.Log, error)
}

var _ Client = (*rpcclient.Client)(nil)

// WindowProcessor decodes, filters, expands, and dispatches one
// window's worth of raw logs, in RPC-returned order (spec.md §4.5
// "events within one window are dispatched in RPC-returned order").
// A processing error is treated as a window failure: the window is
// not advanced and the scanner backs off, per spec.md §4.5 step 7 —
// WindowProcessor itself must swallow *per-event* dispatch failures
// (spec.md §4.6) so only store/RPC-level failures reach the scanner.
type WindowProcessor func(ctx context.Context, logs []types.Log) error

// Config parameterizes one scanner instance.
type Config struct {
	// Name labels this scanner in logs ("erc721", "erc1155").
	Name string

	// Topics is this standard's topic0 set (events.TopicErc721Transfer,
	// or both ERC-1155 Transfer topics).
	Topics []common.Hash

	StartFrom uint64
	Step      uint64
	// EndBlock, if set, causes the loop to terminate gracefully once
	// the next window would exceed it (spec.md §4.5 step 3).
	EndBlock *uint64

	// TipWaitInterval, ErrorBackoffInterval, and WindowThrottleInterval
	// default to the spec-mandated 30s/30s/5s (constants package) when
	// left zero; tests shorten them to keep the state machine's timing
	// assertions fast, the way the teacher's fetch.Config.RetryDelay is
	// an overridable field rather than a hardcoded sleep.
	TipWaitInterval        time.Duration
	ErrorBackoffInterval   time.Duration
	WindowThrottleInterval time.Duration

	// Metrics is optional; a nil Metrics disables instrumentation.
	Metrics *trackermetrics.Metrics
}

// Scanner runs Config's state machine against Client, handing each
// window to Process.
type Scanner struct {
	client  Client
	cfg     Config
	process WindowProcessor
	logger  *zap.Logger
}

// New constructs a Scanner. logger may be nil.
func New(client Client, cfg Config, process WindowProcessor, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Step == 0 {
		cfg.Step = 1000
	}
	if cfg.TipWaitInterval == 0 {
		cfg.TipWaitInterval = constants.TipWaitInterval
	}
	if cfg.ErrorBackoffInterval == 0 {
		cfg.ErrorBackoffInterval = constants.ErrorBackoffInterval
	}
	if cfg.WindowThrottleInterval == 0 {
		cfg.WindowThrottleInterval = constants.WindowThrottleInterval
	}
	return &Scanner{client: client, cfg: cfg, process: process, logger: logger.With(zap.String("scanner", cfg.Name))}
}

// Run executes the scan loop until ctx is cancelled or end_block is
// reached, whichever comes first (spec.md §4.5). It is the only
// blocking call in this package; callers typically run it in its own
// goroutine (spec.md §5 / §6).
func (s *Scanner) Run(ctx context.Context) error {
	nextFrom := s.cfg.StartFrom
	step := s.cfg.Step

	s.logger.Info("scanner starting",
		zap.Uint64("start_from", nextFrom),
		zap.Uint64("step", step),
	)

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("scanner stopped", zap.Error(err))
			return err
		}

		latest, err := s.client.LatestBlock(ctx)
		if err != nil {
			s.logger.Warn("latest_block failed, backing off", zap.Error(err))
			if !sleep(ctx, s.cfg.ErrorBackoffInterval) {
				return ctx.Err()
			}
			continue
		}

		if latest < constants.ConfirmationDepth {
			// Chain hasn't produced enough blocks yet to clear even one
			// confirmed block; nothing to do this round.
			if !sleep(ctx, s.cfg.TipWaitInterval) {
				return ctx.Err()
			}
			continue
		}

		confirmedTip := latest - constants.ConfirmationDepth
		to := nextFrom + step - 1
		if to > confirmedTip {
			to = confirmedTip
		}

		if s.cfg.EndBlock != nil && to > *s.cfg.EndBlock {
			s.logger.Info("reached end_block, terminating", zap.Uint64("end_block", *s.cfg.EndBlock))
			return nil
		}

		if to < nextFrom {
			// Caught up to the confirmed tip; wait for more blocks.
			if !sleep(ctx, s.cfg.TipWaitInterval) {
				return ctx.Err()
			}
			continue
		}

		logs, err := s.client.GetLogs(ctx, nil, s.cfg.Topics, nextFrom, to)
		if err != nil {
			if errors.Is(err, rpcclient.ErrResultCapExceeded) {
				step = maxUint64(step/2, constants.MinStep)
				s.cfg.Metrics.ObserveCapHalving(s.cfg.Name)
				s.logger.Warn("result cap exceeded, shrinking step",
					zap.Uint64("from", nextFrom), zap.Uint64("to", to), zap.Uint64("new_step", step))
				continue // retry immediately, next_from unchanged
			}
			s.logger.Warn("get_logs failed, backing off",
				zap.Uint64("from", nextFrom), zap.Uint64("to", to), zap.Error(err))
			if !sleep(ctx, s.cfg.ErrorBackoffInterval) {
				return ctx.Err()
			}
			continue
		}

		if err := s.process(ctx, logs); err != nil {
			s.logger.Warn("window processing failed, backing off", zap.Error(err))
			if !sleep(ctx, s.cfg.ErrorBackoffInterval) {
				return ctx.Err()
			}
			continue
		}

		s.cfg.Metrics.ObserveWindow(s.cfg.Name, to-nextFrom+1)
		nextFrom = to + 1
		if !sleep(ctx, s.cfg.WindowThrottleInterval) {
			return ctx.Err()
		}
	}
}

// sleep waits for d or ctx cancellation, reporting which happened.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
