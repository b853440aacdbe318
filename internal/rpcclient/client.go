// Package rpcclient is a thin typed facade over an Ethereum JSON-RPC
// endpoint, exposing exactly the read-only methods the tracker needs
// (spec.md §4.1): latest_block, get_logs, supports_interface, and the
// handful of ERC-721/ERC-1155 metadata calls. It talks to the node
// through go-ethereum's low-level *rpc.Client rather than ethclient so
// that raw JSON-RPC error text (needed to detect a provider's result-
// cap rejection) is never lost in translation.
package rpcclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds Client construction parameters.
type Config struct {
	Endpoint string
	Timeout  time.Duration

	// RateLimit and RateBurst bound the client's own outbound request
	// rate, independent of the scanner's window-level throttling
	// (spec.md §3 DOMAIN STACK — x/time/rate self-throttle).
	RateLimit float64
	RateBurst int

	Logger *zap.Logger
}

// Client is a shareable, read-only facade. Its only mutable state is
// its rate limiter, which is itself concurrency-safe; it may be used
// from both scanner goroutines at once (spec.md §5).
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rpcclient: endpoint cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := rpc.DialContext(dialCtx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: failed to dial %s: %w", cfg.Endpoint, err)
	}

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 20
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = int(rateLimit) * 2
	}

	logger.Info("rpcclient: connected", zap.String("endpoint", cfg.Endpoint))

	return &Client{
		rpc:     raw,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), burst),
		logger:  logger,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// call applies the self-throttle and a per-request deadline (strictly
// shorter than the scanner's error backoff, per spec.md §5) before
// delegating to the underlying JSON-RPC client.
func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rpc.CallContext(callCtx, result, method, args...)
}

// syncingResult mirrors the subset of eth_syncing's response this
// client inspects.
type syncingResult struct {
	CurrentBlock hexutil.Uint64 `json:"currentBlock"`
}

// LatestBlock returns the chain head, following the node's sync state
// the way spec.md §4.1 requires: if syncing, the sync info's current
// block; otherwise eth_blockNumber.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var syncing syncState
	if err := c.call(ctx, &syncing, "eth_syncing"); err != nil {
		return 0, classifyCallError(err)
	}

	if syncing.isSyncing {
		var info syncingResult
		if err := syncing.unmarshalInto(&info); err != nil {
			return 0, errWrap(ErrRPCProtocol, err)
		}
		return uint64(info.CurrentBlock), nil
	}

	var blockNum hexutil.Uint64
	if err := c.call(ctx, &blockNum, "eth_blockNumber"); err != nil {
		return 0, classifyCallError(err)
	}
	return uint64(blockNum), nil
}

// logFilter is the eth_getLogs parameter object. Topics is placed at
// topic0 per spec.md §6 ("topic array placed in topic0"); Address is
// omitted entirely when no contract restriction applies.
type logFilter struct {
	Address   []common.Address `json:"address,omitempty"`
	Topics    [][]common.Hash  `json:"topics,omitempty"`
	FromBlock string           `json:"fromBlock"`
	ToBlock   string           `json:"toBlock"`
}

// GetLogs fetches logs matching topic0 ∈ topics over the inclusive
// block range [from, to], optionally restricted to one contract
// address. Surfaces ErrResultCapExceeded when the provider rejects the
// range as too large (spec.md §4.1).
func (c *Client) GetLogs(ctx context.Context, address *common.Address, topics []common.Hash, from, to uint64) ([]types.Log, error) {
	filter := logFilter{
		Topics:    [][]common.Hash{topics},
		FromBlock: hexutil.EncodeUint64(from),
		ToBlock:   hexutil.EncodeUint64(to),
	}
	if address != nil {
		filter.Address = []common.Address{*address}
	}

	var logs []types.Log
	if err := c.call(ctx, &logs, "eth_getLogs", filter); err != nil {
		return nil, classifyCallError(err)
	}
	return logs, nil
}

// SupportsInterface calls supportsInterface(bytes4) (ERC-165). Any
// call failure — including a contract with no ERC-165 support at all,
// which simply reverts — maps to (false, nil), per spec.md §4.1.
func (c *Client) SupportsInterface(ctx context.Context, address common.Address, interfaceID string) (bool, error) {
	data, err := encodeSupportsInterface(interfaceID)
	if err != nil {
		return false, err
	}

	result, err := c.ethCall(ctx, address, data)
	if err != nil {
		// Any call failure — a revert, or a contract with no ERC-165
		// support at all — is "interface not supported" (spec.md §4.1).
		return false, nil
	}

	ok, err := decodeABIBool("supportsInterface", result)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// Erc721Name calls name(). Returns nil if the call reverts.
func (c *Client) Erc721Name(ctx context.Context, address common.Address) (*string, error) {
	data, err := encodeName()
	if err != nil {
		return nil, err
	}
	return c.callStringWithData(ctx, address, "name", data)
}

// Erc721Symbol calls symbol(). Returns nil if the call reverts.
func (c *Client) Erc721Symbol(ctx context.Context, address common.Address) (*string, error) {
	data, err := encodeSymbol()
	if err != nil {
		return nil, err
	}
	return c.callStringWithData(ctx, address, "symbol", data)
}

// Erc721TokenURI calls tokenURI(uint256). Returns nil if the call
// reverts or the contract does not implement the metadata extension.
func (c *Client) Erc721TokenURI(ctx context.Context, address common.Address, tokenID *big.Int) (*string, error) {
	data, err := encodeTokenURI(tokenID)
	if err != nil {
		return nil, err
	}
	return c.callStringWithData(ctx, address, "tokenURI", data)
}

// Erc1155URI calls uri(uint256). Returns nil if the call reverts.
func (c *Client) Erc1155URI(ctx context.Context, address common.Address, tokenID *big.Int) (*string, error) {
	data, err := encodeURI(tokenID)
	if err != nil {
		return nil, err
	}
	return c.callStringWithData(ctx, address, "uri", data)
}

func (c *Client) callStringWithData(ctx context.Context, address common.Address, method string, data []byte) (*string, error) {
	result, err := c.ethCall(ctx, address, data)
	if err != nil {
		return nil, nil //nolint:nilerr // revert/any call failure -> absent metadata, not a propagated error
	}
	str, err := decodeABIString(method, result)
	if err != nil {
		return nil, nil //nolint:nilerr // malformed return data from a non-conformant contract -> absent
	}
	return &str, nil
}

// callMsg mirrors the eth_call parameter object.
type callMsg struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

func (c *Client) ethCall(ctx context.Context, address common.Address, data []byte) ([]byte, error) {
	msg := callMsg{To: address, Data: data}
	var result hexutil.Bytes
	if err := c.call(ctx, &result, "eth_call", msg, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}
