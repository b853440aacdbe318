// Package dispatcher resolves collection/token metadata for a decoded
// Transfer event and invokes the consumer's callback with it
// (spec.md §4.6). Metadata-resolution failures and callback failures
// are both logged and swallowed here — neither may interrupt the
// scanner or skip later events in the window.
package dispatcher

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0xmhha/nft-tracker/events"
	"github.com/0xmhha/nft-tracker/internal/metadatastore"
	"github.com/0xmhha/nft-tracker/internal/trackermetrics"
)

// MetadataClient is the subset of *rpcclient.Client the dispatcher
// needs to resolve collection/token metadata.
type MetadataClient interface {
	Erc721Name(ctx context.Context, address common.Address) (*string, error)
	Erc721Symbol(ctx context.Context, address common.Address) (*string, error)
	Erc721TokenURI(ctx context.Context, address common.Address, tokenID *big.Int) (*string, error)
	Erc1155URI(ctx context.Context, address common.Address, tokenID *big.Int) (*string, error)
}

// Prober answers whether an address is a visual standard implementer
// (spec.md §4.3). Dispatch rejects the event outright when this
// returns false, so no log reaches a consumer callback unless it
// passes the visual probe (spec.md §8 invariants 5/6); the check is
// memoized and therefore cheap (internal/prober).
type Prober interface {
	IsVisualErc721(ctx context.Context, address common.Address) bool
	IsVisualErc1155(ctx context.Context, address common.Address) bool
}

// Erc721Callback receives a decoded event and its resolved metadata.
// name/symbol/tokenURI are nil wherever resolution failed.
type Erc721Callback func(ctx context.Context, event events.Erc721Event, name, symbol, tokenURI *string)

// Erc1155Callback is Erc721Callback's ERC-1155 counterpart.
type Erc1155Callback func(ctx context.Context, event events.Erc1155Event, tokenURI *string)

// Erc721Dispatcher wires one ERC-721 scanner's decoded events to a
// consumer callback.
type Erc721Dispatcher struct {
	client   MetadataClient
	prober   Prober
	store    *metadatastore.Store
	callback Erc721Callback
	logger   *zap.Logger

	// Metrics is optional and may be set directly after construction; a
	// nil Metrics disables instrumentation.
	Metrics *trackermetrics.Metrics
}

// NewErc721Dispatcher constructs an Erc721Dispatcher. logger may be nil.
func NewErc721Dispatcher(client MetadataClient, prober Prober, store *metadatastore.Store, callback Erc721Callback, logger *zap.Logger) *Erc721Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Erc721Dispatcher{client: client, prober: prober, store: store, callback: callback, logger: logger}
}

// Dispatch resolves metadata for event and invokes the callback. It
// never returns an error: failures are logged and this event is
// skipped, per spec.md §4.6's failure semantics.
func (d *Erc721Dispatcher) Dispatch(ctx context.Context, event events.Erc721Event) {
	defer d.Metrics.ObserveDispatch("erc721", time.Now())

	if !d.prober.IsVisualErc721(ctx, event.Contract) {
		return
	}

	name, symbol, err := d.resolveCollection(ctx, event.Contract)
	if err != nil {
		d.logger.Warn("erc721 collection metadata resolution failed, skipping event",
			zap.String("contract", event.Contract.Hex()), zap.Error(err))
		return
	}

	tokenURI, err := d.resolveTokenURI(ctx, event.Contract, event.TokenID)
	if err != nil {
		d.logger.Warn("erc721 token metadata resolution failed, skipping event",
			zap.String("contract", event.Contract.Hex()), zap.String("token_id", event.TokenID.String()), zap.Error(err))
		return
	}

	d.invokeCallback(ctx, event, name, symbol, tokenURI)
}

func (d *Erc721Dispatcher) resolveCollection(ctx context.Context, address common.Address) (name, symbol *string, err error) {
	if _, peekErr := d.store.GetCollection(address); peekErr == nil {
		d.Metrics.ObserveCacheHit("collections")
	} else if errors.Is(peekErr, metadatastore.ErrNotFound) {
		d.Metrics.ObserveCacheMiss("collections")
	}

	col, err := d.store.EnsureCollection(address, func() (*metadatastore.Collection, error) {
		n, nameErr := d.client.Erc721Name(ctx, address)
		s, symbolErr := d.client.Erc721Symbol(ctx, address)
		if nameErr != nil || symbolErr != nil {
			// "the pair query fails" (spec.md §4.6): store both as absent.
			return &metadatastore.Collection{}, nil
		}
		return &metadatastore.Collection{Name: n, Symbol: s}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return col.Name, col.Symbol, nil
}

func (d *Erc721Dispatcher) resolveTokenURI(ctx context.Context, address common.Address, tokenID *big.Int) (*string, error) {
	if _, peekErr := d.store.GetToken(address, tokenID.String()); peekErr == nil {
		d.Metrics.ObserveCacheHit("tokens")
	} else if errors.Is(peekErr, metadatastore.ErrNotFound) {
		d.Metrics.ObserveCacheMiss("tokens")
	}

	tok, err := d.store.EnsureToken(address, tokenID.String(), func() (*metadatastore.Token, error) {
		uri, uriErr := d.client.Erc721TokenURI(ctx, address, tokenID)
		if uriErr != nil {
			return &metadatastore.Token{}, nil
		}
		return &metadatastore.Token{TokenURI: uri}, nil
	})
	if err != nil {
		return nil, err
	}
	return tok.TokenURI, nil
}

func (d *Erc721Dispatcher) invokeCallback(ctx context.Context, event events.Erc721Event, name, symbol, tokenURI *string) {
	defer func() {
		if r := recover(); r != nil {
			d.Metrics.ObserveConsumerError("erc721")
			d.logger.Error("erc721 consumer callback panicked", zap.Any("recover", r))
		}
	}()
	d.callback(ctx, event, name, symbol, tokenURI)
}

// Erc1155Dispatcher is Erc721Dispatcher's ERC-1155 counterpart: no
// collection-level name/symbol, only a token-level uri().
type Erc1155Dispatcher struct {
	client   MetadataClient
	prober   Prober
	store    *metadatastore.Store
	callback Erc1155Callback
	logger   *zap.Logger

	// Metrics is optional and may be set directly after construction; a
	// nil Metrics disables instrumentation.
	Metrics *trackermetrics.Metrics
}

// NewErc1155Dispatcher constructs an Erc1155Dispatcher. logger may be nil.
func NewErc1155Dispatcher(client MetadataClient, prober Prober, store *metadatastore.Store, callback Erc1155Callback, logger *zap.Logger) *Erc1155Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Erc1155Dispatcher{client: client, prober: prober, store: store, callback: callback, logger: logger}
}

// Dispatch resolves metadata for event and invokes the callback,
// mirroring Erc721Dispatcher.Dispatch.
func (d *Erc1155Dispatcher) Dispatch(ctx context.Context, event events.Erc1155Event) {
	defer d.Metrics.ObserveDispatch("erc1155", time.Now())

	if !d.prober.IsVisualErc1155(ctx, event.Contract) {
		return
	}

	if _, err := d.store.EnsureCollection(event.Contract, func() (*metadatastore.Collection, error) {
		return &metadatastore.Collection{}, nil
	}); err != nil {
		d.logger.Warn("erc1155 collection row resolution failed, skipping event",
			zap.String("contract", event.Contract.Hex()), zap.Error(err))
		return
	}

	if _, peekErr := d.store.GetToken(event.Contract, event.TokenID.String()); peekErr == nil {
		d.Metrics.ObserveCacheHit("tokens")
	} else if errors.Is(peekErr, metadatastore.ErrNotFound) {
		d.Metrics.ObserveCacheMiss("tokens")
	}

	tok, err := d.store.EnsureToken(event.Contract, event.TokenID.String(), func() (*metadatastore.Token, error) {
		uri, uriErr := d.client.Erc1155URI(ctx, event.Contract, event.TokenID)
		if uriErr != nil {
			return &metadatastore.Token{}, nil
		}
		return &metadatastore.Token{TokenURI: uri}, nil
	})
	if err != nil {
		d.logger.Warn("erc1155 token metadata resolution failed, skipping event",
			zap.String("contract", event.Contract.Hex()), zap.String("token_id", event.TokenID.String()), zap.Error(err))
		return
	}

	d.invokeCallback(ctx, event, tok.TokenURI)
}

func (d *Erc1155Dispatcher) invokeCallback(ctx context.Context, event events.Erc1155Event, tokenURI *string) {
	defer func() {
		if r := recover(); r != nil {
			d.Metrics.ObserveConsumerError("erc1155")
			d.logger.Error("erc1155 consumer callback panicked", zap.Any("recover", r))
		}
	}()
	d.callback(ctx, event, tokenURI)
}
