// Package logconsumer is a reference dispatcher.Erc721Callback/
// Erc1155Callback implementation that zap-logs every event it
// receives. It supplements the tracker's distilled spec (which treats
// consumers as purely external) the way the original shipped
// println_callbacks alongside the library itself.
package logconsumer

import (
	"context"

	"go.uber.org/zap"

	"github.com/0xmhha/nft-tracker/events"
)

// Consumer logs every event it is handed. The zero value is not
// usable; construct with New.
type Consumer struct {
	logger *zap.Logger
}

// New constructs a Consumer. logger may be nil.
func New(logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{logger: logger}
}

// OnErc721Event logs a decoded ERC-721 Transfer and its resolved
// metadata. name/symbol/tokenURI are nil wherever resolution failed.
func (c *Consumer) OnErc721Event(ctx context.Context, event events.Erc721Event, name, symbol, tokenURI *string) {
	c.logger.Info("erc721 transfer",
		zap.String("contract", event.Contract.Hex()),
		zap.String("from", event.From.Hex()),
		zap.String("to", event.To.Hex()),
		zap.String("token_id", event.TokenID.String()),
		zap.Stringp("name", name),
		zap.Stringp("symbol", symbol),
		zap.Stringp("token_uri", tokenURI),
	)
}

// OnErc1155Event logs a decoded ERC-1155 transfer and its resolved
// token URI.
func (c *Consumer) OnErc1155Event(ctx context.Context, event events.Erc1155Event, tokenURI *string) {
	c.logger.Info("erc1155 transfer",
		zap.String("contract", event.Contract.Hex()),
		zap.String("operator", event.Operator.Hex()),
		zap.String("from", event.From.Hex()),
		zap.String("to", event.To.Hex()),
		zap.String("token_id", event.TokenID.String()),
		zap.String("amount", event.Amount.String()),
		zap.Stringp("token_uri", tokenURI),
	)
}
