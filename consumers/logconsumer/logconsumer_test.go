package logconsumer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0xmhha/nft-tracker/events"
)

func TestOnErc721EventDoesNotPanicWithNilMetadata(t *testing.T) {
	c := New(zap.NewNop())

	event := events.Erc721Event{
		Contract: common.HexToAddress("0x1"),
		From:     common.HexToAddress("0x2"),
		To:       common.HexToAddress("0x3"),
		TokenID:  big.NewInt(42),
	}

	c.OnErc721Event(context.Background(), event, nil, nil, nil)
}

func TestOnErc721EventDoesNotPanicWithMetadata(t *testing.T) {
	c := New(zap.NewNop())
	name, symbol, uri := "Bored Apes", "BAYC", "ipfs://x"

	event := events.Erc721Event{
		Contract: common.HexToAddress("0x1"),
		From:     common.HexToAddress("0x2"),
		To:       common.HexToAddress("0x3"),
		TokenID:  big.NewInt(42),
	}

	c.OnErc721Event(context.Background(), event, &name, &symbol, &uri)
}

func TestOnErc1155EventDoesNotPanic(t *testing.T) {
	c := New(nil)

	event := events.Erc1155Event{
		Contract: common.HexToAddress("0x1"),
		Operator: common.HexToAddress("0x2"),
		From:     common.HexToAddress("0x3"),
		To:       common.HexToAddress("0x4"),
		TokenID:  big.NewInt(7),
		Amount:   big.NewInt(3),
	}

	c.OnErc1155Event(context.Background(), event, nil)
}
