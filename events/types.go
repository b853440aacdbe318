// Package events defines the typed Transfer-event records this tracker
// decodes from raw logs, and the pure decoding functions that produce
// them. Nothing in this package performs I/O.
package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Erc721Event is a single decoded ERC-721 Transfer event.
type Erc721Event struct {
	// BlockNumber is optional in the type; the decoders in this package
	// always set it from the log's block number and never leave it nil.
	BlockNumber *uint64
	Contract    common.Address
	TxHash      *common.Hash
	From        common.Address
	To          common.Address
	TokenID     *big.Int
}

// Erc1155Event is a single decoded ERC-1155 transfer. A TransferBatch
// log expands into N value-equal Erc1155Events sharing everything but
// (TokenID, Amount), emitted in the original array order.
type Erc1155Event struct {
	BlockNumber *uint64
	Contract    common.Address
	TxHash      *common.Hash
	Operator    common.Address
	From        common.Address
	To          common.Address
	TokenID     *big.Int
	Amount      *big.Int
}
