package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Transfer topic0 constants (spec.md §4.2). These are keccak-256 hashes
// of the event signatures and never change.
var (
	TopicErc721Transfer        = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	TopicErc1155TransferSingle = common.HexToHash("0xc3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62")
	TopicErc1155TransferBatch  = common.HexToHash("0x4a39dc06d4c0dbc64b70af90fd698a233a518aa5d07e595d983b8c0526c8f7fb")

	// Topics is the topic0 set a single get_logs call filters by; the
	// decoder dispatches on which of these matched.
	Topics = []common.Hash{TopicErc721Transfer, TopicErc1155TransferSingle, TopicErc1155TransferBatch}
)

func blockNumberPtr(log *types.Log) *uint64 {
	if log == nil {
		return nil
	}
	n := log.BlockNumber
	return &n
}

func txHashPtr(log *types.Log) *common.Hash {
	if log == nil || log.TxHash == (common.Hash{}) {
		return nil
	}
	h := log.TxHash
	return &h
}

// DecodeErc721Transfer converts a 4-topic ERC-721 Transfer log into an
// Erc721Event. The caller is responsible for the acceptance rule
// (spec.md §4.2): only call this once `len(log.Topics) == 4` has been
// verified, since a 3-topic ERC-20 Transfer shares the same topic0 and
// must be rejected before reaching here.
func DecodeErc721Transfer(log *types.Log) Erc721Event {
	return Erc721Event{
		BlockNumber: blockNumberPtr(log),
		Contract:    log.Address,
		TxHash:      txHashPtr(log),
		From:        common.BytesToAddress(log.Topics[1].Bytes()),
		To:          common.BytesToAddress(log.Topics[2].Bytes()),
		TokenID:     new(big.Int).SetBytes(log.Topics[3].Bytes()),
	}
}

// DecodeErc1155TransferSingle converts a TransferSingle log into a
// single Erc1155Event. Data layout is two 32-byte words: id, value.
func DecodeErc1155TransferSingle(log *types.Log) Erc1155Event {
	return Erc1155Event{
		BlockNumber: blockNumberPtr(log),
		Contract:    log.Address,
		TxHash:      txHashPtr(log),
		Operator:    common.BytesToAddress(log.Topics[1].Bytes()),
		From:        common.BytesToAddress(log.Topics[2].Bytes()),
		To:          common.BytesToAddress(log.Topics[3].Bytes()),
		TokenID:     new(big.Int).SetBytes(log.Data[0:32]),
		Amount:      new(big.Int).SetBytes(log.Data[32:64]),
	}
}

// DecodeErc1155TransferBatch expands a TransferBatch log into one
// Erc1155Event per (id, value) pair, in the original array order.
//
// Data layout (32-byte words): two ABI head offsets, then
// [len(ids), ids..., len(values), values...]. The original Rust source
// this spec was distilled from dropped the leading length word of each
// half *and* kept it in the slice bounds, off-by-one: for n ids it
// emitted only n-1 events. This implementation applies the corrected
// reading (spec.md §9): all n pairs are emitted.
func DecodeErc1155TransferBatch(log *types.Log) []Erc1155Event {
	data := log.Data
	if len(data)%32 != 0 {
		return nil
	}
	wordCount := len(data) / 32
	if wordCount < 2 {
		return nil
	}

	// Skip the two head offset words.
	tail := wordCount - 2
	if tail < 2 || tail%2 != 0 {
		return nil
	}

	words := make([][]byte, tail)
	for i := 0; i < tail; i++ {
		start := (2 + i) * 32
		words[i] = data[start : start+32]
	}

	half := tail / 2
	idWords := words[:half]
	valueWords := words[half:]

	// Each half is [length, item...]; drop the leading length word.
	ids := idWords[1:]
	values := valueWords[1:]
	if len(ids) != len(values) {
		return nil
	}

	blockNumber := blockNumberPtr(log)
	txHash := txHashPtr(log)
	operator := common.BytesToAddress(log.Topics[1].Bytes())
	from := common.BytesToAddress(log.Topics[2].Bytes())
	to := common.BytesToAddress(log.Topics[3].Bytes())

	out := make([]Erc1155Event, len(ids))
	for i := range ids {
		out[i] = Erc1155Event{
			BlockNumber: blockNumber,
			Contract:    log.Address,
			TxHash:      txHash,
			Operator:    operator,
			From:        from,
			To:          to,
			TokenID:     new(big.Int).SetBytes(ids[i]),
			Amount:      new(big.Int).SetBytes(values[i]),
		}
	}
	return out
}

// IsErc721TransferShape reports whether a log has the 4-topic form
// required of an ERC-721 Transfer (rejecting 3-topic ERC-20 Transfers
// that share the same topic0), per spec.md invariant 5.
func IsErc721TransferShape(log *types.Log) bool {
	return log != nil && len(log.Topics) == 4 && log.Topics[0] == TopicErc721Transfer
}
