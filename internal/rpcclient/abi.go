package rpcclient

import (
	"fmt"
	"math/big"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// metadataABIJSON declares the handful of read-only ERC-165/ERC-721/
// ERC-1155 methods this tracker calls (spec.md §6 "Contract ABIs
// required"), parsed once into a go-ethereum abi.ABI the same way
// abi.Decoder.LoadABI parses a contract's JSON ABI via abi.JSON.
const metadataABIJSON = `[
	{"type":"function","name":"supportsInterface","stateMutability":"view","inputs":[{"name":"interfaceId","type":"bytes4"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"uri","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"string"}]}
]`

var metadataABI = mustParseABI(metadataABIJSON)

func mustParseABI(raw string) ethabi.ABI {
	parsed, err := ethabi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("rpcclient: invalid metadata ABI fragment: %v", err))
	}
	return parsed
}

// encodeSupportsInterface ABI-encodes supportsInterface(bytes4 id).
func encodeSupportsInterface(interfaceID string) ([]byte, error) {
	idBytes, err := hexutil.Decode(interfaceID)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: invalid interface id %q: %w", interfaceID, err)
	}
	if len(idBytes) != 4 {
		return nil, fmt.Errorf("rpcclient: interface id %q must be 4 bytes, got %d", interfaceID, len(idBytes))
	}
	var id4 [4]byte
	copy(id4[:], idBytes)

	data, err := metadataABI.Pack("supportsInterface", id4)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: failed to pack supportsInterface call: %w", err)
	}
	return data, nil
}

func encodeName() ([]byte, error) {
	return metadataABI.Pack("name")
}

func encodeSymbol() ([]byte, error) {
	return metadataABI.Pack("symbol")
}

func encodeTokenURI(tokenID *big.Int) ([]byte, error) {
	return metadataABI.Pack("tokenURI", tokenID)
}

func encodeURI(tokenID *big.Int) ([]byte, error) {
	return metadataABI.Pack("uri", tokenID)
}

// decodeABIBool unpacks a single bool return value for method.
func decodeABIBool(method string, data []byte) (bool, error) {
	out, err := metadataABI.Unpack(method, data)
	if err != nil {
		return false, fmt.Errorf("rpcclient: failed to unpack %s() bool return: %w", method, err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("rpcclient: %s() returned %d values, want 1", method, len(out))
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("rpcclient: %s() return value is %T, want bool", method, out[0])
	}
	return v, nil
}

// decodeABIString unpacks a single dynamic string return value for method.
func decodeABIString(method string, data []byte) (string, error) {
	out, err := metadataABI.Unpack(method, data)
	if err != nil {
		return "", fmt.Errorf("rpcclient: failed to unpack %s() string return: %w", method, err)
	}
	if len(out) != 1 {
		return "", fmt.Errorf("rpcclient: %s() returned %d values, want 1", method, len(out))
	}
	v, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("rpcclient: %s() return value is %T, want string", method, out[0])
	}
	return v, nil
}
