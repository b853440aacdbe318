package metadatastore

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// storedCollection/storedToken are the on-disk JSON shapes, matching
// the teacher's storage/pebble_token_metadata.go pattern of a
// JSON-serializable mirror type kept distinct from the public struct
// (the public struct carries the address/token ID that's already
// encoded in the key, so it isn't re-serialized into the value).
type storedCollection struct {
	Name   *string `json:"name,omitempty"`
	Symbol *string `json:"symbol,omitempty"`
}

func (s storedCollection) toCollection(address common.Address) *Collection {
	return &Collection{Address: address, Name: s.Name, Symbol: s.Symbol}
}

type storedToken struct {
	TokenURI *string `json:"token_uri,omitempty"`
}

func (s storedToken) toToken(address common.Address, tokenID string) *Token {
	return &Token{Address: address, TokenID: tokenID, TokenURI: s.TokenURI}
}

func encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
