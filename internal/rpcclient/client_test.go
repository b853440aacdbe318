package rpcclient

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonrpcRequest/jsonrpcResponse model the wire format just enough to
// let tests script canned per-method responses.
type jsonrpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// fakeNode is a minimal JSON-RPC server used to exercise the client
// without a live Ethereum node, handing out scripted responses keyed
// by method name.
type fakeNode struct {
	handlers map[string]func(req jsonrpcRequest) (interface{}, *jsonrpcError)
}

func newFakeNode() *fakeNode {
	return &fakeNode{handlers: make(map[string]func(jsonrpcRequest) (interface{}, *jsonrpcError))}
}

func (f *fakeNode) on(method string, fn func(jsonrpcRequest) (interface{}, *jsonrpcError)) {
	f.handlers[method] = fn
}

func (f *fakeNode) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := jsonrpcResponse{JSONRPC: "2.0", ID: req.ID}
		handler, ok := f.handlers[req.Method]
		if !ok {
			resp.Error = &jsonrpcError{Code: -32601, Message: "method not found: " + req.Method}
		} else {
			result, rpcErr := handler(req)
			if rpcErr != nil {
				resp.Error = rpcErr
			} else {
				resp.Result = result
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func dialFake(t *testing.T, node *fakeNode) (*Client, func()) {
	t.Helper()
	srv := node.server()
	client, err := Dial(context.Background(), Config{Endpoint: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return client, func() {
		client.Close()
		srv.Close()
	}
}

func TestDialRejectsEmptyEndpoint(t *testing.T) {
	_, err := Dial(context.Background(), Config{})
	assert.Error(t, err)
}

func TestLatestBlockNotSyncing(t *testing.T) {
	node := newFakeNode()
	node.on("eth_syncing", func(jsonrpcRequest) (interface{}, *jsonrpcError) { return false, nil })
	node.on("eth_blockNumber", func(jsonrpcRequest) (interface{}, *jsonrpcError) { return "0x64", nil })

	client, cleanup := dialFake(t, node)
	defer cleanup()

	got, err := client.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got)
}

func TestLatestBlockWhileSyncing(t *testing.T) {
	node := newFakeNode()
	node.on("eth_syncing", func(jsonrpcRequest) (interface{}, *jsonrpcError) {
		return map[string]interface{}{
			"startingBlock": "0x0",
			"currentBlock":  "0x32",
			"highestBlock":  "0xc8",
		}, nil
	})

	client, cleanup := dialFake(t, node)
	defer cleanup()

	got, err := client.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(50), got)
}

func TestGetLogsResultCapExceeded(t *testing.T) {
	node := newFakeNode()
	node.on("eth_getLogs", func(jsonrpcRequest) (interface{}, *jsonrpcError) {
		return nil, &jsonrpcError{Code: -32005, Message: "query returned more than 10000 results"}
	})

	client, cleanup := dialFake(t, node)
	defer cleanup()

	_, err := client.GetLogs(context.Background(), nil, []common.Hash{{}}, 0, 100000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResultCapExceeded)
}

func TestGetLogsOtherProviderCapPhrasing(t *testing.T) {
	node := newFakeNode()
	node.on("eth_getLogs", func(jsonrpcRequest) (interface{}, *jsonrpcError) {
		return nil, &jsonrpcError{Code: -32000, Message: "block range is too wide, returned more than the maximum allowed"}
	})

	client, cleanup := dialFake(t, node)
	defer cleanup()

	_, err := client.GetLogs(context.Background(), nil, []common.Hash{{}}, 0, 100000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResultCapExceeded)
}

func TestGetLogsTransportError(t *testing.T) {
	node := newFakeNode()
	node.on("eth_getLogs", func(jsonrpcRequest) (interface{}, *jsonrpcError) {
		return nil, &jsonrpcError{Code: -32000, Message: "connection reset by peer"}
	})

	client, cleanup := dialFake(t, node)
	defer cleanup()

	_, err := client.GetLogs(context.Background(), nil, []common.Hash{{}}, 0, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRPCTransport)
	assert.NotErrorIs(t, err, ErrResultCapExceeded)
}

func encodeBool(v bool) string {
	word := make([]byte, 32)
	if v {
		word[31] = 1
	}
	return "0x" + common.Bytes2Hex(word)
}

func TestSupportsInterfaceTrue(t *testing.T) {
	node := newFakeNode()
	node.on("eth_call", func(jsonrpcRequest) (interface{}, *jsonrpcError) { return encodeBool(true), nil })

	client, cleanup := dialFake(t, node)
	defer cleanup()

	ok, err := client.SupportsInterface(context.Background(), common.HexToAddress("0x1"), "0x80ac58cd")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSupportsInterfaceRevertMapsToFalse(t *testing.T) {
	node := newFakeNode()
	node.on("eth_call", func(jsonrpcRequest) (interface{}, *jsonrpcError) {
		return nil, &jsonrpcError{Code: 3, Message: "execution reverted"}
	})

	client, cleanup := dialFake(t, node)
	defer cleanup()

	ok, err := client.SupportsInterface(context.Background(), common.HexToAddress("0x1"), "0x80ac58cd")
	require.NoError(t, err)
	assert.False(t, ok)
}

func encodeABIString(s string) string {
	var data []byte
	offset := make([]byte, 32)
	offset[31] = 0x20
	data = append(data, offset...)

	length := make([]byte, 32)
	new(big.Int).SetInt64(int64(len(s))).FillBytes(length)
	data = append(data, length...)

	padded := make([]byte, (len(s)+31)/32*32)
	copy(padded, s)
	data = append(data, padded...)

	return "0x" + common.Bytes2Hex(data)
}

func TestErc721NameAndSymbol(t *testing.T) {
	node := newFakeNode()
	node.on("eth_call", func(req jsonrpcRequest) (interface{}, *jsonrpcError) {
		var msg callMsg
		require.NoError(t, json.Unmarshal(req.Params[0], &msg))
		if string(msg.Data[:4]) == string(metadataABI.Methods["name"].ID) {
			return encodeABIString("CryptoPunks"), nil
		}
		return encodeABIString("PUNK"), nil
	})

	client, cleanup := dialFake(t, node)
	defer cleanup()

	name, err := client.Erc721Name(context.Background(), common.HexToAddress("0x1"))
	require.NoError(t, err)
	require.NotNil(t, name)
	assert.Equal(t, "CryptoPunks", *name)

	symbol, err := client.Erc721Symbol(context.Background(), common.HexToAddress("0x1"))
	require.NoError(t, err)
	require.NotNil(t, symbol)
	assert.Equal(t, "PUNK", *symbol)
}

func TestErc721TokenURIRevertReturnsNil(t *testing.T) {
	node := newFakeNode()
	node.on("eth_call", func(jsonrpcRequest) (interface{}, *jsonrpcError) {
		return nil, &jsonrpcError{Code: 3, Message: "execution reverted"}
	})

	client, cleanup := dialFake(t, node)
	defer cleanup()

	uri, err := client.Erc721TokenURI(context.Background(), common.HexToAddress("0x1"), big.NewInt(1))
	require.NoError(t, err)
	assert.Nil(t, uri)
}

func TestErc1155URI(t *testing.T) {
	node := newFakeNode()
	node.on("eth_call", func(jsonrpcRequest) (interface{}, *jsonrpcError) {
		return encodeABIString("ipfs://bafybeigd/1.json"), nil
	})

	client, cleanup := dialFake(t, node)
	defer cleanup()

	uri, err := client.Erc1155URI(context.Background(), common.HexToAddress("0x1"), big.NewInt(1))
	require.NoError(t, err)
	require.NotNil(t, uri)
	assert.Equal(t, "ipfs://bafybeigd/1.json", *uri)
}
