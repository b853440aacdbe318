package rpcclient

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/0xmhha/nft-tracker/internal/constants"
)

// Error kinds (spec.md §7). These are sentinel values wrapped via
// fmt.Errorf("...: %w", ErrX) rather than distinct concrete types, so
// callers use errors.Is.
var (
	// ErrRPCTransport covers network/timeout/TLS/DNS failures. Retryable
	// after backoff.
	ErrRPCTransport = errors.New("rpc transport error")

	// ErrRPCProtocol covers malformed JSON-RPC responses. Retryable
	// after backoff.
	ErrRPCProtocol = errors.New("rpc protocol error")

	// ErrResultCapExceeded signals a provider-imposed eth_getLogs result
	// cap rejection (spec.md §4.1, §6). Not retryable as-is; the scanner
	// reacts by halving its step.
	ErrResultCapExceeded = errors.New("result cap exceeded")

	// ErrContractReverted signals an eth_call revert, interpreted as
	// "feature unsupported" wherever the caller can treat absence as
	// negative evidence.
	ErrContractReverted = errors.New("contract call reverted")
)

// isResultCapError reports whether a raw JSON-RPC error message
// matches one of the provider "too many results" signals spec.md §6
// requires recognizing.
func isResultCapError(msg string) bool {
	if msg == constants.ResultCapMessageExact {
		return true
	}
	return strings.Contains(msg, constants.ResultCapMessageSubstring)
}

// isRevertError reports whether a raw eth_call error message indicates
// a contract revert rather than a transport/protocol failure.
func isRevertError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "execution reverted") || strings.Contains(lower, "revert")
}

// classifyCallError wraps a raw eth_getLogs/eth_call error into one of
// the taxonomy kinds above.
func classifyCallError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case isResultCapError(msg):
		return errWrap(ErrResultCapExceeded, err)
	case isRevertError(msg):
		return errWrap(ErrContractReverted, err)
	case isProtocolError(err):
		return errWrap(ErrRPCProtocol, err)
	default:
		return errWrap(ErrRPCTransport, err)
	}
}

// isProtocolError reports whether err looks like a malformed or
// unparseable JSON-RPC response rather than a connectivity failure.
func isProtocolError(err error) bool {
	var syntaxErr *json.SyntaxError
	var unmarshalErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &unmarshalErr)
}

func errWrap(kind, cause error) error {
	return &wrappedError{kind: kind, cause: cause}
}

type wrappedError struct {
	kind  error
	cause error
}

func (w *wrappedError) Error() string { return w.kind.Error() + ": " + w.cause.Error() }
func (w *wrappedError) Unwrap() error { return w.kind }
func (w *wrappedError) Cause() error  { return w.cause }
