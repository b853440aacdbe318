package constants

import "time"

// Confirmation and scan window constants
const (
	// ConfirmationDepth is the number of trailing blocks behind chain head
	// that are considered unstable and deliberately left unread.
	ConfirmationDepth uint64 = 6

	// TipWaitInterval is how long a scanner sleeps when it has caught up
	// to the confirmed tip.
	TipWaitInterval = 30 * time.Second

	// ErrorBackoffInterval is how long a scanner sleeps after any RPC
	// error other than a result-cap rejection.
	ErrorBackoffInterval = 30 * time.Second

	// WindowThrottleInterval is the fixed pause between successfully
	// scanned windows, applied to avoid hammering the provider while
	// catching up to the tip.
	WindowThrottleInterval = 5 * time.Second

	// MinStep is the smallest block-range step a scanner will shrink to.
	MinStep uint64 = 1
)

// Default RPC/config values
const (
	// DefaultRPCTimeout is the default per-request RPC timeout.
	// Deliberately shorter than ErrorBackoffInterval so a stalled
	// request cannot itself starve the backoff cycle.
	DefaultRPCTimeout = 20 * time.Second

	// DefaultRPCRateLimit is the default outbound RPC request rate
	// (requests per second) self-imposed by the client.
	DefaultRPCRateLimit = 20

	// DefaultRPCRateBurst is the default burst size for the outbound
	// RPC rate limiter.
	DefaultRPCRateBurst = 40

	// DefaultHealthHost is the default bind host for the health/metrics server.
	DefaultHealthHost = "localhost"

	// DefaultHealthPort is the default bind port for the health/metrics server.
	DefaultHealthPort = 9090
)

// Result-cap provider quirk signals (spec.md §4.1, §6).
const (
	// ResultCapMessageExact is the literal Infura-style error message for
	// an eth_getLogs call that exceeded the provider's result cap.
	ResultCapMessageExact = "query returned more than 10000 results"

	// ResultCapMessageSubstring is a looser substring match covering other
	// providers' phrasing of the same rejection.
	ResultCapMessageSubstring = "more than"
)
