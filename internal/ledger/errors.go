package ledger

import (
	"errors"
	"strings"
)

// codeThrottled is the provider error code for "too many in-flight
// transactions"/rate-limit replies (Infura, Alchemy and geth all use
// -32005 for this class).
const codeThrottled = -32005

var (
	// ErrContractNotLoaded means no registry contract address could be
	// resolved for this network. Writes and existence checks are
	// unavailable; the condition is configuration, not connectivity.
	ErrContractNotLoaded = errors.New("registry contract not loaded for this network")

	// ErrSignerNotConfigured means the client has no signer account and
	// can only perform read operations.
	ErrSignerNotConfigured = errors.New("signer not configured; client is read-only")

	// ErrInsufficientFunds means the signer account cannot cover the
	// transaction cost. Surfaced distinctly so callers can present an
	// actionable message.
	ErrInsufficientFunds = errors.New("signer account has insufficient funds")

	// errNullResult is returned by the rpc layer for a null JSON-RPC
	// result, e.g. a receipt that does not exist yet.
	errNullResult = errors.New("null rpc result")
)

// IsUnavailable reports whether err marks the client unusable for writes
// on this network (503-class), as opposed to a transient network failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrContractNotLoaded) || errors.Is(err, ErrSignerNotConfigured)
}

// isThrottled classifies provider throttling replies: the dedicated error
// code, HTTP 429 (mapped to that code by the rpc layer), or the usual
// message shapes.
func isThrottled(err error) bool {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == codeThrottled {
			return true
		}
		msg := strings.ToLower(rpcErr.Message)
		return strings.Contains(msg, "too many") ||
			strings.Contains(msg, "throttl") ||
			strings.Contains(msg, "rate limit")
	}
	return false
}

func isInsufficientFunds(err error) bool {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		return strings.Contains(strings.ToLower(rpcErr.Message), "insufficient funds")
	}
	return false
}
