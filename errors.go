package cortex

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// contentHash returns the sha256 hex digest of content, used as the
// duplicate-detection key on Engram.Hash. No third-party hashing library
// appears anywhere in the retrieved example pack (see DESIGN.md) — this is
// a cryptographic primitive the standard library already provides without
// a meaningful ecosystem alternative, so it stays on crypto/sha256.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Kind classifies an error per the taxonomy in spec §7. Every collaborator
// call returns a result classified into one of these, rather than relying
// on exception-style control flow (Design Notes §9).
type Kind int

const (
	// KindTransientExternal covers LLM timeouts, vector-index failures,
	// network hiccups. Retried once at the call site; beyond that the
	// pipeline substitutes a forced-honest fallback.
	KindTransientExternal Kind = iota
	// KindInvalidInput covers empty queries, over-length content,
	// malformed metadata. Rejected at the gate with needs_clarification.
	KindInvalidInput
	// KindSaturation covers queue/cache overflow. Handled by pruning or
	// FIFO eviction — never propagated to the caller.
	KindSaturation
	// KindInconsistency covers failed proofs, dropped consistency scores,
	// conflicting verification history. Recorded as an impasse.
	KindInconsistency
	// KindFatal covers a circuit-breaker trip. Halts the AwakeEngine;
	// Heartbeat keeps ticking snapshots for diagnosis.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransientExternal:
		return "transient_external"
	case KindInvalidInput:
		return "invalid_input"
	case KindSaturation:
		return "saturation"
	case KindInconsistency:
		return "inconsistency"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps a classified failure with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cortex: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("cortex: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// newErr builds a classified Error.
func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err (or anything it wraps) is a cortex.Error of
// the given Kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// Sentinel errors for common boundary conditions, matching the market's
// "soft failure" contract in §4.4: a bid simply doesn't win.
var (
	ErrInvalidBid        = errors.New("cortex: invalid bid")
	ErrInsufficientFunds = errors.New("cortex: insufficient funds")
	ErrResourceExhausted = errors.New("cortex: resource exhausted")
)
