// Package xerrors holds the error-kind taxonomy of spec.md §7, each kind
// mapped to the explicit program action its callers must take. Sentinels
// are wrapped with github.com/pkg/errors at the point of origin so the
// stack trace survives while errors.Cause() still recovers the sentinel.
package xerrors

import "github.com/pkg/errors"

// Sentinels, one per spec.md §7 error kind.
var (
	// ErrSerialization: wire parse failure. Action: drop the offending
	// packet/block/transaction, close the connection, blacklist the peer
	// id for 60s.
	ErrSerialization = errors.New("serialization error")

	// ErrBadSignature: a transaction or block signature does not verify.
	// Action: drop the tx id from the mempool, or reject the block
	// without banning (the signature may have been clobbered on the wire).
	ErrBadSignature = errors.New("signature error")

	// ErrValidation: a transaction failed validate() against the store.
	// Action: drop from mempool; a block containing it is rejected AND
	// banned.
	ErrValidation = errors.New("validation error")

	// ErrOutdated: the caller's view of the chain is behind. Action: the
	// mempool replies OUTDATED; the control loop widens its pending
	// execution horizon.
	ErrOutdated = errors.New("outdated")

	// ErrReachedPendingLimit: mempool capacity reached. Action: reply
	// REACHED_PENDING_LIMIT; caller may retry later.
	ErrReachedPendingLimit = errors.New("reached pending limit")

	// ErrDuplicated: already pending/executed/confirmed. Action: reported
	// to the caller, not fatal.
	ErrDuplicated = errors.New("duplicated")

	// ErrTimeout: a post or session step did not complete in time. Action:
	// close the connection; callers observe TIMEOUT.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidBlock: structural/consensus validation failure on a block.
	// Action: reject and ban the header.
	ErrInvalidBlock = errors.New("invalid block")

	// ErrStoreRollback: the persistent store failed to roll back. Action:
	// fatal -- the store and the tree have diverged, the process must
	// terminate (see internal/log.Logger.Crit).
	ErrStoreRollback = errors.New("store rollback failure")

	// ErrInvariant: a self-consistency assertion failed. Action: fatal,
	// this is a programmer bug, not a peer input.
	ErrInvariant = errors.New("invariant violation")
)

// Wrap annotates err with a message while preserving the sentinel so that
// errors.Is / errors.Cause still resolve to it.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Is reports whether err (or any error it wraps) is the given sentinel.
func Is(err, sentinel error) bool {
	return errors.Cause(err) == sentinel || err == sentinel
}
