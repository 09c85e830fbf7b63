package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// QueueRepository is the durable outbound queue. Inserts are safe under
// arbitrary concurrency; the page cursor keeps scans correct when rows are
// inserted mid-scan.
type QueueRepository interface {
	// Insert appends rows to the queue, assigning sequence ids.
	Insert(ctx context.Context, msgs []*QueuedMessage) error

	// FetchPage returns up to limit rows with enqueuedAt < cutoff and
	// id > afterID, ordered by ascending id, optionally restricted to kind.
	FetchPage(ctx context.Context, cutoff time.Time, afterID int64, limit int, kind *Kind) ([]*QueuedMessage, error)

	// DeleteBefore bulk-deletes rows with enqueuedAt < cutoff, optionally
	// restricted to kind, and returns the number of rows removed. It is
	// unconditional: callers must only invoke it after a full successful
	// pass over the matching window.
	DeleteBefore(ctx context.Context, cutoff time.Time, kind *Kind) (int64, error)
}

// LedgerRepository records attempted sends. Inserts are append-only and
// duplicates of a message hash are allowed; recipient lookups take the most
// recent row.
type LedgerRepository interface {
	Record(ctx context.Context, rec *DeliveryRecord) error

	// ResolveRecipient returns the recipient of the most recent ledger row
	// for the hash, or ErrNotFound.
	ResolveRecipient(ctx context.Context, messageHash string) (string, error)
}

// SuppressionRepository is the durable opt-out set, keyed by address.
type SuppressionRepository interface {
	Contains(ctx context.Context, address string) (bool, error)

	// Add inserts the address; added is false when it was already present.
	Add(ctx context.Context, address, reasonHash string) (added bool, err error)

	// Remove deletes the address; removed is false when it was not present.
	Remove(ctx context.Context, address string) (removed bool, err error)
}

// AccountResolver batch-loads requester accounts at dequeue time. The
// account system is an external collaborator.
type AccountResolver interface {
	AccountsByID(ctx context.Context, ids []int64) (map[int64]*Account, error)
}

// ObjectResolver batch-loads associated business objects at dequeue time.
type ObjectResolver interface {
	ObjectsByRef(ctx context.Context, refs []string) (map[string]*RelatedObject, error)
}

// IPBanChecker reports whether an origin IP is banned, checked at read time
// so bans applied after enqueue still take effect.
type IPBanChecker interface {
	IsBanned(ctx context.Context, ip string) (bool, error)
}
