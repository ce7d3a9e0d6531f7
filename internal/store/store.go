package store

import (
	"context"

	"github.com/turbochat/relay/internal/contract"
)

// Store is the relay's durable-storage port. Both SQLiteStore and
// PostgresStore implement it; sessions and the HTTP handlers only ever see
// this interface. Implementations must be safe for concurrent use.
type Store interface {
	Close()
	Ping(ctx context.Context) error

	// PersistMessage records one envelope. Re-persisting the same
	// (shop_id, guest_id, message_id) is an idempotent overwrite, which makes
	// message_id the dedup key within a guest's thread.
	PersistMessage(ctx context.Context, e *contract.Envelope) error

	// UpsertGuest records or refreshes a participant; last_seen is advanced
	// on every call, created_at only set the first time.
	UpsertGuest(ctx context.Context, shopID string, guestID uint64, name string) error

	ListGuests(ctx context.Context, shopID string) ([]contract.Guest, error)

	// FetchMessages returns the page of a guest's thread with message_id
	// strictly greater than afterMessageID, ascending, at most limit rows.
	FetchMessages(ctx context.Context, shopID string, guestID, afterMessageID uint64, limit int) ([]contract.Envelope, error)

	// VerifyAdmin checks the shop's admin PIN and returns the shop's display
	// name on success. A wrong PIN or missing shop is (_, false, nil).
	VerifyAdmin(ctx context.Context, shopID, pin string) (shopName string, ok bool, err error)
}
