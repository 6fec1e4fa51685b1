package engine

import "context"

// Store persists pending requests, completed records, and wheel prize
// pools. Implementations must make ClaimPending atomic: a nonce is handed
// out at most once no matter how many fulfillments and refunds race for it.
type Store interface {
	// InsertPending adds a new outstanding request.
	InsertPending(ctx context.Context, req *PendingRequest) error

	// GetPending returns a pending request without consuming it, or
	// ErrRequestNotFound.
	GetPending(ctx context.Context, nonce string) (*PendingRequest, error)

	// ClaimPending atomically removes and returns the pending entry for
	// nonce. ok is false when the entry is absent, i.e. the nonce was
	// already settled, already refunded, or never existed.
	ClaimPending(ctx context.Context, nonce string) (req *PendingRequest, ok bool, err error)

	// ActorNonces returns the nonces of an actor's outstanding requests,
	// oldest first.
	ActorNonces(ctx context.Context, actor string) ([]string, error)

	// Actors returns every actor with at least one outstanding request.
	Actors(ctx context.Context) ([]string, error)

	// PendingCount returns the number of outstanding requests.
	PendingCount(ctx context.Context) (int, error)

	// InsertCompleted appends an immutable settlement record.
	InsertCompleted(ctx context.Context, rec *CompletedRecord) error

	// GetCompleted returns the settlement record for a nonce, or
	// ErrRequestNotFound.
	GetCompleted(ctx context.Context, nonce string) (*CompletedRecord, error)

	// ListCompleted returns recent settlement records, newest first,
	// optionally filtered by game ("" matches all).
	ListCompleted(ctx context.Context, game Game, limit int) ([]*CompletedRecord, error)

	// SaveWheel replaces the prize pool of a wheel.
	SaveWheel(ctx context.Context, wheelID string, prizes []*Prize) error

	// WheelPrizes returns the current prize pool of a wheel.
	WheelPrizes(ctx context.Context, wheelID string) ([]*Prize, error)
}
