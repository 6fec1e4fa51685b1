package engine

import (
	"context"
	"strings"
)

// Pending returns an outstanding request by nonce without consuming it.
func (e *Engine) Pending(ctx context.Context, nonce string) (*PendingRequest, error) {
	if e == nil {
		return nil, ErrNotInitialized
	}
	return e.store.GetPending(ctx, nonce)
}

// Completed returns the settlement record for a nonce.
func (e *Engine) Completed(ctx context.Context, nonce string) (*CompletedRecord, error) {
	if e == nil {
		return nil, ErrNotInitialized
	}
	return e.store.GetCompleted(ctx, nonce)
}

// LastNonce returns an actor's most recent outstanding nonce. ok is false
// when the actor has no outstanding requests.
func (e *Engine) LastNonce(ctx context.Context, actor string) (string, bool, error) {
	if e == nil {
		return "", false, ErrNotInitialized
	}
	nonces, err := e.store.ActorNonces(ctx, strings.ToLower(actor))
	if err != nil {
		return "", false, err
	}
	if len(nonces) == 0 {
		return "", false, nil
	}
	return nonces[len(nonces)-1], true, nil
}

// TreasuryBalance returns the treasury's current coin balance.
func (e *Engine) TreasuryBalance(ctx context.Context) (uint64, error) {
	if e == nil {
		return 0, ErrNotInitialized
	}
	return e.vault.TreasuryBalance(ctx)
}

// History returns recent settlement records, newest first. An empty game
// matches all games.
func (e *Engine) History(ctx context.Context, game Game, limit int) ([]*CompletedRecord, error) {
	if e == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return e.store.ListCompleted(ctx, game, limit)
}

// WheelPrizes returns the current prize pool of a wheel.
func (e *Engine) WheelPrizes(ctx context.Context, wheelID string) ([]*Prize, error) {
	if e == nil {
		return nil, ErrNotInitialized
	}
	return e.store.WheelPrizes(ctx, wheelID)
}
