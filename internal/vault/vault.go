// Package vault tracks actor balances and collectible inventories and moves
// value between actors and the treasury.
//
// Flow:
//  1. Player funds arrive as deposits (credits)
//  2. Game submission escrows stake: player → treasury
//  3. Settlement pays out: treasury → winner (requires the treasury authority)
//  4. Timeout refund: treasury → requester
package vault

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrInsufficientTreasuryFunds = errors.New("insufficient treasury funds")
	ErrItemNotFound              = errors.New("collectible not found")
	ErrAuthorityClaimed          = errors.New("treasury authority already claimed")
	ErrBadAuthority              = errors.New("authority does not match treasury")
)

// Entry is one movement in the vault's audit log.
type Entry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Type      string    `json:"type"` // deposit, escrow, transfer, payout, refund
	Amount    uint64    `json:"amount"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists balances and collectible inventories.
type Store interface {
	Balance(ctx context.Context, actor string) (uint64, error)
	Credit(ctx context.Context, actor string, amount uint64, entryType, reference string) error
	// Debit fails with ErrInsufficientFunds without mutating state.
	Debit(ctx context.Context, actor string, amount uint64, entryType, reference string) error
	// Move debits from and credits to atomically.
	Move(ctx context.Context, from, to string, amount uint64, entryType, reference string) error
	History(ctx context.Context, actor string, limit int) ([]*Entry, error)

	AddItem(ctx context.Context, owner, collection, itemID string) error
	// MoveItem fails with ErrItemNotFound if owner does not hold the item.
	MoveItem(ctx context.Context, owner, newOwner, collection, itemID string) error
	Items(ctx context.Context, owner, collection string) ([]string, error)
}

// Authority is the treasury's signing capability. It is created exactly once
// when the vault is opened and never serialized; outbound treasury transfers
// require it.
type Authority struct {
	treasury string
}

// Vault mediates all value movement for the engine.
type Vault struct {
	store    Store
	treasury string
	claimed  bool
}

// Open creates a vault around the given store with the given treasury account.
func Open(store Store, treasury string) *Vault {
	return &Vault{store: store, treasury: strings.ToLower(treasury)}
}

// ClaimAuthority returns the treasury authority. It succeeds exactly once;
// re-initialization is forbidden.
func (v *Vault) ClaimAuthority() (*Authority, error) {
	if v.claimed {
		return nil, ErrAuthorityClaimed
	}
	v.claimed = true
	return &Authority{treasury: v.treasury}, nil
}

// Treasury returns the treasury account address.
func (v *Vault) Treasury() string {
	return v.treasury
}

// Balance returns an actor's coin balance.
func (v *Vault) Balance(ctx context.Context, actor string) (uint64, error) {
	return v.store.Balance(ctx, strings.ToLower(actor))
}

// TreasuryBalance returns the treasury's coin balance.
func (v *Vault) TreasuryBalance(ctx context.Context) (uint64, error) {
	return v.store.Balance(ctx, v.treasury)
}

// Deposit credits an actor's balance.
func (v *Vault) Deposit(ctx context.Context, actor string, amount uint64, reference string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return v.store.Credit(ctx, strings.ToLower(actor), amount, "deposit", reference)
}

// Escrow moves stake from an actor into the treasury.
func (v *Vault) Escrow(ctx context.Context, actor string, amount uint64, reference string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return v.store.Move(ctx, strings.ToLower(actor), v.treasury, amount, "escrow", reference)
}

// Transfer moves coins between two non-treasury actors (fee routing).
func (v *Vault) Transfer(ctx context.Context, from, to string, amount uint64, reference string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return v.store.Move(ctx, strings.ToLower(from), strings.ToLower(to), amount, "transfer", reference)
}

// Pay moves coins out of the treasury. The caller must hold the treasury
// authority, and the treasury balance is checked immediately before the
// transfer.
func (v *Vault) Pay(ctx context.Context, auth *Authority, to string, amount uint64, reference string) error {
	if auth == nil || auth.treasury != v.treasury {
		return ErrBadAuthority
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	bal, err := v.store.Balance(ctx, v.treasury)
	if err != nil {
		return err
	}
	if bal < amount {
		return ErrInsufficientTreasuryFunds
	}
	return v.store.Move(ctx, v.treasury, strings.ToLower(to), amount, "payout", reference)
}

// StockItem places a collectible into the treasury inventory.
func (v *Vault) StockItem(ctx context.Context, collection, itemID string) error {
	return v.store.AddItem(ctx, v.treasury, collection, itemID)
}

// AwardItem moves a collectible from the treasury inventory to a recipient.
func (v *Vault) AwardItem(ctx context.Context, auth *Authority, to, collection, itemID string) error {
	if auth == nil || auth.treasury != v.treasury {
		return ErrBadAuthority
	}
	return v.store.MoveItem(ctx, v.treasury, strings.ToLower(to), collection, itemID)
}

// ReclaimItem moves a collectible from an actor back into the treasury
// inventory, undoing an award.
func (v *Vault) ReclaimItem(ctx context.Context, auth *Authority, from, collection, itemID string) error {
	if auth == nil || auth.treasury != v.treasury {
		return ErrBadAuthority
	}
	return v.store.MoveItem(ctx, strings.ToLower(from), v.treasury, collection, itemID)
}

// Items returns an actor's collectibles in a collection.
func (v *Vault) Items(ctx context.Context, owner, collection string) ([]string, error) {
	return v.store.Items(ctx, strings.ToLower(owner), collection)
}

// History returns the most recent vault entries for an actor.
func (v *Vault) History(ctx context.Context, actor string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return v.store.History(ctx, strings.ToLower(actor), limit)
}
