package engine

import (
	"context"
	"math/big"
)

// Payout is one coin transfer out of the treasury.
type Payout struct {
	To     string
	Amount uint64
}

// ItemAward is one collectible transfer out of the treasury inventory.
type ItemAward struct {
	To         string
	Collection string
	ItemID     string
}

// PoolUpdate is a wheel prize pool to persist once the settlement's other
// legs have landed.
type PoolUpdate struct {
	WheelID string
	Prizes  []*Prize
}

// Settlement is a resolver's verdict: what to record, what to pay, and
// what state to persist. The engine applies it after the pending entry has
// been claimed, so a resolver never has to worry about double settlement.
type Settlement struct {
	Outcome Outcome
	Winner  string
	Payouts []Payout
	Items   []ItemAward
	Pool    *PoolUpdate
	PrizeID string
	ItemID  string
}

// Resolver maps a verified random value to a settlement for one game.
// Resolvers are pure: they read state but leave every mutation to the
// engine, which applies the settlement atomically.
type Resolver interface {
	Resolve(ctx context.Context, req *PendingRequest, random *big.Int) (*Settlement, error)
}
