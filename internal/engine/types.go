// Package engine implements the randomness-settled wagering engine.
//
// Flow:
//  1. Player submits a wager or draw → stake escrowed, oracle request issued
//  2. Oracle calls back with a verified random value → outcome settled
//  3. Callbacks that never arrive are reclaimed after the refund window
//
// A request lives in the pending ledger exactly while it is unresolved.
// Fulfillment and timeout-refund both consume the entry with an atomic
// remove-if-present; whichever runs first wins and the other becomes a
// no-op. That presence check is the only cross-operation race the engine
// has to defend against.
package engine

import (
	"errors"
	"time"
)

var (
	ErrNotInitialized        = errors.New("engine not initialized")
	ErrAlreadyInitialized    = errors.New("engine already initialized")
	ErrPaused                = errors.New("engine is paused")
	ErrUnauthorized          = errors.New("caller is not the engine owner")
	ErrInvalidSelection      = errors.New("invalid move selection")
	ErrStakeOutOfBounds      = errors.New("stake outside allowed bounds")
	ErrRequestNotFound       = errors.New("pending request not found")
	ErrUnexpectedRandomCount = errors.New("unexpected random value count")
	ErrInvalidFeeConfig      = errors.New("invalid fee configuration")
	ErrTooEarlyForRefund     = errors.New("refund window has not elapsed")
	ErrNotRequestOwner       = errors.New("caller does not own this request")
	ErrNoParticipants        = errors.New("raffle needs at least one participant")
	ErrNoPrizesAvailable     = errors.New("wheel has no prizes available")
	ErrInvalidIndex          = errors.New("prize index out of range")
	ErrInvalidPrize          = errors.New("prize stock and inventory are inconsistent")
)

// Game identifies an outcome resolver.
type Game string

const (
	GameRPS    Game = "rps"
	GameRaffle Game = "raffle"
	GameWheel  Game = "wheel"
)

// Move is a rock/paper/scissors selection.
type Move uint8

const (
	MoveRock     Move = 0
	MovePaper    Move = 1
	MoveScissors Move = 2
)

func (m Move) String() string {
	switch m {
	case MoveRock:
		return "rock"
	case MovePaper:
		return "paper"
	case MoveScissors:
		return "scissors"
	}
	return "invalid"
}

// Outcome tags a completed record.
type Outcome string

const (
	OutcomeWin    Outcome = "win"
	OutcomeLose   Outcome = "lose"
	OutcomeDraw   Outcome = "draw"
	OutcomePrize  Outcome = "prize"
	OutcomeRefund Outcome = "refund"
)

// PendingRequest is one outstanding oracle request. It exists in the ledger
// iff the request is neither settled nor refunded.
type PendingRequest struct {
	Nonce        string    `json:"nonce"`
	Game         Game      `json:"game"`
	Requester    string    `json:"requester"`
	Escrowed     uint64    `json:"escrowed"` // value held by the treasury for this request
	Seed         []byte    `json:"seed"`     // echoed back by the oracle, must match exactly
	Move         Move      `json:"move,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	WheelID      string    `json:"wheelId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CompletedRecord is the immutable history entry for a settled nonce.
// A nonce has at most one.
type CompletedRecord struct {
	Nonce     string    `json:"nonce"`
	Game      Game      `json:"game"`
	Requester string    `json:"requester"`
	Outcome   Outcome   `json:"outcome"`
	Random    string    `json:"random"` // decimal string of the raw draw
	Winner    string    `json:"winner,omitempty"`
	Payout    uint64    `json:"payout"`
	PrizeID   string    `json:"prizeId,omitempty"`
	ItemID    string    `json:"itemId,omitempty"`
	SettledAt time.Time `json:"settledAt"`
}

// PrizeKind describes how a wheel prize pays out.
type PrizeKind string

const (
	PrizeFungible PrizeKind = "fungible"  // fixed coin amount per unit
	PrizePooled   PrizeKind = "pooled"    // transferable collectible inventory
	PrizePooledV2 PrizeKind = "pooled_v2" // collectible inventory, v2 item standard
)

// Prize is one wheel pool entry with depleting stock.
// Invariant: for pooled kinds, Stock == len(Items).
type Prize struct {
	ID         string    `json:"id"`
	Kind       PrizeKind `json:"kind"`
	Amount     uint64    `json:"amount,omitempty"` // per-unit payout for fungible prizes
	Stock      uint32    `json:"stock"`
	Collection string    `json:"collection,omitempty"`
	Items      []string  `json:"items,omitempty"`
}

// Validate checks the stock/inventory invariant.
func (p *Prize) Validate() error {
	switch p.Kind {
	case PrizeFungible:
		if p.Amount == 0 {
			return ErrInvalidPrize
		}
	case PrizePooled, PrizePooledV2:
		if int(p.Stock) != len(p.Items) {
			return ErrInvalidPrize
		}
	default:
		return ErrInvalidPrize
	}
	return nil
}
