package engine

import (
	"context"
	"math/big"
)

// raffleResolver picks one winner from the participant snapshot taken at
// submission. The winner receives the full escrowed prize.
type raffleResolver struct{}

func (raffleResolver) Resolve(ctx context.Context, req *PendingRequest, random *big.Int) (*Settlement, error) {
	n := len(req.Participants)
	if n == 0 {
		return nil, ErrNoParticipants
	}
	idx := new(big.Int).Mod(random, big.NewInt(int64(n))).Int64()
	winner := req.Participants[idx]

	return &Settlement{
		Outcome: OutcomeWin,
		Winner:  winner,
		Payouts: []Payout{{To: winner, Amount: req.Escrowed}},
	}, nil
}
