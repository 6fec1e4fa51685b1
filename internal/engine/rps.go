package engine

import (
	"context"
	"math/big"
)

var three = big.NewInt(3)

// rpsResolver plays rock/paper/scissors against the house. The house move
// is the random value mod 3; a win pays double the effective stake, a draw
// returns it, a loss pays nothing. The platform fee was already routed at
// submission, so settlement only moves the escrowed stake.
type rpsResolver struct{}

func (rpsResolver) Resolve(ctx context.Context, req *PendingRequest, random *big.Int) (*Settlement, error) {
	house := Move(new(big.Int).Mod(random, three).Uint64())

	st := &Settlement{}
	switch {
	case req.Move == house:
		st.Outcome = OutcomeDraw
		st.Payouts = []Payout{{To: req.Requester, Amount: req.Escrowed}}
	case beats(req.Move, house):
		st.Outcome = OutcomeWin
		st.Winner = req.Requester
		st.Payouts = []Payout{{To: req.Requester, Amount: 2 * req.Escrowed}}
	default:
		st.Outcome = OutcomeLose
	}
	return st, nil
}

func beats(a, b Move) bool {
	return (a == MoveRock && b == MoveScissors) ||
		(a == MovePaper && b == MoveRock) ||
		(a == MoveScissors && b == MovePaper)
}
