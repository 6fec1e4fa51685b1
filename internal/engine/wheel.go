package engine

import (
	"context"
	"math/big"
)

// wheelResolver spins a depleting prize wheel. The prize index is the
// random value mod the current pool size; a winning spin forwards the
// escrowed participation fee to the fee recipient, a spin that hits an
// exhausted prize refunds the fee and still records history. The updated
// pool rides back on the settlement; the engine persists it.
//
// Stock depletion uses swap-remove: the drained prize is replaced by the
// last pool entry, so indices are only stable within a single settlement.
type wheelResolver struct {
	store Store
	fee   FeePolicy
}

func (w *wheelResolver) Resolve(ctx context.Context, req *PendingRequest, random *big.Int) (*Settlement, error) {
	prizes, err := w.store.WheelPrizes(ctx, req.WheelID)
	if err != nil {
		return nil, err
	}
	if len(prizes) == 0 {
		return w.refund(req), nil
	}

	idx := int(new(big.Int).Mod(random, big.NewInt(int64(len(prizes)))).Int64())
	if idx < 0 || idx >= len(prizes) {
		return nil, ErrInvalidIndex
	}
	prize := prizes[idx]

	st := &Settlement{
		Outcome: OutcomePrize,
		Winner:  req.Requester,
		PrizeID: prize.ID,
		Payouts: []Payout{{To: w.fee.Recipient, Amount: req.Escrowed}},
	}

	switch prize.Kind {
	case PrizeFungible:
		if prize.Stock == 0 {
			return w.refund(req), nil
		}
		st.Payouts = append(st.Payouts, Payout{To: req.Requester, Amount: prize.Amount})
	case PrizePooled, PrizePooledV2:
		if prize.Stock == 0 || len(prize.Items) == 0 {
			return w.refund(req), nil
		}
		itemID := prize.Items[len(prize.Items)-1]
		prize.Items = prize.Items[:len(prize.Items)-1]
		st.ItemID = itemID
		st.Items = []ItemAward{{To: req.Requester, Collection: prize.Collection, ItemID: itemID}}
	default:
		return nil, ErrInvalidPrize
	}

	prize.Stock--
	if prize.Stock == 0 {
		prizes[idx] = prizes[len(prizes)-1]
		prizes = prizes[:len(prizes)-1]
	}
	st.Pool = &PoolUpdate{WheelID: req.WheelID, Prizes: prizes}
	return st, nil
}

// refund returns the participation fee to the player and records a
// non-winning outcome. Used when the chosen prize slot has no stock left.
func (w *wheelResolver) refund(req *PendingRequest) *Settlement {
	return &Settlement{
		Outcome: OutcomeRefund,
		Payouts: []Payout{{To: req.Requester, Amount: req.Escrowed}},
	}
}
