package engine

import (
	"context"
	"strings"
)

// Owner-only engine administration. Callers are authenticated upstream
// (admin secret on the HTTP surface); the owner check here is the final
// authority gate the engine itself enforces.

func (e *Engine) requireOwner(caller string) error {
	if !strings.EqualFold(caller, e.cfg.Owner) {
		return ErrUnauthorized
	}
	return nil
}

// SetFeePolicy replaces the platform fee policy. Applies to submissions
// from this point on; already-escrowed requests settle under the policy
// they were submitted with.
func (e *Engine) SetFeePolicy(caller string, policy FeePolicy) error {
	if e == nil {
		return ErrNotInitialized
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	policy.Recipient = strings.ToLower(policy.Recipient)
	e.cfg.Fee = policy
	e.logger.Info("fee policy updated", "rateBps", policy.RateBps, "recipient", policy.Recipient)
	return nil
}

// FeePolicy returns the active fee policy.
func (e *Engine) FeePolicy() FeePolicy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Fee
}

// SetPaused toggles acceptance of new submissions. In-flight requests
// still settle and refund normally while paused.
func (e *Engine) SetPaused(caller string, paused bool) error {
	if e == nil {
		return ErrNotInitialized
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
	e.logger.Info("pause flag updated", "paused", paused)
	return nil
}

// Paused reports whether new submissions are being rejected.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// CreateWheel installs or replaces a wheel's prize pool. Collectible
// prizes are stocked into the treasury inventory so settlement can award
// them.
func (e *Engine) CreateWheel(ctx context.Context, caller, wheelID string, prizes []*Prize) error {
	if e == nil {
		return ErrNotInitialized
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	for _, p := range prizes {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range prizes {
		if p.Kind == PrizeFungible {
			continue
		}
		for _, itemID := range p.Items {
			if err := e.vault.StockItem(ctx, p.Collection, itemID); err != nil {
				return err
			}
		}
	}
	if err := e.store.SaveWheel(ctx, wheelID, prizes); err != nil {
		return err
	}
	e.logger.Info("wheel configured", "wheel", wheelID, "prizes", len(prizes))
	return nil
}

// FundTreasury deposits operator coins into the treasury so it can cover
// worst-case payouts.
func (e *Engine) FundTreasury(ctx context.Context, caller string, amount uint64) error {
	if e == nil {
		return ErrNotInitialized
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.vault.Deposit(ctx, e.vault.Treasury(), amount, "treasury_funding"); err != nil {
		return err
	}
	e.updateGauges(ctx)
	return nil
}

// DefundTreasury withdraws house coins from the treasury to a recipient.
// The solvency check in vault.Pay keeps it from draining below zero, but
// nothing stops the owner from withdrawing funds that back outstanding
// escrow; that responsibility sits with the operator.
func (e *Engine) DefundTreasury(ctx context.Context, caller, to string, amount uint64) error {
	if e == nil {
		return ErrNotInitialized
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.vault.Pay(ctx, e.auth, to, amount, "treasury_withdrawal"); err != nil {
		return err
	}
	e.updateGauges(ctx)
	return nil
}
