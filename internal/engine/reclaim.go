package engine

import (
	"context"
	"strings"
	"time"

	"github.com/Spikeyfun/game-contracts/internal/metrics"
)

// windowFor returns the refund eligibility window for a game. Player-vs-house
// wagers use the short window; prize draws get the longer one.
func (e *Engine) windowFor(game Game) time.Duration {
	if game == GameRPS {
		return e.cfg.WagerRefundDelay
	}
	return e.cfg.DrawRefundDelay
}

// Reclaim refunds every stale outstanding request of an actor and returns
// how many were refunded. Requests still inside their window are skipped,
// not an error. A request the oracle settles concurrently is skipped too:
// the claim on the pending entry decides who wins.
func (e *Engine) Reclaim(ctx context.Context, actor string) (int, error) {
	if e == nil {
		return 0, ErrNotInitialized
	}
	actor = strings.ToLower(actor)

	e.mu.Lock()
	defer e.mu.Unlock()

	nonces, err := e.store.ActorNonces(ctx, actor)
	if err != nil {
		return 0, err
	}

	now := e.now()
	var stale []string
	for _, nonce := range nonces {
		req, err := e.store.GetPending(ctx, nonce)
		if err != nil {
			continue
		}
		if now.Sub(req.CreatedAt) >= e.windowFor(req.Game) {
			stale = append(stale, nonce)
		}
	}

	refunded := 0
	for _, nonce := range stale {
		req, ok, err := e.store.ClaimPending(ctx, nonce)
		if err != nil {
			return refunded, err
		}
		if !ok {
			continue
		}
		if err := e.refundClaimed(ctx, req); err != nil {
			return refunded, err
		}
		refunded++
	}
	if refunded > 0 {
		e.updateGauges(ctx)
	}
	return refunded, nil
}

// ReclaimNonce refunds a single outstanding request. Unlike the bulk path
// it reports exactly why a refund cannot happen.
func (e *Engine) ReclaimNonce(ctx context.Context, actor, nonce string) error {
	if e == nil {
		return ErrNotInitialized
	}
	actor = strings.ToLower(actor)

	e.mu.Lock()
	defer e.mu.Unlock()

	req, err := e.store.GetPending(ctx, nonce)
	if err != nil {
		return err
	}
	if req.Requester != actor {
		return ErrNotRequestOwner
	}
	if e.now().Sub(req.CreatedAt) < e.windowFor(req.Game) {
		return ErrTooEarlyForRefund
	}

	req, ok, err := e.store.ClaimPending(ctx, nonce)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestNotFound
	}
	if err := e.refundClaimed(ctx, req); err != nil {
		return err
	}
	e.updateGauges(ctx)
	return nil
}

// refundClaimed pays the escrow back to the requester. The pending entry is
// already consumed, so fulfillment can no longer touch this nonce.
func (e *Engine) refundClaimed(ctx context.Context, req *PendingRequest) error {
	if err := e.vault.Pay(ctx, e.auth, req.Requester, req.Escrowed, "refund:"+req.Nonce); err != nil {
		e.logger.Error("refund payout failed after claim",
			"nonce", req.Nonce, "requester", req.Requester, "amount", req.Escrowed, "error", err)
		return err
	}
	metrics.RefundsTotal.WithLabelValues(string(req.Game)).Inc()
	e.emit("refunded", map[string]any{
		"nonce": req.Nonce, "game": string(req.Game), "requester": req.Requester, "amount": req.Escrowed,
	})
	e.logger.Info("stale request refunded",
		"nonce", req.Nonce, "game", req.Game, "requester", req.Requester, "amount", req.Escrowed)
	return nil
}

// Sweeper periodically reclaims stale requests for every actor with
// outstanding nonces, so abandoned escrow flows back without anyone asking.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a background reclaim sweeper.
func NewSweeper(e *Engine, interval time.Duration) *Sweeper {
	return &Sweeper{
		engine:   e,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.engine.logger.Error("reclaim sweeper panicked", "panic", r)
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	actors, err := s.engine.store.Actors(ctx)
	if err != nil {
		s.engine.logger.Error("reclaim sweep failed to list actors", "error", err)
		return
	}
	for _, actor := range actors {
		n, err := s.engine.Reclaim(ctx, actor)
		if err != nil {
			s.engine.logger.Error("reclaim sweep failed", "actor", actor, "error", err)
			continue
		}
		if n > 0 {
			s.engine.logger.Info("reclaim sweep refunded", "actor", actor, "count", n)
		}
	}
}

// Stop halts the sweeper and waits for the loop to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
