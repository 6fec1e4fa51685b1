package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Spikeyfun/game-contracts/internal/metrics"
	"github.com/Spikeyfun/game-contracts/internal/oracle"
	"github.com/Spikeyfun/game-contracts/internal/traces"
	"github.com/Spikeyfun/game-contracts/internal/vault"
)

// Config fixes the engine's policy knobs at initialization. The fee policy
// can be replaced later by the owner; everything else is immutable.
type Config struct {
	Owner            string
	MinBet           uint64
	MaxBet           uint64
	SpinFee          uint64
	Fee              FeePolicy
	WagerRefundDelay time.Duration // rock/paper/scissors
	DrawRefundDelay  time.Duration // raffle and wheel
}

// EventSink receives fire-and-forget engine events.
type EventSink interface {
	Emit(event string, data map[string]any)
}

// Engine orchestrates escrow, oracle requests, settlement, and refunds.
// A single mutex serializes all fund-moving operations; the atomic
// pending-entry claim is what actually guarantees exactly-once settlement,
// the mutex just keeps balance checks coherent.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	store     Store
	vault     *vault.Vault
	auth      *vault.Authority
	requester oracle.Requester
	verifier  *oracle.Verifier
	events    EventSink
	logger    *slog.Logger
	now       func() time.Time
	paused    bool
}

// Option configures optional engine collaborators.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithEvents(s EventSink) Option { return func(e *Engine) { e.events = s } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Initialize claims the vault's treasury authority and returns a ready
// engine. It can succeed at most once per vault; a second call fails with
// ErrAlreadyInitialized.
func Initialize(cfg Config, store Store, v *vault.Vault, requester oracle.Requester, verifier *oracle.Verifier, opts ...Option) (*Engine, error) {
	if cfg.Owner == "" {
		return nil, ErrUnauthorized
	}
	if err := cfg.Fee.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinBet == 0 || cfg.MinBet > cfg.MaxBet {
		return nil, ErrStakeOutOfBounds
	}

	auth, err := v.ClaimAuthority()
	if err != nil {
		return nil, ErrAlreadyInitialized
	}

	e := &Engine{
		cfg:       cfg,
		store:     store,
		vault:     v,
		auth:      auth,
		requester: requester,
		verifier:  verifier,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Owner returns the configured admin address.
func (e *Engine) Owner() string {
	return e.cfg.Owner
}

// Verifier exposes the oracle verifier for whitelist administration.
func (e *Engine) Verifier() *oracle.Verifier {
	return e.verifier
}

// SubmitWager escrows a rock/paper/scissors stake and requests randomness.
// The oracle nonce is returned for internal bookkeeping; the HTTP surface
// deliberately does not hand it back to the caller.
func (e *Engine) SubmitWager(ctx context.Context, player string, move Move, gross uint64, seed []byte) (string, error) {
	if e == nil {
		return "", ErrNotInitialized
	}
	if move > MoveScissors {
		return "", ErrInvalidSelection
	}
	if gross == 0 || gross < e.cfg.MinBet || gross > e.cfg.MaxBet {
		return "", ErrStakeOutOfBounds
	}
	player = strings.ToLower(player)
	ctx, span := traces.StartSpan(ctx, "engine.SubmitWager", traces.Player(player), traces.GameName(string(GameRPS)))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return "", ErrPaused
	}
	fee, effective := e.cfg.Fee.Split(gross)

	// Worst-case payout for a win is 2x the effective stake; the check runs
	// before any funds move so a failure leaves the player untouched.
	tb, err := e.vault.TreasuryBalance(ctx)
	if err != nil {
		return "", err
	}
	if tb < 2*effective {
		return "", vault.ErrInsufficientTreasuryFunds
	}

	ref := submitRef(seed)
	if err := e.escrowWithFee(ctx, player, effective, fee, ref); err != nil {
		return "", err
	}

	nonce, err := e.requester.RequestRandomness(ctx, seed)
	if err != nil {
		e.compensate(ctx, player, effective, fee, ref)
		return "", fmt.Errorf("oracle request: %w", err)
	}

	req := &PendingRequest{
		Nonce:     nonce,
		Game:      GameRPS,
		Requester: player,
		Escrowed:  effective,
		Seed:      seed,
		Move:      move,
		CreatedAt: e.now(),
	}
	if err := e.store.InsertPending(ctx, req); err != nil {
		e.compensate(ctx, player, effective, fee, ref)
		return "", err
	}

	metrics.WagersTotal.WithLabelValues(string(GameRPS)).Inc()
	e.updateGauges(ctx)
	e.emit("wager_placed", map[string]any{
		"game": string(GameRPS), "player": player, "stake": gross, "move": move.String(),
	})
	e.logger.Info("wager placed", "player", player, "move", move.String(), "gross", gross, "effective", effective)
	return nonce, nil
}

// SubmitRaffle escrows a prize and requests randomness to pick one winner
// from the participant snapshot.
func (e *Engine) SubmitRaffle(ctx context.Context, organizer string, participants []string, prize uint64, seed []byte) (string, error) {
	if e == nil {
		return "", ErrNotInitialized
	}
	if len(participants) == 0 {
		return "", ErrNoParticipants
	}
	if prize == 0 {
		return "", ErrStakeOutOfBounds
	}
	organizer = strings.ToLower(organizer)
	ctx, span := traces.StartSpan(ctx, "engine.SubmitRaffle", traces.Player(organizer), traces.GameName(string(GameRaffle)))
	defer span.End()
	snapshot := make([]string, len(participants))
	for i, p := range participants {
		snapshot[i] = strings.ToLower(p)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return "", ErrPaused
	}
	fee, effective := e.cfg.Fee.Split(prize)

	ref := submitRef(seed)
	if err := e.escrowWithFee(ctx, organizer, effective, fee, ref); err != nil {
		return "", err
	}

	nonce, err := e.requester.RequestRandomness(ctx, seed)
	if err != nil {
		e.compensate(ctx, organizer, effective, fee, ref)
		return "", fmt.Errorf("oracle request: %w", err)
	}

	req := &PendingRequest{
		Nonce:        nonce,
		Game:         GameRaffle,
		Requester:    organizer,
		Escrowed:     effective,
		Seed:         seed,
		Participants: snapshot,
		CreatedAt:    e.now(),
	}
	if err := e.store.InsertPending(ctx, req); err != nil {
		e.compensate(ctx, organizer, effective, fee, ref)
		return "", err
	}

	metrics.WagersTotal.WithLabelValues(string(GameRaffle)).Inc()
	e.updateGauges(ctx)
	e.emit("raffle_opened", map[string]any{
		"game": string(GameRaffle), "requester": organizer, "participants": len(snapshot), "prize": effective,
	})
	e.logger.Info("raffle opened", "organizer", organizer, "participants", len(snapshot), "prize", effective)
	return nonce, nil
}

// SubmitSpin escrows the flat participation fee and requests randomness
// for a wheel draw. Whether the fee is forwarded or refunded is decided at
// settlement.
func (e *Engine) SubmitSpin(ctx context.Context, player, wheelID string, seed []byte) (string, error) {
	if e == nil {
		return "", ErrNotInitialized
	}
	player = strings.ToLower(player)
	ctx, span := traces.StartSpan(ctx, "engine.SubmitSpin", traces.Player(player), traces.GameName(string(GameWheel)))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return "", ErrPaused
	}

	prizes, err := e.store.WheelPrizes(ctx, wheelID)
	if err != nil {
		return "", err
	}
	if len(prizes) == 0 {
		return "", ErrNoPrizesAvailable
	}

	// The largest in-stock fungible prize is the worst-case payout beyond
	// the escrowed fee; the check runs before any funds move.
	var worst uint64
	for _, p := range prizes {
		if p.Kind == PrizeFungible && p.Stock > 0 && p.Amount > worst {
			worst = p.Amount
		}
	}
	if worst > 0 {
		tb, err := e.vault.TreasuryBalance(ctx)
		if err != nil {
			return "", err
		}
		if tb < worst {
			return "", vault.ErrInsufficientTreasuryFunds
		}
	}

	ref := submitRef(seed)
	if err := e.vault.Escrow(ctx, player, e.cfg.SpinFee, ref); err != nil {
		return "", err
	}

	nonce, err := e.requester.RequestRandomness(ctx, seed)
	if err != nil {
		e.compensate(ctx, player, e.cfg.SpinFee, 0, ref)
		return "", fmt.Errorf("oracle request: %w", err)
	}

	req := &PendingRequest{
		Nonce:     nonce,
		Game:      GameWheel,
		Requester: player,
		Escrowed:  e.cfg.SpinFee,
		Seed:      seed,
		WheelID:   wheelID,
		CreatedAt: e.now(),
	}
	if err := e.store.InsertPending(ctx, req); err != nil {
		e.compensate(ctx, player, e.cfg.SpinFee, 0, ref)
		return "", err
	}

	metrics.WagersTotal.WithLabelValues(string(GameWheel)).Inc()
	e.updateGauges(ctx)
	e.emit("wheel_spun", map[string]any{"game": string(GameWheel), "player": player, "wheel": wheelID})
	e.logger.Info("wheel spin submitted", "player", player, "wheel", wheelID)
	return nonce, nil
}

// Fulfill processes an oracle callback. Verification happens before any
// state is touched; an unknown nonce is a logged no-op so late or
// duplicate deliveries cannot disturb settled state.
func (e *Engine) Fulfill(ctx context.Context, cb *oracle.Callback) error {
	if e == nil {
		return ErrNotInitialized
	}
	ctx, span := traces.StartSpan(ctx, "engine.Fulfill", traces.Nonce(cb.Nonce))
	defer span.End()

	values, err := e.verifier.Verify(cb)
	if err != nil {
		metrics.OracleCallbacksTotal.WithLabelValues("rejected").Inc()
		return err
	}
	if len(values) != oracle.RandomWordsPerRequest {
		metrics.OracleCallbacksTotal.WithLabelValues("rejected").Inc()
		return ErrUnexpectedRandomCount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok, err := e.store.ClaimPending(ctx, cb.Nonce)
	if err != nil {
		return err
	}
	if !ok {
		// Already settled, already refunded, or never ours.
		metrics.OracleCallbacksTotal.WithLabelValues("noop").Inc()
		e.logger.Info("callback for unknown nonce ignored", "nonce", cb.Nonce)
		return nil
	}

	if !bytes.Equal(cb.Seed, req.Seed) {
		// The entry is consumed and the escrow stays with the treasury;
		// recovering a mismatched request is an operator decision.
		metrics.OracleCallbacksTotal.WithLabelValues("rejected").Inc()
		e.logger.Error("seed mismatch on verified callback, escrow retained",
			"nonce", cb.Nonce, "requester", req.Requester, "escrowed", req.Escrowed)
		return oracle.ErrVerificationFailed
	}

	if err := e.settle(ctx, req, values[0]); err != nil {
		return err
	}
	metrics.OracleCallbacksTotal.WithLabelValues("settled").Inc()
	return nil
}

// settle resolves the outcome and applies its payouts. Caller holds the
// engine mutex and has already claimed the pending entry. Settlement is
// all-or-nothing: every leg is validated before any leg is applied, and a
// failure mid-apply unwinds the applied legs and restores the pending
// entry so the request stays settleable and reclaimable.
func (e *Engine) settle(ctx context.Context, req *PendingRequest, random *big.Int) error {
	resolver := e.resolverFor(req.Game)
	if resolver == nil {
		e.restorePending(ctx, req)
		return fmt.Errorf("no resolver for game %q", req.Game)
	}

	st, err := resolver.Resolve(ctx, req, random)
	if err != nil {
		e.restorePending(ctx, req)
		return err
	}

	var total uint64
	for _, p := range st.Payouts {
		total += p.Amount
	}
	tb, err := e.vault.TreasuryBalance(ctx)
	if err != nil {
		e.restorePending(ctx, req)
		return err
	}
	if tb < total {
		e.restorePending(ctx, req)
		e.logger.Error("treasury cannot cover settlement, request restored",
			"nonce", req.Nonce, "needed", total, "available", tb)
		return vault.ErrInsufficientTreasuryFunds
	}
	for _, it := range st.Items {
		held, err := e.vault.Items(ctx, e.vault.Treasury(), it.Collection)
		if err != nil {
			e.restorePending(ctx, req)
			return err
		}
		if !slices.Contains(held, it.ItemID) {
			e.restorePending(ctx, req)
			return vault.ErrItemNotFound
		}
	}
	var prevPool []*Prize
	if st.Pool != nil {
		if prevPool, err = e.store.WheelPrizes(ctx, st.Pool.WheelID); err != nil {
			e.restorePending(ctx, req)
			return err
		}
	}

	var paid []Payout
	var awarded []ItemAward
	unwind := func() {
		for _, it := range awarded {
			if err := e.vault.ReclaimItem(ctx, e.auth, it.To, it.Collection, it.ItemID); err != nil {
				e.logger.Error("item unwind failed", "nonce", req.Nonce, "item", it.ItemID, "error", err)
			}
		}
		for _, p := range paid {
			if err := e.vault.Escrow(ctx, p.To, p.Amount, "undo:settle:"+req.Nonce); err != nil {
				e.logger.Error("payout unwind failed", "nonce", req.Nonce, "to", p.To, "error", err)
			}
		}
		e.restorePending(ctx, req)
	}

	for _, p := range st.Payouts {
		if p.Amount == 0 {
			continue
		}
		if err := e.vault.Pay(ctx, e.auth, p.To, p.Amount, "settle:"+req.Nonce); err != nil {
			e.logger.Error("payout failed, settlement unwound",
				"nonce", req.Nonce, "to", p.To, "amount", p.Amount, "error", err)
			unwind()
			return err
		}
		paid = append(paid, p)
	}
	for _, it := range st.Items {
		if err := e.vault.AwardItem(ctx, e.auth, it.To, it.Collection, it.ItemID); err != nil {
			e.logger.Error("item award failed, settlement unwound",
				"nonce", req.Nonce, "to", it.To, "item", it.ItemID, "error", err)
			unwind()
			return err
		}
		awarded = append(awarded, it)
	}
	if st.Pool != nil {
		if err := e.store.SaveWheel(ctx, st.Pool.WheelID, st.Pool.Prizes); err != nil {
			unwind()
			return err
		}
	}

	rec := &CompletedRecord{
		Nonce:     req.Nonce,
		Game:      req.Game,
		Requester: req.Requester,
		Outcome:   st.Outcome,
		Random:    random.String(),
		Winner:    st.Winner,
		Payout:    settledPayout(st, req.Requester),
		PrizeID:   st.PrizeID,
		ItemID:    st.ItemID,
		SettledAt: e.now(),
	}
	if err := e.store.InsertCompleted(ctx, rec); err != nil {
		if st.Pool != nil {
			if saveErr := e.store.SaveWheel(ctx, st.Pool.WheelID, prevPool); saveErr != nil {
				e.logger.Error("pool unwind failed", "nonce", req.Nonce, "error", saveErr)
			}
		}
		unwind()
		return err
	}

	metrics.SettlementsTotal.WithLabelValues(string(req.Game), string(st.Outcome)).Inc()
	e.updateGauges(ctx)
	e.emit("settled", map[string]any{
		"nonce": req.Nonce, "game": string(req.Game), "outcome": string(st.Outcome),
		"winner": st.Winner, "payout": rec.Payout,
	})
	e.logger.Info("request settled",
		"nonce", req.Nonce, "game", req.Game, "outcome", st.Outcome,
		"winner", st.Winner, "paid", total)
	return nil
}

func (e *Engine) resolverFor(game Game) Resolver {
	switch game {
	case GameRPS:
		return rpsResolver{}
	case GameRaffle:
		return raffleResolver{}
	case GameWheel:
		return &wheelResolver{store: e.store, fee: e.cfg.Fee}
	}
	return nil
}

// escrowWithFee moves the effective stake into the treasury and routes the
// fee to the recipient as one all-or-nothing pair.
func (e *Engine) escrowWithFee(ctx context.Context, player string, effective, fee uint64, ref string) error {
	if err := e.vault.Escrow(ctx, player, effective, ref); err != nil {
		return err
	}
	if fee == 0 {
		return nil
	}
	if err := e.vault.Transfer(ctx, player, e.cfg.Fee.Recipient, fee, ref); err != nil {
		if payErr := e.vault.Pay(ctx, e.auth, player, effective, "undo:"+ref); payErr != nil {
			e.logger.Error("escrow rollback failed", "player", player, "amount", effective, "error", payErr)
		}
		return err
	}
	return nil
}

// compensate unwinds a submission's transfers when a later step fails.
func (e *Engine) compensate(ctx context.Context, player string, effective, fee uint64, ref string) {
	if err := e.vault.Pay(ctx, e.auth, player, effective, "undo:"+ref); err != nil {
		e.logger.Error("escrow rollback failed", "player", player, "amount", effective, "error", err)
	}
	if fee > 0 {
		if err := e.vault.Transfer(ctx, e.cfg.Fee.Recipient, player, fee, "undo:"+ref); err != nil {
			e.logger.Error("fee rollback failed", "player", player, "amount", fee, "error", err)
		}
	}
}

func (e *Engine) emit(event string, data map[string]any) {
	if e.events != nil {
		e.events.Emit(event, data)
	}
}

func (e *Engine) updateGauges(ctx context.Context) {
	if n, err := e.store.PendingCount(ctx); err == nil {
		metrics.PendingRequests.Set(float64(n))
	}
	if tb, err := e.vault.TreasuryBalance(ctx); err == nil {
		metrics.TreasuryBalance.Set(float64(tb))
	}
}

// restorePending puts a claimed entry back after a failed settlement so a
// retried callback or a timeout reclaim can still resolve it.
func (e *Engine) restorePending(ctx context.Context, req *PendingRequest) {
	if err := e.store.InsertPending(ctx, req); err != nil {
		e.logger.Error("failed to restore pending entry, escrow stranded",
			"nonce", req.Nonce, "requester", req.Requester, "error", err)
	}
}

// settledPayout is the amount the record's beneficiary received: the
// winner when there is one, otherwise the requester (draw and refund
// outcomes return the escrow to them).
func settledPayout(st *Settlement, requester string) uint64 {
	to := st.Winner
	if to == "" {
		to = requester
	}
	var total uint64
	for _, p := range st.Payouts {
		if p.To == to {
			total += p.Amount
		}
	}
	return total
}

// submitRef builds the audit reference used for a submission's transfers.
// The oracle nonce does not exist yet when the funds move.
func submitRef(seed []byte) string {
	if len(seed) > 8 {
		seed = seed[:8]
	}
	return "seed:" + hex.EncodeToString(seed)
}
