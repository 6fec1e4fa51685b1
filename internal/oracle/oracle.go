// Package oracle integrates the external randomness oracle.
//
// The engine requests a draw and receives an oracle-issued nonce; the random
// value arrives later as a separate callback. A callback is accepted only
// when (a) the delivering caller is whitelisted and (b) the secp256k1
// signature over the callback digest recovers to the configured oracle
// signer. Verification has no side effects.
package oracle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrUnauthorizedCaller = errors.New("caller not whitelisted for oracle callbacks")
	ErrVerificationFailed = errors.New("oracle callback verification failed")
	ErrMalformedSignature = errors.New("malformed callback signature")
)

// RandomWordsPerRequest is the number of random values the engine requests
// per draw, in every game.
const RandomWordsPerRequest = 1

// Callback is a fulfillment delivery from the oracle network.
type Callback struct {
	Nonce      string
	Seed       []byte
	Randomness []*big.Int
	Signature  []byte // 65-byte [R || S || V] secp256k1 signature over Digest
	Caller     string // address delivering the callback
}

// Digest returns the message the oracle signs: keccak256 of the nonce, the
// echoed seed, and each random value left-padded to 32 bytes.
func (cb *Callback) Digest() []byte {
	parts := [][]byte{[]byte(cb.Nonce), cb.Seed}
	for _, r := range cb.Randomness {
		buf := make([]byte, 32)
		r.FillBytes(buf)
		parts = append(parts, buf)
	}
	return crypto.Keccak256(parts...)
}

// Requester issues randomness requests and returns the oracle nonce.
type Requester interface {
	RequestRandomness(ctx context.Context, seed []byte) (string, error)
}

// Local issues nonces in-process. The external oracle network discovers
// outstanding requests through the query surface and calls back carrying
// the same nonce.
type Local struct{}

func (Local) RequestRandomness(ctx context.Context, seed []byte) (string, error) {
	return NewNonce()
}

// Verifier authenticates callbacks against the oracle signer and the
// caller whitelist.
type Verifier struct {
	signer  common.Address
	mu      sync.RWMutex
	callers map[string]bool
}

// NewVerifier creates a verifier for the given signer address and initial
// caller whitelist.
func NewVerifier(signer string, callers []string) *Verifier {
	v := &Verifier{
		signer:  common.HexToAddress(signer),
		callers: make(map[string]bool),
	}
	for _, c := range callers {
		v.callers[strings.ToLower(c)] = true
	}
	return v
}

// AllowCaller adds an address to the callback whitelist.
func (v *Verifier) AllowCaller(addr string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.callers[strings.ToLower(addr)] = true
}

// RevokeCaller removes an address from the callback whitelist.
func (v *Verifier) RevokeCaller(addr string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.callers, strings.ToLower(addr))
}

// Callers returns the current whitelist.
func (v *Verifier) Callers() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.callers))
	for c := range v.callers {
		out = append(out, c)
	}
	return out
}

// Verify authenticates a callback and returns the delivered random values.
// It mutates nothing on failure.
func (v *Verifier) Verify(cb *Callback) ([]*big.Int, error) {
	v.mu.RLock()
	allowed := v.callers[strings.ToLower(cb.Caller)]
	v.mu.RUnlock()
	if !allowed {
		return nil, ErrUnauthorizedCaller
	}

	if len(cb.Signature) != 65 {
		return nil, ErrMalformedSignature
	}
	sig := make([]byte, 65)
	copy(sig, cb.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(cb.Digest(), sig)
	if err != nil {
		return nil, ErrVerificationFailed
	}
	if crypto.PubkeyToAddress(*pub) != v.signer {
		return nil, ErrVerificationFailed
	}
	return cb.Randomness, nil
}

// NewNonce returns a fresh oracle-style request identifier.
func NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "rnd_" + hex.EncodeToString(b), nil
}
