package oracle

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// Dev is an in-process oracle for demo mode and tests. It issues nonces,
// and can produce signed callbacks with its own generated key.
type Dev struct {
	key    *ecdsa.PrivateKey
	caller string
}

// NewDev creates a dev oracle with a fresh signing key. The caller address
// is the identity the dev oracle delivers callbacks as.
func NewDev(caller string) (*Dev, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Dev{key: key, caller: caller}, nil
}

// SignerAddress returns the address callbacks will recover to.
func (d *Dev) SignerAddress() string {
	return crypto.PubkeyToAddress(d.key.PublicKey).Hex()
}

// Caller returns the delivery address the dev oracle uses.
func (d *Dev) Caller() string {
	return d.caller
}

// RequestRandomness issues a fresh nonce. The dev oracle keeps no request
// state; fulfillment is driven explicitly via Fulfill.
func (d *Dev) RequestRandomness(ctx context.Context, seed []byte) (string, error) {
	return NewNonce()
}

// Fulfill builds a signed callback for the given nonce and seed with a
// random 256-bit draw.
func (d *Dev) Fulfill(nonce string, seed []byte) (*Callback, error) {
	draw, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 256))
	if err != nil {
		return nil, err
	}
	return d.FulfillWith(nonce, seed, draw)
}

// FulfillWith builds a signed callback carrying a specific random value.
func (d *Dev) FulfillWith(nonce string, seed []byte, values ...*big.Int) (*Callback, error) {
	cb := &Callback{
		Nonce:      nonce,
		Seed:       seed,
		Randomness: values,
		Caller:     d.caller,
	}
	sig, err := crypto.Sign(cb.Digest(), d.key)
	if err != nil {
		return nil, err
	}
	cb.Signature = sig
	return cb, nil
}
