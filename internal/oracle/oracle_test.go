package oracle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

const caller = "0x1000000000000000000000000000000000000001"

func TestVerifyRoundTrip(t *testing.T) {
	dev, err := NewDev(caller)
	require.NoError(t, err)
	v := NewVerifier(dev.SignerAddress(), []string{caller})

	cb, err := dev.FulfillWith("rnd_abc", []byte("seed"), big.NewInt(42))
	require.NoError(t, err)

	values, err := v.Verify(cb)
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, int64(42), values[0].Int64())
}

func TestVerifyRejectsUnknownCaller(t *testing.T) {
	dev, err := NewDev(caller)
	require.NoError(t, err)
	v := NewVerifier(dev.SignerAddress(), nil)

	cb, err := dev.FulfillWith("rnd_abc", []byte("seed"), big.NewInt(42))
	require.NoError(t, err)

	_, err = v.Verify(cb)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	dev, err := NewDev(caller)
	require.NoError(t, err)
	other, err := NewDev(caller)
	require.NoError(t, err)
	v := NewVerifier(other.SignerAddress(), []string{caller})

	cb, err := dev.FulfillWith("rnd_abc", []byte("seed"), big.NewInt(42))
	require.NoError(t, err)

	_, err = v.Verify(cb)
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	dev, err := NewDev(caller)
	require.NoError(t, err)
	v := NewVerifier(dev.SignerAddress(), []string{caller})

	cb, err := dev.FulfillWith("rnd_abc", []byte("seed"), big.NewInt(42))
	require.NoError(t, err)
	cb.Randomness = []*big.Int{big.NewInt(43)}

	_, err = v.Verify(cb)
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	dev, err := NewDev(caller)
	require.NoError(t, err)
	v := NewVerifier(dev.SignerAddress(), []string{caller})

	cb, err := dev.FulfillWith("rnd_abc", []byte("seed"), big.NewInt(42))
	require.NoError(t, err)
	cb.Signature = cb.Signature[:64]

	_, err = v.Verify(cb)
	require.ErrorIs(t, err, ErrMalformedSignature)
}

func TestVerifyHasNoSideEffects(t *testing.T) {
	dev, err := NewDev(caller)
	require.NoError(t, err)
	v := NewVerifier(dev.SignerAddress(), []string{caller})

	cb, err := dev.FulfillWith("rnd_abc", []byte("seed"), big.NewInt(42))
	require.NoError(t, err)

	// Same callback verifies repeatedly.
	for i := 0; i < 3; i++ {
		_, err := v.Verify(cb)
		require.NoError(t, err)
	}
}

func TestCallerWhitelistMutation(t *testing.T) {
	v := NewVerifier("0x0000000000000000000000000000000000000001", nil)
	v.AllowCaller(caller)
	require.Contains(t, v.Callers(), "0x1000000000000000000000000000000000000001")
	v.RevokeCaller(caller)
	require.Empty(t, v.Callers())
}

func TestNewNonceFormat(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	b, err := NewNonce()
	require.NoError(t, err)
	require.Len(t, a, 4+32)
	require.Equal(t, "rnd_", a[:4])
	require.NotEqual(t, a, b)
}
