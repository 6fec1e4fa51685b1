package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsValidAddress(t *testing.T) {
	require.True(t, IsValidAddress("0x1000000000000000000000000000000000000001"))
	require.True(t, IsValidAddress("0xAbCdEf0000000000000000000000000000000001"))

	require.False(t, IsValidAddress(""))
	require.False(t, IsValidAddress("0x123"))
	require.False(t, IsValidAddress("1000000000000000000000000000000000000001"))
	require.False(t, IsValidAddress("0xZZ00000000000000000000000000000000000001"))
	require.False(t, IsValidAddress("0x10000000000000000000000000000000000000012"))
}

func TestIsValidHex(t *testing.T) {
	require.True(t, IsValidHex("deadbeef"))
	require.True(t, IsValidHex("0xdeadbeef"))
	require.False(t, IsValidHex("not-hex"))
}

func TestNormalizeAddress(t *testing.T) {
	require.Equal(t,
		"0xabcdef0000000000000000000000000000000001",
		NormalizeAddress("0xAbCdEf0000000000000000000000000000000001"))
}
