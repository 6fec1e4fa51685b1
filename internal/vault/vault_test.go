package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	alice = "0xAa00000000000000000000000000000000000001"
	bob   = "0xBb00000000000000000000000000000000000002"
)

func newVault(t *testing.T) (*Vault, *Authority) {
	t.Helper()
	v := Open(NewMemoryStore(), "treasury")
	auth, err := v.ClaimAuthority()
	require.NoError(t, err)
	return v, auth
}

func TestClaimAuthorityOnce(t *testing.T) {
	v := Open(NewMemoryStore(), "treasury")

	_, err := v.ClaimAuthority()
	require.NoError(t, err)

	_, err = v.ClaimAuthority()
	require.ErrorIs(t, err, ErrAuthorityClaimed)
}

func TestDepositAndBalance(t *testing.T) {
	v, _ := newVault(t)
	ctx := context.Background()

	require.NoError(t, v.Deposit(ctx, alice, 100, "d1"))
	require.NoError(t, v.Deposit(ctx, alice, 50, "d2"))

	bal, err := v.Balance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(150), bal)

	// Addresses are case-insensitive.
	bal, err = v.Balance(ctx, "0xAA00000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Equal(t, uint64(150), bal)

	require.ErrorIs(t, v.Deposit(ctx, alice, 0, "zero"), ErrInvalidAmount)
}

func TestEscrowMovesToTreasury(t *testing.T) {
	v, _ := newVault(t)
	ctx := context.Background()

	require.NoError(t, v.Deposit(ctx, alice, 100, "d"))
	require.NoError(t, v.Escrow(ctx, alice, 60, "bet"))

	bal, _ := v.Balance(ctx, alice)
	require.Equal(t, uint64(40), bal)
	tb, _ := v.TreasuryBalance(ctx)
	require.Equal(t, uint64(60), tb)

	require.ErrorIs(t, v.Escrow(ctx, alice, 41, "too much"), ErrInsufficientFunds)
}

func TestPayRequiresAuthority(t *testing.T) {
	v, auth := newVault(t)
	ctx := context.Background()

	require.NoError(t, v.Deposit(ctx, v.Treasury(), 100, "fund"))

	require.ErrorIs(t, v.Pay(ctx, nil, alice, 10, "p"), ErrBadAuthority)

	other := Open(NewMemoryStore(), "other")
	otherAuth, err := other.ClaimAuthority()
	require.NoError(t, err)
	require.ErrorIs(t, v.Pay(ctx, otherAuth, alice, 10, "p"), ErrBadAuthority)

	require.NoError(t, v.Pay(ctx, auth, alice, 10, "p"))
	bal, _ := v.Balance(ctx, alice)
	require.Equal(t, uint64(10), bal)
}

func TestPayChecksTreasurySolvency(t *testing.T) {
	v, auth := newVault(t)
	ctx := context.Background()

	require.NoError(t, v.Deposit(ctx, v.Treasury(), 50, "fund"))
	require.ErrorIs(t, v.Pay(ctx, auth, alice, 51, "p"), ErrInsufficientTreasuryFunds)

	tb, _ := v.TreasuryBalance(ctx)
	require.Equal(t, uint64(50), tb, "failed payout must not move funds")
}

func TestTransferBetweenActors(t *testing.T) {
	v, _ := newVault(t)
	ctx := context.Background()

	require.NoError(t, v.Deposit(ctx, alice, 100, "d"))
	require.NoError(t, v.Transfer(ctx, alice, bob, 30, "fee"))

	aliceBal, _ := v.Balance(ctx, alice)
	bobBal, _ := v.Balance(ctx, bob)
	require.Equal(t, uint64(70), aliceBal)
	require.Equal(t, uint64(30), bobBal)
}

func TestItemStockAndAward(t *testing.T) {
	v, auth := newVault(t)
	ctx := context.Background()

	require.NoError(t, v.StockItem(ctx, "plushies", "p1"))
	require.NoError(t, v.StockItem(ctx, "plushies", "p2"))

	require.NoError(t, v.AwardItem(ctx, auth, alice, "plushies", "p1"))

	items, err := v.Items(ctx, alice, "plushies")
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, items)

	require.ErrorIs(t, v.AwardItem(ctx, auth, alice, "plushies", "p1"), ErrItemNotFound)
	require.ErrorIs(t, v.AwardItem(ctx, nil, alice, "plushies", "p2"), ErrBadAuthority)
}

func TestHistoryRecordsMovements(t *testing.T) {
	v, auth := newVault(t)
	ctx := context.Background()

	require.NoError(t, v.Deposit(ctx, alice, 100, "d"))
	require.NoError(t, v.Escrow(ctx, alice, 40, "bet"))
	require.NoError(t, v.Deposit(ctx, v.Treasury(), 100, "fund"))
	require.NoError(t, v.Pay(ctx, auth, alice, 20, "payout"))

	entries, err := v.History(ctx, "0xaa00000000000000000000000000000000000001", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first; the payout shows up on the recipient's side too.
	require.Equal(t, "payout", entries[0].Type)
	require.Equal(t, "escrow", entries[1].Type)
	require.Equal(t, "deposit", entries[2].Type)
}

func TestHistoryShowsInboundMovements(t *testing.T) {
	v, auth := newVault(t)
	ctx := context.Background()

	require.NoError(t, v.Deposit(ctx, v.Treasury(), 100, "fund"))
	require.NoError(t, v.Pay(ctx, auth, bob, 60, "settle:rnd_1"))
	require.NoError(t, v.Deposit(ctx, alice, 40, "d"))
	require.NoError(t, v.Transfer(ctx, alice, bob, 15, "fee"))

	// Bob never initiated anything; his history still shows what he received.
	entries, err := v.History(ctx, bob, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "transfer", entries[0].Type)
	require.Equal(t, uint64(15), entries[0].Amount)
	require.Equal(t, "payout", entries[1].Type)
	require.Equal(t, uint64(60), entries[1].Amount)
	require.Equal(t, "settle:rnd_1", entries[1].Reference)
}

func TestReclaimItemReturnsToTreasury(t *testing.T) {
	v, auth := newVault(t)
	ctx := context.Background()

	require.NoError(t, v.StockItem(ctx, "plushies", "p1"))
	require.NoError(t, v.AwardItem(ctx, auth, alice, "plushies", "p1"))

	require.ErrorIs(t, v.ReclaimItem(ctx, nil, alice, "plushies", "p1"), ErrBadAuthority)
	require.NoError(t, v.ReclaimItem(ctx, auth, alice, "plushies", "p1"))

	held, err := v.Items(ctx, alice, "plushies")
	require.NoError(t, err)
	require.Empty(t, held)
	back, err := v.Items(ctx, v.Treasury(), "plushies")
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, back)

	require.ErrorIs(t, v.ReclaimItem(ctx, auth, alice, "plushies", "p1"), ErrItemNotFound)
}
