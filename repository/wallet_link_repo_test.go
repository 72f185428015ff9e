package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	addrOne = "0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	addrTwo = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func TestLinkNormalizesAndIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	links := NewWalletLinkRepository(db)
	ctx := context.Background()

	link, err := links.Link(ctx, "owner-1", addrOne)
	require.NoError(t, err)
	require.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", link.Address)
	require.True(t, link.IsPrimary)

	again, err := links.Link(ctx, "owner-1", addrOne)
	require.NoError(t, err)
	require.Equal(t, link.ID, again.ID)

	owner, err := links.FindOwner(ctx, addrOne)
	require.NoError(t, err)
	require.Equal(t, "owner-1", owner)
}

func TestLinkRejectsOtherOwnersWallet(t *testing.T) {
	db := openTestDB(t)
	links := NewWalletLinkRepository(db)
	ctx := context.Background()

	_, err := links.Link(ctx, "owner-1", addrOne)
	require.NoError(t, err)

	_, err = links.Link(ctx, "owner-2", addrOne)
	require.ErrorIs(t, err, ErrWalletLinkedElsewhere)
}

func TestUnlinkPromotesNextPrimary(t *testing.T) {
	db := openTestDB(t)
	links := NewWalletLinkRepository(db)
	ctx := context.Background()

	_, err := links.Link(ctx, "owner-1", addrOne)
	require.NoError(t, err)
	_, err = links.Link(ctx, "owner-1", addrTwo)
	require.NoError(t, err)

	require.NoError(t, links.Unlink(ctx, "owner-1", addrOne))

	got, err := links.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].IsPrimary)

	// Unlinked address becomes relinkable, even by another owner.
	relink, err := links.Link(ctx, "owner-2", addrOne)
	require.NoError(t, err)
	require.Equal(t, "owner-2", relink.OwnerID)
	require.True(t, relink.IsPrimary)

	require.ErrorIs(t, links.Unlink(ctx, "owner-1", addrOne), ErrWalletNotLinked)
}

func TestSetPrimary(t *testing.T) {
	db := openTestDB(t)
	links := NewWalletLinkRepository(db)
	ctx := context.Background()

	_, err := links.Link(ctx, "owner-1", addrOne)
	require.NoError(t, err)
	_, err = links.Link(ctx, "owner-1", addrTwo)
	require.NoError(t, err)

	require.NoError(t, links.SetPrimary(ctx, "owner-1", addrTwo))

	got, err := links.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "0x70997970c51812dc3a010c7d01b50e0d17dc79c8", got[0].Address)
	require.True(t, got[0].IsPrimary)
	require.False(t, got[1].IsPrimary)

	require.ErrorIs(t, links.SetPrimary(ctx, "owner-1", "0x0000000000000000000000000000000000000001"), ErrWalletNotLinked)
}
