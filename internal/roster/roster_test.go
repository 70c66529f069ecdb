package roster_test

import (
	"context"
	"testing"

	"ms-ledger/internal/database"
	"ms-ledger/internal/database/dbtest"
	"ms-ledger/internal/models"
	"ms-ledger/internal/roster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupAddresses(t *testing.T) {
	usher, guest := roster.GroupAddresses("evt-1")
	assert.Len(t, usher, 40)
	assert.Len(t, guest, 40)
	assert.NotEqual(t, usher, guest)

	again, _ := roster.GroupAddresses("evt-1")
	assert.Equal(t, usher, again)

	other, _ := roster.GroupAddresses("evt-2")
	assert.NotEqual(t, usher, other)
}

func TestGroup_Membership(t *testing.T) {
	ctx := context.Background()
	store := roster.NewStore(dbtest.New(t))

	require.NoError(t, store.Instantiate(ctx, "grp", "ushers", "admin", []models.Member{{Address: "alice", Weight: 1}}))
	g := store.Group("grp")

	w, ok, err := g.MemberWeight(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), w)

	_, ok, err = g.MemberWeight(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.UpdateMembers(ctx, []models.Member{{Address: "bob", Weight: 7}, {Address: "alice", Weight: 2}}, nil))
	members, err := g.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Member{{Address: "alice", Weight: 2}, {Address: "bob", Weight: 7}}, members)

	require.NoError(t, g.UpdateMembers(ctx, []models.Member{{Address: "carol", Weight: 1}}, []string{"alice", "carol"}))
	members, err = store.Group("grp").Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Member{{Address: "bob", Weight: 7}}, members)
}

func TestGroup_RollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	store := roster.NewStore(db)

	require.NoError(t, store.Instantiate(ctx, "grp", "guests", "admin", nil))
	g := store.Membership("grp")

	err := database.WithTx(ctx, db, func(ctx context.Context) error {
		if err := g.UpdateMembers(ctx, []models.Member{{Address: "alice", Weight: 1}}, nil); err != nil {
			return err
		}
		return models.ErrCapacityExceeded
	})
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)

	_, ok, err := g.MemberWeight(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroup_RejectsEmptyAddress(t *testing.T) {
	ctx := context.Background()
	store := roster.NewStore(dbtest.New(t))
	require.NoError(t, store.Instantiate(ctx, "grp", "guests", "admin", nil))
	g := store.Group("grp")
	assert.ErrorIs(t, g.UpdateMembers(ctx, []models.Member{{Address: ""}}, nil), models.ErrInvalidAddress)
}
