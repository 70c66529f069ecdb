package event_test

import (
	"context"
	"testing"

	"ms-ledger/internal/ledgertest"
	"ms-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_PersistsRegistries(t *testing.T) {
	ctx := context.Background()
	env := ledgertest.New(t)

	ev := env.Initialize(t,
		[]models.Tier{ledgertest.Tier(2, 1, 5, "x", 50), ledgertest.Tier(1, 5, 10, "x", 1000)},
		ledgertest.Segments(2))

	assert.Equal(t, ledgertest.Curator, ev.Curator)
	assert.Equal(t, ledgertest.License, ev.LicenseAddress)
	assert.NotEqual(t, ev.UsherRoster, ev.GuestRoster)

	tiers, err := env.Service.Tiers(ctx, ev.ID, false)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, uint64(1), tiers[0].Weight)
	assert.Equal(t, models.SingleSegment(0), tiers[0].Access)
	assert.Equal(t, []models.Coin{{Denom: "x", Amount: 1000}}, tiers[0].Prices)

	desc, err := env.Service.Tiers(ctx, ev.ID, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), desc[0].Weight)

	segments, err := env.Service.Segments(ctx, ev.ID, true)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, uint64(1), segments[0].Ordinal)

	counter, err := env.Service.Counter(ctx, ev.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, counter.Reserved)

	options, err := env.Service.PaymentOptions(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "tier", options[1].Label)

	isUsher, err := env.Service.IsUsher(ctx, ev.ID, ledgertest.Usher)
	require.NoError(t, err)
	assert.True(t, isUsher)

	assert.Len(t, env.Producer.Messages(ledgertest.Topics.EventsCreated), 1)
}

func TestInitialize_OverlapLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	env := ledgertest.New(t)

	segments := ledgertest.Segments(2)
	third := models.Segment{
		Description: "late",
		Start:       segments[1].Start.Add(segments[1].End.Sub(segments[1].Start) / 2),
		End:         segments[1].End.Add(segments[1].End.Sub(segments[1].Start) / 2),
	}

	_, err := env.Service.Initialize(ctx, ledgertest.Curator, models.InitializeRequest{
		Tiers:    []models.Tier{ledgertest.Tier(1, 1, 1, "x", 1)},
		Segments: append(segments, third),
	})
	assert.ErrorIs(t, err, models.ErrOverlappingSegmentDates)

	count, err := env.Bun.NewSelect().Model((*models.Event)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = env.Bun.NewSelect().Model((*models.Segment)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, env.Producer.Messages(ledgertest.Topics.EventsCreated))
}

func TestQueries_UnknownEventAndTier(t *testing.T) {
	ctx := context.Background()
	env := ledgertest.New(t)

	_, err := env.Service.Tiers(ctx, "missing", false)
	assert.ErrorIs(t, err, models.ErrEventNotFound)

	ev := env.Initialize(t, []models.Tier{ledgertest.Tier(1, 1, 1, "x", 1)}, ledgertest.Segments(1))
	_, err = env.Service.Tier(ctx, ev.ID, 9)
	assert.ErrorIs(t, err, models.ErrUnknownTier)
	_, err = env.Service.Segment(ctx, ev.ID, 4)
	assert.ErrorIs(t, err, models.ErrUnknownSegment)
}

func TestClaimProceeds(t *testing.T) {
	ctx := context.Background()
	env := ledgertest.New(t)
	ev := env.Initialize(t, []models.Tier{ledgertest.Tier(1, 1, 1, "x", 1)}, ledgertest.Segments(1))

	require.NoError(t, env.EventDB.CreditBalances(ctx, ev.ID, []models.Coin{{Denom: "x", Amount: 970}, {Denom: "y", Amount: 5}}))

	_, err := env.Service.ClaimProceeds(ctx, "stranger", ev.ID)
	assert.ErrorIs(t, err, models.ErrNotCurator)

	transfers, err := env.Service.ClaimProceeds(ctx, ledgertest.Curator, ev.ID)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, ledgertest.Curator, transfers[0].To)
	assert.Equal(t, []models.Coin{{Denom: "x", Amount: 970}, {Denom: "y", Amount: 5}}, transfers[0].Amount)

	balances, err := env.Service.Balances(ctx, ev.ID)
	require.NoError(t, err)
	for _, b := range balances {
		assert.Zero(t, b.Amount)
	}

	again, err := env.Service.ClaimProceeds(ctx, ledgertest.Curator, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, env.Transfers(t), 1)
}

func TestUpdateUshers(t *testing.T) {
	ctx := context.Background()
	env := ledgertest.New(t)
	ev := env.Initialize(t, nil, ledgertest.Segments(1))

	err := env.Service.UpdateUshers(ctx, ledgertest.Usher, ev.ID, []models.Member{{Address: "bob", Weight: 1}}, nil)
	assert.ErrorIs(t, err, models.ErrNotCurator)

	require.NoError(t, env.Service.UpdateUshers(ctx, ledgertest.Curator, ev.ID,
		[]models.Member{{Address: "bob", Weight: 1}}, []string{ledgertest.Usher}))

	ok, err := env.Service.IsUsher(ctx, ev.ID, "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = env.Service.IsUsher(ctx, ev.ID, ledgertest.Usher)
	require.NoError(t, err)
	assert.False(t, ok)
}
