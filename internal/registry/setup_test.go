package registry

import (
	"testing"
	"time"

	"ms-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const setupYAML = `
curator: wallet-1
usher_admins:
  - address: usher-1
    weight: 1
tiers:
  - weight: 2
    label: vip
    max_per_wallet: 2
    total_capacity: 10
    prices:
      - denom: ustake
        amount: 5000
    access:
      kind: all_of_segments
      segment_ids: [0, 1]
  - weight: 1
    label: general
    max_per_wallet: 4
    total_capacity: 100
    prices:
      - denom: ustake
        amount: 1000
    access:
      kind: any_of_segments
      segment_ids: [0, 1]
segments:
  - description: day one
    start: 2026-06-01T18:00:00Z
    end: 2026-06-01T23:00:00Z
  - description: day two
    start: 2026-06-02T18:00:00Z
    end: 2026-06-02T23:00:00Z
`

func TestDecodeSetup(t *testing.T) {
	req, err := DecodeSetup([]byte(setupYAML))
	require.NoError(t, err)

	assert.Equal(t, "wallet-1", req.Curator)
	assert.Equal(t, []models.Member{{Address: "usher-1", Weight: 1}}, req.UsherAdmins)
	require.Len(t, req.Tiers, 2)
	assert.Equal(t, models.AllOfSegments(0, 1), req.Tiers[0].Access)
	assert.Equal(t, []models.Coin{{Denom: "ustake", Amount: 5000}}, req.Tiers[0].Prices)
	require.Len(t, req.Segments, 2)
	assert.Equal(t, time.Date(2026, 6, 2, 18, 0, 0, 0, time.UTC), req.Segments[1].Start.UTC())

	assert.NoError(t, Validate(req))
}

func TestDecodeSetup_RejectsUnknownKeys(t *testing.T) {
	_, err := DecodeSetup([]byte("tiers: []\nvenue: somewhere\n"))
	assert.Error(t, err)
}
