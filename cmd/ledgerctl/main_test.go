package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ms-ledger/internal/checkin/signature"
	"ms-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_ProducesVerifiableClaim(t *testing.T) {
	var keys bytes.Buffer
	require.NoError(t, run([]string{"keygen"}, &keys))
	line := strings.SplitN(keys.String(), "\n", 2)[0]
	keyHex := strings.TrimPrefix(line, "private_key: ")

	dir := t.TempDir()
	pngPath := filepath.Join(dir, "claim.png")

	var out bytes.Buffer
	require.NoError(t, run([]string{"sign", "--key", keyHex, "--ticket", "guest-1", "--segments", "0,2", "--qr", pngPath}, &out))

	var claim models.CheckInClaim
	require.NoError(t, json.Unmarshal(out.Bytes(), &claim))
	assert.Equal(t, "guest-1", claim.TicketAddress)
	assert.JSONEq(t, `{"event_segment_ids":[0,2]}`, string(claim.SignedPayload))
	assert.True(t, signature.VerifyClaim(claim.TicketAddress, claim.SignedPayload, claim.Signature, claim.PublicKey))

	png, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
tiers:
  - weight: 1
    label: general
    max_per_wallet: 2
    total_capacity: 10
    prices: [{denom: x, amount: 10}]
    access: {kind: single_segment, segment_id: 0}
segments:
  - description: main
    start: 2026-06-01T18:00:00Z
    end: 2026-06-01T20:00:00Z
`), 0o644))

	var out bytes.Buffer
	require.NoError(t, run([]string{"validate", "--file", good}, &out))
	assert.Contains(t, out.String(), "1 tiers, 1 segments")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
tiers:
  - weight: 1
    label: general
    max_per_wallet: 20
    total_capacity: 10
    prices: [{denom: x, amount: 10}]
    access: {kind: single_segment, segment_id: 0}
segments:
  - description: main
    start: 2026-06-01T18:00:00Z
    end: 2026-06-01T20:00:00Z
`), 0o644))
	err := run([]string{"validate", "-f", bad}, &out)
	assert.ErrorIs(t, err, models.ErrBadTierParams)
}

func TestRun_UnknownCommand(t *testing.T) {
	assert.Error(t, run(nil, &bytes.Buffer{}))
	assert.Error(t, run([]string{"mint"}, &bytes.Buffer{}))
}
