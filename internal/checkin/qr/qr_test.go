package qr

import (
	"bytes"
	"testing"

	"ms-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claim() models.CheckInClaim {
	return models.CheckInClaim{
		TicketAddress: "guest1",
		SignedPayload: []byte(`{"event_segment_ids":[0]}`),
		Signature:     bytes.Repeat([]byte{7}, 64),
		PublicKey:     bytes.Repeat([]byte{2}, 33),
	}
}

func TestPNG(t *testing.T) {
	png, err := NewGenerator().PNG(claim())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestPayloadRoundTrip(t *testing.T) {
	text, err := Payload(claim())
	require.NoError(t, err)

	parsed, err := ParsePayload(text)
	require.NoError(t, err)
	assert.Equal(t, claim(), parsed)

	_, err = ParsePayload("not json")
	assert.ErrorIs(t, err, models.ErrInvalidCheckInPayload)
	_, err = ParsePayload(`{"ticket_address":"guest1"}`)
	assert.ErrorIs(t, err, models.ErrInvalidCheckInPayload)
}
