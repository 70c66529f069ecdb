package signature

import (
	"encoding/json"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreamble(t *testing.T) {
	got := Preamble("guest1", []byte(`{"event_segment_ids":[0]}`))
	want := `{"account_number":"0","chain_id":"","fee":{"amount":[],"gas":"0"},"memo":"",` +
		`"msgs":[{"type":"sign/MsgSignData","value":{"data":"eyJldmVudF9zZWdtZW50X2lkcyI6WzBdfQ==","signer":"guest1"}}],"sequence":"0"}`
	assert.Equal(t, want, got)
	assert.True(t, json.Valid([]byte(got)))
}

func TestSignAndVerify(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	payload := []byte(`{"event_segment_ids":[1,2]}`)

	sig := SignClaim(priv, "guest1", payload)
	require.Len(t, sig, SignatureLength)
	assert.True(t, VerifyClaim("guest1", payload, sig, pub))
	assert.True(t, VerifyClaim("guest1", payload, sig, priv.PubKey().SerializeUncompressed()))

	assert.False(t, VerifyClaim("guest2", payload, sig, pub), "signer is bound into the digest")
	assert.False(t, VerifyClaim("guest1", []byte(`{"event_segment_ids":[1]}`), sig, pub))

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.False(t, VerifyClaim("guest1", payload, sig, other.PubKey().SerializeCompressed()))
}

func TestVerify_RejectsMalformedInput(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	digest := Digest("guest1", []byte("{}"))
	sig := Sign(priv, digest)

	assert.False(t, Verify(digest, sig[:63], pub))
	assert.False(t, Verify(digest[:31], sig, pub))
	assert.False(t, Verify(digest, sig, pub[:32]))
	assert.False(t, Verify(digest, make([]byte, 64), pub))
}

func TestVerify_RejectsHighS(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	digest := Digest("guest1", []byte("{}"))
	sig := Sign(priv, digest)
	require.True(t, Verify(digest, sig, pub))

	// (r, n-s) verifies mathematically but is the malleable form
	var s secp256k1.ModNScalar
	s.SetByteSlice(sig[32:])
	s.Negate()
	high := s.Bytes()

	malleable := append(append([]byte{}, sig[:32]...), high[:]...)
	assert.False(t, Verify(digest, malleable, pub))
}

func TestParsePrivateKey(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	parsed, err := ParsePrivateKey(priv.Serialize())
	require.NoError(t, err)
	assert.Equal(t, priv.PubKey().SerializeCompressed(), parsed.PubKey().SerializeCompressed())

	_, err = ParsePrivateKey([]byte{1, 2})
	assert.Error(t, err)
}
