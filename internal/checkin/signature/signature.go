// Package signature verifies guest check-in claims: a secp256k1 ECDSA
// signature over the sha256 of an off-chain ADR-036 sign document.
package signature

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	SignatureLength = 64
	PublicKeyLength = 33
)

// Preamble wraps data signed by signer in the ADR-036 amino sign document
// that wallets produce for arbitrary messages.
func Preamble(signer string, data []byte) string {
	return fmt.Sprintf(`{"account_number":"0","chain_id":"","fee":{"amount":[],"gas":"0"},"memo":"",`+
		`"msgs":[{"type":"sign/MsgSignData","value":{"data":%s,"signer":%s}}],"sequence":"0"}`,
		quote(base64.StdEncoding.EncodeToString(data)), quote(signer))
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Digest is the 32 byte hash a claim signature covers.
func Digest(signer string, data []byte) []byte {
	sum := sha256.Sum256([]byte(Preamble(signer, data)))
	return sum[:]
}

// Verify checks a 64 byte r||s signature of digest against a compressed or
// uncompressed public key. High-S signatures are rejected.
func Verify(digest, sig, pubKey []byte) bool {
	if len(sig) != SignatureLength || len(digest) != sha256.Size {
		return false
	}
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow || r.IsZero() {
		return false
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow || s.IsZero() {
		return false
	}
	if s.IsOverHalfOrder() {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(digest, pub)
}

// VerifyClaim verifies a claim signed by ticketAddress over payload.
func VerifyClaim(ticketAddress string, payload, sig, pubKey []byte) bool {
	return Verify(Digest(ticketAddress, payload), sig, pubKey)
}

// Sign produces the 64 byte r||s signature of digest. It backs the CLI and
// tests; the service only verifies.
func Sign(priv *secp256k1.PrivateKey, digest []byte) []byte {
	compact := ecdsa.SignCompact(priv, digest, true)
	// drop the leading recovery byte
	return compact[1:]
}

// SignClaim signs payload as ticketAddress.
func SignClaim(priv *secp256k1.PrivateKey, ticketAddress string, payload []byte) []byte {
	return Sign(priv, Digest(ticketAddress, payload))
}

// GenerateKey returns a fresh private key.
func GenerateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// ParsePrivateKey reads a 32 byte private key.
func ParsePrivateKey(b []byte) (*secp256k1.PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	return secp256k1.PrivKeyFromBytes(b), nil
}
