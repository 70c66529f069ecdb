// Package qr renders signed check-in claims as QR codes for ushers to scan.
package qr

import (
	"encoding/json"
	"fmt"

	"ms-ledger/internal/models"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

type Generator struct {
	Size  int
	Level qrcode.RecoveryLevel
}

func NewGenerator() *Generator {
	return &Generator{Size: DefaultSize, Level: qrcode.Medium}
}

// Payload is the text encoded in the QR code: the claim as JSON.
func Payload(claim models.CheckInClaim) (string, error) {
	b, err := json.Marshal(claim)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParsePayload reads a scanned QR text back into a claim.
func ParsePayload(text string) (models.CheckInClaim, error) {
	var claim models.CheckInClaim
	if err := json.Unmarshal([]byte(text), &claim); err != nil {
		return models.CheckInClaim{}, fmt.Errorf("scanned claim: %w", models.ErrInvalidCheckInPayload)
	}
	if claim.TicketAddress == "" || len(claim.Signature) == 0 || len(claim.PublicKey) == 0 {
		return models.CheckInClaim{}, fmt.Errorf("scanned claim is incomplete: %w", models.ErrInvalidCheckInPayload)
	}
	return claim, nil
}

// PNG renders the claim.
func (g *Generator) PNG(claim models.CheckInClaim) ([]byte, error) {
	text, err := Payload(claim)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(text, g.Level, g.Size)
}
