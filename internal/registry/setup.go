package registry

import (
	"bytes"
	"fmt"

	"ms-ledger/internal/models"

	"gopkg.in/yaml.v3"
)

// DecodeSetup reads an event setup file. Unknown keys are rejected.
//
//	curator: wallet-1
//	usher_admins: [{address: usher-1, weight: 1}]
//	tiers:
//	  - weight: 1
//	    label: general
//	    max_per_wallet: 4
//	    total_capacity: 100
//	    prices: [{denom: ustake, amount: 1000}]
//	    access: {kind: single_segment, segment_id: 0}
//	segments:
//	  - description: day one
//	    start: 2026-06-01T18:00:00Z
//	    end: 2026-06-01T23:00:00Z
func DecodeSetup(data []byte) (models.InitializeRequest, error) {
	var req models.InitializeRequest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return models.InitializeRequest{}, fmt.Errorf("decode setup: %w", err)
	}
	return req, nil
}
