// Command ledgerctl is the operator tool for ledger setup files and check-in
// claims.
//
//	ledgerctl keygen
//	ledgerctl sign --key HEX --ticket ADDR --segments 0,2 [--qr claim.png]
//	ledgerctl validate --file event.yaml
package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"ms-ledger/internal/checkin/qr"
	"ms-ledger/internal/checkin/signature"
	"ms-ledger/internal/models"
	"ms-ledger/internal/registry"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: ledgerctl keygen|sign|validate [flags]")
	}
	switch args[0] {
	case "keygen":
		return keygen(out)
	case "sign":
		return sign(args[1:], out)
	case "validate":
		return validate(args[1:], out)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func keygen(out io.Writer) error {
	priv, err := signature.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "private_key: %s\n", hex.EncodeToString(priv.Serialize()))
	fmt.Fprintf(out, "public_key: %s\n", base64.StdEncoding.EncodeToString(priv.PubKey().SerializeCompressed()))
	return nil
}

func sign(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("sign", pflag.ContinueOnError)
	keyHex := fs.String("key", "", "hex encoded secp256k1 private key")
	ticket := fs.String("ticket", "", "ticket address signing the claim")
	segments := fs.UintSlice("segments", nil, "segment ids to claim")
	qrPath := fs.String("qr", "", "also write the claim as a PNG QR code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *keyHex == "" || *ticket == "" {
		return fmt.Errorf("--key and --ticket are required")
	}

	raw, err := hex.DecodeString(*keyHex)
	if err != nil {
		return fmt.Errorf("bad key: %w", err)
	}
	priv, err := signature.ParsePrivateKey(raw)
	if err != nil {
		return err
	}

	ids := make([]uint64, len(*segments))
	for i, s := range *segments {
		ids[i] = uint64(s)
	}
	payload, err := json.Marshal(models.CheckInPayload{SegmentIDs: ids})
	if err != nil {
		return err
	}
	claim := models.CheckInClaim{
		TicketAddress: *ticket,
		SignedPayload: payload,
		Signature:     signature.SignClaim(priv, *ticket, payload),
		PublicKey:     priv.PubKey().SerializeCompressed(),
	}

	if *qrPath != "" {
		png, err := qr.NewGenerator().PNG(claim)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*qrPath, png, 0o644); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(claim)
}

func validate(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	file := fs.StringP("file", "f", "", "event setup YAML file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	req, err := registry.DecodeSetup(data)
	if err != nil {
		return err
	}
	if err := registry.Validate(req); err != nil {
		return fmt.Errorf("%s: %w", *file, err)
	}

	fmt.Fprintf(out, "%s %s: %d tiers, %d segments\n", color.GreenString("ok"), *file, len(req.Tiers), len(req.Segments))
	return nil
}
