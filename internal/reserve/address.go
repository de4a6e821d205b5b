package reserve

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/stellar/go/strkey"
)

const (
	// DefaultLabel is the seed every deployment derives its reserve address from.
	DefaultLabel = "reserve"
	// DefaultProgram identifies the ledger deployment in the derivation.
	DefaultProgram = "RealDigitalReserve"

	derivationMarker = "ProgramDerivedAddress"
)

// ErrNoOffCurveAddress is returned when no bump yields an address without a private key.
var ErrNoOffCurveAddress = errors.New("no off-curve address for label")

// Address is a deterministic, keyless location for the reserve record.
type Address struct {
	Label   string `json:"label"`
	Program string `json:"program"`
	Bump    uint8  `json:"bump"`
	Key     string `json:"key"`
}

// FindAddress walks bump values from 255 down to 0 and returns the first
// derivation that is not a valid ed25519 point.
func FindAddress(label, program string) (Address, error) {
	for bump := 255; bump >= 0; bump-- {
		digest := derive(label, program, uint8(bump))
		if onCurve(digest) {
			continue
		}
		key, err := strkey.Encode(strkey.VersionByteContract, digest[:])
		if err != nil {
			return Address{}, fmt.Errorf("encode derived address: %w", err)
		}
		return Address{Label: label, Program: program, Bump: uint8(bump), Key: key}, nil
	}
	return Address{}, ErrNoOffCurveAddress
}

// VerifyAddress reports whether key is the derivation of label and program at bump.
func VerifyAddress(label, program string, bump uint8, key string) bool {
	digest := derive(label, program, bump)
	if onCurve(digest) {
		return false
	}
	encoded, err := strkey.Encode(strkey.VersionByteContract, digest[:])
	return err == nil && encoded == key
}

func derive(label, program string, bump uint8) [32]byte {
	h := sha256.New()
	h.Write([]byte(label))
	h.Write([]byte{bump})
	h.Write([]byte(program))
	h.Write([]byte(derivationMarker))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func onCurve(b [32]byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}
