// Package identity manages the ed25519 keys that act on the reserve. Keys are
// Stellar keypairs: public keys travel as G-addresses and secrets are kept in
// S-seed key files readable only by their owner.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

// ErrInvalidAddress is returned for strings that are not ed25519 G-addresses.
var ErrInvalidAddress = errors.New("invalid account address")

// Generate creates a fresh random keypair.
func Generate() (*keypair.Full, error) {
	return keypair.Random()
}

// ParseAddress validates a G-address and returns the public half of the key.
func ParseAddress(address string) (*keypair.FromAddress, error) {
	address = strings.TrimSpace(address)
	if !strkey.IsValidEd25519PublicKey(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return keypair.ParseAddress(address)
}

// LoadOrCreate loads the secret seed stored at path, generating and saving a
// new one when the file is missing or empty.
func LoadOrCreate(path string) (*keypair.Full, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		return create(path)
	}
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Load reads an existing key file.
func Load(path string) (*keypair.Full, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	kp, err := keypair.ParseFull(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	return kp, nil
}

// Save writes the secret seed of kp to path with 0600 permissions.
func Save(path string, kp *keypair.Full) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = fmt.Fprintln(file, kp.Seed())
	return err
}

func create(path string) (*keypair.Full, error) {
	kp, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := Save(path, kp); err != nil {
		return nil, err
	}
	return kp, nil
}
