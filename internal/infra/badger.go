package infra

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

// NewBadgerDB opens the embedded key-value store at path, creating it if needed.
func NewBadgerDB(path string) (*badger.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("badger path is required")
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}
