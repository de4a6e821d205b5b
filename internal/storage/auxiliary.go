package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

// Op is one step of a Badger transaction built by the Library.
type Op func(*badger.Txn) error

// Combine runs ops in order inside one transaction and stops at the first error.
func Combine(ops ...Op) Op {
	return func(txn *badger.Txn) error {
		for _, op := range ops {
			if err := op(txn); err != nil {
				return err
			}
		}
		return nil
	}
}

func (l *Library) retrieve(key []byte, v any) Op {
	return func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return fmt.Errorf("get %x: %w", key, err)
		}
		if err := item.Value(func(val []byte) error { return l.codec.Unmarshal(val, v) }); err != nil {
			return fmt.Errorf("decode %x: %w", key, err)
		}
		return nil
	}
}

// save encodes value immediately so the caller may reuse it before the op runs.
func (l *Library) save(key []byte, value any) Op {
	val, encErr := l.codec.Marshal(value)
	return func(txn *badger.Txn) error {
		if encErr != nil {
			return fmt.Errorf("encode %x: %w", key, encErr)
		}
		if err := txn.Set(key, val); err != nil {
			return fmt.Errorf("set %x: %w", key, err)
		}
		return nil
	}
}
