package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/token"
)

func (l *Library) SaveReserve(address string, r reserve.Reserve) Op {
	return l.save(EncodeKey(PrefixReserve, address), r)
}

func (l *Library) RetrieveReserve(address string, r *reserve.Reserve) Op {
	return l.retrieve(EncodeKey(PrefixReserve, address), r)
}

func (l *Library) SaveSequence(address string, seq uint64) Op {
	return l.save(EncodeKey(PrefixSequence, address), seq)
}

// RetrieveSequence loads the last journal sequence; a missing key yields zero.
func (l *Library) RetrieveSequence(address string, seq *uint64) Op {
	op := l.retrieve(EncodeKey(PrefixSequence, address), seq)
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, badger.ErrKeyNotFound) {
			*seq = 0
			return nil
		}
		return err
	}
}

func (l *Library) SaveEntry(address string, seq uint64, e reserve.Entry) Op {
	return l.save(EncodeKey(PrefixEntry, address, seq), e)
}

func (l *Library) IndexReference(address, reference, entryID string) Op {
	return l.save(EncodeKey(PrefixReference, address, reference), entryID)
}

// LookupReference reports whether a mint reference is already indexed.
func (l *Library) LookupReference(address, reference string, used *bool) Op {
	key := EncodeKey(PrefixReference, address, reference)
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		switch {
		case err == nil:
			*used = true
		case errors.Is(err, badger.ErrKeyNotFound):
			*used = false
		default:
			return fmt.Errorf("could not get reference (key: %x): %w", key, err)
		}
		return nil
	}
}

// IterateEntries decodes up to limit journal entries for address, newest first.
func (l *Library) IterateEntries(address string, limit int, entries *[]reserve.Entry) Op {
	prefix := EncodeKey(PrefixEntry, address)
	return func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(*entries) < limit; it.Next() {
			var e reserve.Entry
			err := it.Item().Value(func(val []byte) error {
				return l.codec.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("could not decode entry (key: %x): %w", it.Item().Key(), err)
			}
			*entries = append(*entries, e)
		}
		return nil
	}
}

func (l *Library) SaveMint(m token.Mint) Op {
	return l.save(EncodeKey(PrefixMint, m.ID), m)
}

func (l *Library) RetrieveMint(id string, m *token.Mint) Op {
	return l.retrieve(EncodeKey(PrefixMint, id), m)
}

func (l *Library) SaveAccount(a token.Account) Op {
	return l.save(EncodeKey(PrefixAccount, a.ID), a)
}

func (l *Library) RetrieveAccount(id string, a *token.Account) Op {
	return l.retrieve(EncodeKey(PrefixAccount, id), a)
}

// IndexHolder maps (mint, owner) to the owner's account id.
func (l *Library) IndexHolder(mint, owner, accountID string) Op {
	return l.save(EncodeKey(PrefixHolder, mint, owner), accountID)
}

func (l *Library) RetrieveHolder(mint, owner string, accountID *string) Op {
	return l.retrieve(EncodeKey(PrefixHolder, mint, owner), accountID)
}
