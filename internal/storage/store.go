package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v2"

	"github.com/ederziomek/real-digital-token/internal/reserve"
)

// Store is an embedded reserve store on top of Badger. Transitions are
// serialized by a process-wide mutex and written in a single Badger
// transaction, which Tokens joins through the context.
type Store struct {
	mu  sync.Mutex
	db  *badger.DB
	lib *Library
}

var _ reserve.Store = (*Store)(nil)

// NewStore wraps an open Badger database.
func NewStore(db *badger.DB, lib *Library) *Store {
	return &Store{db: db, lib: lib}
}

func (s *Store) Load(_ context.Context, address string) (reserve.Reserve, error) {
	var r reserve.Reserve
	err := s.db.View(s.lib.RetrieveReserve(address, &r))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return reserve.Reserve{}, reserve.ErrNotInitialized
	}
	return r, err
}

func (s *Store) Create(ctx context.Context, address string, fn reserve.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		var existing reserve.Reserve
		err := s.lib.RetrieveReserve(address, &existing)(txn)
		if err == nil {
			return reserve.ErrAlreadyInitialized
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return s.run(ctx, txn, address, reserve.Reserve{}, fn)
	})
}

func (s *Store) Update(ctx context.Context, address string, fn reserve.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		var current reserve.Reserve
		err := s.lib.RetrieveReserve(address, &current)(txn)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return reserve.ErrNotInitialized
		}
		if err != nil {
			return err
		}
		return s.run(ctx, txn, address, current, fn)
	})
}

func (s *Store) Entries(_ context.Context, address string, limit int) ([]reserve.Entry, error) {
	var entries []reserve.Entry
	if limit <= 0 {
		return entries, nil
	}
	err := s.db.View(s.lib.IterateEntries(address, limit, &entries))
	return entries, err
}

func (s *Store) run(ctx context.Context, txn *badger.Txn, address string, current reserve.Reserve, fn reserve.TxFunc) error {
	btx := &badgerTx{txn: txn, lib: s.lib, address: address, current: current}
	if err := fn(withTxn(ctx, txn), btx); err != nil {
		return err
	}

	var ops []Op
	if btx.written {
		ops = append(ops, s.lib.SaveReserve(address, btx.current))
	}
	if len(btx.staged) > 0 {
		var seq uint64
		if err := s.lib.RetrieveSequence(address, &seq)(txn); err != nil {
			return err
		}
		for _, e := range btx.staged {
			seq++
			ops = append(ops, s.lib.SaveEntry(address, seq, e))
			if e.Kind == reserve.KindMint && e.Reference != "" {
				ops = append(ops, s.lib.IndexReference(address, e.Reference, e.ID))
			}
		}
		ops = append(ops, s.lib.SaveSequence(address, seq))
	}
	return Combine(ops...)(txn)
}

type badgerTx struct {
	txn     *badger.Txn
	lib     *Library
	address string
	current reserve.Reserve
	written bool
	staged  []reserve.Entry
}

func (t *badgerTx) Reserve() reserve.Reserve { return t.current }

func (t *badgerTx) Put(r reserve.Reserve) {
	t.current = r
	t.written = true
}

func (t *badgerTx) Record(e reserve.Entry) error {
	if e.Kind != reserve.KindMint || e.Reference == "" {
		t.staged = append(t.staged, e)
		return nil
	}
	for _, staged := range t.staged {
		if staged.Kind == reserve.KindMint && staged.Reference == e.Reference {
			return reserve.ErrDuplicateReference
		}
	}
	var used bool
	if err := t.lib.LookupReference(t.address, e.Reference, &used)(t.txn); err != nil {
		return err
	}
	if used {
		return reserve.ErrDuplicateReference
	}
	t.staged = append(t.staged, e)
	return nil
}
