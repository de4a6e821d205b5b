package reserve

import (
	"context"
	"sync"
)

// MemoryStore keeps reserves in process memory. A single mutex is held for the
// whole of each transition.
type MemoryStore struct {
	mu         sync.Mutex
	reserves   map[string]Reserve
	entries    map[string][]Entry
	references map[string]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store useful for tests and development.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reserves:   make(map[string]Reserve),
		entries:    make(map[string][]Entry),
		references: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Load(_ context.Context, address string) (Reserve, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reserves[address]
	if !ok {
		return Reserve{}, ErrNotInitialized
	}
	return r, nil
}

func (s *MemoryStore) Create(ctx context.Context, address string, fn TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reserves[address]; ok {
		return ErrAlreadyInitialized
	}
	return s.run(ctx, address, Reserve{}, fn)
}

func (s *MemoryStore) Update(ctx context.Context, address string, fn TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.reserves[address]
	if !ok {
		return ErrNotInitialized
	}
	return s.run(ctx, address, current, fn)
}

func (s *MemoryStore) Entries(_ context.Context, address string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.entries[address]
	if limit <= 0 {
		return nil, nil
	}
	out := make([]Entry, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// run must be called with s.mu held.
func (s *MemoryStore) run(ctx context.Context, address string, current Reserve, fn TxFunc) error {
	tx := &memoryTx{current: current, used: s.references[address]}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if tx.written {
		s.reserves[address] = tx.current
	}
	for _, e := range tx.staged {
		s.entries[address] = append(s.entries[address], e)
		if isReferenced(e) {
			if s.references[address] == nil {
				s.references[address] = make(map[string]struct{})
			}
			s.references[address][e.Reference] = struct{}{}
		}
	}
	return nil
}

type memoryTx struct {
	current Reserve
	written bool
	staged  []Entry
	used    map[string]struct{}
}

func (t *memoryTx) Reserve() Reserve { return t.current }

func (t *memoryTx) Put(r Reserve) {
	t.current = r
	t.written = true
}

func (t *memoryTx) Record(e Entry) error {
	if isReferenced(e) {
		if _, ok := t.used[e.Reference]; ok {
			return ErrDuplicateReference
		}
		for _, staged := range t.staged {
			if isReferenced(staged) && staged.Reference == e.Reference {
				return ErrDuplicateReference
			}
		}
	}
	t.staged = append(t.staged, e)
	return nil
}

// isReferenced reports whether e's reference must be unique within its reserve.
func isReferenced(e Entry) bool {
	return e.Kind == KindMint && e.Reference != ""
}
