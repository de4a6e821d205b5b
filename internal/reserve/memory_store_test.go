package reserve

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreDiscardsFailedTransition(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Create(ctx, "addr", func(_ context.Context, tx Tx) error {
		tx.Put(Reserve{Address: "addr", TotalSupply: 0})
		return tx.Record(Entry{ID: "1", Kind: KindInitialize})
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err = s.Update(ctx, "addr", func(_ context.Context, tx Tx) error {
		r := tx.Reserve()
		r.TotalSupply = 99
		tx.Put(r)
		if err := tx.Record(Entry{ID: "2", Kind: KindMint, Reference: "ref"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	r, err := s.Load(ctx, "addr")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.TotalSupply != 0 {
		t.Fatalf("failed transition leaked supply %d", r.TotalSupply)
	}
	entries, err := s.Entries(ctx, "addr", 10)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	err = s.Update(ctx, "addr", func(_ context.Context, tx Tx) error {
		return tx.Record(Entry{ID: "3", Kind: KindMint, Reference: "ref"})
	})
	if err != nil {
		t.Fatalf("reference from discarded transition should be free: %v", err)
	}
}

func TestMemoryStoreReferenceUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Create(ctx, "addr", func(_ context.Context, tx Tx) error {
		tx.Put(Reserve{Address: "addr"})
		return nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := s.Update(ctx, "addr", func(_ context.Context, tx Tx) error {
		if err := tx.Record(Entry{Kind: KindMint, Reference: "pix"}); err != nil {
			return err
		}
		return tx.Record(Entry{Kind: KindMint, Reference: "pix"})
	})
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate within one transition, got %v", err)
	}

	if err := s.Update(ctx, "addr", func(_ context.Context, tx Tx) error {
		if err := tx.Record(Entry{Kind: KindMint, Reference: "pix"}); err != nil {
			return err
		}
		return tx.Record(Entry{Kind: KindBurn, Reference: "pix"})
	}); err != nil {
		t.Fatalf("burn references are not unique: %v", err)
	}

	err = s.Update(ctx, "addr", func(_ context.Context, tx Tx) error {
		return tx.Record(Entry{Kind: KindMint, Reference: "pix"})
	})
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate across transitions, got %v", err)
	}
}

func TestMemoryStoreLifecycleErrors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	noop := func(context.Context, Tx) error { return nil }

	if err := s.Update(ctx, "addr", noop); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := s.Load(ctx, "addr"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := s.Create(ctx, "addr", func(_ context.Context, tx Tx) error {
		tx.Put(Reserve{Address: "addr"})
		return nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, "addr", noop); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected already initialized, got %v", err)
	}
}
