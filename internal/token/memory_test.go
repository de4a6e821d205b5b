package token_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stellar/go/keypair"

	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/token"
)

// setup initializes a reserve over the in-memory service so that tests hold a
// genuine mint capability through the ledger.
func setup(t *testing.T) (token.Service, *reserve.Ledger, string, string) {
	t.Helper()
	ctx := context.Background()

	svc := token.NewInMemory()
	addr, err := reserve.FindAddress(reserve.DefaultLabel, "token-test")
	if err != nil {
		t.Fatalf("find address: %v", err)
	}
	ledger := reserve.New(reserve.NewMemoryStore(), svc, addr)

	authority := keypair.MustRandom().Address()
	r, err := ledger.Initialize(ctx, authority, 2)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return svc, ledger, authority, r.Mint
}

func TestInMemoryService_MintAndBurnMaintainSupply(t *testing.T) {
	ctx := context.Background()
	svc, ledger, authority, mint := setup(t)

	holder := keypair.MustRandom().Address()
	acct, err := svc.OpenAccount(ctx, mint, holder)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}

	if _, err := ledger.Mint(ctx, authority, 10_000, acct.ID, "pix-1"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ledger.Burn(ctx, holder, 1_500, acct.ID, "bank-1"); err != nil {
		t.Fatalf("burn: %v", err)
	}

	got, err := svc.Account(ctx, acct.ID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got.Balance != 8_500 {
		t.Fatalf("expected balance 8500, got %d", got.Balance)
	}

	m, err := svc.Mint(ctx, mint)
	if err != nil {
		t.Fatalf("mint lookup: %v", err)
	}
	if m.Supply != 8_500 {
		t.Fatalf("expected supply 8500, got %d", m.Supply)
	}
	if m.Authority != ledger.Address().Key {
		t.Fatalf("expected mint authority %s, got %s", ledger.Address().Key, m.Authority)
	}
}

func TestInMemoryService_OpenAccountIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, _, mint := setup(t)
	owner := keypair.MustRandom().Address()

	first, err := svc.OpenAccount(ctx, mint, owner)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	second, err := svc.OpenAccount(ctx, mint, owner)
	if err != nil {
		t.Fatalf("reopen account: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same account, got %s and %s", first.ID, second.ID)
	}

	found, err := svc.AccountFor(ctx, mint, owner)
	if err != nil {
		t.Fatalf("account for: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("expected %s, got %s", first.ID, found.ID)
	}

	if _, err := svc.OpenAccount(ctx, "missing", owner); !errors.Is(err, token.ErrMintNotFound) {
		t.Fatalf("expected mint not found, got %v", err)
	}
}

func TestInMemoryService_MintRequiresReserveCapability(t *testing.T) {
	ctx := context.Background()
	svc, _, _, mint := setup(t)
	acct, err := svc.OpenAccount(ctx, mint, keypair.MustRandom().Address())
	if err != nil {
		t.Fatalf("open account: %v", err)
	}

	if err := svc.MintTo(ctx, mint, acct.ID, reserve.Capability{}, 100); !errors.Is(err, token.ErrAuthorityMismatch) {
		t.Fatalf("expected authority mismatch, got %v", err)
	}
	if _, err := svc.CreateMint(ctx, 2, reserve.Capability{}); !errors.Is(err, token.ErrAuthorityMismatch) {
		t.Fatalf("expected authority mismatch on create, got %v", err)
	}
}

func TestInMemoryService_BurnChecksOwnerAndBalance(t *testing.T) {
	ctx := context.Background()
	svc, _, _, mint := setup(t)
	owner := keypair.MustRandom().Address()
	acct, err := svc.OpenAccount(ctx, mint, owner)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	token.SeedBalance(svc, acct.ID, 5_000)

	if err := svc.BurnFrom(ctx, mint, acct.ID, keypair.MustRandom().Address(), 100); !errors.Is(err, token.ErrOwnerMismatch) {
		t.Fatalf("expected owner mismatch, got %v", err)
	}
	if err := svc.BurnFrom(ctx, mint, acct.ID, owner, 10_000); !errors.Is(err, token.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if err := svc.BurnFrom(ctx, mint, "missing", owner, 100); !errors.Is(err, token.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if err := svc.BurnFrom(ctx, mint, acct.ID, owner, 0); !errors.Is(err, token.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := svc.BurnFrom(ctx, mint, acct.ID, owner, 5_000); err != nil {
		t.Fatalf("burn full balance: %v", err)
	}
}

func TestInMemoryService_ConcurrentMints(t *testing.T) {
	ctx := context.Background()
	svc, ledger, authority, mint := setup(t)
	acct, err := svc.OpenAccount(ctx, mint, keypair.MustRandom().Address())
	if err != nil {
		t.Fatalf("open account: %v", err)
	}

	const workers = 10
	const amount = uint64(500)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := ledger.Mint(ctx, authority, amount, acct.ID, fmt.Sprintf("pix-%d", i)); err != nil {
				t.Errorf("mint %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := svc.Account(ctx, acct.ID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got.Balance != workers*amount {
		t.Fatalf("expected balance %d, got %d", workers*amount, got.Balance)
	}

	r, err := ledger.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if r.TotalSupply != got.Balance {
		t.Fatalf("reserve supply %d differs from token balance %d", r.TotalSupply, got.Balance)
	}
}
