//go:build integration

package token_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stellar/go/keypair"

	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/testing/helpers"
	"github.com/ederziomek/real-digital-token/internal/token"
)

func setupPostgres(t *testing.T) (*token.PostgresService, *reserve.Ledger, string, string) {
	t.Helper()
	ctx := context.Background()
	pool := helpers.PostgresPool(t)

	svc := token.NewPostgres(pool)
	if err := svc.EnsureSchema(ctx); err != nil {
		t.Fatalf("token schema: %v", err)
	}
	addr, err := reserve.FindAddress(reserve.DefaultLabel, "token-pg-"+uuid.NewString())
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

func TestPostgresService_MintAndBurnMaintainSupply(t *testing.T) {
	ctx := context.Background()
	svc, ledger, authority, mint := setupPostgres(t)
	holder := keypair.MustRandom().Address()

	acct, err := svc.OpenAccount(ctx, mint, holder)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	again, err := svc.OpenAccount(ctx, mint, holder)
	if err != nil || again.ID != acct.ID {
		t.Fatalf("open account must be idempotent: %v %s != %s", err, again.ID, acct.ID)
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
	supply, err := svc.Supply(ctx, mint)
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply != 8_500 {
		t.Fatalf("expected supply 8500, got %d", supply)
	}
}

func TestPostgresService_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, _, _, mint := setupPostgres(t)
	holder := keypair.MustRandom().Address()

	acct, err := svc.OpenAccount(ctx, mint, holder)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}

	cases := map[string]struct {
		err  error
		want error
	}{
		"zero capability": {svc.MintTo(ctx, mint, acct.ID, reserve.Capability{}, 10), token.ErrAuthorityMismatch},
		"zero amount":     {svc.BurnFrom(ctx, mint, acct.ID, holder, 0), token.ErrInvalidAmount},
		"wrong owner":     {svc.BurnFrom(ctx, mint, acct.ID, keypair.MustRandom().Address(), 1), token.ErrOwnerMismatch},
		"empty account":   {svc.BurnFrom(ctx, mint, acct.ID, holder, 1), token.ErrInsufficientFunds},
	}
	for name, tc := range cases {
		if !errors.Is(tc.err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, tc.err)
		}
	}

	if _, err := svc.Account(ctx, uuid.NewString()); !errors.Is(err, token.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := svc.OpenAccount(ctx, uuid.NewString(), holder); !errors.Is(err, token.ErrMintNotFound) {
		t.Fatalf("expected ErrMintNotFound, got %v", err)
	}
	if _, err := svc.Mint(ctx, uuid.NewString()); !errors.Is(err, token.ErrMintNotFound) {
		t.Fatalf("expected ErrMintNotFound, got %v", err)
	}
}
