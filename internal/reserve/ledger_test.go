package reserve_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stellar/go/keypair"

	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/token"
)

type flakyTokens struct {
	token.Service
	fail bool
}

func (f *flakyTokens) MintTo(ctx context.Context, mint, destination string, authority reserve.Capability, amount uint64) error {
	if f.fail {
		return errors.New("token service unavailable")
	}
	return f.Service.MintTo(ctx, mint, destination, authority, amount)
}

func (f *flakyTokens) BurnFrom(ctx context.Context, mint, source, owner string, amount uint64) error {
	if f.fail {
		return errors.New("token service unavailable")
	}
	return f.Service.BurnFrom(ctx, mint, source, owner, amount)
}

func (f *flakyTokens) Supply(ctx context.Context, mint string) (uint64, error) {
	if f.fail {
		return 0, errors.New("token service unavailable")
	}
	return f.Service.Supply(ctx, mint)
}

type recorder struct {
	mu        sync.Mutex
	committed []reserve.EntryKind
	rejected  []reserve.Code
	events    []reserve.Event
}

func (r *recorder) Committed(entry reserve.Entry, _ reserve.Reserve) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, entry.Kind)
}

func (r *recorder) Rejected(_ reserve.EntryKind, code reserve.Code) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, code)
}

func (r *recorder) Publish(_ context.Context, event reserve.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	ledger    *reserve.Ledger
	tokens    *flakyTokens
	store     *reserve.MemoryStore
	rec       *recorder
	authority string
	holder    string
	account   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	addr, err := reserve.FindAddress(reserve.DefaultLabel, reserve.DefaultProgram)
	if err != nil {
		t.Fatalf("find address: %v", err)
	}
	f := &fixture{
		tokens:    &flakyTokens{Service: token.NewInMemory()},
		store:     reserve.NewMemoryStore(),
		rec:       &recorder{},
		authority: keypair.MustRandom().Address(),
		holder:    keypair.MustRandom().Address(),
	}
	f.ledger = reserve.New(f.store, f.tokens, addr, reserve.WithObserver(f.rec), reserve.WithPublisher(f.rec))

	r, err := f.ledger.Initialize(ctx, f.authority, 2)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	acct, err := f.tokens.OpenAccount(ctx, r.Mint, f.holder)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	f.account = acct.ID
	return f
}

func (f *fixture) reserve(t *testing.T) reserve.Reserve {
	t.Helper()
	r, err := f.ledger.Reserve(context.Background())
	if err != nil {
		t.Fatalf("load reserve: %v", err)
	}
	return r
}

func assertInvariants(t *testing.T, r reserve.Reserve) {
	t.Helper()
	if r.TotalSupply != r.TotalMinted-r.TotalBurned {
		t.Fatalf("supply %d != minted %d - burned %d", r.TotalSupply, r.TotalMinted, r.TotalBurned)
	}
	if r.BRLReserve != r.TotalSupply {
		t.Fatalf("reserve %d != supply %d", r.BRLReserve, r.TotalSupply)
	}
}

func TestInitialize(t *testing.T) {
	f := newFixture(t)
	r := f.reserve(t)

	if r.Authority != f.authority {
		t.Fatalf("expected authority %s, got %s", f.authority, r.Authority)
	}
	if r.TotalSupply != 0 || r.BRLReserve != 0 || r.TotalMinted != 0 || r.TotalBurned != 0 {
		t.Fatalf("expected zero counters, got %+v", r)
	}
	if r.Paused {
		t.Fatal("expected reserve to start active")
	}
	if r.Decimals != 2 {
		t.Fatalf("expected 2 decimals, got %d", r.Decimals)
	}
	if r.MintLimit != reserve.DefaultMintLimit {
		t.Fatalf("expected mint limit %d, got %d", reserve.DefaultMintLimit, r.MintLimit)
	}
	if !reserve.VerifyAddress(reserve.DefaultLabel, reserve.DefaultProgram, r.Bump, r.Address) {
		t.Fatalf("stored address %s does not verify with bump %d", r.Address, r.Bump)
	}
}

func TestInitializeTwiceFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Initialize(context.Background(), keypair.MustRandom().Address(), 2)
	if !errors.Is(err, reserve.ErrAlreadyInitialized) {
		t.Fatalf("expected already initialized, got %v", err)
	}
	if f.reserve(t).Authority != f.authority {
		t.Fatal("second initialize must not change the authority")
	}
}

func TestInitializeValidatesInput(t *testing.T) {
	ctx := context.Background()
	addr, err := reserve.FindAddress(reserve.DefaultLabel, "validate")
	if err != nil {
		t.Fatalf("find address: %v", err)
	}
	l := reserve.New(reserve.NewMemoryStore(), token.NewInMemory(), addr)

	if _, err := l.Initialize(ctx, "not-an-address", 2); !errors.Is(err, reserve.ErrInvalidAuthority) {
		t.Fatalf("expected invalid authority, got %v", err)
	}
	if _, err := l.Initialize(ctx, keypair.MustRandom().Address(), 19); !errors.Is(err, reserve.ErrInvalidDecimals) {
		t.Fatalf("expected invalid decimals, got %v", err)
	}
	if _, err := l.Reserve(ctx); !errors.Is(err, reserve.ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

func TestOperationsBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	addr, err := reserve.FindAddress(reserve.DefaultLabel, "empty")
	if err != nil {
		t.Fatalf("find address: %v", err)
	}
	l := reserve.New(reserve.NewMemoryStore(), token.NewInMemory(), addr)
	caller := keypair.MustRandom().Address()

	if _, err := l.Mint(ctx, caller, 1, "acct", "ref"); !errors.Is(err, reserve.ErrNotInitialized) {
		t.Fatalf("mint: expected not initialized, got %v", err)
	}
	if _, err := l.Pause(ctx, caller); !errors.Is(err, reserve.ErrNotInitialized) {
		t.Fatalf("pause: expected not initialized, got %v", err)
	}
	if _, err := l.History(ctx, 10); !errors.Is(err, reserve.ErrNotInitialized) {
		t.Fatalf("history: expected not initialized, got %v", err)
	}
}

func TestScenarioMintBurnPause(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.ledger.Mint(ctx, f.authority, 1000, f.account, "ref1"); err != nil {
		t.Fatalf("mint 1000: %v", err)
	}
	r := f.reserve(t)
	if r.TotalSupply != 1000 || r.BRLReserve != 1000 || r.TotalMinted != 1000 {
		t.Fatalf("unexpected state after mint: %+v", r)
	}

	if _, err := f.ledger.Burn(ctx, f.holder, 400, f.account, "ref2"); err != nil {
		t.Fatalf("burn 400: %v", err)
	}
	r = f.reserve(t)
	if r.TotalSupply != 600 || r.BRLReserve != 600 || r.TotalMinted != 1000 || r.TotalBurned != 400 {
		t.Fatalf("unexpected state after burn: %+v", r)
	}

	if _, err := f.ledger.Pause(ctx, f.authority); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, 1, f.account, "ref3"); !errors.Is(err, reserve.ErrContractPaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if f.reserve(t).TotalSupply != 600 {
		t.Fatal("paused mint must not change supply")
	}

	if _, err := f.ledger.Unpause(ctx, f.authority); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, 1, f.account, "ref3"); err != nil {
		t.Fatalf("mint after unpause: %v", err)
	}

	r = f.reserve(t)
	if r.TotalSupply != 601 || r.BRLReserve != 601 {
		t.Fatalf("expected supply 601, got %+v", r)
	}
	assertInvariants(t, r)

	acct, err := f.tokens.Account(ctx, f.account)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.Balance != 601 {
		t.Fatalf("expected token balance 601, got %d", acct.Balance)
	}
}

func TestScenarioAuthorityTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	next := keypair.MustRandom().Address()

	if _, err := f.ledger.TransferAuthority(ctx, f.authority, next); err != nil {
		t.Fatalf("transfer authority: %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, 10, f.account, "a"); !errors.Is(err, reserve.ErrUnauthorized) {
		t.Fatalf("expected old authority to be rejected, got %v", err)
	}
	if _, err := f.ledger.Mint(ctx, next, 10, f.account, "b"); err != nil {
		t.Fatalf("mint by new authority: %v", err)
	}
	if f.reserve(t).Authority != next {
		t.Fatal("authority not updated")
	}
}

func TestAuthorityGatedOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stranger := keypair.MustRandom().Address()

	if _, err := f.ledger.Mint(ctx, stranger, 10, f.account, "x"); !errors.Is(err, reserve.ErrUnauthorized) {
		t.Fatalf("mint: expected unauthorized, got %v", err)
	}
	if _, err := f.ledger.Pause(ctx, stranger); !errors.Is(err, reserve.ErrUnauthorized) {
		t.Fatalf("pause: expected unauthorized, got %v", err)
	}
	if _, err := f.ledger.Unpause(ctx, stranger); !errors.Is(err, reserve.ErrUnauthorized) {
		t.Fatalf("unpause: expected unauthorized, got %v", err)
	}
	if _, err := f.ledger.TransferAuthority(ctx, stranger, stranger); !errors.Is(err, reserve.ErrUnauthorized) {
		t.Fatalf("transfer: expected unauthorized, got %v", err)
	}
	if _, err := f.ledger.SetMintLimit(ctx, stranger, 1); !errors.Is(err, reserve.ErrUnauthorized) {
		t.Fatalf("set mint limit: expected unauthorized, got %v", err)
	}
	if _, err := f.ledger.ProposeAuthority(ctx, stranger, stranger); !errors.Is(err, reserve.ErrUnauthorized) {
		t.Fatalf("propose: expected unauthorized, got %v", err)
	}
}

func TestUnauthorizedCheckedBeforePause(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ledger.Pause(ctx, f.authority); err != nil {
		t.Fatalf("pause: %v", err)
	}
	_, err := f.ledger.Mint(ctx, keypair.MustRandom().Address(), 0, f.account, "")
	if !errors.Is(err, reserve.ErrUnauthorized) {
		t.Fatalf("expected unauthorized to win over paused, got %v", err)
	}
}

func TestMintAmountBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.ledger.Mint(ctx, f.authority, 0, f.account, "zero"); !errors.Is(err, reserve.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, reserve.DefaultMintLimit+1, f.account, "over"); !errors.Is(err, reserve.ErrAmountTooLarge) {
		t.Fatalf("expected amount too large, got %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, reserve.DefaultMintLimit, f.account, "ceiling"); err != nil {
		t.Fatalf("mint at ceiling: %v", err)
	}
	if got := f.reserve(t).TotalSupply; got != reserve.DefaultMintLimit {
		t.Fatalf("expected supply %d, got %d", reserve.DefaultMintLimit, got)
	}
}

func TestBurnBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ledger.Mint(ctx, f.authority, 500, f.account, "dep"); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := f.ledger.Burn(ctx, f.holder, 0, f.account, "bank"); !errors.Is(err, reserve.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.ledger.Burn(ctx, f.holder, 501, f.account, "bank"); !errors.Is(err, reserve.ErrInsufficientSupply) {
		t.Fatalf("expected insufficient supply, got %v", err)
	}
	if _, err := f.ledger.Burn(ctx, f.holder, 500, f.account, "bank"); err != nil {
		t.Fatalf("burn entire supply: %v", err)
	}
	r := f.reserve(t)
	if r.TotalSupply != 0 || r.BRLReserve != 0 || r.TotalBurned != 500 {
		t.Fatalf("unexpected state after full burn: %+v", r)
	}
}

func TestBurnIsSelfService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, "dep"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.ledger.Pause(ctx, f.authority); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.ledger.Burn(ctx, f.holder, 10, f.account, "bank"); !errors.Is(err, reserve.ErrContractPaused) {
		t.Fatalf("expected paused burn to fail, got %v", err)
	}
	if _, err := f.ledger.Unpause(ctx, f.authority); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := f.ledger.Burn(ctx, f.holder, 10, f.account, "bank"); err != nil {
		t.Fatalf("holder burn: %v", err)
	}
}

func TestBurnOfForeignAccountFailsExternally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, "dep"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	_, err := f.ledger.Burn(ctx, keypair.MustRandom().Address(), 10, f.account, "bank")
	if !errors.Is(err, reserve.ErrExternalServiceFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
	if !errors.Is(err, token.ErrOwnerMismatch) {
		t.Fatalf("expected owner mismatch cause, got %v", err)
	}
	if f.reserve(t).TotalSupply != 100 {
		t.Fatal("rejected burn must not change supply")
	}
}

func TestPauseAndUnpauseAreIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		r, err := f.ledger.Pause(ctx, f.authority)
		if err != nil {
			t.Fatalf("pause %d: %v", i, err)
		}
		if !r.Paused {
			t.Fatal("expected paused")
		}
	}
	for i := 0; i < 2; i++ {
		r, err := f.ledger.Unpause(ctx, f.authority)
		if err != nil {
			t.Fatalf("unpause %d: %v", i, err)
		}
		if r.Paused {
			t.Fatal("expected active")
		}
	}
}

func TestGovernanceWorksWhilePaused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ledger.Pause(ctx, f.authority); err != nil {
		t.Fatalf("pause: %v", err)
	}
	next := keypair.MustRandom().Address()
	if _, err := f.ledger.TransferAuthority(ctx, f.authority, next); err != nil {
		t.Fatalf("transfer while paused: %v", err)
	}
	if _, err := f.ledger.Unpause(ctx, next); err != nil {
		t.Fatalf("unpause by new authority: %v", err)
	}
}

func TestTransferAuthorityToSelfAndInvalid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ledger.TransferAuthority(ctx, f.authority, f.authority); err != nil {
		t.Fatalf("transfer to self: %v", err)
	}
	if _, err := f.ledger.TransferAuthority(ctx, f.authority, ""); !errors.Is(err, reserve.ErrInvalidAuthority) {
		t.Fatalf("expected invalid authority, got %v", err)
	}
	if f.reserve(t).Authority != f.authority {
		t.Fatal("authority changed unexpectedly")
	}
}

func TestTwoPhaseAuthorityHandoff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	candidate := keypair.MustRandom().Address()

	if _, err := f.ledger.AcceptAuthority(ctx, candidate); !errors.Is(err, reserve.ErrNoPendingAuthority) {
		t.Fatalf("expected no pending authority, got %v", err)
	}

	r, err := f.ledger.ProposeAuthority(ctx, f.authority, candidate)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if r.PendingAuthority != candidate || r.Authority != f.authority {
		t.Fatalf("unexpected state after propose: %+v", r)
	}

	if _, err := f.ledger.AcceptAuthority(ctx, keypair.MustRandom().Address()); !errors.Is(err, reserve.ErrUnauthorized) {
		t.Fatalf("expected unauthorized accept, got %v", err)
	}

	r, err = f.ledger.AcceptAuthority(ctx, candidate)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if r.Authority != candidate || r.PendingAuthority != "" {
		t.Fatalf("unexpected state after accept: %+v", r)
	}
}

func TestTransferAuthorityClearsProposal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	candidate := keypair.MustRandom().Address()
	next := keypair.MustRandom().Address()

	if _, err := f.ledger.ProposeAuthority(ctx, f.authority, candidate); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.ledger.TransferAuthority(ctx, f.authority, next); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := f.ledger.AcceptAuthority(ctx, candidate); !errors.Is(err, reserve.ErrNoPendingAuthority) {
		t.Fatalf("expected stale proposal to be dropped, got %v", err)
	}
}

func TestSetMintLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.ledger.SetMintLimit(ctx, f.authority, 0); !errors.Is(err, reserve.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.ledger.SetMintLimit(ctx, f.authority, 50); err != nil {
		t.Fatalf("set mint limit: %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, 51, f.account, "a"); !errors.Is(err, reserve.ErrAmountTooLarge) {
		t.Fatalf("expected amount too large, got %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, 50, f.account, "b"); err != nil {
		t.Fatalf("mint at new limit: %v", err)
	}
}

func TestDuplicateDepositReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, "pix-e2e-1"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, "pix-e2e-1"); !errors.Is(err, reserve.ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, ""); err != nil {
		t.Fatalf("mint without reference: %v", err)
	}
	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, ""); err != nil {
		t.Fatalf("second mint without reference: %v", err)
	}
	if got := f.reserve(t).TotalSupply; got != 300 {
		t.Fatalf("expected supply 300, got %d", got)
	}
}

func TestExternalFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, "dep-1"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	before := f.reserve(t)
	history, err := f.ledger.History(ctx, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	f.tokens.fail = true
	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, "dep-2"); !errors.Is(err, reserve.ErrExternalServiceFailure) {
		t.Fatalf("expected external failure on mint, got %v", err)
	}
	if _, err := f.ledger.Burn(ctx, f.holder, 50, f.account, "bank"); !errors.Is(err, reserve.ErrExternalServiceFailure) {
		t.Fatalf("expected external failure on burn, got %v", err)
	}

	after := f.reserve(t)
	if after != before {
		t.Fatalf("state changed after failed calls: before %+v after %+v", before, after)
	}
	afterHistory, err := f.ledger.History(ctx, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(afterHistory) != len(history) {
		t.Fatalf("journal grew from %d to %d entries", len(history), len(afterHistory))
	}

	f.tokens.fail = false
	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, "dep-2"); err != nil {
		t.Fatalf("reference of a failed mint must stay usable: %v", err)
	}
}

func TestMintOverflow(t *testing.T) {
	ctx := context.Background()
	addr, err := reserve.FindAddress(reserve.DefaultLabel, "overflow")
	if err != nil {
		t.Fatalf("find address: %v", err)
	}
	store := reserve.NewMemoryStore()
	tokens := token.NewInMemory()
	authority := keypair.MustRandom().Address()
	l := reserve.New(store, tokens, addr, reserve.WithMintLimit(math.MaxUint64))

	r, err := l.Initialize(ctx, authority, 2)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	acct, err := tokens.OpenAccount(ctx, r.Mint, authority)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}

	err = store.Update(ctx, addr.Key, func(_ context.Context, tx reserve.Tx) error {
		near := tx.Reserve()
		near.TotalSupply = math.MaxUint64 - 5
		near.BRLReserve = math.MaxUint64 - 5
		near.TotalMinted = math.MaxUint64 - 5
		tx.Put(near)
		return nil
	})
	if err != nil {
		t.Fatalf("seed counters: %v", err)
	}

	if _, err := l.Mint(ctx, authority, 10, acct.ID, "big"); !errors.Is(err, reserve.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if got := loadReserve(t, l).TotalSupply; got != math.MaxUint64-5 {
		t.Fatalf("supply changed on overflow: %d", got)
	}
}

func loadReserve(t *testing.T, l *reserve.Ledger) reserve.Reserve {
	t.Helper()
	r, err := l.Reserve(context.Background())
	if err != nil {
		t.Fatalf("load reserve: %v", err)
	}
	return r
}

func TestHistoryAndEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ledger.Mint(ctx, f.authority, 100, f.account, "dep"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.ledger.Burn(ctx, f.holder, 40, f.account, "bank-acct"); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if _, err := f.ledger.Pause(ctx, f.authority); err != nil {
		t.Fatalf("pause: %v", err)
	}

	entries, err := f.ledger.History(ctx, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != reserve.KindPause || entries[1].Kind != reserve.KindBurn {
		t.Fatalf("unexpected order: %s, %s", entries[0].Kind, entries[1].Kind)
	}
	if entries[1].Amount != 40 || entries[1].Reference != "bank-acct" || entries[1].TotalSupply != 60 {
		t.Fatalf("unexpected burn entry: %+v", entries[1])
	}

	want := []reserve.EntryKind{reserve.KindInitialize, reserve.KindMint, reserve.KindBurn, reserve.KindPause}
	if len(f.rec.committed) != len(want) || len(f.rec.events) != len(want) {
		t.Fatalf("expected %d commits and events, got %d and %d", len(want), len(f.rec.committed), len(f.rec.events))
	}
	for i, kind := range want {
		if f.rec.committed[i] != kind || f.rec.events[i].Kind != kind {
			t.Fatalf("event %d: expected %s, got %s/%s", i, kind, f.rec.committed[i], f.rec.events[i].Kind)
		}
	}

	if _, err := f.ledger.Mint(ctx, f.authority, 1, f.account, "x"); err == nil {
		t.Fatal("expected paused mint to fail")
	}
	if n := len(f.rec.rejected); n != 1 || f.rec.rejected[0] != reserve.CodeContractPaused {
		t.Fatalf("expected one paused rejection, got %v", f.rec.rejected)
	}
}

func TestConcurrentOperationsPreserveInvariants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.ledger.Mint(ctx, f.authority, 10_000, f.account, "seed"); err != nil {
		t.Fatalf("seed mint: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Mint(ctx, f.authority, 10, f.account, ""); err != nil {
				t.Errorf("mint: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Burn(ctx, f.holder, 5, f.account, "bank"); err != nil {
				t.Errorf("burn: %v", err)
			}
		}()
	}
	wg.Wait()

	r := f.reserve(t)
	assertInvariants(t, r)
	if r.TotalSupply != 10_000+20*10-20*5 {
		t.Fatalf("unexpected supply %d", r.TotalSupply)
	}
}

func TestReportReconcilesTokenSupply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.Mint(ctx, f.authority, 1_000, f.account, "pix-report"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	rep, err := f.ledger.Report(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !rep.Healthy() || !rep.TokenSupplyMatches || rep.TokenSupply != 1_000 {
		t.Fatalf("expected healthy reconciled report, got %+v", rep)
	}

	// Tokens created behind the ledger's back.
	token.SeedBalance(f.tokens.Service, f.account, 50)
	rep, err = f.ledger.Report(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Healthy() || rep.TokenSupplyMatches {
		t.Fatalf("expected divergence to be reported, got %+v", rep)
	}
	if rep.TokenSupply != 1_050 || rep.Reserve.TotalSupply != 1_000 {
		t.Fatalf("unexpected supplies: token %d reserve %d", rep.TokenSupply, rep.Reserve.TotalSupply)
	}
	if !rep.SupplyConsistent || !rep.Parity {
		t.Fatalf("reserve counters themselves are consistent: %+v", rep)
	}
}

func TestReportFlagsUnreachableTokenService(t *testing.T) {
	f := newFixture(t)
	f.tokens.fail = true

	rep, err := f.ledger.Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Healthy() || rep.TokenSupplyMatches {
		t.Fatalf("expected unhealthy report when token supply is unavailable, got %+v", rep)
	}
}
