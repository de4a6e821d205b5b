package reserve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go/strkey"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Event is emitted after every committed transition.
type Event struct {
	Kind    EntryKind `json:"kind"`
	Entry   Entry     `json:"entry"`
	Reserve Reserve   `json:"reserve"`
}

// Publisher delivers committed events downstream. Failures are logged and
// never undo a committed transition.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Observer is notified of the outcome of each operation.
type Observer interface {
	Committed(entry Entry, state Reserve)
	Rejected(kind EntryKind, code Code)
}

// Ledger owns the reserve record and enforces every rule on it.
type Ledger struct {
	store     Store
	tokens    TokenService
	address   Address
	mintLimit uint64
	publisher Publisher
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger for operation records.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithPublisher sets the downstream event publisher.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithObserver sets the operation observer.
func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithMintLimit sets the ceiling stored on the reserve at initialization.
func WithMintLimit(limit uint64) Option {
	return func(l *Ledger) {
		if limit > 0 {
			l.mintLimit = limit
		}
	}
}

// New builds a ledger for the reserve located at address.
func New(store Store, tokens TokenService, address Address, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		tokens:    tokens,
		address:   address,
		mintLimit: DefaultMintLimit,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Address returns the derived location of the reserve.
func (l *Ledger) Address() Address {
	return l.address
}

func (l *Ledger) capability() Capability {
	return Capability{authority: l.address.Key}
}

// Initialize creates the reserve and its mint with caller as the authority.
func (l *Ledger) Initialize(ctx context.Context, caller string, decimals uint8) (Reserve, error) {
	receipt, err := l.commit(ctx, KindInitialize, true, func(ctx context.Context, tx Tx) (Receipt, error) {
		if !strkey.IsValidEd25519PublicKey(caller) {
			return Receipt{}, ErrInvalidAuthority
		}
		if decimals > MaxDecimals {
			return Receipt{}, newError(CodeInvalidDecimals, fmt.Sprintf("decimals %d above %d", decimals, MaxDecimals), nil)
		}

		mint, err := l.tokens.CreateMint(ctx, decimals, l.capability())
		if err != nil {
			return Receipt{}, newError(CodeExternalServiceFailure, "create mint", err)
		}

		now := l.now()
		next := Reserve{
			Address:   l.address.Key,
			Bump:      l.address.Bump,
			Authority: caller,
			Mint:      mint,
			Decimals:  decimals,
			MintLimit: l.mintLimit,
			CreatedAt: now,
			UpdatedAt: now,
		}
		entry := l.entry(KindInitialize, caller, next)
		entry.Account = mint
		if err := tx.Record(entry); err != nil {
			return Receipt{}, err
		}
		tx.Put(next)
		return Receipt{Reserve: next, Entry: entry}, nil
	})
	return receipt.Reserve, err
}

// Mint issues amount new tokens into recipient against a confirmed fiat deposit.
func (l *Ledger) Mint(ctx context.Context, caller string, amount uint64, recipient, depositReference string) (Receipt, error) {
	return l.commit(ctx, KindMint, false, func(ctx context.Context, tx Tx) (Receipt, error) {
		current := tx.Reserve()
		if caller != current.Authority {
			return Receipt{}, ErrUnauthorized
		}
		if current.Paused {
			return Receipt{}, ErrContractPaused
		}
		if amount == 0 {
			return Receipt{}, ErrInvalidAmount
		}
		if limit := mintLimit(current); amount > limit {
			return Receipt{}, newError(CodeAmountTooLarge, fmt.Sprintf("amount %d above limit %d", amount, limit), nil)
		}

		next, err := applyMint(current, amount)
		if err != nil {
			return Receipt{}, err
		}

		entry := l.entry(KindMint, caller, next)
		next.UpdatedAt = entry.CreatedAt
		entry.Amount = amount
		entry.Account = recipient
		entry.Reference = depositReference
		if err := tx.Record(entry); err != nil {
			return Receipt{}, err
		}

		if err := l.tokens.MintTo(ctx, current.Mint, recipient, l.capability(), amount); err != nil {
			return Receipt{}, newError(CodeExternalServiceFailure, "mint to "+recipient, err)
		}

		tx.Put(next)
		return Receipt{Reserve: next, Entry: entry}, nil
	})
}

// Burn destroys amount tokens held by holder in source ahead of a fiat withdrawal.
// Any holder may burn their own tokens; no authority is required.
func (l *Ledger) Burn(ctx context.Context, holder string, amount uint64, source, withdrawalReference string) (Receipt, error) {
	return l.commit(ctx, KindBurn, false, func(ctx context.Context, tx Tx) (Receipt, error) {
		current := tx.Reserve()
		if current.Paused {
			return Receipt{}, ErrContractPaused
		}
		if amount == 0 {
			return Receipt{}, ErrInvalidAmount
		}
		if amount > current.TotalSupply {
			return Receipt{}, newError(CodeInsufficientSupply, fmt.Sprintf("amount %d above supply %d", amount, current.TotalSupply), nil)
		}

		next, err := applyBurn(current, amount)
		if err != nil {
			return Receipt{}, err
		}

		entry := l.entry(KindBurn, holder, next)
		next.UpdatedAt = entry.CreatedAt
		entry.Amount = amount
		entry.Account = source
		entry.Reference = withdrawalReference
		if err := tx.Record(entry); err != nil {
			return Receipt{}, err
		}

		if err := l.tokens.BurnFrom(ctx, current.Mint, source, holder, amount); err != nil {
			return Receipt{}, newError(CodeExternalServiceFailure, "burn from "+source, err)
		}

		tx.Put(next)
		return Receipt{Reserve: next, Entry: entry}, nil
	})
}

// Pause stops mint and burn. Pausing an already paused reserve succeeds.
func (l *Ledger) Pause(ctx context.Context, caller string) (Reserve, error) {
	return l.governance(ctx, KindPause, caller, func(r Reserve, _ *Entry) (Reserve, error) {
		r.Paused = true
		return r, nil
	})
}

// Unpause resumes mint and burn. Unpausing an active reserve succeeds.
func (l *Ledger) Unpause(ctx context.Context, caller string) (Reserve, error) {
	return l.governance(ctx, KindUnpause, caller, func(r Reserve, _ *Entry) (Reserve, error) {
		r.Paused = false
		return r, nil
	})
}

// TransferAuthority hands control to newAuthority immediately and drops any pending proposal.
func (l *Ledger) TransferAuthority(ctx context.Context, caller, newAuthority string) (Reserve, error) {
	return l.governance(ctx, KindTransferAuthority, caller, func(r Reserve, e *Entry) (Reserve, error) {
		if !strkey.IsValidEd25519PublicKey(newAuthority) {
			return Reserve{}, ErrInvalidAuthority
		}
		r.Authority = newAuthority
		r.PendingAuthority = ""
		e.Account = newAuthority
		return r, nil
	})
}

// ProposeAuthority records candidate as the pending authority. Control moves
// only once the candidate calls AcceptAuthority.
func (l *Ledger) ProposeAuthority(ctx context.Context, caller, candidate string) (Reserve, error) {
	return l.governance(ctx, KindProposeAuthority, caller, func(r Reserve, e *Entry) (Reserve, error) {
		if !strkey.IsValidEd25519PublicKey(candidate) {
			return Reserve{}, ErrInvalidAuthority
		}
		r.PendingAuthority = candidate
		e.Account = candidate
		return r, nil
	})
}

// AcceptAuthority completes a handoff started by ProposeAuthority. caller must
// be the pending candidate.
func (l *Ledger) AcceptAuthority(ctx context.Context, caller string) (Reserve, error) {
	receipt, err := l.commit(ctx, KindAcceptAuthority, false, func(ctx context.Context, tx Tx) (Receipt, error) {
		current := tx.Reserve()
		if current.PendingAuthority == "" {
			return Receipt{}, ErrNoPendingAuthority
		}
		if caller != current.PendingAuthority {
			return Receipt{}, ErrUnauthorized
		}
		next := current
		next.Authority = caller
		next.PendingAuthority = ""

		entry := l.entry(KindAcceptAuthority, caller, next)
		next.UpdatedAt = entry.CreatedAt
		entry.Account = current.Authority
		if err := tx.Record(entry); err != nil {
			return Receipt{}, err
		}
		tx.Put(next)
		return Receipt{Reserve: next, Entry: entry}, nil
	})
	return receipt.Reserve, err
}

// SetMintLimit changes the per-call mint ceiling.
func (l *Ledger) SetMintLimit(ctx context.Context, caller string, limit uint64) (Reserve, error) {
	return l.governance(ctx, KindSetMintLimit, caller, func(r Reserve, e *Entry) (Reserve, error) {
		if limit == 0 {
			return Reserve{}, ErrInvalidAmount
		}
		r.MintLimit = limit
		e.Amount = limit
		return r, nil
	})
}

// Reserve returns the current reserve state.
func (l *Ledger) Reserve(ctx context.Context) (Reserve, error) {
	return l.store.Load(ctx, l.address.Key)
}

// History returns the most recent journal entries, newest first.
func (l *Ledger) History(ctx context.Context, limit int) ([]Entry, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	if _, err := l.store.Load(ctx, l.address.Key); err != nil {
		return nil, err
	}
	return l.store.Entries(ctx, l.address.Key, limit)
}

// Report loads the reserve, runs the integrity checks on it and reconciles
// its total supply with the supply held by the token service.
func (l *Ledger) Report(ctx context.Context) (Report, error) {
	r, err := l.store.Load(ctx, l.address.Key)
	if err != nil {
		return Report{}, err
	}
	rep := Check(r)
	rep.reconcile(l.tokens.Supply(ctx, r.Mint))
	return rep, nil
}

// governance runs an authority-only transition that does not touch supply.
func (l *Ledger) governance(ctx context.Context, kind EntryKind, caller string, mutate func(Reserve, *Entry) (Reserve, error)) (Reserve, error) {
	receipt, err := l.commit(ctx, kind, false, func(ctx context.Context, tx Tx) (Receipt, error) {
		current := tx.Reserve()
		if caller != current.Authority {
			return Receipt{}, ErrUnauthorized
		}
		entry := l.entry(kind, caller, current)
		next, err := mutate(current, &entry)
		if err != nil {
			return Receipt{}, err
		}
		next.UpdatedAt = entry.CreatedAt
		if err := tx.Record(entry); err != nil {
			return Receipt{}, err
		}
		tx.Put(next)
		return Receipt{Reserve: next, Entry: entry}, nil
	})
	return receipt.Reserve, err
}

func (l *Ledger) commit(ctx context.Context, kind EntryKind, create bool, op func(context.Context, Tx) (Receipt, error)) (Receipt, error) {
	var receipt Receipt
	fn := func(ctx context.Context, tx Tx) error {
		r, err := op(ctx, tx)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}

	var err error
	if create {
		err = l.store.Create(ctx, l.address.Key, fn)
	} else {
		err = l.store.Update(ctx, l.address.Key, fn)
	}
	if err != nil {
		if receipt.Entry.ID != "" {
			// Token backends outside the store transaction already moved funds.
			l.logger.Error("reserve commit failed after token movement",
				slog.String("op", string(kind)),
				slog.String("entry_id", receipt.Entry.ID),
				slog.Uint64("amount", receipt.Entry.Amount),
				slog.String("account", receipt.Entry.Account),
				slog.Any("error", err),
			)
		}
		l.rejected(kind, err)
		return Receipt{}, err
	}

	l.committed(ctx, receipt)
	return receipt, nil
}

func (l *Ledger) entry(kind EntryKind, actor string, next Reserve) Entry {
	return Entry{
		ID:          uuid.NewString(),
		Reserve:     l.address.Key,
		Kind:        kind,
		Actor:       actor,
		TotalSupply: next.TotalSupply,
		CreatedAt:   l.now(),
	}
}

func (l *Ledger) rejected(kind EntryKind, err error) {
	code := CodeOf(err)
	if code == "" {
		l.logger.Error("reserve operation failed", slog.String("op", string(kind)), slog.Any("error", err))
	} else {
		l.logger.Warn("reserve operation rejected", slog.String("op", string(kind)), slog.String("code", string(code)), slog.Any("error", err))
	}
	if l.observer != nil {
		l.observer.Rejected(kind, code)
	}
}

func (l *Ledger) committed(ctx context.Context, receipt Receipt) {
	e, r := receipt.Entry, receipt.Reserve
	attrs := []any{
		slog.String("op", string(e.Kind)),
		slog.String("entry_id", e.ID),
		slog.String("actor", e.Actor),
		slog.Uint64("total_supply", r.TotalSupply),
	}
	switch e.Kind {
	case KindInitialize:
		attrs = append(attrs, slog.String("mint", r.Mint), slog.Int("decimals", int(r.Decimals)))
	case KindMint:
		attrs = append(attrs, slog.Uint64("amount", e.Amount), slog.String("recipient", e.Account), slog.String("deposit_reference", e.Reference))
	case KindBurn:
		attrs = append(attrs, slog.Uint64("amount", e.Amount), slog.String("source", e.Account), slog.String("withdrawal_reference", e.Reference))
	case KindTransferAuthority, KindAcceptAuthority:
		attrs = append(attrs, slog.String("authority", r.Authority))
	case KindProposeAuthority:
		attrs = append(attrs, slog.String("pending_authority", r.PendingAuthority))
	case KindSetMintLimit:
		attrs = append(attrs, slog.Uint64("mint_limit", r.MintLimit))
	}
	l.logger.Info("reserve operation committed", attrs...)

	if l.observer != nil {
		l.observer.Committed(e, r)
	}
	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, Event{Kind: e.Kind, Entry: e, Reserve: r}); err != nil {
			l.logger.Warn("publish reserve event", slog.String("entry_id", e.ID), slog.Any("error", err))
		}
	}
}

func mintLimit(r Reserve) uint64 {
	if r.MintLimit == 0 {
		return DefaultMintLimit
	}
	return r.MintLimit
}
