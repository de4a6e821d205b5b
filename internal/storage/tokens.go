package storage

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"

	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/token"
)

// Tokens keeps mints and token accounts in the same Badger database as the
// reserve. Calls made inside a Store transition join its transaction, so a
// token movement and the reserve counters commit or roll back together.
// Calls made outside one run in their own transaction under the store mutex.
type Tokens struct {
	store *Store
	now   func() time.Time
}

var _ token.Service = (*Tokens)(nil)

// NewTokens creates the token service sharing store's database.
func NewTokens(store *Store) *Tokens {
	return &Tokens{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (t *Tokens) update(ctx context.Context, op Op) error {
	if txn, ok := txnFromContext(ctx); ok {
		return op(txn)
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.db.Update(op)
}

func (t *Tokens) view(ctx context.Context, op Op) error {
	if txn, ok := txnFromContext(ctx); ok {
		return op(txn)
	}
	return t.store.db.View(op)
}

func (t *Tokens) CreateMint(ctx context.Context, decimals uint8, authority reserve.Capability) (string, error) {
	if authority.IsZero() {
		return "", token.ErrAuthorityMismatch
	}
	m := token.Mint{
		ID:        uuid.NewString(),
		Authority: authority.Authority(),
		Decimals:  decimals,
		CreatedAt: t.now(),
	}
	if err := t.update(ctx, t.store.lib.SaveMint(m)); err != nil {
		return "", err
	}
	return m.ID, nil
}

func (t *Tokens) MintTo(ctx context.Context, mint, destination string, authority reserve.Capability, amount uint64) error {
	if !validAmount(amount) {
		return token.ErrInvalidAmount
	}
	lib := t.store.lib
	return t.update(ctx, func(txn *badger.Txn) error {
		var m token.Mint
		if err := lib.RetrieveMint(mint, &m)(txn); err != nil {
			return missing(err, token.ErrMintNotFound)
		}
		if authority.IsZero() || authority.Authority() != m.Authority {
			return token.ErrAuthorityMismatch
		}
		var acct token.Account
		if err := lib.RetrieveAccount(destination, &acct)(txn); err != nil {
			return missing(err, token.ErrAccountNotFound)
		}
		if acct.Mint != mint {
			return token.ErrMintMismatch
		}
		if m.Supply > math.MaxUint64-amount || acct.Balance > math.MaxUint64-amount {
			return token.ErrInvalidAmount
		}

		acct.Balance += amount
		m.Supply += amount
		return Combine(lib.SaveAccount(acct), lib.SaveMint(m))(txn)
	})
}

func (t *Tokens) BurnFrom(ctx context.Context, mint, source, owner string, amount uint64) error {
	if !validAmount(amount) {
		return token.ErrInvalidAmount
	}
	lib := t.store.lib
	return t.update(ctx, func(txn *badger.Txn) error {
		var m token.Mint
		if err := lib.RetrieveMint(mint, &m)(txn); err != nil {
			return missing(err, token.ErrMintNotFound)
		}
		var acct token.Account
		if err := lib.RetrieveAccount(source, &acct)(txn); err != nil {
			return missing(err, token.ErrAccountNotFound)
		}
		switch {
		case acct.Mint != mint:
			return token.ErrMintMismatch
		case acct.Owner != owner:
			return token.ErrOwnerMismatch
		case acct.Balance < amount:
			return token.ErrInsufficientFunds
		}

		acct.Balance -= amount
		m.Supply -= amount
		return Combine(lib.SaveAccount(acct), lib.SaveMint(m))(txn)
	})
}

func (t *Tokens) OpenAccount(ctx context.Context, mint, owner string) (token.Account, error) {
	lib := t.store.lib
	var acct token.Account
	err := t.update(ctx, func(txn *badger.Txn) error {
		var m token.Mint
		if err := lib.RetrieveMint(mint, &m)(txn); err != nil {
			return missing(err, token.ErrMintNotFound)
		}

		var id string
		err := lib.RetrieveHolder(mint, owner, &id)(txn)
		if err == nil {
			return lib.RetrieveAccount(id, &acct)(txn)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		acct = token.Account{
			ID:        uuid.NewString(),
			Mint:      mint,
			Owner:     owner,
			CreatedAt: t.now(),
		}
		return Combine(lib.SaveAccount(acct), lib.IndexHolder(mint, owner, acct.ID))(txn)
	})
	if err != nil {
		return token.Account{}, err
	}
	return acct, nil
}

func (t *Tokens) Account(ctx context.Context, id string) (token.Account, error) {
	var acct token.Account
	if err := t.view(ctx, t.store.lib.RetrieveAccount(id, &acct)); err != nil {
		return token.Account{}, missing(err, token.ErrAccountNotFound)
	}
	return acct, nil
}

func (t *Tokens) AccountFor(ctx context.Context, mint, owner string) (token.Account, error) {
	lib := t.store.lib
	var acct token.Account
	err := t.view(ctx, func(txn *badger.Txn) error {
		var id string
		if err := lib.RetrieveHolder(mint, owner, &id)(txn); err != nil {
			return err
		}
		return lib.RetrieveAccount(id, &acct)(txn)
	})
	if err != nil {
		return token.Account{}, missing(err, token.ErrAccountNotFound)
	}
	return acct, nil
}

func (t *Tokens) Mint(ctx context.Context, id string) (token.Mint, error) {
	var m token.Mint
	if err := t.view(ctx, t.store.lib.RetrieveMint(id, &m)); err != nil {
		return token.Mint{}, missing(err, token.ErrMintNotFound)
	}
	return m, nil
}

func (t *Tokens) Supply(ctx context.Context, mint string) (uint64, error) {
	m, err := t.Mint(ctx, mint)
	return m.Supply, err
}

func validAmount(amount uint64) bool {
	return amount > 0 && amount <= math.MaxInt64
}

// missing replaces Badger's not-found error with the token sentinel.
func missing(err, sentinel error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return sentinel
	}
	return err
}
