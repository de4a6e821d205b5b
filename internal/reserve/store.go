package reserve

import "context"

// Tx is the view of one reserve transition handed to a TxFunc. Nothing
// written through it is visible to others until the TxFunc returns nil.
type Tx interface {
	// Reserve returns the state as of the start of the transition, or the
	// latest value passed to Put.
	Reserve() Reserve
	// Put stages the new reserve state.
	Put(r Reserve)
	// Record stages a journal entry. A mint entry reusing a non-empty
	// reference already in the journal fails with ErrDuplicateReference.
	Record(e Entry) error
}

// TxFunc performs a transition. Returning an error discards every staged write.
type TxFunc func(ctx context.Context, tx Tx) error

// Store persists reserves and serializes transitions on each of them.
type Store interface {
	// Load returns the reserve at address or ErrNotInitialized.
	Load(ctx context.Context, address string) (Reserve, error)
	// Create runs fn against an empty reserve; fails with ErrAlreadyInitialized
	// when a reserve already exists at address.
	Create(ctx context.Context, address string, fn TxFunc) error
	// Update runs fn against the stored reserve, holding it exclusively.
	Update(ctx context.Context, address string, fn TxFunc) error
	// Entries returns up to limit journal entries, newest first.
	Entries(ctx context.Context, address string, limit int) ([]Entry, error)
}

// TokenService is the external collaborator owning the mint and token accounts.
type TokenService interface {
	CreateMint(ctx context.Context, decimals uint8, authority Capability) (string, error)
	MintTo(ctx context.Context, mint, destination string, authority Capability, amount uint64) error
	BurnFrom(ctx context.Context, mint, source, owner string, amount uint64) error
	// Supply returns the circulating supply the token side holds for mint.
	Supply(ctx context.Context, mint string) (uint64, error)
}

// Capability is the reserve's signing authority over its mint. Only this
// package can produce a non-zero value.
type Capability struct {
	authority string
}

// Authority returns the address the capability was issued for.
func (c Capability) Authority() string {
	return c.authority
}

// IsZero reports whether c was constructed outside the ledger.
func (c Capability) IsZero() bool {
	return c.authority == ""
}
