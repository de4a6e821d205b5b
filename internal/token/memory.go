package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ederziomek/real-digital-token/internal/reserve"
)

type inMemoryService struct {
	mu       sync.RWMutex
	mints    map[string]*Mint
	accounts map[string]*Account
	byCode   map[string]string
}

// NewInMemory creates a concurrency-safe in-memory token service useful for unit tests.
func NewInMemory() Service {
	return &inMemoryService{
		mints:    make(map[string]*Mint),
		accounts: make(map[string]*Account),
		byCode:   make(map[string]string),
	}
}

func (s *inMemoryService) CreateMint(_ context.Context, decimals uint8, authority reserve.Capability) (string, error) {
	if authority.IsZero() {
		return "", ErrAuthorityMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := &Mint{
		ID:        uuid.NewString(),
		Authority: authority.Authority(),
		Decimals:  decimals,
		CreatedAt: time.Now().UTC(),
	}
	s.mints[m.ID] = m
	return m.ID, nil
}

func (s *inMemoryService) MintTo(_ context.Context, mint, destination string, authority reserve.Capability, amount uint64) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mints[mint]
	if !ok {
		return ErrMintNotFound
	}
	if authority.IsZero() || authority.Authority() != m.Authority {
		return ErrAuthorityMismatch
	}
	acct, ok := s.accounts[destination]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.Mint != mint {
		return ErrMintMismatch
	}

	acct.Balance += amount
	m.Supply += amount
	return nil
}

func (s *inMemoryService) BurnFrom(_ context.Context, mint, source, owner string, amount uint64) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mints[mint]
	if !ok {
		return ErrMintNotFound
	}
	acct, ok := s.accounts[source]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.Mint != mint {
		return ErrMintMismatch
	}
	if acct.Owner != owner {
		return ErrOwnerMismatch
	}
	if acct.Balance < amount {
		return ErrInsufficientFunds
	}

	acct.Balance -= amount
	m.Supply -= amount
	return nil
}

func (s *inMemoryService) OpenAccount(_ context.Context, mint, owner string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mints[mint]; !ok {
		return Account{}, ErrMintNotFound
	}
	code := holderCode(mint, owner)
	if id, exists := s.byCode[code]; exists {
		return *s.accounts[id], nil
	}

	acct := &Account{
		ID:        uuid.NewString(),
		Mint:      mint,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[acct.ID] = acct
	s.byCode[code] = acct.ID
	return *acct, nil
}

func (s *inMemoryService) Account(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *acct, nil
}

func (s *inMemoryService) AccountFor(_ context.Context, mint, owner string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[holderCode(mint, owner)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *s.accounts[id], nil
}

func (s *inMemoryService) Mint(_ context.Context, id string) (Mint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mints[id]
	if !ok {
		return Mint{}, ErrMintNotFound
	}
	return *m, nil
}

func (s *inMemoryService) Supply(ctx context.Context, mint string) (uint64, error) {
	m, err := s.Mint(ctx, mint)
	return m.Supply, err
}
