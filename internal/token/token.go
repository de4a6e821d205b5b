package token

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ederziomek/real-digital-token/internal/reserve"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested burn.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound indicates the token account does not exist.
	ErrAccountNotFound = errors.New("token account not found")

	// ErrMintNotFound indicates the mint handle does not exist.
	ErrMintNotFound = errors.New("mint not found")

	// ErrMintMismatch indicates the account holds a different token.
	ErrMintMismatch = errors.New("account belongs to another mint")

	// ErrOwnerMismatch indicates the caller does not own the source account.
	ErrOwnerMismatch = errors.New("account owner mismatch")

	// ErrAuthorityMismatch indicates the capability presented is not the mint authority.
	ErrAuthorityMismatch = errors.New("mint authority mismatch")

	// ErrInvalidAmount indicates a zero amount or one outside the representable range.
	ErrInvalidAmount = errors.New("invalid amount")
)

const (
	issuancePrefix = "issuance:"
	holderPrefix   = "holder:"
)

// Mint is a token definition controlled by a single authority.
type Mint struct {
	ID        string    `json:"id"`
	Authority string    `json:"authority"`
	Decimals  uint8     `json:"decimals"`
	Supply    uint64    `json:"supply"`
	CreatedAt time.Time `json:"created_at"`
}

// Account holds a balance of one mint for one owner.
type Account struct {
	ID        string    `json:"id"`
	Mint      string    `json:"mint"`
	Owner     string    `json:"owner"`
	Balance   uint64    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is the token backend used by the reserve ledger and the funding flows.
type Service interface {
	reserve.TokenService

	// OpenAccount returns the owner's account for mint, creating it on first use.
	OpenAccount(ctx context.Context, mint, owner string) (Account, error)
	Account(ctx context.Context, id string) (Account, error)
	AccountFor(ctx context.Context, mint, owner string) (Account, error)
	Mint(ctx context.Context, id string) (Mint, error)
}

func issuanceCode(mint string) string {
	return issuancePrefix + mint
}

func holderCode(mint, owner string) string {
	return holderPrefix + mint + ":" + owner
}

func validAmount(amount uint64) bool {
	return amount > 0 && amount <= math.MaxInt64
}
