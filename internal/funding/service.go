package funding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/token"
)

// Service coordinates fiat deposits and withdrawals with the reserve ledger
// and the token accounts of holders.
type Service struct {
	ledger  *reserve.Ledger
	tokens  token.Service
	payouts Payouts
	logger  *slog.Logger
}

// NewService prepares a funding service. A nil payouts connector selects StaticPayouts.
func NewService(ledger *reserve.Ledger, tokens token.Service, payouts Payouts, logger *slog.Logger) (*Service, error) {
	if ledger == nil || tokens == nil {
		return nil, fmt.Errorf("ledger and token service are required")
	}
	if payouts == nil {
		payouts = StaticPayouts{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{ledger: ledger, tokens: tokens, payouts: payouts, logger: logger}, nil
}

// DepositInput captures a confirmed BRL deposit to be minted.
type DepositInput struct {
	Caller           string
	Recipient        string
	Amount           uint64
	DepositReference string
}

// WithdrawInput captures a holder's request to redeem tokens for BRL.
type WithdrawInput struct {
	Holder      string
	Amount      uint64
	BankAccount string
}

// DepositResult represents the domain outcome of a deposit.
type DepositResult struct {
	Account token.Account
	Entry   reserve.Entry
	Reserve reserve.Reserve
}

// WithdrawalResult represents the domain outcome of a withdrawal.
type WithdrawalResult struct {
	Account token.Account
	Entry   reserve.Entry
	Reserve reserve.Reserve
	Payout  PayoutReceipt
}

// OpenAccount returns owner's token account, creating it on first use.
func (s *Service) OpenAccount(ctx context.Context, owner string) (token.Account, error) {
	r, err := s.ledger.Reserve(ctx)
	if err != nil {
		return token.Account{}, err
	}
	return s.tokens.OpenAccount(ctx, r.Mint, owner)
}

// Account returns a token account by id.
func (s *Service) Account(ctx context.Context, id string) (token.Account, error) {
	return s.tokens.Account(ctx, id)
}

// Deposit opens the recipient's account when missing and mints the deposited
// amount into it.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (DepositResult, error) {
	r, err := s.ledger.Reserve(ctx)
	if err != nil {
		return DepositResult{}, err
	}
	// no account is opened on behalf of a caller the ledger would reject
	if input.Caller != r.Authority {
		return DepositResult{}, reserve.ErrUnauthorized
	}

	acct, err := s.tokens.OpenAccount(ctx, r.Mint, input.Recipient)
	if err != nil {
		return DepositResult{}, fmt.Errorf("open account: %w", err)
	}

	receipt, err := s.ledger.Mint(ctx, input.Caller, input.Amount, acct.ID, input.DepositReference)
	if err != nil {
		return DepositResult{}, err
	}

	acct, err = s.tokens.Account(ctx, acct.ID)
	if err != nil {
		return DepositResult{}, err
	}
	return DepositResult{Account: acct, Entry: receipt.Entry, Reserve: receipt.Reserve}, nil
}

// Withdraw burns the holder's tokens and instructs the BRL payout to the
// given bank account.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (WithdrawalResult, error) {
	r, err := s.ledger.Reserve(ctx)
	if err != nil {
		return WithdrawalResult{}, err
	}

	acct, err := s.tokens.AccountFor(ctx, r.Mint, input.Holder)
	if err != nil {
		return WithdrawalResult{}, err
	}
	if acct.Balance < input.Amount {
		return WithdrawalResult{}, fmt.Errorf("%w: balance %d below %d", token.ErrInsufficientFunds, acct.Balance, input.Amount)
	}

	receipt, err := s.ledger.Burn(ctx, input.Holder, input.Amount, acct.ID, input.BankAccount)
	if err != nil {
		return WithdrawalResult{}, err
	}

	payout, err := s.payouts.Instruct(ctx, PayoutInstruction{
		BankAccount: input.BankAccount,
		Amount:      input.Amount,
		Reference:   receipt.Entry.ID,
	})
	if err != nil {
		// the burn is committed; the payout is retried out of band from the journal
		s.logger.Error("payout instruction failed",
			slog.String("entry_id", receipt.Entry.ID),
			slog.String("bank_account", input.BankAccount),
			slog.Uint64("amount", input.Amount),
			slog.Any("error", err),
		)
		payout = PayoutReceipt{Reference: receipt.Entry.ID, Status: PayoutStatusFailed}
	}

	acct, err = s.tokens.Account(ctx, acct.ID)
	if err != nil && !errors.Is(err, token.ErrAccountNotFound) {
		return WithdrawalResult{}, err
	}
	return WithdrawalResult{Account: acct, Entry: receipt.Entry, Reserve: receipt.Reserve, Payout: payout}, nil
}
