package funding

import (
	"github.com/ederziomek/real-digital-token/internal/token"
)

// DepositRequest records a confirmed fiat deposit for recipient.
type DepositRequest struct {
	Recipient        string `json:"recipient" validate:"required,stellar_address"`
	Amount           uint64 `json:"amount"`
	DepositReference string `json:"deposit_reference" validate:"required,reference"`
}

// WithdrawalRequest burns the signer's tokens and pays the BRL out to BankAccount.
type WithdrawalRequest struct {
	Amount      uint64 `json:"amount"`
	BankAccount string `json:"bank_account" validate:"required,reference"`
}

// DepositResponse represents the API response for a deposit.
type DepositResponse struct {
	EntryID     string        `json:"entry_id"`
	Account     token.Account `json:"account"`
	TotalSupply uint64        `json:"total_supply"`
	BRLReserve  uint64        `json:"brl_reserve"`
}

// WithdrawalResponse represents the API response for a withdrawal.
type WithdrawalResponse struct {
	EntryID     string        `json:"entry_id"`
	Account     token.Account `json:"account"`
	TotalSupply uint64        `json:"total_supply"`
	BRLReserve  uint64        `json:"brl_reserve"`
	Payout      PayoutReceipt `json:"payout"`
}

func newDepositResponse(res DepositResult) DepositResponse {
	return DepositResponse{
		EntryID:     res.Entry.ID,
		Account:     res.Account,
		TotalSupply: res.Reserve.TotalSupply,
		BRLReserve:  res.Reserve.BRLReserve,
	}
}

func newWithdrawalResponse(res WithdrawalResult) WithdrawalResponse {
	return WithdrawalResponse{
		EntryID:     res.Entry.ID,
		Account:     res.Account,
		TotalSupply: res.Reserve.TotalSupply,
		BRLReserve:  res.Reserve.BRLReserve,
		Payout:      res.Payout,
	}
}
