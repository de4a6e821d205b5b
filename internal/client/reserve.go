package client

import (
	"context"
	"net/http"

	"github.com/ederziomek/real-digital-token/internal/funding"
	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/token"
)

// Address describes where the reserve lives.
type Address struct {
	Key     string `json:"key"`
	Bump    uint8  `json:"bump"`
	Label   string `json:"label"`
	Program string `json:"program"`
}

// Status is the reply of GET /reserve.
type Status struct {
	Address Address         `json:"address"`
	Reserve reserve.Reserve `json:"reserve"`
}

// ReportView is the reply of GET /reserve/report.
type ReportView struct {
	Healthy bool           `json:"healthy"`
	Report  reserve.Report `json:"report"`
}

type stateReply struct {
	Reserve reserve.Reserve `json:"reserve"`
}

func (c *Client) state(ctx context.Context, method, path string, body any) (reserve.Reserve, error) {
	var out stateReply
	err := c.do(ctx, method, path, nil, body, &out)
	return out.Reserve, err
}

// Status fetches the reserve and its address.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/api/v1/reserve", nil, nil, &out)
	return out, err
}

// Report fetches the integrity report.
func (c *Client) Report(ctx context.Context) (ReportView, error) {
	var out ReportView
	err := c.do(ctx, http.MethodGet, "/api/v1/reserve/report", nil, nil, &out)
	return out, err
}

// History fetches up to limit journal entries, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]reserve.Entry, error) {
	var out struct {
		Entries []reserve.Entry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/reserve/history", limitQuery(limit), nil, &out)
	return out.Entries, err
}

// Initialize creates the reserve with the signer as authority. A nil
// decimals uses the server default.
func (c *Client) Initialize(ctx context.Context, decimals *uint8) (reserve.Reserve, error) {
	return c.state(ctx, http.MethodPost, "/api/v1/reserve/initialize", map[string]any{"decimals": decimals})
}

// Mint issues amount minor units into an existing token account.
func (c *Client) Mint(ctx context.Context, amount uint64, account, depositReference string) (reserve.Receipt, error) {
	var out reserve.Receipt
	err := c.do(ctx, http.MethodPost, "/api/v1/reserve/mint", nil, map[string]any{
		"amount":            amount,
		"recipient_account": account,
		"deposit_reference": depositReference,
	}, &out)
	return out, err
}

// Burn destroys amount minor units from the signer's account.
func (c *Client) Burn(ctx context.Context, amount uint64, account, withdrawalReference string) (reserve.Receipt, error) {
	var out reserve.Receipt
	err := c.do(ctx, http.MethodPost, "/api/v1/reserve/burn", nil, map[string]any{
		"amount":               amount,
		"source_account":       account,
		"withdrawal_reference": withdrawalReference,
	}, &out)
	return out, err
}

func (c *Client) Pause(ctx context.Context) (reserve.Reserve, error) {
	return c.state(ctx, http.MethodPost, "/api/v1/reserve/pause", nil)
}

func (c *Client) Unpause(ctx context.Context) (reserve.Reserve, error) {
	return c.state(ctx, http.MethodPost, "/api/v1/reserve/unpause", nil)
}

// TransferAuthority hands control to newAuthority immediately.
func (c *Client) TransferAuthority(ctx context.Context, newAuthority string) (reserve.Reserve, error) {
	return c.state(ctx, http.MethodPost, "/api/v1/reserve/authority", map[string]any{"new_authority": newAuthority})
}

func (c *Client) ProposeAuthority(ctx context.Context, candidate string) (reserve.Reserve, error) {
	return c.state(ctx, http.MethodPost, "/api/v1/reserve/authority/proposal", map[string]any{"candidate": candidate})
}

func (c *Client) AcceptAuthority(ctx context.Context) (reserve.Reserve, error) {
	return c.state(ctx, http.MethodPost, "/api/v1/reserve/authority/accept", nil)
}

func (c *Client) SetMintLimit(ctx context.Context, limit uint64) (reserve.Reserve, error) {
	return c.state(ctx, http.MethodPut, "/api/v1/reserve/mint-limit", map[string]any{"limit": limit})
}

// OpenAccount opens the signer's token account.
func (c *Client) OpenAccount(ctx context.Context) (token.Account, error) {
	var out token.Account
	err := c.do(ctx, http.MethodPost, "/api/v1/accounts", nil, nil, &out)
	return out, err
}

// Account fetches a token account.
func (c *Client) Account(ctx context.Context, id string) (token.Account, error) {
	var out token.Account
	err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+id, nil, nil, &out)
	return out, err
}

// Deposit records a confirmed BRL deposit and mints the tokens to recipient.
func (c *Client) Deposit(ctx context.Context, recipient string, amount uint64, depositReference string) (funding.DepositResponse, error) {
	var out funding.DepositResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/deposits", nil, funding.DepositRequest{
		Recipient:        recipient,
		Amount:           amount,
		DepositReference: depositReference,
	}, &out)
	return out, err
}

// Withdraw burns the signer's tokens and requests the BRL payout.
func (c *Client) Withdraw(ctx context.Context, amount uint64, bankAccount string) (funding.WithdrawalResponse, error) {
	var out funding.WithdrawalResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/withdrawals", nil, funding.WithdrawalRequest{
		Amount:      amount,
		BankAccount: bankAccount,
	}, &out)
	return out, err
}
