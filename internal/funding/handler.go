package funding

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ederziomek/real-digital-token/internal/middleware"
	"github.com/ederziomek/real-digital-token/internal/validation"
)

// Handler exposes HTTP endpoints for deposits, withdrawals and token accounts.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Deposit mints tokens for a confirmed BRL deposit.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return err
	}

	result, err := h.service.Deposit(c.UserContext(), DepositInput{
		Caller:           middleware.Signer(c),
		Recipient:        req.Recipient,
		Amount:           req.Amount,
		DepositReference: req.DepositReference,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(newDepositResponse(result))
}

// Withdraw burns the signer's tokens and instructs the BRL payout.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req WithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return err
	}

	result, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		Holder:      middleware.Signer(c),
		Amount:      req.Amount,
		BankAccount: req.BankAccount,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(newWithdrawalResponse(result))
}

// OpenAccount opens the signer's token account.
func (h *Handler) OpenAccount(c *fiber.Ctx) error {
	acct, err := h.service.OpenAccount(c.UserContext(), middleware.Signer(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(acct)
}

// Account returns a token account and its balance.
func (h *Handler) Account(c *fiber.Ctx) error {
	acct, err := h.service.Account(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return err
	}
	return c.JSON(acct)
}
