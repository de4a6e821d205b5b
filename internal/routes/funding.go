package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ederziomek/real-digital-token/internal/funding"
)

// RegisterFundingRoutes wires deposit, withdrawal and token account endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/accounts", h.OpenAccount)
	r.Get("/accounts/:accountId", h.Account)
	r.Post("/deposits", h.Deposit)
	r.Post("/withdrawals", h.Withdraw)
}
