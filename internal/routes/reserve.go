package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ederziomek/real-digital-token/internal/middleware"
	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/validation"
)

type initializeRequest struct {
	Decimals *uint8 `json:"decimals"`
}

type mintRequest struct {
	Amount           uint64 `json:"amount"`
	RecipientAccount string `json:"recipient_account" validate:"required"`
	DepositReference string `json:"deposit_reference" validate:"omitempty,reference"`
}

type burnRequest struct {
	Amount              uint64 `json:"amount"`
	SourceAccount       string `json:"source_account" validate:"required"`
	WithdrawalReference string `json:"withdrawal_reference" validate:"omitempty,reference"`
}

type authorityRequest struct {
	NewAuthority string `json:"new_authority"`
}

type proposalRequest struct {
	Candidate string `json:"candidate"`
}

type mintLimitRequest struct {
	Limit uint64 `json:"limit"`
}

type addressView struct {
	Key     string `json:"key"`
	Bump    uint8  `json:"bump"`
	Label   string `json:"label"`
	Program string `json:"program"`
}

// RegisterReserveRoutes wires the reserve ledger endpoints. Mutations act as
// the verified request signer.
func RegisterReserveRoutes(r fiber.Router, ledger *reserve.Ledger, defaultDecimals uint8) {
	g := r.Group("/reserve")

	g.Get("/", func(c *fiber.Ctx) error {
		state, err := ledger.Reserve(c.UserContext())
		if err != nil {
			return err
		}
		addr := ledger.Address()
		return c.JSON(fiber.Map{
			"address": addressView{Key: addr.Key, Bump: addr.Bump, Label: addr.Label, Program: addr.Program},
			"reserve": state,
		})
	})

	g.Get("/report", func(c *fiber.Ctx) error {
		report, err := ledger.Report(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"healthy": report.Healthy(), "report": report})
	})

	g.Get("/history", func(c *fiber.Ctx) error {
		entries, err := ledger.History(c.UserContext(), c.QueryInt("limit", reserve.DefaultHistoryLimit))
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []reserve.Entry{}
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	g.Post("/initialize", func(c *fiber.Ctx) error {
		var req initializeRequest
		if err := parse(c, &req); err != nil {
			return err
		}
		decimals := defaultDecimals
		if req.Decimals != nil {
			decimals = *req.Decimals
		}
		state, err := ledger.Initialize(c.UserContext(), middleware.Signer(c), decimals)
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"reserve": state})
	})

	g.Post("/mint", func(c *fiber.Ctx) error {
		var req mintRequest
		if err := parse(c, &req); err != nil {
			return err
		}
		receipt, err := ledger.Mint(c.UserContext(), middleware.Signer(c), req.Amount, req.RecipientAccount, req.DepositReference)
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(receipt)
	})

	g.Post("/burn", func(c *fiber.Ctx) error {
		var req burnRequest
		if err := parse(c, &req); err != nil {
			return err
		}
		receipt, err := ledger.Burn(c.UserContext(), middleware.Signer(c), req.Amount, req.SourceAccount, req.WithdrawalReference)
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(receipt)
	})

	g.Post("/pause", func(c *fiber.Ctx) error {
		return respond(c)(ledger.Pause(c.UserContext(), middleware.Signer(c)))
	})

	g.Post("/unpause", func(c *fiber.Ctx) error {
		return respond(c)(ledger.Unpause(c.UserContext(), middleware.Signer(c)))
	})

	g.Post("/authority", func(c *fiber.Ctx) error {
		var req authorityRequest
		if err := parse(c, &req); err != nil {
			return err
		}
		return respond(c)(ledger.TransferAuthority(c.UserContext(), middleware.Signer(c), req.NewAuthority))
	})

	g.Post("/authority/proposal", func(c *fiber.Ctx) error {
		var req proposalRequest
		if err := parse(c, &req); err != nil {
			return err
		}
		return respond(c)(ledger.ProposeAuthority(c.UserContext(), middleware.Signer(c), req.Candidate))
	})

	g.Post("/authority/accept", func(c *fiber.Ctx) error {
		return respond(c)(ledger.AcceptAuthority(c.UserContext(), middleware.Signer(c)))
	})

	g.Put("/mint-limit", func(c *fiber.Ctx) error {
		var req mintLimitRequest
		if err := parse(c, &req); err != nil {
			return err
		}
		return respond(c)(ledger.SetMintLimit(c.UserContext(), middleware.Signer(c), req.Limit))
	})
}

// parse decodes an optional JSON body into v and validates it.
func parse(c *fiber.Ctx, v any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(v); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return validation.Struct(v)
}

func respond(c *fiber.Ctx) func(reserve.Reserve, error) error {
	return func(state reserve.Reserve, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"reserve": state})
	}
}
