package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ederziomek/real-digital-token/internal/auth"
)

const signerLocal = "reserve_signer"

// Signature verifies the request signature on unsafe methods and stores the
// signer address for downstream handlers.
func Signature(maxSkew time.Duration, logger *slog.Logger) fiber.Handler {
	return signature(maxSkew, time.Now, logger)
}

func signature(maxSkew time.Duration, now func() time.Time, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		h := auth.Headers{
			Signer:    c.Get(auth.HeaderSigner),
			Timestamp: c.Get(auth.HeaderTimestamp),
			Signature: c.Get(auth.HeaderSignature),
		}
		req := auth.Request{
			Method:         c.Method(),
			Path:           c.Path(),
			IdempotencyKey: c.Get(auth.HeaderIdempotencyKey),
			Body:           c.Body(),
		}

		signer, err := auth.Verify(h, req, now(), maxSkew)
		if err != nil {
			logger.Warn("request signature rejected",
				slog.String("path", c.Path()),
				slog.String("signer", h.Signer),
				slog.Any("error", err),
			)
			if errors.Is(err, auth.ErrMissingSignature) {
				return fiber.NewError(http.StatusUnauthorized, "missing request signature")
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid request signature")
		}

		c.Locals(signerLocal, signer)
		return c.Next()
	}
}

// Signer returns the verified signer of the request, or "" when unsigned.
func Signer(c *fiber.Ctx) string {
	signer, _ := c.Locals(signerLocal).(string)
	return signer
}
