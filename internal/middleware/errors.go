package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ederziomek/real-digital-token/internal/identity"
	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/token"
	"github.com/ederziomek/real-digital-token/internal/validation"
)

var reserveStatus = map[reserve.Code]int{
	reserve.CodeUnauthorized:           http.StatusForbidden,
	reserve.CodeContractPaused:         http.StatusLocked,
	reserve.CodeInvalidAmount:          http.StatusBadRequest,
	reserve.CodeAmountTooLarge:         http.StatusBadRequest,
	reserve.CodeInvalidAuthority:       http.StatusBadRequest,
	reserve.CodeInvalidDecimals:        http.StatusBadRequest,
	reserve.CodeInsufficientSupply:     http.StatusUnprocessableEntity,
	reserve.CodeOverflow:               http.StatusUnprocessableEntity,
	reserve.CodeUnderflow:              http.StatusUnprocessableEntity,
	reserve.CodeAlreadyInitialized:     http.StatusConflict,
	reserve.CodeDuplicateReference:     http.StatusConflict,
	reserve.CodeNoPendingAuthority:     http.StatusConflict,
	reserve.CodeNotInitialized:         http.StatusNotFound,
	reserve.CodeExternalServiceFailure: http.StatusBadGateway,
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and a message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler renders errors returned by handlers, mapping ledger rejection
// codes and token failures to HTTP statuses.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
		}
		message := err.Error()
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
		return c.Status(status).JSON(ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
	}
}

// StatusFor returns the HTTP status err is rendered with.
func StatusFor(err error) int {
	status, _ := classify(err)
	return status
}

func classify(err error) (int, string) {
	if code := reserve.CodeOf(err); code != "" {
		if status, ok := reserveStatus[code]; ok {
			return status, string(code)
		}
	}

	var fe *fiber.Error
	var ve *validation.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, http.StatusText(fe.Code)
	case errors.As(err, &ve), errors.Is(err, identity.ErrInvalidAddress):
		return http.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, token.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "InsufficientFunds"
	case errors.Is(err, token.ErrAccountNotFound):
		return http.StatusNotFound, "AccountNotFound"
	case errors.Is(err, token.ErrMintNotFound):
		return http.StatusNotFound, "MintNotFound"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}
