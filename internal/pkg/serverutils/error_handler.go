package serverutils

import (
	"errors"

	"rag-chatbot-ui/internal/service"
	"rag-chatbot-ui/pkg/backend"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns errors returned by handlers into JSON responses.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code, message := statusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

func statusFor(err error) (int, string) {
	var validationErr *ValidationError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnsupportedDocument), errors.Is(err, service.ErrEmptyMessage):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrThreadNotFound):
		return fiber.StatusNotFound, err.Error()
	case backend.IsBackendError(err):
		return fiber.StatusBadGateway, err.Error()
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}
