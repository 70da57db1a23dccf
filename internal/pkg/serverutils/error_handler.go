package serverutils

import (
	"errors"

	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders errors returned by downstream handlers in the standard envelope.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			res := ErrorResponse(fiber.StatusBadRequest, "Validation failed")
			res.Data = describe(verrs)
			return ctx.Status(fiber.StatusBadRequest).JSON(res)
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return ctx.Status(fe.Code).JSON(ErrorResponse(fe.Code, fe.Message))
		}

		code := apperror.StatusOf(err)
		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Unhandled error", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
			message = "Internal server error"
		}
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
