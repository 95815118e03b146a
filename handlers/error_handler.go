package handlers

import (
	"errors"

	"github.com/anjiri1684/social_chat/apperrors"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler renders fiber and application errors as
// {status, code, message} where code is an apperrors.Code. Internal causes
// are logged, never returned.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := apperrors.CodeInternal
		message := "internal server error"

		var fiberErr *fiber.Error
		var appErr *apperrors.AppError
		switch {
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			code = apperrors.CodeForStatus(status)
			message = fiberErr.Message
		case errors.As(err, &appErr):
			status = apperrors.HTTPStatus(err)
			code = appErr.Code
			message = appErr.Message
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		return c.Status(status).JSON(fiber.Map{
			"status":  "error",
			"code":    code,
			"message": message,
		})
	}
}
