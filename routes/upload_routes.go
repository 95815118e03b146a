package routes

import (
	"github.com/anjiri1684/social_chat/handlers"
	"github.com/gofiber/fiber/v2"
)

func UploadRoutes(app *fiber.App, h *handlers.UploadHandler, protected fiber.Handler) {
	uploads := app.Group("/api/v1/uploads", protected)
	uploads.Get("/avatar-signature", h.GenerateAvatarSignature)
}
