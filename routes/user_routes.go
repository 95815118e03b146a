package routes

import (
	"github.com/anjiri1684/social_chat/handlers"
	"github.com/gofiber/fiber/v2"
)

func UserRoutes(app *fiber.App, h *handlers.UserHandler, protected fiber.Handler) {
	users := app.Group("/api/v1/users", protected)
	users.Get("/me", h.GetMe)
	users.Put("/me", h.UpdateMe)
	users.Get("/:id", h.GetUser)
}
