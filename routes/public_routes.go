package routes

import (
	"github.com/anjiri1684/social_chat/websocket"
	"github.com/gofiber/fiber/v2"
)

func PublicRoutes(app *fiber.App, appName string, presence websocket.Registry) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to " + appName + " API",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"online": len(presence.Snapshot()),
		})
	})
}
