package routes

import (
	"github.com/anjiri1684/social_chat/handlers"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func MessagingRoutes(app *fiber.App, h *handlers.MessagingHandler, protected fiber.Handler) {
	api := app.Group("/api/v1")

	chat := api.Group("/chat", protected)
	chat.Get("/conversations", h.GetUserConversations)
	chat.Get("/conversation/:userId/:targetUserId", h.GetConversationMessages)
	chat.Put("/conversation/:id/read", h.MarkConversationRead)
	chat.Delete("/conversation/:id", h.DeleteConversation)

	api.Use("/ws", h.UpgradeWs)
	api.Get("/ws", websocket.New(h.ServeWs))
}
