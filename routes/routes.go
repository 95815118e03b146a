package routes

import (
	"github.com/anjiri1684/social_chat/handlers"
	"github.com/anjiri1684/social_chat/middleware"
	"github.com/anjiri1684/social_chat/websocket"
	"github.com/gofiber/fiber/v2"
)

// Handlers bundles everything Register mounts.
type Handlers struct {
	AppName   string
	JWTSecret string
	Presence  websocket.Registry
	Auth      *handlers.AuthHandler
	Messaging *handlers.MessagingHandler
	Users     *handlers.UserHandler
	Uploads   *handlers.UploadHandler
}

func Register(app *fiber.App, h Handlers) {
	protected := middleware.Protected(h.JWTSecret)

	PublicRoutes(app, h.AppName, h.Presence)
	AuthRoutes(app, h.Auth)
	UserRoutes(app, h.Users, protected)
	UploadRoutes(app, h.Uploads, protected)
	MessagingRoutes(app, h.Messaging, protected)
}
