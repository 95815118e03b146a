package handlers

import (
	"context"
	"strconv"

	"github.com/anjiri1684/social_chat/apperrors"
	"github.com/anjiri1684/social_chat/middleware"
	"github.com/anjiri1684/social_chat/services"
	"github.com/anjiri1684/social_chat/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const wsUserLocal = "ws_user_id"

type MessagingHandler struct {
	conversations *services.ConversationService
	relay         *websocket.Relay
	log           *zap.Logger

	jwtSecret   string
	requireAuth bool
	// ctx bounds store calls made from live sockets.
	ctx context.Context
}

func NewMessagingHandler(ctx context.Context, conversations *services.ConversationService, relay *websocket.Relay, jwtSecret string, requireAuth bool, log *zap.Logger) *MessagingHandler {
	return &MessagingHandler{
		conversations: conversations,
		relay:         relay,
		log:           log,
		jwtSecret:     jwtSecret,
		requireAuth:   requireAuth,
		ctx:           ctx,
	}
}

func callerID(c *fiber.Ctx) (string, error) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return "", apperrors.Unauthorized("missing user in token")
	}
	return userID, nil
}

func (h *MessagingHandler) GetUserConversations(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	summaries, err := h.conversations.ListConversations(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(summaries)
}

// GetConversationMessages returns the newest history when no page is given,
// and one page of it otherwise.
func (h *MessagingHandler) GetConversationMessages(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	userID, targetUserID := c.Params("userId"), c.Params("targetUserId")

	if c.Query("page") == "" {
		msgs, err := h.conversations.GetHistory(c.UserContext(), caller, userID, targetUserID)
		if err != nil {
			return err
		}
		return c.JSON(msgs)
	}

	page, err := strconv.Atoi(c.Query("page"))
	if err != nil {
		return apperrors.InvalidArg("page must be a number")
	}
	limit, err := strconv.Atoi(c.Query("limit", "0"))
	if err != nil {
		return apperrors.InvalidArg("limit must be a number")
	}
	result, err := h.conversations.GetHistoryPage(c.UserContext(), caller, userID, targetUserID, page, limit)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *MessagingHandler) MarkConversationRead(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	n, err := h.conversations.MarkRead(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "updated": n})
}

func (h *MessagingHandler) DeleteConversation(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	n, err := h.conversations.DeleteConversation(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "deleted": n})
}

// UpgradeWs admits websocket upgrades. A token query parameter binds the
// socket to that user; without one the socket is anonymous unless auth is
// required.
func (h *MessagingHandler) UpgradeWs(c *fiber.Ctx) error {
	if !websocketcontrib.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		if h.requireAuth {
			return apperrors.Unauthorized("token is required")
		}
		return c.Next()
	}

	userID, err := middleware.ParseToken(h.jwtSecret, token)
	if err != nil {
		h.log.Warn("websocket upgrade with invalid token", zap.String("ip", c.IP()), zap.Error(err))
		return apperrors.Unauthorized("invalid or expired token")
	}
	c.Locals(wsUserLocal, userID)
	return c.Next()
}

func (h *MessagingHandler) ServeWs(c *websocketcontrib.Conn) {
	boundUserID, _ := c.Locals(wsUserLocal).(string)
	h.relay.Serve(h.ctx, c, boundUserID)
}
