package handlers

import (
	"github.com/anjiri1684/social_chat/database"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	users database.UserDirectory
}

func NewUserHandler(users database.UserDirectory) *UserHandler {
	return &UserHandler{users: users}
}

// GetUser returns the public profile of any active user.
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	profile, err := h.users.Lookup(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	profile, err := h.users.Lookup(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

type UpdateProfileRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=2,max=255"`
	Avatar *string `json:"avatar" validate:"omitempty,url,max=255"`
}

func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	profile, err := h.users.UpdateProfile(c.UserContext(), userID, req.Name, req.Avatar)
	if err != nil {
		return err
	}
	return c.JSON(profile)
}
