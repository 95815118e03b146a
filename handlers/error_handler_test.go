package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/anjiri1684/social_chat/apperrors"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorHandlerRendersAppErrorCodes(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Get("/forbidden", func(c *fiber.Ctx) error { return apperrors.ErrNotParticipant })
	app.Get("/invalid", func(c *fiber.Ctx) error { return apperrors.InvalidArg("limit must be positive") })
	app.Get("/missing", func(c *fiber.Ctx) error { return fmt.Errorf("lookup: %w", apperrors.ErrUserNotFound) })
	app.Get("/store", func(c *fiber.Ctx) error { return apperrors.StoreFailure(errors.New("dial tcp: refused")) })
	app.Get("/upgrade", func(c *fiber.Ctx) error { return fiber.ErrUpgradeRequired })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("secret detail") })

	cases := []struct {
		path    string
		status  int
		code    apperrors.Code
		message string
	}{
		{"/forbidden", fiber.StatusForbidden, apperrors.CodePermissionDenied, "you are not a participant in this conversation"},
		{"/invalid", fiber.StatusBadRequest, apperrors.CodeInvalidArgument, "limit must be positive"},
		{"/missing", fiber.StatusNotFound, apperrors.CodeNotFound, "user not found"},
		{"/store", fiber.StatusServiceUnavailable, apperrors.CodeUnavailable, "message store unavailable"},
		{"/upgrade", fiber.StatusUpgradeRequired, apperrors.CodeInvalidArgument, fiber.ErrUpgradeRequired.Message},
		{"/nowhere", fiber.StatusNotFound, apperrors.CodeNotFound, "Cannot GET /nowhere"},
		{"/boom", fiber.StatusInternalServerError, apperrors.CodeInternal, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			var body struct {
				Status  string `json:"status"`
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, string(tc.code), body.Code)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}
