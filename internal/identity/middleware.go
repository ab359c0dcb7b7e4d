package identity

import (
	"errors"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// HeaderUserID carries the user id set by an upstream gateway.
	HeaderUserID = "X-User-ID"

	localsUserID = "user_id"
)

// RequireUser authenticates the request and stores the user id in
// c.Locals("user_id").
func RequireUser(gw Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cred := Credentials{
			BearerToken:     bearerToken(c.Get(fiber.HeaderAuthorization)),
			ForwardedUserID: c.Get(HeaderUserID),
		}
		userID, err := gw.Verify(c.UserContext(), cred)
		if err != nil {
			status := fiber.StatusUnauthorized
			if errors.Is(err, apperr.ErrStoreUnavailable) {
				status = fiber.StatusServiceUnavailable
			}
			obslog.L().Debug("auth_rejected", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(status).JSON(models.ErrorResponse{
				Error:   "Unauthenticated",
				Message: err.Error(),
			})
		}
		c.Locals(localsUserID, userID)
		return c.Next()
	}
}

// UserID returns the id stored by RequireUser.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsUserID).(string)
	return id
}
