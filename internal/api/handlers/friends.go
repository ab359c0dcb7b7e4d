package handlers

import (
	"strconv"

	"github.com/Nate-Schaefer/SmartDart-App/internal/identity"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// FriendHandler serves the social graph.
type FriendHandler struct {
	social    *service.SocialService
	validator *validator.Validate
}

// NewFriendHandler creates a new friend handler
func NewFriendHandler(social *service.SocialService) *FriendHandler {
	return &FriendHandler{
		social:    social,
		validator: validator.New(),
	}
}

// SendRequest handles POST /api/v1/friends/requests
func (h *FriendHandler) SendRequest(c *fiber.Ctx) error {
	var req models.SendFriendRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}

	fr, err := h.social.SendRequest(c.UserContext(), identity.UserID(c), req.ReceiverID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fr)
}

// Accept handles POST /api/v1/friends/requests/:id/accept
func (h *FriendHandler) Accept(c *fiber.Ctx) error {
	fr, err := h.social.Accept(c.UserContext(), c.Params("id"), identity.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fr)
}

// Decline handles POST /api/v1/friends/requests/:id/decline
func (h *FriendHandler) Decline(c *fiber.Ctx) error {
	fr, err := h.social.Decline(c.UserContext(), c.Params("id"), identity.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fr)
}

// Cancel handles POST /api/v1/friends/requests/:id/cancel
func (h *FriendHandler) Cancel(c *fiber.Ctx) error {
	fr, err := h.social.Cancel(c.UserContext(), c.Params("id"), identity.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fr)
}

// Unfriend handles DELETE /api/v1/friends/:id
func (h *FriendHandler) Unfriend(c *fiber.Ctx) error {
	if err := h.social.Unfriend(c.UserContext(), identity.UserID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Overview handles GET /api/v1/friends
func (h *FriendHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.social.Overview(c.UserContext(), identity.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(overview)
}

// Search handles GET /api/v1/friends/search?q=&limit=
func (h *FriendHandler) Search(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	users, err := h.social.Search(c.UserContext(), c.Query("q"), identity.UserID(c), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": users})
}
