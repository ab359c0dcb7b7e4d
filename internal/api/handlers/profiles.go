package handlers

import (
	"strconv"

	"github.com/Nate-Schaefer/SmartDart-App/internal/identity"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ProfileHandler serves the user directory.
type ProfileHandler struct {
	directory *service.DirectoryService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(directory *service.DirectoryService) *ProfileHandler {
	return &ProfileHandler{directory: directory}
}

// Create handles POST /api/v1/profiles
// @Summary Create the caller's profile
// @Accept json
// @Produce json
// @Param request body models.CreateProfileRequest true "Profile"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/profiles [post]
func (h *ProfileHandler) Create(c *fiber.Ctx) error {
	var req models.CreateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	user, err := h.directory.CreateProfile(c.UserContext(), identity.UserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Me handles GET /api/v1/profiles/me
func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	user, err := h.directory.Get(c.UserContext(), identity.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// Get handles GET /api/v1/profiles/:id
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	user, err := h.directory.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// Update handles PATCH /api/v1/profiles/me
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	user, err := h.directory.UpdateEmail(c.UserContext(), identity.UserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// Delete handles DELETE /api/v1/profiles/me
func (h *ProfileHandler) Delete(c *fiber.Ctx) error {
	if err := h.directory.Delete(c.UserContext(), identity.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// History handles GET /api/v1/profiles/:id/history?limit=
func (h *ProfileHandler) History(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	entries, err := h.directory.History(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Stats handles GET /api/v1/profiles/:id/stats
func (h *ProfileHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.directory.Stats(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// Search handles GET /api/v1/profiles?prefix=&limit=
func (h *ProfileHandler) Search(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	users, err := h.directory.FindByUsernamePrefix(c.UserContext(), c.Query("prefix"), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": users})
}
