package handlers

import (
	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/identity"
	"github.com/Nate-Schaefer/SmartDart-App/internal/service"

	"github.com/gofiber/fiber/v2"
)

// MatchHandler serves the match ledger.
type MatchHandler struct {
	matches *service.MatchService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matches *service.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// Start handles POST /api/v1/matches
// @Summary Start a match
// @Description Opens a leg for the caller against a registered opponent or a guest
// @Accept json
// @Produce json
// @Param request body service.StartMatchRequest false "Opponent and starting score"
// @Success 201 {object} darts.Match
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/matches [post]
func (h *MatchHandler) Start(c *fiber.Ctx) error {
	var req service.StartMatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
	}

	m, err := h.matches.Start(c.UserContext(), identity.UserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// Get handles GET /api/v1/matches/:id
func (h *MatchHandler) Get(c *fiber.Ctx) error {
	m, err := h.matches.Get(c.UserContext(), c.Params("id"), identity.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(m)
}

// RecordDart handles POST /api/v1/matches/:id/darts
// @Summary Record one dart
// @Accept json
// @Produce json
// @Param request body service.RecordDartRequest true "Dart value 0-60"
// @Success 200 {object} darts.TurnState
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/matches/{id}/darts [post]
func (h *MatchHandler) RecordDart(c *fiber.Ctx) error {
	var req service.RecordDartRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if req.Value == nil {
		return respondError(c, apperr.Invalid("value is required"))
	}

	state, err := h.matches.RecordDart(c.UserContext(), c.Params("id"), identity.UserID(c), *req.Value)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// EndTurn handles POST /api/v1/matches/:id/end-turn
func (h *MatchHandler) EndTurn(c *fiber.Ctx) error {
	res, err := h.matches.EndTurn(c.UserContext(), c.Params("id"), identity.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// Abandon handles DELETE /api/v1/matches/:id
func (h *MatchHandler) Abandon(c *fiber.Ctx) error {
	if err := h.matches.Abandon(c.UserContext(), c.Params("id"), identity.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
