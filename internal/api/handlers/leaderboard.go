package handlers

import (
	"strconv"

	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/service"
	"github.com/Nate-Schaefer/SmartDart-App/internal/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// LeaderboardHandler handles HTTP requests for the leaderboard
type LeaderboardHandler struct {
	service *service.LeaderboardService
	hub     *websocket.Hub
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(service *service.LeaderboardService, hub *websocket.Hub) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		hub:     hub,
	}
}

// GetLeaderboard handles GET /api/v1/leaderboard
// @Summary Get leaderboard
// @Description Retrieves the top players, ties broken by username
// @Accept json
// @Produce json
// @Param limit query int false "Number of entries" default(10)
// @Success 200 {object} models.LeaderboardResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/leaderboard [get]
func (h *LeaderboardHandler) GetLeaderboard(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil || limit <= 0 {
		limit = service.DefaultLeaderboardSize
	}

	leaderboard, err := h.service.TopN(c.UserContext(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(leaderboard)
}

// GetRank handles GET /api/v1/leaderboard/rank/:username
// @Summary Get a user's rank
// @Description Retrieves a user's global rank and rating
// @Accept json
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} models.RankResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/leaderboard/rank/{username} [get]
func (h *LeaderboardHandler) GetRank(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid username",
			Message: "Username cannot be empty",
		})
	}

	result, err := h.service.Rank(c.UserContext(), username)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// HealthCheck handles GET /api/v1/health
// @Summary Health check
// @Description Checks the health of the service and its dependencies
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/health [get]
func (h *LeaderboardHandler) HealthCheck(c *fiber.Ctx) error {
	if err := h.service.HealthCheck(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error:   "Health check failed",
			Message: err.Error(),
		})
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.GetClientCount()
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":            "healthy",
		"message":           "All systems operational",
		"websocket_clients": clients,
	})
}

// HandleWebSocket attaches a connection to the version feed.
func (h *LeaderboardHandler) HandleWebSocket(c *fiberws.Conn) {
	websocket.ServeWS(h.hub, c)
}
