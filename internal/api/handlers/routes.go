package handlers

import (
	"github.com/Nate-Schaefer/SmartDart-App/internal/identity"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// Handlers groups every route handler of the API.
type Handlers struct {
	Profiles    *ProfileHandler
	Matches     *MatchHandler
	Friends     *FriendHandler
	Leaderboard *LeaderboardHandler
}

// RegisterRoutes mounts the public routes and the authenticated /api/v1 API.
func RegisterRoutes(app *fiber.App, h Handlers, gw identity.Gateway) {
	api := app.Group("/api/v1")
	api.Get("/health", h.Leaderboard.HealthCheck)

	auth := identity.RequireUser(gw)

	profiles := api.Group("/profiles", auth)
	profiles.Post("/", h.Profiles.Create)
	profiles.Get("/", h.Profiles.Search)
	profiles.Get("/me", h.Profiles.Me)
	profiles.Patch("/me", h.Profiles.Update)
	profiles.Delete("/me", h.Profiles.Delete)
	profiles.Get("/:id", h.Profiles.Get)
	profiles.Get("/:id/history", h.Profiles.History)
	profiles.Get("/:id/stats", h.Profiles.Stats)

	matches := api.Group("/matches", auth)
	matches.Post("/", h.Matches.Start)
	matches.Get("/:id", h.Matches.Get)
	matches.Post("/:id/darts", h.Matches.RecordDart)
	matches.Post("/:id/end-turn", h.Matches.EndTurn)
	matches.Delete("/:id", h.Matches.Abandon)

	friends := api.Group("/friends", auth)
	friends.Get("/", h.Friends.Overview)
	friends.Get("/search", h.Friends.Search)
	friends.Post("/requests", h.Friends.SendRequest)
	friends.Post("/requests/:id/accept", h.Friends.Accept)
	friends.Post("/requests/:id/decline", h.Friends.Decline)
	friends.Post("/requests/:id/cancel", h.Friends.Cancel)
	friends.Delete("/:id", h.Friends.Unfriend)

	leaderboard := api.Group("/leaderboard", auth)
	leaderboard.Get("/", h.Leaderboard.GetLeaderboard)
	leaderboard.Get("/rank/:username", h.Leaderboard.GetRank)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", fiberws.New(h.Leaderboard.HandleWebSocket))
}
