package handlers

import (
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// Handlers bundles every HTTP handler of the API
type Handlers struct {
	Matches     *MatchHandler
	Recalc      *RecalcHandler
	Leaderboard *LeaderboardHandler
	Admin       *AdminHandler
}

// Register mounts the API under /api/v1 and the websocket under /ws
func Register(app *fiber.App, h Handlers) {
	api := app.Group("/api/v1")

	// Ledger
	api.Post("/matches", h.Matches.RecordMatch)
	api.Post("/matches/bulk", h.Matches.RecordMatches)
	api.Get("/matches/:id", h.Matches.GetMatch)
	api.Put("/matches/:id", h.Matches.EditMatch)
	api.Delete("/matches/:id", h.Matches.DeleteMatch)

	// Recalculation jobs
	api.Post("/recalculations", h.Recalc.Start)
	api.Get("/recalculations/:id", h.Recalc.Status)
	api.Delete("/recalculations/:id", h.Recalc.Cancel)

	// Registry
	api.Post("/players", h.Admin.CreatePlayer)
	api.Post("/tournaments", h.Admin.CreateTournament)
	api.Post("/tournaments/:id/divisions", h.Admin.CreateDivision)
	api.Patch("/divisions/:id", h.Admin.UpdateDivision)
	api.Post("/divisions/:id/members", h.Admin.AssignDivision)

	// Reads
	api.Get("/leaderboard", h.Leaderboard.GetLeaderboard)
	api.Get("/search/:name", h.Leaderboard.SearchPlayer)
	api.Get("/players/:id", h.Leaderboard.GetPlayerProfile)
	api.Get("/tournaments/:id/standings", h.Leaderboard.GetStandings)
	api.Get("/health", h.Leaderboard.HealthCheck)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", fiberws.New(h.Leaderboard.HandleWebSocket))
}
