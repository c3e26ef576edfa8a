package handlers

import (
	"strconv"

	"clanelo/internal/models"
	"clanelo/internal/service"
	"clanelo/internal/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// LeaderboardHandler handles HTTP requests for rating reads
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
// @Summary Get the global leaderboard
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination" default(50)
// @Success 200 {object} models.LeaderboardResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/leaderboard [get]
func (h *LeaderboardHandler) GetLeaderboard(c *fiber.Ctx) error {
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	leaderboard, err := h.service.GetLeaderboard(c.UserContext(), offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to retrieve leaderboard",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(leaderboard)
}

// SearchPlayer handles GET /api/v1/search/:name
// @Summary Search for a player
// @Description Retrieves a player's global rank and rating
// @Produce json
// @Param name path string true "Player name"
// @Success 200 {object} models.SearchResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/search/{name} [get]
func (h *LeaderboardHandler) SearchPlayer(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid name",
			Message: "Name cannot be empty",
		})
	}

	result, err := h.service.SearchPlayer(c.UserContext(), name)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// GetPlayerProfile handles GET /api/v1/players/:id
func (h *LeaderboardHandler) GetPlayerProfile(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid player id", err)
	}

	profile, err := h.service.GetPlayerProfile(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetStandings handles GET /api/v1/tournaments/:id/standings
func (h *LeaderboardHandler) GetStandings(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid tournament id", err)
	}

	standings, err := h.service.GetStandings(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(standings)
}

// HealthCheck handles GET /api/v1/health
// @Summary Health check
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

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "healthy",
		"message": "All systems operational",
	})
}

// HandleWebSocket streams progress events and leaderboard versions
func (h *LeaderboardHandler) HandleWebSocket(c *fiberws.Conn) {
	websocket.ServeWS(h.hub, c)
}
