package handlers

import (
	"clanelo/internal/models"
	"clanelo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// MatchHandler handles HTTP requests that read and mutate the ledger
type MatchHandler struct {
	engine *service.Engine
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(engine *service.Engine) *MatchHandler {
	return &MatchHandler{engine: engine}
}

// RecordMatch handles POST /api/v1/matches
// @Summary Record a match
// @Accept json
// @Produce json
// @Param request body models.RecordMatchRequest true "Match facts"
// @Success 201 {object} models.Match
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/matches [post]
func (h *MatchHandler) RecordMatch(c *fiber.Ctx) error {
	var req models.RecordMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	m, err := h.engine.RecordMatch(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// RecordMatches handles POST /api/v1/matches/bulk
// @Summary Record a batch of matches atomically
// @Accept json
// @Produce json
// @Param request body models.BulkRecordRequest true "Matches"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/matches/bulk [post]
func (h *MatchHandler) RecordMatches(c *fiber.Ctx) error {
	var req models.BulkRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	matches, err := h.engine.RecordMatches(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"recorded": len(matches),
		"matches":  matches,
	})
}

// GetMatch handles GET /api/v1/matches/:id
func (h *MatchHandler) GetMatch(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid match id", err)
	}

	m, err := h.engine.GetMatch(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(m)
}

// EditMatch handles PUT /api/v1/matches/:id
// @Summary Edit the goals or absence flags of a recorded match
// @Accept json
// @Produce json
// @Param id path int true "Match ID"
// @Param request body models.EditMatchRequest true "New facts"
// @Success 200 {object} models.Match
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/matches/{id} [put]
func (h *MatchHandler) EditMatch(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid match id", err)
	}

	var req models.EditMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	m, err := h.engine.EditMatch(c.UserContext(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(m)
}

// DeleteMatch handles DELETE /api/v1/matches/:id
func (h *MatchHandler) DeleteMatch(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid match id", err)
	}

	if err := h.engine.DeleteMatch(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
