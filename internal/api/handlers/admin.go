package handlers

import (
	"clanelo/internal/models"
	"clanelo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler manages the registry the engine reads from: players,
// tournaments, divisions and division assignments
type AdminHandler struct {
	engine *service.Engine
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(engine *service.Engine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

// CreatePlayer handles POST /api/v1/players
func (h *AdminHandler) CreatePlayer(c *fiber.Ctx) error {
	var req models.CreatePlayerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	p, err := h.engine.CreatePlayer(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// CreateTournament handles POST /api/v1/tournaments
func (h *AdminHandler) CreateTournament(c *fiber.Ctx) error {
	var req models.CreateTournamentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	t, err := h.engine.CreateTournament(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

// CreateDivision handles POST /api/v1/tournaments/:id/divisions
func (h *AdminHandler) CreateDivision(c *fiber.Ctx) error {
	tournamentID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid tournament id", err)
	}

	var req models.CreateDivisionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	d, err := h.engine.CreateDivision(c.UserContext(), tournamentID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

// UpdateDivision handles PATCH /api/v1/divisions/:id
func (h *AdminHandler) UpdateDivision(c *fiber.Ctx) error {
	divisionID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid division id", err)
	}

	var req models.UpdateDivisionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	d, err := h.engine.UpdateDivisionBaseline(c.UserContext(), divisionID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"division": d,
		"message":  "recorded matches keep their snapshots until the next recalculation",
	})
}

// AssignDivision handles POST /api/v1/divisions/:id/members
func (h *AdminHandler) AssignDivision(c *fiber.Ctx) error {
	divisionID, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid division id", err)
	}

	var req models.AssignDivisionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	m, err := h.engine.AssignDivision(c.UserContext(), divisionID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}
