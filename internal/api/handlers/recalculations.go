package handlers

import (
	"clanelo/internal/jobs"
	"clanelo/internal/models"
	"clanelo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RecalcHandler starts, polls and cancels recalculation jobs
type RecalcHandler struct {
	jobs *jobs.RecalcManager
}

// NewRecalcHandler creates a new recalculation handler
func NewRecalcHandler(manager *jobs.RecalcManager) *RecalcHandler {
	return &RecalcHandler{jobs: manager}
}

// Start handles POST /api/v1/recalculations
// @Summary Replay the ledger for one tournament or everything
// @Accept json
// @Produce json
// @Param request body models.RecalculateRequest false "Scope"
// @Success 202 {object} jobs.Job
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/recalculations [post]
func (h *RecalcHandler) Start(c *fiber.Ctx) error {
	var req models.RecalculateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body", err)
		}
	}
	if req.TournamentID != nil && *req.TournamentID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: "tournament_id must be positive",
		})
	}

	job, err := h.jobs.Start(service.Scope{TournamentID: req.TournamentID})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

// Status handles GET /api/v1/recalculations/:id
func (h *RecalcHandler) Status(c *fiber.Ctx) error {
	job, err := h.jobs.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(job)
}

// Cancel handles DELETE /api/v1/recalculations/:id
func (h *RecalcHandler) Cancel(c *fiber.Ctx) error {
	job, err := h.jobs.Cancel(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}
