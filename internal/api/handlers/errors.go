package handlers

import (
	"errors"
	"strconv"

	"clanelo/internal/jobs"
	"clanelo/internal/lock"
	"clanelo/internal/models"
	"clanelo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// respondError maps the engine's error taxonomy onto HTTP statuses
func respondError(c *fiber.Ctx, err error) error {
	status, title := fiber.StatusInternalServerError, "Internal error"

	switch {
	case errors.Is(err, service.ErrValidation):
		status, title = fiber.StatusBadRequest, "Validation failed"
	case errors.Is(err, service.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		status, title = fiber.StatusNotFound, "Not found"
	case errors.Is(err, service.ErrConsistency):
		status, title = fiber.StatusConflict, "Ledger inconsistent"
	case errors.Is(err, lock.ErrLockTimeout), errors.Is(err, jobs.ErrJobRunning):
		status, title = fiber.StatusConflict, "Engine busy"
	case errors.Is(err, service.ErrPersistence):
		status, title = fiber.StatusInternalServerError, "Persistence failure"
	}

	return c.Status(status).JSON(models.ErrorResponse{
		Error:   title,
		Message: err.Error(),
	})
}

func badRequest(c *fiber.Ctx, title string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error:   title,
		Message: err.Error(),
	})
}

// idParam parses a positive numeric path parameter
func idParam(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return uint(v), nil
}
