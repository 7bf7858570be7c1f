package serverutils

import (
	"errors"

	"ai-orchestrator-be/internal/jobqueue"
	"ai-orchestrator-be/internal/orchestrator"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the uniform failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StatusFor maps domain errors onto HTTP statuses. Capacity maps to 429
// so clients know to retry later; unknown sessions/jobs to 404.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, orchestrator.ErrCapacity):
		return fiber.StatusTooManyRequests
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, orchestrator.ErrNotAwaitingApproval):
		return fiber.StatusConflict
	case errors.Is(err, jobqueue.ErrJobNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func ErrorHandler(ctx *fiber.Ctx, err error) error {
	return ctx.Status(StatusFor(err)).JSON(ErrorResponse{Success: false, Error: err.Error()})
}
