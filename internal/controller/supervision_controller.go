package controller

import (
	"ai-orchestrator-be/internal/pkg/serverutils"
	"ai-orchestrator-be/internal/supervisor"

	"github.com/gofiber/fiber/v2"
)

type ISupervisionController interface {
	RegisterRoutes(r fiber.Router)
	ListActive(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	ShowThinking(ctx *fiber.Ctx) error
	ShowDebugLogs(ctx *fiber.Ctx) error
}

type supervisionController struct {
	supervisor *supervisor.Supervisor
	jwt        fiber.Handler
}

func NewSupervisionController(sup *supervisor.Supervisor, jwt fiber.Handler) ISupervisionController {
	return &supervisionController{
		supervisor: sup,
		jwt:        jwt,
	}
}

func (c *supervisionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/api/supervision")
	h.Use(c.jwt)
	h.Get("", c.ListActive)
	h.Get(":id", c.Show)
	h.Get(":id/thinking", c.ShowThinking)
	h.Get(":id/debug", c.ShowDebugLogs)
}

func (c *supervisionController) ListActive(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success list active requests", c.supervisor.GetActiveRequests()))
}

func (c *supervisionController) Show(ctx *fiber.Ctx) error {
	status, err := c.supervisor.GetRequestStatus(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show request status", status))
}

func (c *supervisionController) ShowThinking(ctx *fiber.Ctx) error {
	phase, thoughts, err := c.supervisor.GetThinkingProcess(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show thinking process", fiber.Map{
		"current_phase": phase,
		"thoughts":      thoughts,
	}))
}

func (c *supervisionController) ShowDebugLogs(ctx *fiber.Ctx) error {
	logs, err := c.supervisor.GetDebugLogs(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show debug logs", logs))
}
