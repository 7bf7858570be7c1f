package controller

import (
	"time"

	"ai-orchestrator-be/internal/dispatch"
	"ai-orchestrator-be/internal/dto"
	"ai-orchestrator-be/internal/jobqueue"
	"ai-orchestrator-be/internal/orchestrator"
	"ai-orchestrator-be/internal/pkg/logger"
	"ai-orchestrator-be/internal/pkg/serverutils"
	"ai-orchestrator-be/pkg/events"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IOrchestrationController interface {
	RegisterRoutes(r fiber.Router)
	Orchestrate(ctx *fiber.Ctx) error
	OrchestrateAsync(ctx *fiber.Ctx) error
	ApproveSession(ctx *fiber.Ctx) error
	RejectSession(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	ShowJob(ctx *fiber.Ctx) error
	CancelJob(ctx *fiber.Ctx) error
	DispatchParallel(ctx *fiber.Ctx) error
}

type orchestrationController struct {
	engine     *orchestrator.Orchestrator
	queue      *jobqueue.Queue
	dispatcher *dispatch.Dispatcher
	publisher  orchestrator.EventPublisher
	jwt        fiber.Handler
	logger     logger.ILogger
}

func NewOrchestrationController(
	engine *orchestrator.Orchestrator,
	queue *jobqueue.Queue,
	dispatcher *dispatch.Dispatcher,
	publisher orchestrator.EventPublisher,
	jwt fiber.Handler,
	log logger.ILogger,
) IOrchestrationController {
	return &orchestrationController{
		engine:     engine,
		queue:      queue,
		dispatcher: dispatcher,
		publisher:  publisher,
		jwt:        jwt,
		logger:     log,
	}
}

func (c *orchestrationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/api")
	h.Use(c.jwt)
	h.Post("orchestrate", c.Orchestrate)
	h.Post("orchestrate/async", c.OrchestrateAsync)
	h.Post("sessions/:id/approve", c.ApproveSession)
	h.Post("sessions/:id/reject", c.RejectSession)
	h.Get("sessions/:id", c.ShowSession)
	h.Get("jobs/:id", c.ShowJob)
	h.Post("jobs/:id/cancel", c.CancelJob)
	h.Post("dispatch/parallel", c.DispatchParallel)
}

func (c *orchestrationController) Orchestrate(ctx *fiber.Ctx) error {
	userID := serverutils.UserID(ctx)

	var req dto.OrchestrateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	start := time.Now()
	res, err := c.engine.Orchestrate(ctx.UserContext(), req.Request, userID, orchestrator.Options{
		ChatID: req.ChatId,
	})
	if err != nil {
		return ctx.Status(serverutils.StatusFor(err)).JSON(fiber.Map{
			"success":        false,
			"error":          err.Error(),
			"execution_time": time.Since(start).String(),
		})
	}

	return ctx.JSON(serverutils.SuccessResponse("Success orchestrate request", res))
}

// OrchestrateAsync enqueues the request on the job queue and answers
// immediately; progress streams over the chat's event channel.
func (c *orchestrationController) OrchestrateAsync(ctx *fiber.Ctx) error {
	userID := serverutils.UserID(ctx)

	var req dto.OrchestrateAsyncRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	jobID := uuid.New().String()
	if accepted := c.queue.AddJob(jobID, req.ChatId, userID, req.Content); !accepted {
		return fiber.NewError(fiber.StatusConflict, "job already queued")
	}

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx.UserContext(), events.NewJobQueued(jobID, req.ChatId)); err != nil {
			c.logger.Warn("OrchestrationController", "Failed to publish job queued event", map[string]interface{}{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Job queued", dto.OrchestrateAsyncResponse{
		JobId:  jobID,
		Status: jobqueue.StatusQueued,
	}))
}

func (c *orchestrationController) ApproveSession(ctx *fiber.Ctx) error {
	userID := serverutils.UserID(ctx)
	sessionID := ctx.Params("id")

	if err := c.engine.ApproveSession(ctx.UserContext(), sessionID, userID); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session approved", dto.ApprovalResponse{
		SessionId: sessionID,
		Status:    orchestrator.ApprovalApproved,
	}))
}

func (c *orchestrationController) RejectSession(ctx *fiber.Ctx) error {
	userID := serverutils.UserID(ctx)
	sessionID := ctx.Params("id")

	var req dto.RejectSessionRequest
	if err := ctx.BodyParser(&req); err != nil && err != fiber.ErrUnprocessableEntity {
		return err
	}

	if err := c.engine.RejectSession(ctx.UserContext(), sessionID, userID, req.Reason); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session rejected", dto.ApprovalResponse{
		SessionId: sessionID,
		Status:    orchestrator.StatusRejected,
	}))
}

func (c *orchestrationController) ShowSession(ctx *fiber.Ctx) error {
	status, err := c.engine.SessionStatus(ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show session", status))
}

func (c *orchestrationController) ShowJob(ctx *fiber.Ctx) error {
	job, err := c.queue.GetJobStatus(ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show job", job))
}

func (c *orchestrationController) CancelJob(ctx *fiber.Ctx) error {
	if err := c.queue.CancelJob(ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Job cancelled", nil))
}

func (c *orchestrationController) DispatchParallel(ctx *fiber.Ctx) error {
	var req dto.ParallelDispatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.dispatcher.ExecuteParallelCalls(ctx.UserContext(), req.Message, req.Models, nil)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success dispatch parallel calls", res))
}
