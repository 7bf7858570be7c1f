package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-orchestrator-be/internal/agent"
	"ai-orchestrator-be/internal/broadcast"
	"ai-orchestrator-be/internal/config"
	"ai-orchestrator-be/internal/pkg/logger"
	"ai-orchestrator-be/internal/supervisor"
	"ai-orchestrator-be/internal/tool"
	"ai-orchestrator-be/pkg/events"
	"ai-orchestrator-be/pkg/store"

	"github.com/google/uuid"
)

var (
	// ErrCapacity is the hard admission rejection; callers retry later.
	ErrCapacity = errors.New("orchestrator: session capacity reached")

	// ErrSessionNotFound covers lookups and approval calls on unknown ids.
	ErrSessionNotFound = errors.New("orchestrator: session not found")

	// ErrNotAwaitingApproval guards the approval entry points.
	ErrNotAwaitingApproval = errors.New("orchestrator: session is not awaiting approval")

	// ErrPlanningFailed aborts a session whose plan could not be built.
	ErrPlanningFailed = errors.New("orchestrator: planning failed")
)

// EventPublisher pushes lifecycle events to external consumers. A nil
// publisher is valid; publishing is always best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// ApprovalNotifier tells a human that a session waits on their decision.
type ApprovalNotifier interface {
	NotifyApprovalPending(userID, sessionID, riskLevel string) error
}

// StatusStore retains terminal session status projections after the
// session leaves the active set.
type StatusStore interface {
	Save(projection *SessionStatusProjection)
	Get(sessionID string) (*SessionStatusProjection, bool)
}

// Options tune a single orchestration run.
type Options struct {
	// ChatID routes phase updates to that chat's stream subscribers.
	ChatID string
}

// Result is the caller-visible outcome of one orchestration run.
type Result struct {
	SessionID        string                 `json:"session_id"`
	Success          bool                   `json:"success"`
	Status           string                 `json:"status"`
	ApprovalRequired bool                   `json:"approval_required"`
	Results          map[string]interface{} `json:"results,omitempty"`
	Summary          string                 `json:"summary,omitempty"`
	ExecutionTime    time.Duration          `json:"execution_time"`
}

// Orchestrator owns the session state machine: it admits requests under
// the concurrency cap, drives each session through the phase pipeline,
// and exposes the asynchronous approval entry points. The agent and tool
// registries are explicit values owned here and passed by handle, never
// globals.
type Orchestrator struct {
	cfg config.OrchestratorConfig

	agents    *agent.Registry
	tools     *tool.Registry
	planner   *agent.Planner
	router    *agent.Router
	executor  *agent.Executor
	validator *agent.Validator

	sup         *supervisor.Supervisor
	publisher   EventPublisher
	broadcaster *broadcast.Broadcaster
	notifier    ApprovalNotifier
	statuses    StatusStore
	logger      logger.ILogger

	mu     sync.Mutex
	active map[string]*Session
}

// Deps carries the orchestrator's collaborators. Supervisor, publisher,
// broadcaster, notifier and status store are all optional: the pipeline
// must run without any of them.
type Deps struct {
	Agents      *agent.Registry
	Tools       *tool.Registry
	Planner     *agent.Planner
	Router      *agent.Router
	Executor    *agent.Executor
	Validator   *agent.Validator
	Supervisor  *supervisor.Supervisor
	Publisher   EventPublisher
	Broadcaster *broadcast.Broadcaster
	Notifier    ApprovalNotifier
	Statuses    StatusStore
	Logger      logger.ILogger
}

func New(cfg config.OrchestratorConfig, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		agents:      deps.Agents,
		tools:       deps.Tools,
		planner:     deps.Planner,
		router:      deps.Router,
		executor:    deps.Executor,
		validator:   deps.Validator,
		sup:         deps.Supervisor,
		publisher:   deps.Publisher,
		broadcaster: deps.Broadcaster,
		notifier:    deps.Notifier,
		statuses:    deps.Statuses,
		logger:      deps.Logger,
		active:      make(map[string]*Session),
	}
}

// ActiveSessions reports the size of the active set.
func (o *Orchestrator) ActiveSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Orchestrate admits one request and drives it through the pipeline. It
// returns once the session completes, fails, or parks in
// awaiting_approval; in the last case ApproveSession/RejectSession
// resume or terminate it.
func (o *Orchestrator) Orchestrate(ctx context.Context, request, userID string, opts Options) (result *Result, err error) {
	start := time.Now()

	sess, err := o.admit(request, userID, opts)
	if err != nil {
		return nil, err
	}

	// The session leaves the active set whenever this call ends in a
	// terminal state, even on a panicking phase. Parked sessions stay.
	defer func() {
		if r := recover(); r != nil {
			err = o.failSession(ctx, sess, fmt.Errorf("phase panic: %v", r))
			result = nil
		}
		if sess.Status != StatusAwaitingApproval {
			o.evict(sess)
		}
	}()

	if o.sup != nil {
		o.sup.StartSupervision(sess.ID, userID, StatusPlanning)
	}
	o.publish(ctx, events.NewSessionStarted(sess.ID, userID, request))

	// Planning
	o.enterPhase(ctx, sess, StatusPlanning)
	if err := o.planPhase(ctx, sess); err != nil {
		return nil, o.failSession(ctx, sess, err)
	}

	// Routing
	o.enterPhase(ctx, sess, StatusRouting)
	o.routePhase(sess)

	// Execution
	o.enterPhase(ctx, sess, StatusExecution)
	o.executePhase(ctx, sess)

	// Validation (config-gated)
	if o.cfg.EnableValidation {
		o.enterPhase(ctx, sess, StatusValidation)
		o.validatePhase(sess)
	}

	// Approval (config-gated); may park the session and return control.
	if o.cfg.EnableApproval {
		o.enterPhase(ctx, sess, StatusApproval)
		if parked := o.approvalPhase(ctx, sess); parked {
			return o.buildResult(sess, start), nil
		}
	}

	return o.finalize(ctx, sess, start), nil
}

// ApproveSession resumes a parked session through its final phase.
func (o *Orchestrator) ApproveSession(ctx context.Context, sessionID, userID string) error {
	sess, err := o.takeAwaiting(sessionID)
	if err != nil {
		return err
	}

	sess.ApprovalStatus = ApprovalApproved
	if o.sup != nil {
		o.sup.RecordDecision(sess.ID, "approval granted", "approved by "+userID)
	}
	o.publish(ctx, events.NewApprovalResolved(sess.ID, true, ""))

	defer o.evict(sess)
	o.finalize(ctx, sess, sess.CreatedAt)
	return nil
}

// RejectSession terminates a parked session. The reason is surfaced to
// observers; empty is allowed.
func (o *Orchestrator) RejectSession(ctx context.Context, sessionID, userID, reason string) error {
	sess, err := o.takeAwaiting(sessionID)
	if err != nil {
		return err
	}

	sess.ApprovalStatus = ApprovalRejected
	sess.Status = StatusRejected
	now := time.Now()
	sess.CompletedAt = &now

	if o.sup != nil {
		o.sup.RecordDecision(sess.ID, "approval rejected", reason)
		o.sup.CompleteSupervision(sess.ID, supervisor.StatusCompleted)
	}
	o.publish(ctx, events.NewApprovalResolved(sess.ID, false, reason))
	o.broadcastPhase(sess, StatusRejected)

	o.evict(sess)
	return nil
}

// SessionStatus serves the read projection for active and recently
// terminal sessions.
func (o *Orchestrator) SessionStatus(sessionID string) (*SessionStatusProjection, error) {
	o.mu.Lock()
	sess, ok := o.active[sessionID]
	o.mu.Unlock()
	if ok {
		return sess.projection(), nil
	}

	if o.statuses != nil {
		if projection, found := o.statuses.Get(sessionID); found {
			return projection, nil
		}
	}
	return nil, ErrSessionNotFound
}

// admit enforces the capacity invariant: len(active) <= max at every
// observation point, checked and extended under one lock.
func (o *Orchestrator) admit(request, userID string, opts Options) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.active) >= o.cfg.MaxConcurrentSessions {
		return nil, fmt.Errorf("%w: %d active", ErrCapacity, len(o.active))
	}

	now := time.Now()
	sess := &Session{
		ID:              uuid.New().String(),
		UserID:          userID,
		ChatID:          opts.ChatID,
		OriginalRequest: request,
		Status:          StatusCreated,
		CurrentPhase:    StatusCreated,
		Routings:        make(map[string]store.Routing),
		Outcomes:        make(map[string]*agent.TaskOutcome),
		Metadata:        make(map[string]interface{}),
		ApprovalStatus:  ApprovalNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.active[sess.ID] = sess
	return sess, nil
}

func (o *Orchestrator) evict(sess *Session) {
	o.mu.Lock()
	delete(o.active, sess.ID)
	o.mu.Unlock()

	if o.statuses != nil {
		o.statuses.Save(sess.projection())
	}
}

// takeAwaiting fetches a session strictly in awaiting_approval state.
func (o *Orchestrator) takeAwaiting(sessionID string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, ok := o.active[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.Status != StatusAwaitingApproval || sess.ApprovalStatus != ApprovalPending {
		return nil, fmt.Errorf("%w: status %s", ErrNotAwaitingApproval, sess.Status)
	}
	return sess, nil
}

func (o *Orchestrator) enterPhase(ctx context.Context, sess *Session, phase string) {
	sess.Status = phase
	sess.CurrentPhase = phase
	sess.UpdatedAt = time.Now()

	if o.sup != nil {
		o.sup.UpdatePhase(sess.ID, phase)
	}
	o.publish(ctx, events.NewPhaseChanged(sess.ID, phase, sess.Status))
	o.broadcastPhase(sess, phase)
}

func (o *Orchestrator) planPhase(ctx context.Context, sess *Session) error {
	var stepID string
	if o.sup != nil {
		stepID = o.sup.AddStep(sess.ID, "build execution plan")
		o.sup.AddThinking(sess.ID, "decomposing request into tasks")
	}

	ec := agent.ExecutionContext{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		AvailableAgents: o.agents.Snapshot(),
		AvailableTools:  o.tools.Names(),
	}

	plan, err := o.planner.BuildPlan(ctx, sess.OriginalRequest, sess.UserID, ec)
	if o.sup != nil {
		o.sup.RecordAgentUsage(sess.ID, "planner")
		o.sup.RecordLLMCall(sess.ID, "planner")
	}
	if err != nil {
		if o.sup != nil {
			o.sup.CompleteStep(sess.ID, stepID, nil, err)
		}
		return fmt.Errorf("%w: %v", ErrPlanningFailed, err)
	}

	sess.Plan = plan
	if o.sup != nil {
		o.sup.CompleteStep(sess.ID, stepID, fmt.Sprintf("%d tasks planned", len(plan.Tasks)), nil)
	}
	return nil
}

// routePhase routes every plan task against a snapshot of the registries
// taken at this instant.
func (o *Orchestrator) routePhase(sess *Session) {
	agents := o.agents.Snapshot()
	tools := o.tools.Names()

	routings := o.router.Route(sess.Plan.Tasks, agents, tools)
	for _, routing := range routings {
		sess.Routings[routing.TaskID] = routing
		if o.sup != nil {
			o.sup.RecordDecision(sess.ID,
				fmt.Sprintf("task %s -> agent %q", routing.TaskID, routing.SelectedAgent),
				routing.Reasoning)
		}
	}
	sess.Metadata["routings"] = routings

	if o.sup != nil {
		o.sup.RecordAgentUsage(sess.ID, "router")
	}
}

// executePhase runs ready tasks in dependency order. One bad task fails
// locally and the loop continues; tasks whose dependencies never
// complete are simply never started.
func (o *Orchestrator) executePhase(ctx context.Context, sess *Session) {
	for {
		progressed := false

		for i := range sess.Plan.Tasks {
			task := &sess.Plan.Tasks[i]
			if task.Status != store.TaskPending || !sess.Plan.Ready(task) {
				continue
			}

			routing, ok := sess.Routings[task.ID]
			if !ok || routing.SelectedAgent == "" {
				task.Status = store.TaskFailed
				if o.sup != nil {
					o.sup.AddWarning(sess.ID, fmt.Sprintf("no agent available for task %s", task.ID))
				}
				progressed = true
				continue
			}

			task.Status = store.TaskRunning
			progressed = true

			var stepID string
			if o.sup != nil {
				stepID = o.sup.AddStep(sess.ID, "execute task "+task.ID)
				o.sup.RecordAgentUsage(sess.ID, routing.SelectedAgent)
				for _, toolName := range routing.SelectedTools {
					o.sup.RecordToolUsage(sess.ID, toolName)
				}
			}

			outcome, err := o.executor.RunTask(ctx, *task, routing)
			if err != nil {
				task.Status = store.TaskFailed
				if o.sup != nil {
					o.sup.CompleteStep(sess.ID, stepID, nil, err)
					o.sup.AddError(sess.ID, err.Error())
				}
				continue
			}

			task.Status = store.TaskCompleted
			task.Result = outcome.Output
			sess.Outcomes[task.ID] = outcome
			if o.sup != nil {
				o.sup.CompleteStep(sess.ID, stepID, outcome.Output, nil)
			}
		}

		if !progressed {
			return
		}
	}
}

// validatePhase scores every completed result. A policy that panics
// skips that one result; the phase always finishes.
func (o *Orchestrator) validatePhase(sess *Session) {
	for i := range sess.Plan.Tasks {
		task := &sess.Plan.Tasks[i]
		outcome, ok := sess.Outcomes[task.ID]
		if !ok {
			continue
		}

		val, err := o.validateOne(task.ID, outcome.Output)
		if err != nil {
			if o.sup != nil {
				o.sup.AddWarning(sess.ID, fmt.Sprintf("validator failed on task %s: %v", task.ID, err))
			}
			continue
		}

		sess.Validations = append(sess.Validations, val)
		if !val.IsValid && val.Confidence < 50 {
			if o.sup != nil {
				o.sup.AddWarning(sess.ID, fmt.Sprintf("critical validation failure on task %s", task.ID))
			}
		}
	}
	sess.Metadata["validations"] = sess.Validations
}

func (o *Orchestrator) validateOne(taskID string, result interface{}) (val agent.Validation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validation policy panic: %v", r)
		}
	}()
	return o.validator.Validate(taskID, result), nil
}

// approvalPhase builds the preview and parks the session when a human
// decision is required. Returns true when parked.
func (o *Orchestrator) approvalPhase(ctx context.Context, sess *Session) bool {
	sess.Preview = buildPreview(sess)
	sess.ApprovalRequired = approvalRequired(sess.Preview)
	sess.Metadata["preview"] = sess.Preview

	if !sess.ApprovalRequired {
		return false
	}

	sess.Status = StatusAwaitingApproval
	sess.CurrentPhase = StatusAwaitingApproval
	sess.ApprovalStatus = ApprovalPending

	if o.sup != nil {
		o.sup.UpdatePhase(sess.ID, StatusAwaitingApproval)
		o.sup.AddThinking(sess.ID, "awaiting human approval, risk "+sess.Preview.RiskLevel)
	}
	o.publish(ctx, events.NewApprovalPending(sess.ID, sess.UserID, sess.Preview.RiskLevel))
	o.broadcastPhase(sess, StatusAwaitingApproval)

	if o.notifier != nil {
		if err := o.notifier.NotifyApprovalPending(sess.UserID, sess.ID, sess.Preview.RiskLevel); err != nil && o.logger != nil {
			o.logger.Warn("Orchestrator", "Approval notification failed", map[string]interface{}{
				"session_id": sess.ID,
				"error":      err.Error(),
			})
		}
	}
	return true
}

// finalize runs the final phase and closes the session as completed.
func (o *Orchestrator) finalize(ctx context.Context, sess *Session, start time.Time) *Result {
	o.enterPhase(ctx, sess, StatusFinal)

	sess.Status = StatusCompleted
	sess.CurrentPhase = StatusCompleted
	now := time.Now()
	sess.CompletedAt = &now

	if o.sup != nil {
		o.sup.UpdatePhase(sess.ID, StatusCompleted)
		o.sup.CompleteSupervision(sess.ID, supervisor.StatusCompleted)
	}
	o.publish(ctx, events.NewSessionCompleted(sess.ID, len(sess.Plan.Tasks), time.Since(start).Milliseconds()))
	o.broadcastPhase(sess, StatusCompleted)

	if o.logger != nil {
		o.logger.Info("Orchestrator", "Session completed", map[string]interface{}{
			"session_id": sess.ID,
			"tasks":      len(sess.Plan.Tasks),
			"duration":   time.Since(start).String(),
		})
	}
	return o.buildResult(sess, start)
}

// failSession marks the session failed, records it and surfaces the
// error to the caller.
func (o *Orchestrator) failSession(ctx context.Context, sess *Session, cause error) error {
	sess.Status = StatusFailed
	now := time.Now()
	sess.CompletedAt = &now

	if o.sup != nil {
		o.sup.AddError(sess.ID, cause.Error())
		o.sup.CompleteSupervision(sess.ID, supervisor.StatusFailed)
	}
	o.publish(ctx, events.NewSessionFailed(sess.ID, sess.CurrentPhase, cause.Error()))
	o.broadcastPhase(sess, StatusFailed)

	if o.logger != nil {
		o.logger.Error("Orchestrator", "Session failed", map[string]interface{}{
			"session_id": sess.ID,
			"phase":      sess.CurrentPhase,
			"error":      cause.Error(),
		})
	}
	return cause
}

func (o *Orchestrator) buildResult(sess *Session, start time.Time) *Result {
	results := make(map[string]interface{}, len(sess.Outcomes))
	for taskID, outcome := range sess.Outcomes {
		results[taskID] = outcome.Output
	}

	return &Result{
		SessionID:        sess.ID,
		Success:          sess.Status == StatusCompleted || sess.Status == StatusAwaitingApproval,
		Status:           sess.Status,
		ApprovalRequired: sess.ApprovalRequired,
		Results:          results,
		Summary:          sess.Plan.Summary,
		ExecutionTime:    time.Since(start),
	}
}

// publish is best-effort: the pipeline never fails through eventing.
func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil && o.logger != nil {
		o.logger.Warn("Orchestrator", "Event publish failed", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) broadcastPhase(sess *Session, phase string) {
	if o.broadcaster == nil || sess.ChatID == "" {
		return
	}
	o.broadcaster.BroadcastPhaseUpdate(sess.ChatID, sess.ID, phase)
}
