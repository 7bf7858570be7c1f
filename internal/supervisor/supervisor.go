package supervisor

import (
	"fmt"
	"sync"
	"time"

	"ai-orchestrator-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// historyTTL is how long completed records stay readable after completion.
const historyTTL = 1 * time.Hour

// Supervisor is an append-only telemetry store keyed by request id. It is
// a passive observer: every mutating call on an unknown request id is a
// no-op, never an error, so the pipeline cannot fail through it.
type Supervisor struct {
	mu      sync.RWMutex
	active  map[string]*Record
	history map[string]*Record
	debug   map[string]*debugRing
	logger  logger.ILogger

	// afterFunc is swapped in tests to control history purging.
	afterFunc func(time.Duration, func()) *time.Timer

	// now is swapped in tests for deterministic durations.
	now func() time.Time

	archiver Archiver
}

// Archiver receives finished records for durable storage. Archiving is
// best-effort; the supervisor never learns whether it succeeded.
type Archiver interface {
	ArchiveSupervision(requestID, userID, status string, durationMs int64, record interface{})
}

func New(log logger.ILogger) *Supervisor {
	return &Supervisor{
		active:    make(map[string]*Record),
		history:   make(map[string]*Record),
		debug:     make(map[string]*debugRing),
		logger:    log,
		afterFunc: time.AfterFunc,
		now:       time.Now,
	}
}

// SetArchiver attaches a durable store for completed records.
func (s *Supervisor) SetArchiver(a Archiver) {
	s.archiver = a
}

// StartSupervision opens a new record for the request.
func (s *Supervisor) StartSupervision(requestID, userID, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[requestID]; exists {
		return
	}

	s.active[requestID] = &Record{
		RequestID:    requestID,
		UserID:       userID,
		StartTime:    s.now(),
		CurrentPhase: phase,
		Status:       StatusActive,
		Phases:       []PhaseEntry{{Phase: phase, EnteredAt: s.now()}},
	}
	s.debug[requestID] = &debugRing{}

	if s.logger != nil {
		s.logger.Info("Supervisor", "Supervision started", map[string]interface{}{
			"request_id": requestID,
			"user_id":    userID,
		})
	}
}

func (s *Supervisor) UpdatePhase(requestID, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[requestID]
	if !ok {
		return
	}
	rec.CurrentPhase = phase
	rec.Phases = append(rec.Phases, PhaseEntry{Phase: phase, EnteredAt: s.now()})
}

func (s *Supervisor) AddThinking(requestID, thought string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[requestID]
	if !ok {
		return
	}
	rec.CurrentThought = thought
	rec.Thoughts = append(rec.Thoughts, Thought{Content: thought, At: s.now()})
}

func (s *Supervisor) RecordDecision(requestID, description, reasoning string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[requestID]
	if !ok {
		return
	}
	rec.Decisions = append(rec.Decisions, Decision{
		Description: description,
		Reasoning:   reasoning,
		At:          s.now(),
	})
}

// AddStep opens a running step and returns its id. The empty string is
// returned for unknown requests, and is itself a no-op input everywhere.
func (s *Supervisor) AddStep(requestID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[requestID]
	if !ok {
		return ""
	}

	step := Step{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    StepRunning,
		Phase:     rec.CurrentPhase,
		StartTime: s.now(),
	}
	rec.Steps = append(rec.Steps, step)
	return step.ID
}

// CompleteStep is the only mutation a step ever receives; once completed
// or failed, a step is frozen.
func (s *Supervisor) CompleteStep(requestID, stepID string, result interface{}, stepErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[requestID]
	if !ok {
		return
	}

	for i := range rec.Steps {
		step := &rec.Steps[i]
		if step.ID != stepID || step.Status != StepRunning {
			continue
		}

		end := s.now()
		step.EndTime = &end
		step.Duration = end.Sub(step.StartTime)
		if stepErr != nil {
			step.Status = StepFailed
			step.Error = stepErr.Error()
		} else {
			step.Status = StepCompleted
			step.Result = result
		}
		return
	}
}

func (s *Supervisor) RecordAgentUsage(requestID, agentName string) {
	s.addResource(requestID, func(r *Resources) { r.AgentsUsed++ })
	s.AddDebugLog(requestID, "agent used", map[string]interface{}{"agent": agentName})
}

func (s *Supervisor) RecordToolUsage(requestID, toolName string) {
	s.addResource(requestID, func(r *Resources) { r.ToolsUsed++ })
	s.AddDebugLog(requestID, "tool used", map[string]interface{}{"tool": toolName})
}

func (s *Supervisor) RecordLLMCall(requestID, model string) {
	s.addResource(requestID, func(r *Resources) { r.LLMCalls++ })
	s.AddDebugLog(requestID, "llm call", map[string]interface{}{"model": model})
}

func (s *Supervisor) RecordAPICall(requestID, endpoint string) {
	s.addResource(requestID, func(r *Resources) { r.APICalls++ })
	s.AddDebugLog(requestID, "api call", map[string]interface{}{"endpoint": endpoint})
}

func (s *Supervisor) addResource(requestID string, apply func(*Resources)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[requestID]
	if !ok {
		return
	}
	apply(&rec.Resources)
}

func (s *Supervisor) AddWarning(requestID, message string) {
	s.addIssue(requestID, message, false)
}

func (s *Supervisor) AddError(requestID, message string) {
	s.addIssue(requestID, message, true)
}

func (s *Supervisor) addIssue(requestID, message string, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[requestID]
	if !ok {
		return
	}

	issue := Issue{Message: message, Phase: rec.CurrentPhase, At: s.now()}
	if isError {
		rec.Errors = append(rec.Errors, issue)
	} else {
		rec.Warnings = append(rec.Warnings, issue)
	}
}

// AddDebugLog appends to the per-request ring buffer (100 entries, FIFO).
func (s *Supervisor) AddDebugLog(requestID, message string, details map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.debug[requestID]
	if !ok {
		return
	}
	ring.append(DebugEntry{Message: message, Details: details, At: s.now()})
}

// CompleteSupervision freezes the record and moves it to the history set.
// A single cleanup is scheduled per request, 1 hour after completion; no
// global sweep scans the whole set.
func (s *Supervisor) CompleteSupervision(requestID, status string) {
	s.mu.Lock()

	rec, ok := s.active[requestID]
	if !ok {
		s.mu.Unlock()
		return
	}

	now := s.now()
	rec.Status = status
	rec.CompletedAt = &now
	rec.TotalDuration = now.Sub(rec.StartTime)

	delete(s.active, requestID)
	s.history[requestID] = rec

	s.afterFunc(historyTTL, func() {
		s.mu.Lock()
		delete(s.history, requestID)
		delete(s.debug, requestID)
		s.mu.Unlock()
	})

	frozen := *rec
	s.mu.Unlock()

	if s.archiver != nil {
		s.archiver.ArchiveSupervision(requestID, frozen.UserID, status, frozen.TotalDuration.Milliseconds(), &frozen)
	}

	if s.logger != nil {
		s.logger.Info("Supervisor", "Supervision completed", map[string]interface{}{
			"request_id": requestID,
			"status":     status,
			"duration":   frozen.TotalDuration.String(),
		})
	}
}

// lookup finds a record in the active set first, then history.
func (s *Supervisor) lookup(requestID string) (*Record, bool) {
	if rec, ok := s.active[requestID]; ok {
		return rec, true
	}
	rec, ok := s.history[requestID]
	return rec, ok
}

// GetActiveRequests lists status projections for all in-flight requests.
func (s *Supervisor) GetActiveRequests() []*RequestStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*RequestStatus, 0, len(s.active))
	for _, rec := range s.active {
		out = append(out, s.project(rec))
	}
	return out
}

// GetThinkingProcess returns the current thought and full history.
func (s *Supervisor) GetThinkingProcess(requestID string) (string, []Thought, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.lookup(requestID)
	if !ok {
		return "", nil, fmt.Errorf("unknown request: %s", requestID)
	}

	history := make([]Thought, len(rec.Thoughts))
	copy(history, rec.Thoughts)
	return rec.CurrentThought, history, nil
}

// GetDebugLogs returns a snapshot of the ring buffer.
func (s *Supervisor) GetDebugLogs(requestID string) ([]DebugEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring, ok := s.debug[requestID]
	if !ok {
		return nil, fmt.Errorf("unknown request: %s", requestID)
	}
	return ring.snapshot(), nil
}
