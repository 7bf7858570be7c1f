package supervisor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestSupervisor() (*Supervisor, *[]func()) {
	s := New(nil)
	pending := &[]func(){}
	s.afterFunc = func(d time.Duration, f func()) *time.Timer {
		*pending = append(*pending, f)
		return nil
	}
	return s, pending
}

func TestUnknownRequestIsNoOp(t *testing.T) {
	s, _ := newTestSupervisor()

	// None of these may panic or create state.
	s.UpdatePhase("ghost", "planning")
	s.AddThinking("ghost", "hm")
	s.RecordDecision("ghost", "d", "r")
	s.CompleteStep("ghost", "step", nil, nil)
	s.RecordAgentUsage("ghost", "a")
	s.RecordToolUsage("ghost", "t")
	s.RecordLLMCall("ghost", "m")
	s.RecordAPICall("ghost", "e")
	s.AddWarning("ghost", "w")
	s.AddError("ghost", "e")
	s.CompleteSupervision("ghost", StatusCompleted)

	assert.Empty(t, s.AddStep("ghost", "s"))
	_, err := s.GetRequestStatus("ghost")
	assert.Error(t, err)
}

func TestProgressPercentage(t *testing.T) {
	s, _ := newTestSupervisor()
	s.StartSupervision("req-1", "user-1", "planning")

	// Zero steps: percentage must be 0, not a division error.
	status, err := s.GetRequestStatus("req-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, status.Progress.Percentage)

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = s.AddStep("req-1", "step")
	}
	s.CompleteStep("req-1", ids[0], "ok", nil)
	s.CompleteStep("req-1", ids[1], "ok", nil)

	status, err = s.GetRequestStatus("req-1")
	assert.NoError(t, err)
	assert.Equal(t, 2, status.Progress.Steps)
	assert.Equal(t, 3, status.Progress.TotalSteps)
	assert.Equal(t, 67, status.Progress.Percentage) // round(2/3*100)
}

func TestFailedStepDoesNotCountAsCompleted(t *testing.T) {
	s, _ := newTestSupervisor()
	s.StartSupervision("req-1", "user-1", "execution")

	id := s.AddStep("req-1", "doomed")
	s.CompleteStep("req-1", id, nil, errors.New("boom"))

	status, _ := s.GetRequestStatus("req-1")
	assert.Equal(t, 0, status.Progress.Steps)
	assert.Equal(t, 0, status.Progress.Percentage)
}

func TestStepFrozenAfterCompletion(t *testing.T) {
	s, _ := newTestSupervisor()
	s.StartSupervision("req-1", "user-1", "execution")

	id := s.AddStep("req-1", "once")
	s.CompleteStep("req-1", id, "first", nil)
	s.CompleteStep("req-1", id, "second", errors.New("late error"))

	status, _ := s.GetRequestStatus("req-1")
	step := status.RecentSteps[0]
	assert.Equal(t, StepCompleted, step.Status)
	assert.Equal(t, "first", step.Result)
	assert.Empty(t, step.Error)
}

func TestRecentTruncation(t *testing.T) {
	s, _ := newTestSupervisor()
	s.StartSupervision("req-1", "user-1", "planning")

	for i := 0; i < 8; i++ {
		s.AddStep("req-1", fmt.Sprintf("step-%d", i))
		s.AddThinking("req-1", fmt.Sprintf("thought-%d", i))
	}

	status, _ := s.GetRequestStatus("req-1")
	assert.Len(t, status.RecentSteps, 5)
	assert.Len(t, status.RecentThoughts, 3)
	assert.Equal(t, "step-7", status.RecentSteps[4].Name)
	assert.Equal(t, "thought-7", status.RecentThoughts[2].Content)
	assert.Equal(t, "thought-7", status.CurrentThought)
}

func TestDurationFrozenOnCompletion(t *testing.T) {
	s, _ := newTestSupervisor()

	base := time.Now()
	current := base
	s.now = func() time.Time { return current }

	s.StartSupervision("req-1", "user-1", "planning")

	current = base.Add(2 * time.Second)
	s.CompleteSupervision("req-1", StatusCompleted)

	current = base.Add(10 * time.Second)
	status, err := s.GetRequestStatus("req-1")
	assert.NoError(t, err)
	assert.Equal(t, 2*time.Second, status.Duration)
	assert.Equal(t, StatusCompleted, status.Status)
}

func TestHistoryPurgedOncePerRequest(t *testing.T) {
	s, pending := newTestSupervisor()
	s.StartSupervision("req-1", "user-1", "planning")
	s.CompleteSupervision("req-1", StatusCompleted)

	// Still readable from history before the scheduled purge runs.
	_, err := s.GetRequestStatus("req-1")
	assert.NoError(t, err)
	assert.Len(t, *pending, 1)

	(*pending)[0]()

	_, err = s.GetRequestStatus("req-1")
	assert.Error(t, err)
	_, err = s.GetDebugLogs("req-1")
	assert.Error(t, err)
}

func TestDebugRingEviction(t *testing.T) {
	s, _ := newTestSupervisor()
	s.StartSupervision("req-1", "user-1", "planning")

	for i := 0; i < 150; i++ {
		s.AddDebugLog("req-1", fmt.Sprintf("entry-%d", i), nil)
	}

	logs, err := s.GetDebugLogs("req-1")
	assert.NoError(t, err)
	assert.Len(t, logs, 100)
	assert.Equal(t, "entry-50", logs[0].Message)
	assert.Equal(t, "entry-149", logs[99].Message)
}

func TestResourceCounters(t *testing.T) {
	s, _ := newTestSupervisor()
	s.StartSupervision("req-1", "user-1", "planning")

	s.RecordAgentUsage("req-1", "planner")
	s.RecordToolUsage("req-1", "http_fetch")
	s.RecordLLMCall("req-1", "llama3")
	s.RecordLLMCall("req-1", "llama3")
	s.RecordAPICall("req-1", "/api/orchestrate")

	status, _ := s.GetRequestStatus("req-1")
	assert.Equal(t, 1, status.Resources.AgentsUsed)
	assert.Equal(t, 1, status.Resources.ToolsUsed)
	assert.Equal(t, 2, status.Resources.LLMCalls)
	assert.Equal(t, 1, status.Resources.APICalls)
}

func TestGetActiveRequests(t *testing.T) {
	s, _ := newTestSupervisor()
	s.StartSupervision("req-1", "user-1", "planning")
	s.StartSupervision("req-2", "user-2", "planning")
	s.CompleteSupervision("req-2", StatusFailed)

	active := s.GetActiveRequests()
	assert.Len(t, active, 1)
	assert.Equal(t, "req-1", active[0].RequestID)
}

func TestThinkingProcess(t *testing.T) {
	s, _ := newTestSupervisor()
	s.StartSupervision("req-1", "user-1", "planning")
	s.AddThinking("req-1", "first")
	s.AddThinking("req-1", "second")

	current, history, err := s.GetThinkingProcess("req-1")
	assert.NoError(t, err)
	assert.Equal(t, "second", current)
	assert.Len(t, history, 2)
}
