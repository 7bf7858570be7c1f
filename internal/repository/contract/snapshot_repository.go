package contract

import (
	"context"

	"ai-orchestrator-be/internal/model"
	"ai-orchestrator-be/internal/orchestrator"
)

// ISnapshotRepository persists terminal orchestration state. The engine
// itself never depends on it; persistence is a best-effort side channel.
type ISnapshotRepository interface {
	SaveSession(ctx context.Context, projection *orchestrator.SessionStatusProjection) error
	SaveSupervision(ctx context.Context, requestID, userID, status string, durationMs int64, record interface{}) error
	FindSession(ctx context.Context, sessionID string) (*model.SessionSnapshot, error)
}
