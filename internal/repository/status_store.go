package repository

import (
	"context"
	"encoding/json"

	"ai-orchestrator-be/internal/orchestrator"
	"ai-orchestrator-be/internal/pkg/logger"
	"ai-orchestrator-be/internal/repository/contract"
	"ai-orchestrator-be/internal/repository/memory"
)

// StatusStore serves session status projections from the in-memory
// cache and mirrors every save into the snapshot table when a database
// is configured. Persistence failures are logged, never surfaced.
type StatusStore struct {
	cache     *memory.StatusRepository
	snapshots contract.ISnapshotRepository
	logger    logger.ILogger
}

func NewStatusStore(cache *memory.StatusRepository, snapshots contract.ISnapshotRepository, log logger.ILogger) *StatusStore {
	return &StatusStore{cache: cache, snapshots: snapshots, logger: log}
}

func (s *StatusStore) Save(projection *orchestrator.SessionStatusProjection) {
	s.cache.Save(projection)

	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SaveSession(context.Background(), projection); err != nil && s.logger != nil {
		s.logger.Warn("StatusStore", "Session snapshot persist failed", map[string]interface{}{
			"session_id": projection.ID,
			"error":      err.Error(),
		})
	}
}

// Get serves the cache first; on a miss it falls back to the snapshot
// table, so terminal statuses outlive the cache TTL and restarts.
func (s *StatusStore) Get(sessionID string) (*orchestrator.SessionStatusProjection, bool) {
	if projection, ok := s.cache.Get(sessionID); ok {
		return projection, true
	}
	if s.snapshots == nil {
		return nil, false
	}

	snapshot, err := s.snapshots.FindSession(context.Background(), sessionID)
	if err != nil || snapshot == nil {
		if err != nil && s.logger != nil {
			s.logger.Warn("StatusStore", "Session snapshot lookup failed", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
		return nil, false
	}

	var projection orchestrator.SessionStatusProjection
	if err := json.Unmarshal(snapshot.Projection, &projection); err != nil {
		return nil, false
	}
	s.cache.Save(&projection)
	return &projection, true
}

// ArchiveSupervision persists a finished supervision record. Satisfies
// supervisor.Archiver; a no-op without a configured database.
func (s *StatusStore) ArchiveSupervision(requestID, userID, status string, durationMs int64, record interface{}) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SaveSupervision(context.Background(), requestID, userID, status, durationMs, record); err != nil && s.logger != nil {
		s.logger.Warn("StatusStore", "Supervision snapshot persist failed", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}
