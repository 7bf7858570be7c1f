package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-orchestrator-be/internal/model"
	"ai-orchestrator-be/internal/orchestrator"
	"ai-orchestrator-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) contract.ISnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) SaveSession(ctx context.Context, projection *orchestrator.SessionStatusProjection) error {
	payload, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("marshal session projection: %w", err)
	}

	snapshot := model.SessionSnapshot{
		SessionId:       projection.ID,
		UserId:          projection.UserID,
		Status:          projection.Status,
		CurrentPhase:    projection.CurrentPhase,
		ApprovalStatus:  projection.ApprovalStatus,
		OriginalRequest: projection.OriginalRequest,
		Projection:      payload,
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(&snapshot).Error
}

func (r *snapshotRepository) SaveSupervision(ctx context.Context, requestID, userID, status string, durationMs int64, record interface{}) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal supervision record: %w", err)
	}

	snapshot := model.SupervisionSnapshot{
		RequestId:  requestID,
		UserId:     userID,
		Status:     status,
		DurationMs: durationMs,
		Record:     payload,
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			UpdateAll: true,
		}).
		Create(&snapshot).Error
}

func (r *snapshotRepository) FindSession(ctx context.Context, sessionID string) (*model.SessionSnapshot, error) {
	var snapshot model.SessionSnapshot
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
