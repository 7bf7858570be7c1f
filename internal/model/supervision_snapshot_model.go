package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SupervisionSnapshot persists a completed supervision record before its
// in-memory copy is purged by the retention timer.
type SupervisionSnapshot struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RequestId  string         `gorm:"type:varchar(64);not null;uniqueIndex"`
	UserId     string         `gorm:"type:varchar(64);not null;index"`
	Status     string         `gorm:"type:varchar(32);not null;index"`
	DurationMs int64          `gorm:"not null"`
	Record     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
}

func (SupervisionSnapshot) TableName() string {
	return "supervision_snapshots"
}
