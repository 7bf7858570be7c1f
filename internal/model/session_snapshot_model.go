package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionSnapshot persists the terminal status projection of an
// orchestration session for later inspection.
type SessionSnapshot struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId       string         `gorm:"type:varchar(64);not null;uniqueIndex"`
	UserId          string         `gorm:"type:varchar(64);not null;index"`
	Status          string         `gorm:"type:varchar(32);not null;index"`
	CurrentPhase    string         `gorm:"type:varchar(32);not null"`
	ApprovalStatus  string         `gorm:"type:varchar(16);not null"`
	OriginalRequest string         `gorm:"type:text;not null"`
	Projection      datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
}

func (SessionSnapshot) TableName() string {
	return "session_snapshots"
}
