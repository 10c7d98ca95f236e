package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	BatchCompleted string = "COMPLETED"
	BatchFailed    string = "FAILED"
	BatchExpired   string = "EXPIRED"
)

type Batch struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Status         string `gorm:"size:20;not null;index"`
	CreationTime   time.Time
	CompletionTime sql.NullTime

	ImageCount  int `gorm:"default:0"`
	ArchiveKey  sql.NullString
	ArchiveSize int64 `gorm:"default:0"`
	Error       sql.NullString

	Images []BatchImage `gorm:"foreignKey:BatchId;constraint:OnDelete:CASCADE"`
}

type BatchImage struct {
	BatchId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position int       `gorm:"primaryKey"`

	Filename      string `gorm:"not null"`
	MemberName    string `gorm:"not null"`
	RegularCount  int    `gorm:"default:0"`
	ThreadedCount int    `gorm:"default:0"`
	DroppedCount  int    `gorm:"default:0"`

	Report datatypes.JSON `gorm:"type:jsonb;not null"` // {"regular_holes_count": …, "regular_holes": […], …}
}
