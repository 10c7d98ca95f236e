package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Batch struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Status         string `gorm:"size:20;not null;index"`
	CreationTime   time.Time
	CompletionTime sql.NullTime

	ImageCount int `gorm:"default:0"`
	ArchiveKey sql.NullString
	Error      sql.NullString

	Images []BatchImage `gorm:"foreignKey:BatchId;constraint:OnDelete:CASCADE"`
}

type BatchImage struct {
	BatchId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position int       `gorm:"primaryKey"`

	Filename      string `gorm:"not null"`
	MemberName    string `gorm:"not null"`
	RegularCount  int    `gorm:"default:0"`
	ThreadedCount int    `gorm:"default:0"`

	Report datatypes.JSON `gorm:"type:jsonb;not null"`
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Batch{}, &BatchImage{}); err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}
