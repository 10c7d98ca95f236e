package migration_1

import (
	"fmt"

	"gorm.io/gorm"
)

type Batch struct {
	ArchiveSize int64 `gorm:"default:0"`
}

type BatchImage struct {
	DroppedCount int `gorm:"default:0"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Batch{}, "archive_size"); err != nil {
		return fmt.Errorf("error adding ArchiveSize column: %w", err)
	}
	if err := db.Model(&Batch{}).
		Where("archive_size IS NULL").
		Update("archive_size", 0).Error; err != nil {
		return fmt.Errorf("error setting default value for ArchiveSize: %w", err)
	}

	if err := db.Migrator().AddColumn(&BatchImage{}, "dropped_count"); err != nil {
		return fmt.Errorf("error adding DroppedCount column: %w", err)
	}
	if err := db.Model(&BatchImage{}).
		Where("dropped_count IS NULL").
		Update("dropped_count", 0).Error; err != nil {
		return fmt.Errorf("error setting default value for DroppedCount: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&Batch{}, "archive_size"); err != nil {
		return fmt.Errorf("error dropping ArchiveSize column: %w", err)
	}
	if err := db.Migrator().DropColumn(&BatchImage{}, "dropped_count"); err != nil {
		return fmt.Errorf("error dropping DroppedCount column: %w", err)
	}
	return nil
}
