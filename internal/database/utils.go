package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func SaveBatch(ctx context.Context, txn *gorm.DB, batch *Batch) error {
	if err := txn.WithContext(ctx).Create(batch).Error; err != nil {
		slog.Error("error saving batch", "batch_id", batch.Id, "status", batch.Status, "error", err)
		return fmt.Errorf("error saving batch: %w", err)
	}
	return nil
}

func SaveFailedBatch(ctx context.Context, txn *gorm.DB, batchId uuid.UUID, imageCount int, errorMessage string) error {
	now := time.Now().UTC()
	return SaveBatch(ctx, txn, &Batch{
		Id:             batchId,
		Status:         BatchFailed,
		CreationTime:   now,
		CompletionTime: sql.NullTime{Time: now, Valid: true},
		ImageCount:     imageCount,
		Error:          sql.NullString{String: errorMessage, Valid: true},
	})
}

func GetBatch(ctx context.Context, txn *gorm.DB, batchId uuid.UUID) (Batch, error) {
	var batch Batch
	if err := txn.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&batch, "id = ?", batchId).Error; err != nil {
		return Batch{}, err
	}
	return batch, nil
}

func ListBatches(ctx context.Context, txn *gorm.DB, limit, offset int) ([]Batch, error) {
	var batches []Batch
	if err := txn.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("creation_time DESC").
		Limit(limit).
		Offset(offset).
		Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("error listing batches: %w", err)
	}
	return batches, nil
}

// ExpiredBatches returns completed batches whose archive was created before cutoff.
func ExpiredBatches(ctx context.Context, txn *gorm.DB, cutoff time.Time) ([]Batch, error) {
	var batches []Batch
	if err := txn.WithContext(ctx).
		Where("status = ? AND creation_time < ?", BatchCompleted, cutoff).
		Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("error querying expired batches: %w", err)
	}
	return batches, nil
}

func MarkBatchExpired(ctx context.Context, txn *gorm.DB, batchId uuid.UUID) error {
	result := txn.WithContext(ctx).
		Model(&Batch{}).
		Where("id = ? AND status = ?", batchId, BatchCompleted).
		Update("status", BatchExpired)
	if result.Error != nil {
		slog.Error("error marking batch expired", "batch_id", batchId, "error", result.Error)
		return fmt.Errorf("error marking batch expired: %w", result.Error)
	}
	return nil
}
