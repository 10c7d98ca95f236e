package core

import (
	"context"
	"errors"
	"fmt"
	"hole-detector/internal/database"
	"hole-detector/internal/storage"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ArchivePrefix(batchId uuid.UUID) string {
	return batchId.String() + "/"
}

func ArchiveKey(batchId uuid.UUID) string {
	return ArchivePrefix(batchId) + ArchiveFilename
}

// ArchiveJanitor removes stored archives once they outlive the retention
// period and marks their batches EXPIRED.
type ArchiveJanitor struct {
	db        *gorm.DB
	storage   storage.Provider
	bucket    string
	retention time.Duration
	interval  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func NewArchiveJanitor(db *gorm.DB, storage storage.Provider, bucket string, retention time.Duration) *ArchiveJanitor {
	interval := min(retention/4, time.Minute)
	if interval < time.Second {
		interval = time.Second
	}

	return &ArchiveJanitor{
		db:        db,
		storage:   storage,
		bucket:    bucket,
		retention: retention,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

// Sweep expires every completed batch created before now minus the retention
// period. It returns how many batches were expired.
func (j *ArchiveJanitor) Sweep(ctx context.Context, now time.Time) (int, error) {
	batches, err := database.ExpiredBatches(ctx, j.db, now.Add(-j.retention))
	if err != nil {
		return 0, err
	}

	var errs []error
	expired := 0
	for _, batch := range batches {
		if err := j.storage.DeleteObjects(ctx, j.bucket, ArchivePrefix(batch.Id)); err != nil {
			slog.Error("error deleting expired archive", "batch_id", batch.Id, "error", err)
			errs = append(errs, fmt.Errorf("error deleting archive for batch %s: %w", batch.Id, err))
			continue
		}

		if err := database.MarkBatchExpired(ctx, j.db, batch.Id); err != nil {
			errs = append(errs, err)
			continue
		}

		slog.Info("archive expired", "batch_id", batch.Id, "created", batch.CreationTime)
		expired++
	}

	return expired, errors.Join(errs...)
}

func (j *ArchiveJanitor) Start() {
	slog.Info("starting archive janitor", "retention", j.retention, "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := j.Sweep(context.Background(), time.Now().UTC()); err != nil {
				slog.Error("archive sweep failed", "error", err)
			}
		case <-j.stop:
			slog.Info("archive janitor stopped")
			return
		}
	}
}

func (j *ArchiveJanitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stop)
	})
}
