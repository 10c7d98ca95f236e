package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, GetMigrator(db).Migrate())
	return db
}

func TestNewDatabaseSqlite(t *testing.T) {
	db, err := NewDatabase(t.TempDir(), "")
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&Batch{}))
	assert.True(t, db.Migrator().HasTable(&BatchImage{}))
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	db := createDB(t)

	now := time.Now().UTC()
	old := Batch{
		Id:           uuid.New(),
		Status:       BatchCompleted,
		CreationTime: now.Add(-2 * time.Hour),
		ImageCount:   2,
		ArchiveKey:   sql.NullString{String: "old/metal_holes_detections.zip", Valid: true},
		Images: []BatchImage{
			{Position: 1, Filename: "b.png", MemberName: "b_detection.json", ThreadedCount: 2, Report: datatypes.JSON(`{}`)},
			{Position: 0, Filename: "a.jpg", MemberName: "a_detection.json", RegularCount: 1, Report: datatypes.JSON(`{}`)},
		},
	}
	recent := Batch{Id: uuid.New(), Status: BatchCompleted, CreationTime: now}

	require.NoError(t, SaveBatch(ctx, db, &old))
	require.NoError(t, SaveBatch(ctx, db, &recent))
	require.NoError(t, SaveFailedBatch(ctx, db, uuid.New(), 3, "bad image"))

	loaded, err := GetBatch(ctx, db, old.Id)
	require.NoError(t, err)
	require.Len(t, loaded.Images, 2)
	assert.Equal(t, "a.jpg", loaded.Images[0].Filename)
	assert.Equal(t, "b.png", loaded.Images[1].Filename)

	batches, err := ListBatches(ctx, db, 10, 0)
	require.NoError(t, err)
	assert.Len(t, batches, 3)

	batches, err = ListBatches(ctx, db, 1, 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	expired, err := ExpiredBatches(ctx, db, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.Id, expired[0].Id)

	require.NoError(t, MarkBatchExpired(ctx, db, old.Id))
	loaded, err = GetBatch(ctx, db, old.Id)
	require.NoError(t, err)
	assert.Equal(t, BatchExpired, loaded.Status)

	_, err = GetBatch(ctx, db, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
