package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tormodhaugland/intake/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "_system", "nested", "history.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, dbPath, db.Path())
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestOpenTwiceKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var versions int
	require.NoError(t, db.conn.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&versions))
	assert.Equal(t, 2, versions)
}

func TestRecordAndGetBatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	batch := model.BatchRecord{
		TargetDir:  "/workspace/data",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Outcomes: []model.ImportOutcome{
			{SourcePath: "/home/u/report.txt", DestPath: "/workspace/data/report.txt", Success: true, Files: 1, Bytes: 42},
			{SourcePath: "/home/u/linked", DestPath: "/workspace/data/linked", Success: true, Files: 2, Links: 1, Dirs: 1, Bytes: 4},
			{SourcePath: "/workspace/data", Reason: model.ReasonRecursiveImport, Detail: "recursive import"},
			{SourcePath: "/home/u/taken", DestPath: "/workspace/data/taken", Reason: model.ReasonAlreadyExists},
		},
	}

	id, err := db.RecordBatch(ctx, batch)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "generated ID should be a UUID")

	got, err := db.GetBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, batch.TargetDir, got.TargetDir)
	assert.True(t, got.StartedAt.Equal(batch.StartedAt))
	assert.True(t, got.FinishedAt.Equal(batch.FinishedAt))
	assert.Equal(t, batch.Outcomes, got.Outcomes)
}

func TestRecordBatchKeepsGivenID(t *testing.T) {
	db := openTestDB(t)

	id, err := db.RecordBatch(context.Background(), model.BatchRecord{ID: "fixed-id", TargetDir: "/t"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	got, err := db.GetBatch(context.Background(), "fixed-id")
	require.NoError(t, err)
	assert.Empty(t, got.Outcomes)
}

func TestGetBatchNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetBatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBatchesNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"old", "mid", "new"} {
		_, err := db.RecordBatch(ctx, model.BatchRecord{
			ID:         name,
			TargetDir:  "/t",
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i) * time.Hour),
			Outcomes: []model.ImportOutcome{
				{SourcePath: "/a", Success: true, Bytes: int64(i + 1)},
				{SourcePath: "/b", Reason: model.ReasonCopyFailed},
			},
		})
		require.NoError(t, err)
	}

	all, err := db.ListBatches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "old", all[2].ID)
	assert.Equal(t, 2, all[0].Total)
	assert.Equal(t, 1, all[0].Succeeded)
	assert.Equal(t, int64(3), all[0].Bytes)

	limited, err := db.ListBatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "mid", limited[1].ID)
}
