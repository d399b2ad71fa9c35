package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")}
	manager, err := NewManager(arbor.NewLogger(), config, 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestSessionStorage_SaveLoadDelete(t *testing.T) {
	storage := newTestManager(t).SessionStorage()
	ctx := context.Background()

	assert.Nil(t, storage.Load(ctx), "empty database has no session")

	record := &models.SessionRecord{
		Cookies: []models.Cookie{
			{Name: "li_at", Value: "abc", Domain: ".linkedin.com", Path: "/", Secure: true, HTTPOnly: true},
			{Name: "JSESSIONID", Value: "ajax:1", Domain: ".www.linkedin.com", Path: "/"},
		},
		CreatedAt: time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
		LastURL:   "https://www.linkedin.com/feed/",
	}
	require.NoError(t, storage.Save(ctx, record))

	loaded := storage.Load(ctx)
	require.NotNil(t, loaded)
	assert.Equal(t, record.Cookies, loaded.Cookies)
	assert.True(t, record.CreatedAt.Equal(loaded.CreatedAt))
	assert.Equal(t, record.LastURL, loaded.LastURL)

	replacement := &models.SessionRecord{CreatedAt: record.CreatedAt.Add(time.Hour), LastURL: "https://www.linkedin.com/jobs/"}
	require.NoError(t, storage.Save(ctx, replacement))
	assert.Equal(t, "https://www.linkedin.com/jobs/", storage.Load(ctx).LastURL)

	require.NoError(t, storage.Delete(ctx))
	assert.Nil(t, storage.Load(ctx))
	assert.NoError(t, storage.Delete(ctx))
}

func TestSessionStorage_IsFresh(t *testing.T) {
	storage := newTestManager(t).SessionStorage()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	storage.now = func() time.Time { return now }

	assert.True(t, storage.IsFresh(&models.SessionRecord{CreatedAt: now.Add(-time.Hour)}))
	assert.False(t, storage.IsFresh(&models.SessionRecord{CreatedAt: now.Add(-25 * time.Hour)}))
}

func TestRunStorage_ListNewestFirst(t *testing.T) {
	storage := newTestManager(t).RunStorage()
	ctx := context.Background()
	base := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"run_a", "run_b", "run_c"} {
		require.NoError(t, storage.SaveRun(ctx, &models.BatchRun{
			ID:        id,
			Status:    models.RunStatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Outcome:   models.BatchOutcome{Total: i + 1, Attempted: i + 1},
		}))
	}

	runs, err := storage.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run_c", runs[0].ID)
	assert.Equal(t, "run_a", runs[2].ID)

	limited, err := storage.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRunStorage_GetAndUpdate(t *testing.T) {
	storage := newTestManager(t).RunStorage()
	ctx := context.Background()

	run := &models.BatchRun{ID: "run_x", Status: models.RunStatusRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, storage.SaveRun(ctx, run))

	run.Status = models.RunStatusCancelled
	run.RecordsJSON = []byte(`[{"id":"1"}]`)
	require.NoError(t, storage.SaveRun(ctx, run))

	loaded, err := storage.GetRun(ctx, "run_x")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, loaded.Status)
	assert.JSONEq(t, `[{"id":"1"}]`, string(loaded.RecordsJSON))

	_, err = storage.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, interfaces.ErrRunNotFound))

	assert.Error(t, storage.SaveRun(ctx, &models.BatchRun{}))
}

func TestBadgerDB_CloseTwice(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.Close())
	assert.NoError(t, manager.Close())
}
