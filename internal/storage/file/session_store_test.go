package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"pgregory.net/rapid"

	"github.com/ternarybob/hirescout/internal/models"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	return NewSessionStore(filepath.Join(t.TempDir(), "nested", "session.json"), 0, arbor.NewLogger())
}

func generateCookie(t *rapid.T, label string) models.Cookie {
	return models.Cookie{
		Name:     rapid.StringMatching(`[a-zA-Z_]{1,16}`).Draw(t, label+"_name"),
		Value:    rapid.StringN(0, 64, -1).Draw(t, label+"_value"),
		Domain:   rapid.SampledFrom([]string{".linkedin.com", "www.linkedin.com"}).Draw(t, label+"_domain"),
		Path:     "/",
		Expires:  float64(rapid.Int64Range(0, 2_000_000_000).Draw(t, label+"_expires")),
		Secure:   rapid.Bool().Draw(t, label+"_secure"),
		HTTPOnly: rapid.Bool().Draw(t, label+"_http_only"),
		SameSite: rapid.SampledFrom([]string{"", "Lax", "Strict", "None"}).Draw(t, label+"_same_site"),
	}
}

func TestSessionStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 6).Draw(t, "cookie_count")
		original := &models.SessionRecord{
			CreatedAt: time.Unix(rapid.Int64Range(1, 1_900_000_000).Draw(t, "created_at"), 0).UTC(),
			LastURL:   rapid.StringN(0, 80, -1).Draw(t, "last_url"),
			Cookies:   make([]models.Cookie, count),
		}
		for i := range original.Cookies {
			original.Cookies[i] = generateCookie(t, "cookie")
		}

		if err := store.Save(ctx, original); err != nil {
			t.Fatalf("Save: %v", err)
		}

		loaded := store.Load(ctx)
		if loaded == nil {
			t.Fatal("Load returned nil after Save")
		}
		if !loaded.CreatedAt.Equal(original.CreatedAt) {
			t.Errorf("CreatedAt mismatch: got %v, want %v", loaded.CreatedAt, original.CreatedAt)
		}
		if loaded.LastURL != original.LastURL {
			t.Errorf("LastURL mismatch: got %q, want %q", loaded.LastURL, original.LastURL)
		}
		if len(loaded.Cookies) != len(original.Cookies) {
			t.Fatalf("Cookies length mismatch: got %d, want %d", len(loaded.Cookies), len(original.Cookies))
		}
		for i, c := range original.Cookies {
			if loaded.Cookies[i] != c {
				t.Errorf("Cookies[%d] mismatch: got %+v, want %+v", i, loaded.Cookies[i], c)
			}
		}
	})
}

func TestSessionStore_LoadMissingIsAbsent(t *testing.T) {
	store := newTestStore(t)
	assert.Nil(t, store.Load(context.Background()))
}

func TestSessionStore_LoadCorruptIsAbsent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))

	for _, content := range []string{"{not json", `{"cookies": []}`, ""} {
		require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o600))
		assert.Nil(t, store.Load(context.Background()), "content %q", content)
	}
}

func TestSessionStore_LoadIgnoresUnknownFields(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))

	content := `{
  "cookies": [{"name": "li_at", "value": "abc", "domain": ".linkedin.com", "path": "/", "priority": "High"}],
  "created_at": "2026-01-02T03:04:05Z",
  "last_url": "https://www.linkedin.com/feed/",
  "browser": "chrome"
}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o600))

	record := store.Load(context.Background())
	require.NotNil(t, record)
	assert.Equal(t, "https://www.linkedin.com/feed/", record.LastURL)
	require.Len(t, record.Cookies, 1)
	assert.Equal(t, "li_at", record.Cookies[0].Name)
}

func TestSessionStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.SessionRecord{CreatedAt: time.Now().UTC().Add(-time.Hour), LastURL: "first"}
	second := &models.SessionRecord{CreatedAt: time.Now().UTC(), LastURL: "second"}
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	assert.Equal(t, "second", store.Load(ctx).LastURL)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSessionStore_SaveNil(t *testing.T) {
	assert.Error(t, newTestStore(t).Save(context.Background(), nil))
}

func TestSessionStore_IsFresh(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t).WithClock(func() time.Time { return now })

	assert.True(t, store.IsFresh(&models.SessionRecord{CreatedAt: now.Add(-23 * time.Hour)}))
	assert.False(t, store.IsFresh(&models.SessionRecord{CreatedAt: now.Add(-24 * time.Hour)}))
	assert.False(t, store.IsFresh(&models.SessionRecord{CreatedAt: now.Add(-25 * time.Hour)}))
	assert.False(t, store.IsFresh(&models.SessionRecord{}))
	assert.False(t, store.IsFresh(nil))
}

func TestSessionStore_StaleRecordsNeverFresh(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t).WithClock(func() time.Time { return now })

	rapid.Check(t, func(t *rapid.T) {
		age := time.Duration(rapid.Int64Range(int64(24*time.Hour), int64(365*24*time.Hour)).Draw(t, "age"))
		record := &models.SessionRecord{
			CreatedAt: now.Add(-age),
			Cookies:   []models.Cookie{{Name: "li_at", Value: "valid-looking"}},
		}
		if store.IsFresh(record) {
			t.Fatalf("record aged %s reported fresh", age)
		}
	})
}

func TestSessionStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.SessionRecord{CreatedAt: time.Now()}))
	require.NoError(t, store.Delete(ctx))
	assert.Nil(t, store.Load(ctx))
	assert.NoError(t, store.Delete(ctx), "deleting an absent session is not an error")
}
