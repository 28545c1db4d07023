package registry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "registry", "patterns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_InsertGetList(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	p := Pattern{
		ID:          "pat-1",
		SpecID:      "spec-1",
		Description: "keep handoff payloads under the working tier cap",
		Tags:        []string{"handoff", "budget"},
		Scores:      CategoryScores{Completeness: 10, Actionability: 12, Evidence: 8},
		Status:      StatusCandidate,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.Insert(ctx, p))

	got, err := store.Get(ctx, "pat-1")
	require.NoError(t, err)
	assert.Equal(t, p.Description, got.Description)
	assert.Equal(t, p.Tags, got.Tags)
	assert.Equal(t, p.Scores, got.Scores)
	assert.Equal(t, StatusCandidate, got.Status)
	assert.Nil(t, got.PromotedAt)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestSQLiteStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPatternNotFound)
}

func TestSQLiteStore_ListPreservesInsertionOrder(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Insert(ctx, Pattern{
			ID: id, SpecID: "s", Description: id, Status: StatusCandidate, CreatedAt: time.Now().UTC(),
		}))
	}

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[1].ID)
	assert.Equal(t, "b", all[2].ID)
}

func TestSQLiteStore_SetStatusAndImmutability(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, Pattern{
		ID: "p", SpecID: "s", Description: "d", Status: StatusCandidate, CreatedAt: time.Now().UTC(),
	}))

	now := time.Now().UTC()
	require.NoError(t, store.SetStatus(ctx, "p", StatusPromoted, &now))

	got, err := store.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, StatusPromoted, got.Status)
	require.NotNil(t, got.PromotedAt)

	err = store.SetStatus(ctx, "p", StatusRejected, nil)
	assert.ErrorIs(t, err, ErrPatternImmutable)

	err = store.SetStatus(ctx, "missing", StatusRegistered, nil)
	assert.ErrorIs(t, err, ErrPatternNotFound)
}

func TestSQLiteStore_ConcurrentInserts(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				errs <- store.Insert(ctx, Pattern{
					ID:          uuid.NewString(),
					SpecID:      "spec-concurrent",
					Description: "concurrent insert",
					Status:      StatusCandidate,
					CreatedAt:   time.Now().UTC(),
				})
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, writers*perWriter)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), Pattern{
		ID: "p", SpecID: "s", Description: "d", Status: StatusRegistered, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, StatusRegistered, got.Status)
}
