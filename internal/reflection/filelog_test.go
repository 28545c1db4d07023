package reflection

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLog_AppendAndFold(t *testing.T) {
	root := t.TempDir()
	log := NewFileLog(root)
	ctx := context.Background()

	first := Entry{
		SpecID: "spec-a",
		Phase:  0,
		Worked: []string{"gate checks kept scope tight"},
		Failed: []string{"underestimated artifact count"},
		Candidates: []Candidate{
			{Description: "write exit gate before starting tasks", Tags: []string{"gating"}},
		},
		Metrics: map[string]int{"tasks_done": 3, "delegations": 1},
	}
	require.NoError(t, log.Append(ctx, first))
	require.NoError(t, log.Append(ctx, Entry{SpecID: "spec-a", Phase: 1, Worked: []string{"handoff pair resumed cleanly"}}))
	require.NoError(t, log.Append(ctx, Entry{SpecID: "spec-b", Phase: 0}))

	entries, err := log.Entries(ctx, "spec-a")
	require.NoError(t, err)
	require.Len(t, entries, 2, "only spec-a entries")
	assert.Equal(t, 0, entries[0].Phase)
	assert.Equal(t, 1, entries[1].Phase)
	assert.Equal(t, first.Worked, entries[0].Worked)
	assert.Equal(t, first.Candidates, entries[0].Candidates)
	assert.Equal(t, 3, entries[0].Metrics["tasks_done"])
	assert.NotEmpty(t, entries[0].ID, "id assigned on append")
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestFileLog_AppendNeverRewrites(t *testing.T) {
	root := t.TempDir()
	log := NewFileLog(root)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, Entry{SpecID: "s", Phase: 0}))
	before, err := os.ReadFile(log.Path())
	require.NoError(t, err)

	require.NoError(t, log.Append(ctx, Entry{SpecID: "s", Phase: 1}))
	after, err := os.ReadFile(log.Path())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(after), string(before)),
		"existing log content must be preserved verbatim")
	assert.Equal(t, 2, strings.Count(string(after), "## Entry"))
}

func TestFileLog_MissingFileIsEmptyLog(t *testing.T) {
	log := NewFileLog(t.TempDir())
	entries, err := log.Entries(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileLog_RequiresSpecID(t *testing.T) {
	log := NewFileLog(t.TempDir())
	err := log.Append(context.Background(), Entry{Phase: 1})
	assert.Error(t, err)
}

func TestFileLog_PreservesProvidedTimestamp(t *testing.T) {
	log := NewFileLog(t.TempDir())
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, Entry{SpecID: "s", Phase: 2, CreatedAt: ts}))
	entries, err := log.Entries(ctx, "s")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].CreatedAt.Equal(ts))
}

func TestMemoryLog_RoundTrip(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, Entry{SpecID: "s", Phase: 0}))
	require.NoError(t, log.Append(ctx, Entry{SpecID: "s", Phase: 1}))

	entries, err := log.Entries(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Mutating the returned slice must not affect the store.
	entries[0].Phase = 99
	again, err := log.Entries(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].Phase)
}
