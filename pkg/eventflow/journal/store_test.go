package journal_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventflow/pkg/eventflow/journal"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) journal.Store

func trail(runID string, stages ...string) []journal.Entry {
	entries := make([]journal.Entry, len(stages))
	for i, stage := range stages {
		entries[i] = journal.Entry{
			RunID:     runID,
			Flow:      "greet",
			EventID:   "evt-1",
			Seq:       i,
			Stage:     stage,
			Node:      "reply",
			Timestamp: time.Now().UTC(),
		}
	}
	return entries
}

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Append_and_List", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(trail("run-1", "flow_start", "node_start", "node_finish", "flow_finish")))

		entries, err := store.List("run-1")
		require.NoError(t, err)
		require.Len(t, entries, 4)
		assert.Equal(t, "flow_start", entries[0].Stage)
		assert.Equal(t, "flow_finish", entries[3].Stage)
		assert.Equal(t, "greet", entries[0].Flow)
	})

	t.Run(name+"/List_PreservesOrder", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(trail("run-1", "flow_start", "node_start")))
		entries := trail("run-1", "node_finish", "flow_finish")
		entries[0].Seq = 2
		entries[1].Seq = 3
		require.NoError(t, store.Append(entries))

		got, err := store.List("run-1")
		require.NoError(t, err)
		require.Len(t, got, 4)
		for i, e := range got {
			assert.Equal(t, i, e.Seq)
		}
	})

	t.Run(name+"/List_UnknownRun", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		entries, err := store.List("run-nonexistent")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run(name+"/Runs_Isolated", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(trail("run-1", "flow_start")))
		require.NoError(t, store.Append(trail("run-2", "flow_start", "flow_finish")))

		one, err := store.List("run-1")
		require.NoError(t, err)
		two, err := store.List("run-2")
		require.NoError(t, err)
		assert.Len(t, one, 1)
		assert.Len(t, two, 2)
	})

	t.Run(name+"/Runs", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		runs, err := store.Runs()
		require.NoError(t, err)
		assert.Empty(t, runs)

		require.NoError(t, store.Append(trail("run-1", "flow_start")))
		require.NoError(t, store.Append(trail("run-2", "flow_start")))

		runs, err = store.Runs()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"run-1", "run-2"}, runs)
	})

	t.Run(name+"/DeleteRun", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(trail("run-1", "flow_start")))
		require.NoError(t, store.DeleteRun("run-1"))

		entries, err := store.List("run-1")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run(name+"/DeleteRun_Unknown", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.NoError(t, store.DeleteRun("run-nonexistent"))
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Append(trail("run-1", "flow_start")), journal.ErrStoreClosed)
		_, err := store.List("run-1")
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = store.Runs()
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		assert.ErrorIs(t, store.DeleteRun("run-1"), journal.ErrStoreClosed)
	})

	t.Run(name+"/ConcurrentAppend", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				runID := fmt.Sprintf("run-%d", i)
				assert.NoError(t, store.Append(trail(runID, "flow_start", "flow_finish")))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 8; i++ {
			entries, err := store.List(fmt.Sprintf("run-%d", i))
			require.NoError(t, err)
			assert.Len(t, entries, 2)
		}
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContractTest(t, "memory", func(t *testing.T) journal.Store {
		return journal.NewMemoryStore()
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	storeContractTest(t, "sqlite", func(t *testing.T) journal.Store {
		store, err := journal.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
		require.NoError(t, err)
		return store
	})
}

// TestSQLiteStore_Reopen verifies entries survive a close and reopen
// of the same database file.
func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(trail("run-1", "flow_start", "flow_finish")))
	require.NoError(t, store.Close())

	reopened, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.List("run-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// TestMemoryStore_Len verifies the test helper counter.
func TestMemoryStore_Len(t *testing.T) {
	m := journal.NewMemoryStore()
	require.NoError(t, m.Append(trail("run-1", "flow_start")))
	require.NoError(t, m.Append(trail("run-2", "flow_start", "flow_finish")))
	assert.Equal(t, 3, m.Len())
}
