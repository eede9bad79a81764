package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vexora/core"
)

var (
	_ core.MemoryStore = (*InMemoryStore)(nil)
	_ core.Memory      = (*Memory)(nil)
)

func TestInMemoryStore_StoreSearchDelete(t *testing.T) {
	svc := NewInMemoryStore()

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := svc.Store("facts", fmt.Sprintf("content%c", 'A'+i), map[string]any{"idx": i})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	res, err := svc.Search("facts", "", 10)
	require.NoError(t, err)
	require.Len(t, res, 5)
	assert.Equal(t, ids[0], res[0].ID, "ties keep insertion order")

	res, err = svc.Search("facts", "contentc", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "contentC", res[0].Content)
	assert.Equal(t, 2, res[0].Metadata["idx"])

	res, err = svc.Search("facts", "", 3)
	require.NoError(t, err)
	assert.Len(t, res, 3)

	require.NoError(t, svc.Delete("facts", ids[0]))
	res, err = svc.Search("facts", "", 10)
	require.NoError(t, err)
	assert.Len(t, res, 4)

	assert.ErrorIs(t, svc.Delete("facts", "does_not_exist"), ErrMemoryNotFound)

	// ids stay unique after deletes
	id, err := svc.Store("facts", "contentF", nil)
	require.NoError(t, err)
	assert.NotContains(t, ids, id)
}

func TestInMemoryStore_KeysArePartitioned(t *testing.T) {
	svc := NewInMemoryStore()

	_, err := svc.Store("a", "shared text", nil)
	require.NoError(t, err)

	res, err := svc.Search("b", "shared", 10)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestInMemoryStore_RanksByTermOverlap(t *testing.T) {
	svc := NewInMemoryStore()

	_, _ = svc.Store("k", "the user likes green tea", nil)
	_, _ = svc.Store("k", "the user likes coffee", nil)

	res, err := svc.Search("k", "Green Tea", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 1.0, res[0].Score)

	res, err = svc.Search("k", "likes tea", 10)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Contains(t, res[0].Content, "green tea")
	assert.Equal(t, 0.5, res[1].Score)
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	svc := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Store("k", fmt.Sprintf("fact %d", i), nil)
			assert.NoError(t, err)
			_, err = svc.Search("k", "fact", 5)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	res, err := svc.Search("k", "fact", 0)
	require.NoError(t, err)
	assert.Len(t, res, 25)
}

func TestNew_ValidatesKey(t *testing.T) {
	_, err := New("User Prefs")
	assert.Error(t, err)

	m, err := New("user_prefs", WithInstructions("Remember the user's preferences"))
	require.NoError(t, err)
	assert.Equal(t, "user_prefs", m.Key())
	assert.Equal(t, "Remember the user's preferences", m.Instructions())
}

func TestMemory_AddRecordsThread(t *testing.T) {
	store := NewInMemoryStore()
	m, err := New("notes", WithStore(store))
	require.NoError(t, err)

	th := core.NewThread("thr_notes")
	ctx := core.ContextWithThread(context.Background(), th)

	id, err := m.Add(ctx, "the sky is blue")
	require.NoError(t, err)

	res, err := m.Search(ctx, "sky", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, id, res[0].ID)
	assert.Equal(t, "thr_notes", res[0].Metadata["thread_id"])

	require.NoError(t, m.Delete(id))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Add(cancelled, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTools(t *testing.T) {
	m, err := New("facts")
	require.NoError(t, err)

	tools := Tools(m)
	require.Len(t, tools, 2)
	assert.Equal(t, "store_memory_facts", tools[0].Name())
	assert.Equal(t, "search_memory_facts", tools[1].Name())

	tc := core.NewToolContext(context.Background(), nil, "fc1")

	out, err := tools[0].Call(tc, map[string]any{"content": "water boils at 100C"})
	require.NoError(t, err)
	assert.Contains(t, out.(map[string]any), "id")

	out, err = tools[1].Call(tc, map[string]any{"query": "boils", "n": 3.0})
	require.NoError(t, err)
	hits := out.([]core.SearchResult)
	require.Len(t, hits, 1)
	assert.Equal(t, "water boils at 100C", hits[0].Content)

	_, err = tools[0].Call(tc, map[string]any{})
	assert.Error(t, err)
}
