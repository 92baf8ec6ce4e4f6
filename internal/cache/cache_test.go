package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/querypipe/internal/record"
)

func TestMap_SetGet(t *testing.T) {
	m := New[string]()

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Set("a", "alpha")
	m.Set("b", "beta")
	m.Set("a", "again")

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "again", v)
	assert.Equal(t, 2, m.Len())
}

func TestMap_DeleteAndClear(t *testing.T) {
	m := New[int]()
	m.Set("x", 1)
	m.Set("y", 2)

	assert.True(t, m.Delete("x"))
	assert.False(t, m.Delete("x"))
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Zero(t, m.Len())
	_, ok := m.Get("y")
	assert.False(t, ok)
}

func TestMap_ShardsRoundedToPowerOfTwo(t *testing.T) {
	tests := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 31: 32, 32: 32, 33: 64}
	for in, want := range tests {
		assert.Equal(t, want, New[int](WithShards(in)).Shards(), "WithShards(%d)", in)
	}
	assert.Equal(t, DefaultShards, New[int]().Shards())
}

func TestMap_SpreadsAcrossShards(t *testing.T) {
	m := New[int]()
	for i := 0; i < 1000; i++ {
		m.Set(record.Key(fmt.Sprintf("key-%d", i)), i)
	}

	used := 0
	for _, s := range m.shards {
		if len(s.entries) > 0 {
			used++
		}
	}
	assert.Equal(t, m.Shards(), used)
	assert.Equal(t, 1000, m.Len())
}

func TestMap_ConcurrentAccess(t *testing.T) {
	m := New[int](WithShards(4))
	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := record.Key(fmt.Sprintf("%d-%d", w, i))
				m.Set(key, i)
				v, ok := m.Get(key)
				assert.True(t, ok)
				assert.Equal(t, i, v)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, m.Len())
}
