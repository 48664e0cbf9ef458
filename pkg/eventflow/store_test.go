package eventflow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_Basics(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("missing")
	assert.False(t, ok)
	assert.False(t, s.Has("missing"))

	s.Set("k", 42)
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.True(t, s.Has("k"))
	assert.Equal(t, 1, s.Len())

	s.Delete("k")
	assert.False(t, s.Has("k"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ConcurrentWrites(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set(string(rune('a'+i)), i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, s.Len())
}

func TestRecordLog_AppendStampsTime(t *testing.T) {
	l := &RecordLog{}
	l.append(Record{Flow: "f", Node: "n", Stage: StageNodeStart})

	recs := l.All()
	assert.Len(t, recs, 1)
	assert.False(t, recs[0].At.IsZero())
	assert.Equal(t, 1, l.Len())

	// All returns a copy.
	recs[0].Node = "mutated"
	assert.Equal(t, "n", l.All()[0].Node)
}
