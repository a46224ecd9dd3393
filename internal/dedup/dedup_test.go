package dedup

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeen_FirstAndRepeat(t *testing.T) {
	set := NewSignatureSet(10)

	assert.False(t, set.Seen("sig1"))
	assert.True(t, set.Seen("sig1"))
	assert.True(t, set.Seen("sig1"))
	assert.Equal(t, 1, set.Len())
}

func TestSeen_EvictsOldestAtCeiling(t *testing.T) {
	set := NewSignatureSet(3)

	set.Seen("a")
	set.Seen("b")
	set.Seen("c")
	assert.Equal(t, 3, set.Len())

	// Inserting a fourth evicts the oldest; "a" reads as unseen again.
	assert.False(t, set.Seen("d"))
	assert.Equal(t, 3, set.Len())
	assert.False(t, set.Seen("a"))

	// "b" was evicted to make room for "a".
	assert.False(t, set.Seen("b"))
	// "d" is still tracked.
	assert.True(t, set.Seen("d"))
}

func TestSeen_DefaultCapacity(t *testing.T) {
	set := NewSignatureSet(0)

	for i := 0; i < 1000; i++ {
		assert.False(t, set.Seen(fmt.Sprintf("sig%d", i)))
	}
	assert.Equal(t, 1000, set.Len())
}

func TestSeen_ConcurrentAccess(t *testing.T) {
	set := NewSignatureSet(10_000)

	var wg sync.WaitGroup
	firsts := make([]int, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if !set.Seen(fmt.Sprintf("sig%d", i)) {
					firsts[g]++
				}
			}
		}(g)
	}
	wg.Wait()

	// Each signature is admitted exactly once across all goroutines.
	total := 0
	for _, n := range firsts {
		total += n
	}
	assert.Equal(t, 500, total)
	assert.Equal(t, 500, set.Len())
}
