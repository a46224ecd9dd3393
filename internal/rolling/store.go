package rolling

import (
	"hash/fnv"
	"sync"

	"github.com/dmittakarin8/solflow/internal/domain"
)

// shardCount sizes the concurrent map. Power of two so the hash folds with a
// mask.
const shardCount = 64

// cell wraps one mint's state behind its own lock. Cells for different mints
// update fully in parallel; the shard lock guards only map access.
type cell struct {
	mu    sync.Mutex
	state *TokenRollingState
}

type shard struct {
	mu    sync.Mutex
	cells map[string]*cell
}

// Store is a sharded concurrent map of per-mint rolling state. There is no
// global lock on the hot path.
type Store struct {
	shards     [shardCount]*shard
	classifier *Classifier
}

// NewStore creates an empty store using the given classifier.
func NewStore(cls *Classifier) *Store {
	s := &Store{classifier: cls}
	for i := range s.shards {
		s.shards[i] = &shard{cells: make(map[string]*cell)}
	}
	return s
}

func (s *Store) shardFor(mint string) *shard {
	h := fnv.New32a()
	h.Write([]byte(mint))
	return s.shards[h.Sum32()&(shardCount-1)]
}

// getOrCreate returns the cell for a mint, inserting a fresh one on first
// trade. New cells are inserted without blocking readers of existing cells.
func (s *Store) getOrCreate(mint string) (*cell, bool) {
	sh := s.shardFor(mint)
	sh.mu.Lock()
	c, ok := sh.cells[mint]
	if !ok {
		c = &cell{state: NewTokenRollingState(mint)}
		sh.cells[mint] = c
	}
	sh.mu.Unlock()
	return c, !ok
}

// Update applies one trade under the mint's cell lock and returns the
// insertion result as value copies, plus whether this was the mint's first
// trade. The lock is released before the caller touches the write queue.
func (s *Store) Update(ev domain.TradeEvent) (InsertResult, bool) {
	c, created := s.getOrCreate(ev.Mint)

	c.mu.Lock()
	res := c.state.Insert(ev, s.classifier)
	c.mu.Unlock()

	return res, created
}

// Len returns the number of tracked mints.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.cells)
		sh.mu.Unlock()
	}
	return n
}

// Sweep drops cells whose latest trade is older than the largest window.
// Returns the number of cells removed.
func (s *Store) Sweep(now int64) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for mint, c := range sh.cells {
			c.mu.Lock()
			idle := now-c.state.LatestTimestamp() > MaxWindow
			c.mu.Unlock()
			if idle {
				delete(sh.cells, mint)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
