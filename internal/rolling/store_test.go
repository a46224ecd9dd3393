package rolling

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmittakarin8/solflow/internal/domain"
)

func TestStore_FirstSeenFlag(t *testing.T) {
	store := NewStore(newTestClassifier())

	ev := makeTrade(1000, "w1", domain.DirectionBuy, 1)
	_, created := store.Update(ev)
	assert.True(t, created)

	_, created = store.Update(makeTrade(1001, "w2", domain.DirectionBuy, 1))
	assert.False(t, created)

	assert.Equal(t, 1, store.Len())
}

func TestStore_MintsAreIndependent(t *testing.T) {
	store := NewStore(newTestClassifier())

	a := makeTrade(1000, "w1", domain.DirectionBuy, 5)
	a.Mint = "mint_a"
	b := makeTrade(1000, "w1", domain.DirectionSell, 3)
	b.Mint = "mint_b"

	resA, _ := store.Update(a)
	resB, _ := store.Update(b)

	assert.Equal(t, 5.0, resA.Metrics.NetFlow300s)
	assert.Equal(t, -3.0, resB.Metrics.NetFlow300s)
	assert.Equal(t, 2, store.Len())
}

// Per-mint serialization under concurrent updates: the final snapshot for
// each mint must reflect every accepted trade.
func TestStore_ConcurrentUpdates(t *testing.T) {
	store := NewStore(newTestClassifier())

	const mints = 8
	const perMint = 50

	var wg sync.WaitGroup
	for m := 0; m < mints; m++ {
		mint := fmt.Sprintf("mint_%d", m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perMint; i++ {
				ev := makeTrade(int64(1000+i), fmt.Sprintf("w%d", i), domain.DirectionBuy, 1)
				ev.Mint = mint
				store.Update(ev)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, mints, store.Len())
	for m := 0; m < mints; m++ {
		mint := fmt.Sprintf("mint_%d", m)
		probe := makeTrade(1000+perMint, "probe", domain.DirectionBuy, 0)
		probe.Mint = mint
		res, _ := store.Update(probe)
		assert.Equal(t, float64(perMint), res.Metrics.NetFlow300s, "mint %s", mint)
	}
}

func TestStore_SweepDropsIdleMints(t *testing.T) {
	store := NewStore(newTestClassifier())

	old := makeTrade(1000, "w1", domain.DirectionBuy, 1)
	old.Mint = "mint_old"
	store.Update(old)

	fresh := makeTrade(50000, "w1", domain.DirectionBuy, 1)
	fresh.Mint = "mint_fresh"
	store.Update(fresh)

	removed := store.Sweep(50000)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}
