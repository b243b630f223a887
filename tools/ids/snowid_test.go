package ids

import (
	"sync"
	"testing"
)

func TestNextStrictlyIncreasing(t *testing.T) {
	g := NewGenerator(1)
	prev := g.Next()
	for i := 0; i < 10000; i++ {
		id := g.Next()
		if id <= prev {
			t.Fatalf("id %d after %d at iteration %d", id, prev, i)
		}
		prev = id
	}
}

func TestNextMonotonicUnderFrozenClock(t *testing.T) {
	g := NewGenerator(1)
	fixed := int64(1_700_000_000_000)
	g.now = func() int64 { return fixed }

	prev := g.Next()
	// stay inside one millisecond's sequence space
	for i := 0; i < seqMask; i++ {
		id := g.Next()
		if id <= prev {
			t.Fatalf("frozen clock: id %d after %d", id, prev)
		}
		prev = id
	}
}

func TestNextSurvivesClockStepBack(t *testing.T) {
	g := NewGenerator(1)
	ms := int64(1_700_000_000_000)
	g.now = func() int64 { return ms }

	first := g.Next()
	ms -= 500 // clock steps backwards
	second := g.Next()
	if second <= first {
		t.Fatalf("id %d after %d across a clock step-back", second, first)
	}
}

func TestConcurrentNextUnique(t *testing.T) {
	g := NewGenerator(1)
	const workers, each = 8, 2000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*each)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, each)
			for i := 0; i < each; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != workers*each {
		t.Fatalf("got %d unique ids, want %d", len(seen), workers*each)
	}
}

func TestNodeIDFolded(t *testing.T) {
	g := NewGenerator(maxNode + 5)
	if g.nodeID != 4 {
		t.Fatalf("nodeID = %d, want 4", g.nodeID)
	}
	if GenerateString() == "" {
		t.Fatal("default generator produced empty id")
	}
}
