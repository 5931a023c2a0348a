package crawler

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestVisitedSet(t *testing.T) {
	t.Parallel()

	v := newVisitedSet()
	if !v.Add("/") {
		t.Error("first Add should report a new URL")
	}
	if v.Add("/") {
		t.Error("second Add should report a known URL")
	}
	if v.Len() != 1 {
		t.Errorf("Len() = %d, expected 1", v.Len())
	}
}

func TestVisitedSet_Concurrent(t *testing.T) {
	t.Parallel()

	v := newVisitedSet()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v.Add("/same") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("%d goroutines won the insert, expected exactly 1", wins.Load())
	}
}
