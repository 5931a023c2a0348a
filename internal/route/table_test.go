package route

import (
	"sync"
	"testing"
)

func TestTable_SwapDuringResolve(t *testing.T) {
	t.Parallel()

	oldTrie := buildTrie(t, "index.gohtml", "old.gohtml")
	newTrie := buildTrie(t, "index.gohtml", "new.gohtml")
	tbl := NewTable(oldTrie)

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m, err := tbl.Resolve("/")
				if err != nil {
					errs <- err.Error()
					return
				}
				if m.Kind != Found || m.Handler != "index.gohtml" {
					errs <- "root did not resolve to index.gohtml"
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			tbl.Swap(newTrie)
		} else {
			tbl.Swap(oldTrie)
		}
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

func TestTable_Swap(t *testing.T) {
	t.Parallel()

	oldTrie := buildTrie(t, "old.gohtml")
	newTrie := buildTrie(t, "new.gohtml")
	tbl := NewTable(oldTrie)

	if prev := tbl.Swap(newTrie); prev != oldTrie {
		t.Error("Swap() did not return the previous trie")
	}
	if tbl.Load() != newTrie {
		t.Error("Load() did not return the swapped trie")
	}

	m, err := tbl.Resolve("/old")
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if m.Kind != NotFound {
		t.Errorf("Kind = %v, want NotFound after swap", m.Kind)
	}
}
