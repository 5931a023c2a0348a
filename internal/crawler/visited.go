package crawler

import "sync"

// visitedSet records the URLs scheduled during one crawl run. It only grows.
type visitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{urls: make(map[string]struct{})}
}

// Add inserts url and reports whether it was new. Check and insert happen
// under one lock, so exactly one of any concurrent callers gets true.
func (v *visitedSet) Add(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.urls[url]; ok {
		return false
	}
	v.urls[url] = struct{}{}
	return true
}

// Len returns the number of recorded URLs.
func (v *visitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}
