package route

import "sync/atomic"

// Table holds the live trie. Readers never observe a partially built trie:
// a rebuilt trie replaces the old one in a single atomic store.
type Table struct {
	current atomic.Pointer[Trie]
}

// NewTable returns a table serving t.
func NewTable(t *Trie) *Table {
	tbl := &Table{}
	tbl.current.Store(t)
	return tbl
}

// Load returns the live trie.
func (tbl *Table) Load() *Trie {
	return tbl.current.Load()
}

// Swap installs t and returns the trie it replaced.
func (tbl *Table) Swap(t *Trie) *Trie {
	return tbl.current.Swap(t)
}

// Resolve resolves rawURL against the live trie.
func (tbl *Table) Resolve(rawURL string) (Match, error) {
	return tbl.Load().Resolve(rawURL)
}
