package output

import "context"

// MultiStore writes every page to each of its stores in order and stops at
// the first failure.
type MultiStore struct {
	stores []Store
}

// NewMultiStore creates a store that writes to all of stores.
func NewMultiStore(stores ...Store) *MultiStore {
	return &MultiStore{stores: stores}
}

// Write implements Store.
func (m *MultiStore) Write(ctx context.Context, name string, content []byte) error {
	for _, s := range m.stores {
		if err := s.Write(ctx, name, content); err != nil {
			return err
		}
	}
	return nil
}
