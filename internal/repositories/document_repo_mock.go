package repositories

import (
	"context"
	"sort"
	"sync"
	"time"
)

type storedDocument struct {
	data      []byte
	revision  string
	updatedAt time.Time
}

// MockDocumentStore is an in-memory implementation of DocumentStore with the
// same optimistic transaction semantics as the GORM store.
type MockDocumentStore struct {
	docs        map[DocRef]storedDocument
	mu          sync.RWMutex
	maxAttempts int
}

// NewMockDocumentStore creates a new instance of MockDocumentStore.
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		docs:        make(map[DocRef]storedDocument),
		maxAttempts: DefaultTransactionAttempts,
	}
}

// Get returns the current snapshot of a document.
func (s *MockDocumentStore) Get(ctx context.Context, ref DocRef) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(ref), nil
}

// List returns every document of a collection ordered by key.
func (s *MockDocumentStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Snapshot
	for ref := range s.docs {
		if ref.Collection == collection {
			out = append(out, *s.snapshot(ref))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.Key < out[j].Ref.Key })
	return out, nil
}

// Merge overlays fields onto a document outside of any caller transaction.
func (s *MockDocumentStore) Merge(ctx context.Context, ref DocRef, fields map[string]any) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.Merge(ref, fields)
	})
}

// RunTransaction runs fn optimistically and commits under the store lock.
func (s *MockDocumentStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return runTransaction(ctx, s.maxAttempts, func() error {
		buf := newTxBuffer(func(ref DocRef) (*Snapshot, error) {
			return s.Get(ctx, ref)
		})
		if err := fn(buf); err != nil {
			return err
		}
		if len(buf.order) == 0 {
			return nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		// Stage into a copy so a conflict half way leaves nothing behind.
		staged := &mockCommitter{store: s, pending: make(map[DocRef]*storedDocument)}
		if err := buf.commit(staged); err != nil {
			return err
		}
		for ref, doc := range staged.pending {
			if doc == nil {
				delete(s.docs, ref)
				continue
			}
			s.docs[ref] = *doc
		}
		return nil
	})
}

// snapshot must be called with s.mu held.
func (s *MockDocumentStore) snapshot(ref DocRef) *Snapshot {
	doc, ok := s.docs[ref]
	if !ok {
		return &Snapshot{Ref: ref}
	}
	data := make([]byte, len(doc.data))
	copy(data, doc.data)
	return &Snapshot{Ref: ref, Exists: true, Data: data, Revision: doc.revision, UpdatedAt: doc.updatedAt}
}

type mockCommitter struct {
	store   *MockDocumentStore
	pending map[DocRef]*storedDocument // nil value marks a delete
}

func (c *mockCommitter) current(ref DocRef) (*Snapshot, error) {
	if doc, ok := c.pending[ref]; ok {
		if doc == nil {
			return &Snapshot{Ref: ref}, nil
		}
		return &Snapshot{Ref: ref, Exists: true, Data: doc.data, Revision: doc.revision, UpdatedAt: doc.updatedAt}, nil
	}
	return c.store.snapshot(ref), nil
}

func (c *mockCommitter) insert(ref DocRef, data []byte, revision string) (bool, error) {
	cur, _ := c.current(ref)
	if cur.Exists {
		return false, nil
	}
	c.pending[ref] = &storedDocument{data: data, revision: revision, updatedAt: time.Now()}
	return true, nil
}

func (c *mockCommitter) update(ref DocRef, data []byte, expected, revision string) (bool, error) {
	cur, _ := c.current(ref)
	if !cur.Exists || cur.Revision != expected {
		return false, nil
	}
	c.pending[ref] = &storedDocument{data: data, revision: revision, updatedAt: time.Now()}
	return true, nil
}

func (c *mockCommitter) remove(ref DocRef, expected string) (bool, error) {
	cur, _ := c.current(ref)
	if !cur.Exists || cur.Revision != expected {
		return false, nil
	}
	c.pending[ref] = nil
	return true, nil
}
