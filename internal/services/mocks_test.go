package services_test

import (
	"context"
	"sync"

	"gymbro/internal/repositories"

	"github.com/stretchr/testify/mock"
)

// MockDocumentStore is a testify mock of repositories.DocumentStore, used to
// inject infrastructure failures.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Get(ctx context.Context, ref repositories.DocRef) (*repositories.Snapshot, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.Snapshot), args.Error(1)
}

func (m *MockDocumentStore) List(ctx context.Context, collection string) ([]repositories.Snapshot, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repositories.Snapshot), args.Error(1)
}

func (m *MockDocumentStore) Merge(ctx context.Context, ref repositories.DocRef, fields map[string]any) error {
	args := m.Called(ctx, ref, fields)
	return args.Error(0)
}

func (m *MockDocumentStore) RunTransaction(ctx context.Context, fn func(tx repositories.Tx) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// MockEventPublisher is a testify mock of services.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(routingKey string, payload any) error {
	args := m.Called(routingKey, payload)
	return args.Error(0)
}

// sequenceGenerator hands out a fixed list of handles, cycling at the end.
type sequenceGenerator struct {
	mu      sync.Mutex
	handles []string
	next    int
}

func (g *sequenceGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := g.handles[g.next%len(g.handles)]
	g.next++
	return h
}
