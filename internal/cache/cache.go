// Package cache is the key-value store behind per-user match state and
// saved browse filters. Redis backs it in deployments; the in-memory
// implementation serves tests and single-process development.
package cache

import "context"

// Store is a small set/JSON key-value API.
type Store interface {
	SetAdd(ctx context.Context, key, member string) error
	SetRemove(ctx context.Context, key, member string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetContains(ctx context.Context, key, member string) (bool, error)
	// GetJSON decodes the value at key into v and reports whether it existed.
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
	Close() error
}
