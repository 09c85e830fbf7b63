package cache

import "context"

// Cache is a small key/value store for boolean lookups that supports explicit
// invalidation. Mutating callers must invalidate synchronously, before any
// other reader can observe the stale value.
type Cache interface {
	GetBool(ctx context.Context, key string) (value bool, ok bool, err error)
	SetBool(ctx context.Context, key string, value bool) error
	Invalidate(ctx context.Context, key string) error
}
