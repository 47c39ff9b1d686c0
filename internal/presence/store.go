// Package presence tracks which users are connected and which events they
// are watching.  State lives in a shared set store (Redis in production)
// so that every gateway instance sees the same membership and restarts do
// not reset it.
package presence

import "context"

// SetStore is the subset of Redis set and hash commands presence needs.
// Adding a present member and removing an absent one are no-ops.
type SetStore interface {
	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	// ScanKeys returns every key matching the glob pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	HDel(ctx context.Context, key, field string) error
}
