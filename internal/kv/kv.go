// Package kv implements the KV Adapter: the hash/set/list/counter/script
// command surface every other redbiom component is built on. The real
// production backend (the spec calls it a collaborator, out of scope) is
// a pipelined key-value store; this adapter gives that contract a
// concrete, testable Go implementation backed by SQLite, following the
// teacher's own connection-setup and pragma-tuning conventions.
package kv

import (
	"context"
	"iter"
)

// Client is the command surface every redbiom component depends on. It
// intentionally mirrors the handful of Redis-ish primitives redbiom's
// Python client wraps: hashes for per-entity field bags, sets for
// postings/represented-sample bookkeeping, and a small scripting hook
// for the one operation (index assignment) that must be atomic
// read-modify-write.
type Client interface {
	// Hash commands.
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(ctx context.Context, key, field, value string) error
	HMSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HMGet(ctx context.Context, key string, fields []string) ([]string, []bool, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HLen(ctx context.Context, key string) (int64, error)
	HDel(ctx context.Context, key, field string) error
	HExists(ctx context.Context, key, field string) (bool, error)

	// Set commands.
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SInter(ctx context.Context, keys ...string) ([]string, error)
	SUnion(ctx context.Context, keys ...string) ([]string, error)

	// List commands (used for ordered small collections, e.g. tag history).
	LPush(ctx context.Context, key string, value string) error
	LRange(ctx context.Context, key string, start, stop int) ([]string, error)

	// Exists reports whether key has any field/member/element at all.
	Exists(ctx context.Context, key string) (bool, error)

	Close() error
}

// Buffered chunks a large id slice into request-sized batches, mirroring
// redbiom.requests.buffered's role of keeping a single pipelined round
// trip under the backend's argument-count ceiling. Implemented as a
// Go 1.23 range-over-func iterator so callers can `for chunk := range
// Buffered(ids, 100)` without allocating the full slice-of-slices. Used
// by contextstore.Store.AddPosting to cap SAdd round trips and by
// index.Manager.GetOrCreateBatch to cap HMGet round trips.
func Buffered[T any](items []T, size int) iter.Seq[[]T] {
	if size <= 0 {
		size = len(items)
		if size == 0 {
			size = 1
		}
	}
	return func(yield func([]T) bool) {
		for i := 0; i < len(items); i += size {
			end := i + size
			if end > len(items) {
				end = len(items)
			}
			if !yield(items[i:end]) {
				return
			}
		}
	}
}

// DefaultChunkSize bounds how many ids go into a single buffered round
// trip. Chosen well under common backend argument-count limits, matching
// the margin the loader's MaxScriptArgs leaves for script overhead.
const DefaultChunkSize = 100
