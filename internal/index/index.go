// Package index implements the Index Manager: atomic, monotone integer
// id assignment per (context, axis) pair, grounded on redbiom.admin's
// _INDEX_SCRIPT and create_context.
package index

import (
	"context"
	"fmt"

	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/model"
	"github.com/nishad/redbiom/internal/rerr"
)

// Manager assigns and resolves the per-(context,axis) integer indices
// that back every roaring-bitmap posting list and sparse-table row/column
// in the system.
type Manager struct {
	kv kv.Scripter
	c  kv.Client
}

func New(client kv.Client) (*Manager, error) {
	s, ok := client.(kv.Scripter)
	if !ok {
		return nil, rerr.E(rerr.Op("index.New"), rerr.KindConfig, "backing KV client does not implement atomic index assignment")
	}
	return &Manager{kv: s, c: client}, nil
}

func forwardKey(context string, axis model.Axis) string {
	return fmt.Sprintf("%s:%s-index", context, axis)
}

func invertedKey(context string, axis model.Axis) string {
	return fmt.Sprintf("%s:%s-index-inverted", context, axis)
}

func counterField(context string, axis model.Axis) string {
	return fmt.Sprintf("%s:%s-counter", context, axis)
}

const stateKey = "state"

// GetOrCreate returns the index assigned to name under (context, axis),
// allocating a fresh one if none exists yet. Atomic per name: concurrent
// callers racing on the same unseen name observe exactly one winner.
func (m *Manager) GetOrCreate(ctx context.Context, context_ string, axis model.Axis, name string) (uint32, error) {
	if !axis.Valid() {
		return 0, rerr.E(rerr.Op("index.GetOrCreate"), rerr.KindValidation, fmt.Sprintf("invalid axis %q", axis))
	}
	idx, err := m.kv.GetOrCreateIndex(ctx, forwardKey(context_, axis), invertedKey(context_, axis), stateKey, counterField(context_, axis), name)
	if err != nil {
		return 0, rerr.Wrap(rerr.Op("index.GetOrCreate"), err)
	}
	return uint32(idx), nil
}

// GetOrCreateBatch resolves a batch of names to indices, allocating fresh
// ones for any not yet seen. Order of the returned slice matches names.
// Already-assigned names are bulk-resolved via chunked HMGet rounds
// (kv.Buffered, capped at kv.DefaultChunkSize fields per round trip);
// only names with no existing index pay for the atomic GetOrCreate
// script call.
func (m *Manager) GetOrCreateBatch(ctx context.Context, context_ string, axis model.Axis, names []string) ([]uint32, error) {
	const op = rerr.Op("index.GetOrCreateBatch")

	out := make([]uint32, len(names))
	var pending []int

	positions := make([]int, len(names))
	for i := range names {
		positions[i] = i
	}

	key := forwardKey(context_, axis)
	for chunk := range kv.Buffered(positions, kv.DefaultChunkSize) {
		fields := make([]string, len(chunk))
		for i, pos := range chunk {
			fields[i] = names[pos]
		}
		values, found, err := m.c.HMGet(ctx, key, fields)
		if err != nil {
			return nil, rerr.Wrap(op, err)
		}
		for i, pos := range chunk {
			if !found[i] {
				pending = append(pending, pos)
				continue
			}
			var n uint32
			fmt.Sscan(values[i], &n)
			out[pos] = n
		}
	}

	for _, pos := range pending {
		idx, err := m.GetOrCreate(ctx, context_, axis, names[pos])
		if err != nil {
			return nil, rerr.Wrap(op, err)
		}
		out[pos] = idx
	}
	return out, nil
}

// Resolve looks up the index already assigned to name, without creating
// one. ok is false if name has never been indexed on this (context, axis).
func (m *Manager) Resolve(ctx context.Context, context_ string, axis model.Axis, name string) (idx uint32, ok bool, err error) {
	v, found, err := m.c.HGet(ctx, forwardKey(context_, axis), name)
	if err != nil {
		return 0, false, rerr.Wrap(rerr.Op("index.Resolve"), err)
	}
	if !found {
		return 0, false, nil
	}
	var n uint32
	fmt.Sscan(v, &n)
	return n, true, nil
}

// Name reverses an index back to the name it was assigned to.
func (m *Manager) Name(ctx context.Context, context_ string, axis model.Axis, idx uint32) (string, bool, error) {
	v, found, err := m.c.HGet(ctx, invertedKey(context_, axis), fmt.Sprint(idx))
	if err != nil {
		return "", false, rerr.Wrap(rerr.Op("index.Name"), err)
	}
	return v, found, nil
}

// Size returns how many names have been indexed on (context, axis).
func (m *Manager) Size(ctx context.Context, context_ string, axis model.Axis) (int64, error) {
	n, err := m.c.HLen(ctx, forwardKey(context_, axis))
	if err != nil {
		return 0, rerr.Wrap(rerr.Op("index.Size"), err)
	}
	return n, nil
}

// CreateContext registers a new named context with a description,
// mirroring redbiom.admin.create_context's HSET into the shared "state"
// hash. It is idempotent: re-creating the same context name overwrites
// its description rather than erroring, matching the original's
// behavior of a bare HSET with no existence check.
func (m *Manager) CreateContext(ctx context.Context, name, description string) error {
	if name == "" {
		return rerr.E(rerr.Op("index.CreateContext"), rerr.KindValidation, "context name must not be empty")
	}
	key := fmt.Sprintf("contexts/%s/description", name)
	if err := m.c.HSet(ctx, stateKey, key, description); err != nil {
		return rerr.Wrap(rerr.Op("index.CreateContext"), err)
	}
	return nil
}

// ContextExists reports whether name was previously registered via
// CreateContext.
func (m *Manager) ContextExists(ctx context.Context, name string) (bool, error) {
	key := fmt.Sprintf("contexts/%s/description", name)
	_, ok, err := m.c.HGet(ctx, stateKey, key)
	if err != nil {
		return false, rerr.Wrap(rerr.Op("index.ContextExists"), err)
	}
	return ok, nil
}

// Contexts lists every registered (name, description) pair.
type ContextInfo struct {
	Name        string
	Description string
}

func (m *Manager) Contexts(ctx context.Context) ([]ContextInfo, error) {
	all, err := m.c.HGetAll(ctx, stateKey)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("index.Contexts"), err)
	}
	var out []ContextInfo
	const prefix = "contexts/"
	const suffix = "/description"
	for k, v := range all {
		if len(k) > len(prefix)+len(suffix) && k[:len(prefix)] == prefix && k[len(k)-len(suffix):] == suffix {
			name := k[len(prefix) : len(k)-len(suffix)]
			out = append(out, ContextInfo{Name: name, Description: v})
		}
	}
	return out, nil
}

// RequireContext returns rerr.KindUnknownContext if name was never
// registered, otherwise nil. Components call this as their first
// precondition check so an operation against a bad context name fails
// fast with a clear error rather than silently allocating a brand new
// index space.
func (m *Manager) RequireContext(ctx context.Context, name string) error {
	ok, err := m.ContextExists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return rerr.E(rerr.Op("index.RequireContext"), rerr.KindUnknownContext, fmt.Sprintf("unknown context %q", name))
	}
	return nil
}
