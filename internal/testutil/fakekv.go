package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/nishad/redbiom/internal/kv"
)

// FakeKV is an in-memory implementation of kv.Client (and kv.Scripter),
// replacing the teacher's SQLite-backed TestDB helper for this domain.
// It trades fidelity to SQLite's WAL/locking behavior for speed and
// zero setup, so package tests that only need the command surface (not
// the storage engine itself) can use it instead of standing up a real
// on-disk database. internal/kv's own tests still exercise SQLiteClient
// directly, since verifying the real backend is the point there.
type FakeKV struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	lists  map[string][]string
}

// NewFakeKV returns a ready, empty FakeKV.
func NewFakeKV() *FakeKV {
	return &FakeKV{
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
		lists:  make(map[string][]string),
	}
}

func (f *FakeKV) HGet(_ context.Context, key, field string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (f *FakeKV) HSet(_ context.Context, key, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (f *FakeKV) HMSet(_ context.Context, key string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *FakeKV) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (f *FakeKV) HMGet(_ context.Context, key string, fields []string) ([]string, []bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.hashes[key]
	vals := make([]string, len(fields))
	found := make([]bool, len(fields))
	for i, field := range fields {
		if v, ok := h[field]; ok {
			vals[i] = v
			found[i] = true
		}
	}
	return vals, found, nil
}

func (f *FakeKV) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	var cur int64
	if v, ok := h[field]; ok {
		cur = parseInt64(v)
	}
	cur += delta
	h[field] = formatInt64(cur)
	return cur, nil
}

func (f *FakeKV) HLen(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.hashes[key])), nil
}

func (f *FakeKV) HDel(_ context.Context, key, field string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hashes[key], field)
	return nil
}

func (f *FakeKV) HExists(_ context.Context, key, field string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return false, nil
	}
	_, ok = h[field]
	return ok, nil
}

func (f *FakeKV) SAdd(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[key]
	if !ok {
		s = make(map[string]struct{})
		f.sets[key] = s
	}
	for _, m := range members {
		s[m] = struct{}{}
	}
	return nil
}

func (f *FakeKV) SRem(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sets[key]
	for _, m := range members {
		delete(s, m)
	}
	return nil
}

func (f *FakeKV) SMembers(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sets[key]
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (f *FakeKV) SCard(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.sets[key])), nil
}

func (f *FakeKV) SIsMember(_ context.Context, key, member string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sets[key][member]
	return ok, nil
}

func (f *FakeKV) SInter(_ context.Context, keys ...string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(keys) == 0 {
		return nil, nil
	}
	result := make(map[string]struct{})
	for m := range f.sets[keys[0]] {
		result[m] = struct{}{}
	}
	for _, key := range keys[1:] {
		s := f.sets[key]
		for m := range result {
			if _, ok := s[m]; !ok {
				delete(result, m)
			}
		}
	}
	out := make([]string, 0, len(result))
	for m := range result {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (f *FakeKV) SUnion(_ context.Context, keys ...string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string]struct{})
	for _, key := range keys {
		for m := range f.sets[key] {
			result[m] = struct{}{}
		}
	}
	out := make([]string, 0, len(result))
	for m := range result {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (f *FakeKV) LPush(_ context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append([]string{value}, f.lists[key]...)
	return nil
}

func (f *FakeKV) LRange(_ context.Context, key string, start, stop int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= len(l) {
		stop = len(l) - 1
	}
	if start > stop || start >= len(l) {
		return []string{}, nil
	}
	out := make([]string, stop-start+1)
	copy(out, l[start:stop+1])
	return out, nil
}

func (f *FakeKV) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.hashes[key]; ok && len(h) > 0 {
		return true, nil
	}
	if s, ok := f.sets[key]; ok && len(s) > 0 {
		return true, nil
	}
	if l, ok := f.lists[key]; ok && len(l) > 0 {
		return true, nil
	}
	return false, nil
}

func (f *FakeKV) Close() error { return nil }

// GetOrCreateIndex implements kv.Scripter with the same _INDEX_SCRIPT
// contract SQLiteClient implements, serialized behind FakeKV's single
// mutex instead of a per-key shard (a fake standing in for one process's
// worth of concurrency, not a second locking strategy to validate).
func (f *FakeKV) GetOrCreateIndex(_ context.Context, forwardKey, invertedKey, counterKey, counterField, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	forward, ok := f.hashes[forwardKey]
	if !ok {
		forward = make(map[string]string)
		f.hashes[forwardKey] = forward
	}
	if existing, ok := forward[name]; ok {
		return parseInt64(existing), nil
	}

	state, ok := f.hashes[counterKey]
	if !ok {
		state = make(map[string]string)
		f.hashes[counterKey] = state
	}
	next := parseInt64(state[counterField]) + 1
	state[counterField] = formatInt64(next)
	idx := next - 1

	inverted, ok := f.hashes[invertedKey]
	if !ok {
		inverted = make(map[string]string)
		f.hashes[invertedKey] = inverted
	}
	forward[name] = formatInt64(idx)
	inverted[formatInt64(idx)] = name
	return idx, nil
}

var (
	_ kv.Client   = (*FakeKV)(nil)
	_ kv.Scripter = (*FakeKV)(nil)
)

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func formatInt64(n int64) string {
	return strconv.FormatInt(n, 10)
}
