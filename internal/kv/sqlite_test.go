package kv

import (
	"context"
	"testing"
)

func newTestClient(t *testing.T) *SQLiteClient {
	t.Helper()
	c, err := Open(":memory:", 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestHashRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	if err := c.HSet(ctx, "state", "contexts/ctx1/description", "a test context"); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	v, ok, err := c.HGet(ctx, "state", "contexts/ctx1/description")
	if err != nil || !ok || v != "a test context" {
		t.Fatalf("HGet: v=%q ok=%v err=%v", v, ok, err)
	}

	if _, ok, _ := c.HGet(ctx, "state", "missing"); ok {
		t.Fatalf("expected missing field to be absent")
	}
}

func TestSetOperations(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	if err := c.SAdd(ctx, "ctx1:samples-represented", "s1", "s2", "s3"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}
	card, err := c.SCard(ctx, "ctx1:samples-represented")
	if err != nil || card != 3 {
		t.Fatalf("SCard: got %d, err=%v", card, err)
	}

	if err := c.SAdd(ctx, "ctx1:observations:o1", "s1", "s2"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}
	inter, err := c.SInter(ctx, "ctx1:samples-represented", "ctx1:observations:o1")
	if err != nil {
		t.Fatalf("SInter: %v", err)
	}
	if len(inter) != 2 {
		t.Fatalf("expected 2 members in intersection, got %d: %v", len(inter), inter)
	}

	union, err := c.SUnion(ctx, "ctx1:samples-represented", "ctx1:observations:o1")
	if err != nil || len(union) != 3 {
		t.Fatalf("SUnion: got %v, err=%v", union, err)
	}
}

func TestHIncrByIsMonotone(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	for i, want := range []int64{1, 2, 3} {
		got, err := c.HIncrBy(ctx, "state", "ctx1:samples-counter", 1)
		if err != nil {
			t.Fatalf("HIncrBy[%d]: %v", i, err)
		}
		if got != want {
			t.Fatalf("HIncrBy[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestGetOrCreateIndexIsIdempotentPerName(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	idx1, err := c.GetOrCreateIndex(ctx, "ctx1:samples-index", "ctx1:samples-index-inverted", "state", "ctx1:samples-counter", "sample.A")
	if err != nil {
		t.Fatalf("GetOrCreateIndex: %v", err)
	}
	idx2, err := c.GetOrCreateIndex(ctx, "ctx1:samples-index", "ctx1:samples-index-inverted", "state", "ctx1:samples-counter", "sample.B")
	if err != nil {
		t.Fatalf("GetOrCreateIndex: %v", err)
	}
	if idx1 == idx2 {
		t.Fatalf("distinct names got the same index: %d", idx1)
	}

	idx1Again, err := c.GetOrCreateIndex(ctx, "ctx1:samples-index", "ctx1:samples-index-inverted", "state", "ctx1:samples-counter", "sample.A")
	if err != nil {
		t.Fatalf("GetOrCreateIndex: %v", err)
	}
	if idx1Again != idx1 {
		t.Fatalf("re-requesting sample.A changed its index: %d != %d", idx1Again, idx1)
	}

	name, ok, err := c.HGet(ctx, "ctx1:samples-index-inverted", "0")
	if err != nil || !ok {
		t.Fatalf("inverted lookup of index 0 failed: ok=%v err=%v", ok, err)
	}
	if name != "sample.A" && name != "sample.B" {
		t.Fatalf("unexpected inverted value: %q", name)
	}
}
