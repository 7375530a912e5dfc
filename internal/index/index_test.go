package index

import (
	"context"
	"strconv"
	"testing"

	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/model"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	c, err := kv.Open(":memory:", 8)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	m, err := New(c)
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}
	return m
}

func TestCreateContextAndRequireContext(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if err := m.RequireContext(ctx, "ctx1"); err == nil {
		t.Fatalf("expected unknown-context error before creation")
	}

	if err := m.CreateContext(ctx, "ctx1", "a test context"); err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	if err := m.RequireContext(ctx, "ctx1"); err != nil {
		t.Fatalf("RequireContext after creation: %v", err)
	}

	contexts, err := m.Contexts(ctx)
	if err != nil {
		t.Fatalf("Contexts: %v", err)
	}
	if len(contexts) != 1 || contexts[0].Name != "ctx1" {
		t.Fatalf("unexpected contexts: %+v", contexts)
	}
}

func TestGetOrCreateAssignsMonotoneIndicesPerAxis(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	idxA, err := m.GetOrCreate(ctx, "ctx1", model.AxisSample, "sample.A")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	idxB, err := m.GetOrCreate(ctx, "ctx1", model.AxisSample, "sample.B")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if idxA == idxB {
		t.Fatalf("distinct samples got the same index")
	}

	again, err := m.GetOrCreate(ctx, "ctx1", model.AxisSample, "sample.A")
	if err != nil || again != idxA {
		t.Fatalf("re-requesting sample.A: got %d, want %d, err=%v", again, idxA, err)
	}

	name, ok, err := m.Name(ctx, "ctx1", model.AxisSample, idxA)
	if err != nil || !ok || name != "sample.A" {
		t.Fatalf("Name(%d) = %q, %v, %v", idxA, name, ok, err)
	}

	featIdx, err := m.GetOrCreate(ctx, "ctx1", model.AxisFeature, "OTU1")
	if err != nil {
		t.Fatalf("GetOrCreate feature axis: %v", err)
	}
	if featIdx != 0 {
		t.Fatalf("feature axis should start its own counter at 0, got %d", featIdx)
	}

	size, err := m.Size(ctx, "ctx1", model.AxisSample)
	if err != nil || size != 2 {
		t.Fatalf("Size = %d, %v", size, err)
	}
}

func TestGetOrCreateBatchMixesResolvedAndFreshNames(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	existingA, err := m.GetOrCreate(ctx, "ctx1", model.AxisSample, "sample.A")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	existingB, err := m.GetOrCreate(ctx, "ctx1", model.AxisSample, "sample.B")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	names := []string{"sample.B", "sample.C", "sample.A", "sample.D"}
	got, err := m.GetOrCreateBatch(ctx, "ctx1", model.AxisSample, names)
	if err != nil {
		t.Fatalf("GetOrCreateBatch: %v", err)
	}
	if len(got) != len(names) {
		t.Fatalf("expected %d indices, got %v", len(names), got)
	}
	if got[0] != existingB {
		t.Fatalf("sample.B should resolve to its existing index %d, got %d", existingB, got[0])
	}
	if got[2] != existingA {
		t.Fatalf("sample.A should resolve to its existing index %d, got %d", existingA, got[2])
	}
	if got[1] == got[3] {
		t.Fatalf("distinct new names sample.C and sample.D got the same fresh index %d", got[1])
	}

	size, err := m.Size(ctx, "ctx1", model.AxisSample)
	if err != nil || size != 4 {
		t.Fatalf("Size after batch = %d, %v", size, err)
	}

	again, err := m.GetOrCreateBatch(ctx, "ctx1", model.AxisSample, names)
	if err != nil {
		t.Fatalf("GetOrCreateBatch (second call): %v", err)
	}
	for i := range got {
		if again[i] != got[i] {
			t.Fatalf("index for %q changed across calls: %d != %d", names[i], again[i], got[i])
		}
	}
}

func TestGetOrCreateBatchResolvesAcrossMultipleChunks(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	n := kv.DefaultChunkSize*2 + 3
	names := make([]string, n)
	for i := range names {
		names[i] = "sample." + string(rune('A'+(i%26))) + strconv.Itoa(i)
	}

	first, err := m.GetOrCreateBatch(ctx, "ctx1", model.AxisSample, names)
	if err != nil {
		t.Fatalf("GetOrCreateBatch: %v", err)
	}
	seen := make(map[uint32]bool, n)
	for _, idx := range first {
		if seen[idx] {
			t.Fatalf("duplicate index %d assigned across a multi-chunk batch", idx)
		}
		seen[idx] = true
	}

	second, err := m.GetOrCreateBatch(ctx, "ctx1", model.AxisSample, names)
	if err != nil {
		t.Fatalf("GetOrCreateBatch (re-resolve): %v", err)
	}
	for i := range first {
		if second[i] != first[i] {
			t.Fatalf("re-resolving %q across chunks changed its index: %d != %d", names[i], second[i], first[i])
		}
	}
}
