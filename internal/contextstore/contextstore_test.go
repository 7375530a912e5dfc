package contextstore

import (
	"context"
	"strconv"
	"testing"

	"github.com/nishad/redbiom/internal/index"
	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/model"
)

func newTestStore(t *testing.T) (*Store, *index.Manager) {
	t.Helper()
	c, err := kv.Open(":memory:", 8)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	idx, err := index.New(c)
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}
	return New(c, idx), idx
}

func TestRepresentedAndSamplesInContext(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)

	a, _ := idx.GetOrCreate(ctx, "ctx1", model.AxisSample, "UNTAGGED_s1")
	b, _ := idx.GetOrCreate(ctx, "ctx1", model.AxisSample, "UNTAGGED_s2")

	if err := store.MarkRepresented(ctx, "ctx1", model.AxisSample, a); err != nil {
		t.Fatalf("MarkRepresented: %v", err)
	}
	if err := store.MarkRepresented(ctx, "ctx1", model.AxisSample, b); err != nil {
		t.Fatalf("MarkRepresented: %v", err)
	}

	names, err := store.SamplesInContext(ctx, "ctx1")
	if err != nil {
		t.Fatalf("SamplesInContext: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 samples, got %v", names)
	}

	ok, err := store.IsRepresented(ctx, "ctx1", model.AxisSample, a)
	if err != nil || !ok {
		t.Fatalf("IsRepresented(a) = %v, %v", ok, err)
	}
}

func TestPostingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)

	feat, _ := idx.GetOrCreate(ctx, "ctx1", model.AxisFeature, "OTU1")
	s1, _ := idx.GetOrCreate(ctx, "ctx1", model.AxisSample, "UNTAGGED_s1")
	s2, _ := idx.GetOrCreate(ctx, "ctx1", model.AxisSample, "UNTAGGED_s2")

	if err := store.AddPosting(ctx, "ctx1", model.AxisFeature, feat, []uint32{s1, s2}); err != nil {
		t.Fatalf("AddPosting: %v", err)
	}

	bm, err := store.Postings(ctx, "ctx1", model.AxisFeature, feat)
	if err != nil {
		t.Fatalf("Postings: %v", err)
	}
	if bm.GetCardinality() != 2 {
		t.Fatalf("expected 2 postings, got %d", bm.GetCardinality())
	}
}

func TestTaxonomyAncestorsAndDescendents(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	// kingdom -> phylum -> genus, with genus carrying a feature tip.
	if err := store.AddTaxonomyEdge(ctx, "ctx1", "k__Bacteria", "p__Firmicutes", nil); err != nil {
		t.Fatalf("AddTaxonomyEdge: %v", err)
	}
	if err := store.AddTaxonomyEdge(ctx, "ctx1", "p__Firmicutes", "g__Lactobacillus", []string{"OTU1", "OTU2"}); err != nil {
		t.Fatalf("AddTaxonomyEdge: %v", err)
	}

	lineages, err := store.TaxonAncestors(ctx, "ctx1", []string{"g__Lactobacillus"}, nil)
	if err != nil {
		t.Fatalf("TaxonAncestors: %v", err)
	}
	got := lineages["g__Lactobacillus"]
	want := []string{"k__Bacteria", "p__Firmicutes", "g__Lactobacillus"}
	if len(got) != len(want) {
		t.Fatalf("lineage = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lineage[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}

	tips, err := store.TaxonDescendents(ctx, "ctx1", "k__Bacteria")
	if err != nil {
		t.Fatalf("TaxonDescendents: %v", err)
	}
	if len(tips) != 2 {
		t.Fatalf("expected 2 tips, got %v", tips)
	}
}

func TestAddPostingChunksLargeMemberSets(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)

	feat, _ := idx.GetOrCreate(ctx, "ctx1", model.AxisFeature, "OTU1")

	n := kv.DefaultChunkSize*2 + 7
	members := make([]uint32, n)
	for i := range members {
		sampleIdx, err := idx.GetOrCreate(ctx, "ctx1", model.AxisSample, sampleName(i))
		if err != nil {
			t.Fatalf("GetOrCreate sample %d: %v", i, err)
		}
		members[i] = sampleIdx
	}

	if err := store.AddPosting(ctx, "ctx1", model.AxisFeature, feat, members); err != nil {
		t.Fatalf("AddPosting: %v", err)
	}

	bm, err := store.Postings(ctx, "ctx1", model.AxisFeature, feat)
	if err != nil {
		t.Fatalf("Postings: %v", err)
	}
	if int(bm.GetCardinality()) != n {
		t.Fatalf("expected %d postings spanning multiple chunked SAdd calls, got %d", n, bm.GetCardinality())
	}
}

func TestNewWithChunkSizeOverridesDefault(t *testing.T) {
	ctx := context.Background()
	c, err := kv.Open(":memory:", 8)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	idx, err := index.New(c)
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}

	store := NewWithChunkSize(c, idx, 3)
	feat, _ := idx.GetOrCreate(ctx, "ctx1", model.AxisFeature, "OTU1")

	members := make([]uint32, 10)
	for i := range members {
		sampleIdx, err := idx.GetOrCreate(ctx, "ctx1", model.AxisSample, sampleName(i))
		if err != nil {
			t.Fatalf("GetOrCreate sample %d: %v", i, err)
		}
		members[i] = sampleIdx
	}
	if err := store.AddPosting(ctx, "ctx1", model.AxisFeature, feat, members); err != nil {
		t.Fatalf("AddPosting: %v", err)
	}

	bm, err := store.Postings(ctx, "ctx1", model.AxisFeature, feat)
	if err != nil {
		t.Fatalf("Postings: %v", err)
	}
	if int(bm.GetCardinality()) != 10 {
		t.Fatalf("expected 10 postings across chunkSize-3 SAdd rounds, got %d", bm.GetCardinality())
	}

	zeroed := NewWithChunkSize(c, idx, 0)
	if zeroed.chunkSize != kv.DefaultChunkSize {
		t.Fatalf("NewWithChunkSize(0) should fall back to kv.DefaultChunkSize, got %d", zeroed.chunkSize)
	}
}

func sampleName(i int) string {
	return "UNTAGGED_s" + strconv.Itoa(i)
}

func TestNormalizeLineagePadsMissingRanks(t *testing.T) {
	ranks := []string{"k", "p", "c", "o", "f", "g", "s"}
	lineage := []string{"k__Bacteria", "p__Firmicutes"}
	got := normalizeLineage(lineage, ranks)
	if len(got) != 7 {
		t.Fatalf("expected 7 ranks, got %d", len(got))
	}
	if got[2] != "c__" {
		t.Fatalf("expected placeholder c__, got %q", got[2])
	}
}
