package fetcher

import (
	"context"
	"testing"

	"github.com/nishad/redbiom/internal/contextstore"
	"github.com/nishad/redbiom/internal/index"
	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/loader"
	"github.com/nishad/redbiom/internal/metadatastore"
)

func newTestFixture(t *testing.T) (*Fetcher, *loader.Loader, *index.Manager) {
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
	ctxs := contextstore.New(c, idx)
	meta := metadatastore.New(c)
	l := loader.New(c, idx, ctxs, meta, nil)

	ctx := context.Background()
	if err := idx.CreateContext(ctx, "ctx1", "test"); err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	if _, err := l.LoadSampleMetadata(ctx, map[string]map[string]string{
		"s1": {"ph": "7.0"},
		"s2": {"ph": "6.0"},
	}, ""); err != nil {
		t.Fatalf("LoadSampleMetadata: %v", err)
	}
	if _, err := l.LoadSampleData(ctx, "ctx1", loader.SparseTable{Counts: map[string]map[string]float64{
		"s1": {"OTU1": 3, "OTU2": 5},
		"s2": {"OTU1": 2},
	}}, ""); err != nil {
		t.Fatalf("LoadSampleData: %v", err)
	}

	return New(c, idx, ctxs), l, idx
}

func TestFetchBySampleReturnsRows(t *testing.T) {
	f, _, _ := newTestFixture(t)
	ctx := context.Background()

	table, ambig, err := f.Fetch(ctx, "ctx1", []string{"s1", "s2"}, FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(ambig) != 0 {
		t.Fatalf("expected no ambiguity, got %v", ambig)
	}
	if len(table.SampleIDs) != 2 {
		t.Fatalf("expected 2 rows, got %v", table.SampleIDs)
	}
	if v, ok := table.Get("s1", "OTU1"); !ok || v != 3 {
		t.Fatalf("s1/OTU1 = %v, %v", v, ok)
	}
	if v, ok := table.Get("s2", "OTU1"); !ok || v != 2 {
		t.Fatalf("s2/OTU1 = %v, %v", v, ok)
	}
	if _, ok := table.Get("s2", "OTU2"); ok {
		t.Fatalf("s2 should have no OTU2 entry")
	}
}

func TestFetchUnknownContext(t *testing.T) {
	f, _, _ := newTestFixture(t)
	if _, _, err := f.Fetch(context.Background(), "nope", []string{"s1"}, FetchOptions{}); err == nil {
		t.Fatalf("expected unknown-context error")
	}
}

func TestFetchByFeatureUnion(t *testing.T) {
	f, _, _ := newTestFixture(t)
	ctx := context.Background()

	table, _, err := f.Fetch(ctx, "ctx1", []string{"OTU2"}, FetchOptions{ByFeature: true})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(table.SampleIDs) != 1 || table.SampleIDs[0] != "s1" {
		t.Fatalf("expected only s1 to carry OTU2, got %v", table.SampleIDs)
	}
}

func TestFetchAmbiguousSampleMergePolicy(t *testing.T) {
	c, err := kv.Open(":memory:", 8)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	defer c.Close()
	idx, err := index.New(c)
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}
	ctxs := contextstore.New(c, idx)
	meta := metadatastore.New(c)
	l := loader.New(c, idx, ctxs, meta, nil)

	ctx := context.Background()
	if err := idx.CreateContext(ctx, "ctx1", "test"); err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	if _, err := l.LoadSampleMetadata(ctx, map[string]map[string]string{
		"s1": {"ph": "7.0"},
	}, ""); err != nil {
		t.Fatalf("LoadSampleMetadata: %v", err)
	}
	if _, err := l.LoadSampleMetadata(ctx, map[string]map[string]string{
		"s1": {"ph": "7.0"},
	}, "prep2"); err != nil {
		t.Fatalf("LoadSampleMetadata (tagged): %v", err)
	}
	if _, err := l.LoadSampleData(ctx, "ctx1", loader.SparseTable{Counts: map[string]map[string]float64{
		"s1": {"OTU1": 3},
	}}, ""); err != nil {
		t.Fatalf("LoadSampleData (untagged): %v", err)
	}
	if _, err := l.LoadSampleData(ctx, "ctx1", loader.SparseTable{Counts: map[string]map[string]float64{
		"s1": {"OTU1": 4},
	}}, "prep2"); err != nil {
		t.Fatalf("LoadSampleData (tagged): %v", err)
	}

	f := New(c, idx, ctxs)

	table, ambig, err := f.Fetch(ctx, "ctx1", []string{"s1"}, FetchOptions{AmbiguityPolicy: PolicyMerge})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(ambig) != 0 {
		t.Fatalf("merge policy should leave no unresolved ambiguity, got %v", ambig)
	}
	if v, ok := table.Get("s1", "OTU1"); !ok || v != 7 {
		t.Fatalf("expected merged count 7, got %v, %v", v, ok)
	}
}

func TestFetchAmbiguousSampleNoPolicyReported(t *testing.T) {
	c, err := kv.Open(":memory:", 8)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	defer c.Close()
	idx, err := index.New(c)
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}
	ctxs := contextstore.New(c, idx)
	meta := metadatastore.New(c)
	l := loader.New(c, idx, ctxs, meta, nil)

	ctx := context.Background()
	if err := idx.CreateContext(ctx, "ctx1", "test"); err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	if _, err := l.LoadSampleMetadata(ctx, map[string]map[string]string{"s1": {"ph": "7.0"}}, ""); err != nil {
		t.Fatalf("LoadSampleMetadata: %v", err)
	}
	if _, err := l.LoadSampleMetadata(ctx, map[string]map[string]string{"s1": {"ph": "7.0"}}, "prep2"); err != nil {
		t.Fatalf("LoadSampleMetadata (tagged): %v", err)
	}
	if _, err := l.LoadSampleData(ctx, "ctx1", loader.SparseTable{Counts: map[string]map[string]float64{
		"s1": {"OTU1": 3},
	}}, ""); err != nil {
		t.Fatalf("LoadSampleData: %v", err)
	}
	if _, err := l.LoadSampleData(ctx, "ctx1", loader.SparseTable{Counts: map[string]map[string]float64{
		"s1": {"OTU1": 4},
	}}, "prep2"); err != nil {
		t.Fatalf("LoadSampleData (tagged): %v", err)
	}

	f := New(c, idx, ctxs)
	table, ambig, err := f.Fetch(ctx, "ctx1", []string{"s1"}, FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(ambig["s1"]) != 2 {
		t.Fatalf("expected s1 reported ambiguous with 2 candidates, got %v", ambig)
	}
	// With no ambiguity policy, every candidate is still fetched and
	// surfaces as its own row keyed by its public id, alongside the
	// ambiguity report -- not dropped.
	if len(table.SampleIDs) != 2 {
		t.Fatalf("expected both candidates as distinct rows, got %v", table.SampleIDs)
	}
	if v, ok := table.Get("s1.UNTAGGED", "OTU1"); !ok || v != 3 {
		t.Fatalf("s1.UNTAGGED/OTU1 = %v, %v", v, ok)
	}
	if v, ok := table.Get("s1.prep2", "OTU1"); !ok || v != 4 {
		t.Fatalf("s1.prep2/OTU1 = %v, %v", v, ok)
	}
}
