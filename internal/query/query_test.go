package query

import (
	"context"
	"testing"

	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/metadatastore"
)

func TestPlanSplitsOnWhere(t *testing.T) {
	set, where, err := Plan("fecal where ph > 6")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if set != "fecal" || where != "ph > 6" {
		t.Fatalf("Plan = %q, %q", set, where)
	}
}

func TestPlanWithoutWhere(t *testing.T) {
	set, where, err := Plan("fecal & human")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if set != "fecal & human" || where != "" {
		t.Fatalf("Plan = %q, %q", set, where)
	}
}

func TestPlanRejectsEmptyHalves(t *testing.T) {
	if _, _, err := Plan(""); err == nil {
		t.Fatalf("expected error for empty query")
	}
	if _, _, err := Plan("where ph > 6"); err == nil {
		t.Fatalf("expected error for empty set half")
	}
}

func newTestEngine(t *testing.T) (*Engine, *metadatastore.Store) {
	t.Helper()
	c, err := kv.Open(":memory:", 8)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	meta := metadatastore.New(c)
	return NewEngine(meta), meta
}

func TestMetadataFullSetOnly(t *testing.T) {
	ctx := context.Background()
	e, meta := newTestEngine(t)

	if err := meta.WriteRow(ctx, "UNTAGGED_s1", map[string]string{"description": "fecal sample"}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := meta.IndexValueStems(ctx, "UNTAGGED_s1", []string{"fecal", "sampl"}); err != nil {
		t.Fatalf("IndexValueStems: %v", err)
	}

	got, err := e.MetadataFull(ctx, "fecal", false)
	if err != nil {
		t.Fatalf("MetadataFull: %v", err)
	}
	if len(got) != 1 || got[0] != "UNTAGGED_s1" {
		t.Fatalf("MetadataFull = %v", got)
	}
}

func TestMetadataFullRejectsCategoriesWithWhere(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	if _, err := e.MetadataFull(ctx, "fecal where ph > 6", true); err == nil {
		t.Fatalf("expected error combining categories with where clause")
	}
}

func TestMetadataFullSetAndWhere(t *testing.T) {
	ctx := context.Background()
	e, meta := newTestEngine(t)

	if err := meta.WriteRow(ctx, "UNTAGGED_s1", map[string]string{"ph": "7.0"}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := meta.WriteRow(ctx, "UNTAGGED_s2", map[string]string{"ph": "4.0"}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := meta.IndexValueStems(ctx, "UNTAGGED_s1", []string{"fecal"}); err != nil {
		t.Fatalf("IndexValueStems: %v", err)
	}
	if err := meta.IndexValueStems(ctx, "UNTAGGED_s2", []string{"fecal"}); err != nil {
		t.Fatalf("IndexValueStems: %v", err)
	}

	got, err := e.MetadataFull(ctx, "fecal where ph > 5", false)
	if err != nil {
		t.Fatalf("MetadataFull: %v", err)
	}
	if len(got) != 1 || got[0] != "UNTAGGED_s1" {
		t.Fatalf("MetadataFull = %v", got)
	}
}
