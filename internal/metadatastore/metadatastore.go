// Package metadatastore implements the Metadata Store: per-sample column
// lists, per-column value hashes, and the stem inverted indices that back
// free-text/category search. Grounded on redbiom.admin's
// load_sample_metadata / load_sample_metadata_full_search and
// redbiom.fetch's category_sample_values / sample_counts_per_category.
package metadatastore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/rerr"
)

const (
	representedKey        = "metadata:samples-represented"
	categoriesRepresented = "metadata:categories-represented"
)

// Store is the global (context-independent) metadata layer: unlike
// sample/feature data, sample metadata is not scoped per context in
// redbiom — a sample's study metadata is the same no matter which
// context its count data was loaded into.
type Store struct {
	kv kv.Client
}

func New(client kv.Client) *Store {
	return &Store{kv: client}
}

func columnsKey(id string) string { return "categories:" + id }
func columnHash(col string) string { return "category:" + col }

// HasMetadata reports whether any sample metadata at all has already
// been loaded (it does not check individual samples), mirroring
// redbiom.util.has_sample_metadata's precondition check.
func (s *Store) HasMetadata(ctx context.Context) (bool, error) {
	n, err := s.kv.SCard(ctx, representedKey)
	if err != nil {
		return false, rerr.Wrap(rerr.Op("metadatastore.HasMetadata"), err)
	}
	return n > 0, nil
}

// IsRepresented reports whether id already has metadata loaded.
func (s *Store) IsRepresented(ctx context.Context, id string) (bool, error) {
	ok, err := s.kv.SIsMember(ctx, representedKey, id)
	if err != nil {
		return false, rerr.Wrap(rerr.Op("metadatastore.IsRepresented"), err)
	}
	return ok, nil
}

// RepresentedSamples returns every redbiom_id with metadata loaded.
func (s *Store) RepresentedSamples(ctx context.Context) ([]string, error) {
	members, err := s.kv.SMembers(ctx, representedKey)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("metadatastore.RepresentedSamples"), err)
	}
	sort.Strings(members)
	return members, nil
}

// WriteRow stores one sample's column values as given (the caller drops
// non-indexable values first) and records it as represented, mirroring
// the per-row work inside load_sample_metadata: the "columns" hash gets
// field id set to the sorted JSON list of column names written, and
// `category:<col>` gets an HSET of id -> value for each.
func (s *Store) WriteRow(ctx context.Context, id string, values map[string]string) error {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	encoded, err := json.Marshal(cols)
	if err != nil {
		return rerr.E(rerr.Op("metadatastore.WriteRow"), rerr.KindIO, err)
	}
	if err := s.kv.HSet(ctx, "columns", id, string(encoded)); err != nil {
		return rerr.Wrap(rerr.Op("metadatastore.WriteRow"), err)
	}

	for _, col := range cols {
		if err := s.kv.HSet(ctx, columnHash(col), id, values[col]); err != nil {
			return rerr.Wrap(rerr.Op("metadatastore.WriteRow"), err)
		}
		if err := s.kv.SAdd(ctx, categoriesRepresented, col); err != nil {
			return rerr.Wrap(rerr.Op("metadatastore.WriteRow"), err)
		}
	}
	if err := s.kv.SAdd(ctx, representedKey, id); err != nil {
		return rerr.Wrap(rerr.Op("metadatastore.WriteRow"), err)
	}
	return nil
}

// CategoriesFor returns the column names informative for id.
func (s *Store) CategoriesFor(ctx context.Context, id string) ([]string, error) {
	raw, ok, err := s.kv.HGet(ctx, "columns", id)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("metadatastore.CategoriesFor"), err)
	}
	if !ok {
		return nil, nil
	}
	var cols []string
	if err := json.Unmarshal([]byte(raw), &cols); err != nil {
		return nil, rerr.E(rerr.Op("metadatastore.CategoriesFor"), rerr.KindIO, err)
	}
	return cols, nil
}

// Value returns id's value for column, if any.
func (s *Store) Value(ctx context.Context, column, id string) (string, bool, error) {
	v, ok, err := s.kv.HGet(ctx, columnHash(column), id)
	if err != nil {
		return "", false, rerr.Wrap(rerr.Op("metadatastore.Value"), err)
	}
	return v, ok, nil
}

// ColumnValues returns the full id -> value map for a column, the shape
// redbiom.fetch.category_sample_values / metadata() fetches in bulk.
func (s *Store) ColumnValues(ctx context.Context, column string) (map[string]string, error) {
	m, err := s.kv.HGetAll(ctx, columnHash(column))
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("metadatastore.ColumnValues"), err)
	}
	return m, nil
}

// SampleCountsPerColumn mirrors redbiom.fetch.sample_counts_per_category:
// how many samples carry a non-null value for each represented column.
func (s *Store) SampleCountsPerColumn(ctx context.Context) (map[string]int64, error) {
	cols, err := s.CategoriesRepresented(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(cols))
	for _, col := range cols {
		n, err := s.kv.HLen(ctx, columnHash(col))
		if err != nil {
			return nil, rerr.Wrap(rerr.Op("metadatastore.SampleCountsPerColumn"), err)
		}
		out[col] = n
	}
	return out, nil
}

// CategoriesRepresented lists every column name any sample has written.
func (s *Store) CategoriesRepresented(ctx context.Context) ([]string, error) {
	members, err := s.kv.SMembers(ctx, categoriesRepresented)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("metadatastore.CategoriesRepresented"), err)
	}
	sort.Strings(members)
	return members, nil
}

// --- Stem inverted indices (full-text search over metadata) ---

func textSearchKey(stem string) string     { return "text-search:" + stem }
func categorySearchKey(stem string) string { return "category-search:" + stem }

// IndexValueStems adds id to every stem's posting list in text-search,
// mirroring load_sample_metadata_full_search's `SADD text-search:<stem>`.
func (s *Store) IndexValueStems(ctx context.Context, id string, stems []string) error {
	for _, stem := range stems {
		if err := s.kv.SAdd(ctx, textSearchKey(stem), id); err != nil {
			return rerr.Wrap(rerr.Op("metadatastore.IndexValueStems"), err)
		}
	}
	return nil
}

// IndexColumnNameStems adds column to every stem's posting list in
// category-search, mirroring the underscore-to-space column-name
// stemming pass in load_sample_metadata_full_search.
func (s *Store) IndexColumnNameStems(ctx context.Context, column string, stems []string) error {
	for _, stem := range stems {
		if err := s.kv.SAdd(ctx, categorySearchKey(stem), column); err != nil {
			return rerr.Wrap(rerr.Op("metadatastore.IndexColumnNameStems"), err)
		}
	}
	return nil
}

// SamplesForStem returns every sample id matching stem in the free-text
// metadata index.
func (s *Store) SamplesForStem(ctx context.Context, stem string) ([]string, error) {
	members, err := s.kv.SMembers(ctx, textSearchKey(stem))
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("metadatastore.SamplesForStem"), err)
	}
	return members, nil
}

// ColumnsForStem returns every column name matching stem in the
// category-name index.
func (s *Store) ColumnsForStem(ctx context.Context, stem string) ([]string, error) {
	members, err := s.kv.SMembers(ctx, categorySearchKey(stem))
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("metadatastore.ColumnsForStem"), err)
	}
	return members, nil
}
