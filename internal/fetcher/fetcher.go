// Package fetcher implements the Fetcher: materializing a sparse
// samples-by-features count table (plus optional taxonomy) for a set of
// caller-supplied sample or feature identifiers, resolving ambiguity
// along the way. Grounded on original_source/redbiom/fetch.py's
// `_biom_from_samples`, `data_from_samples`, and `data_from_features`.
package fetcher

import (
	"context"
	"sort"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/nishad/redbiom/internal/ambiguity"
	"github.com/nishad/redbiom/internal/contextstore"
	"github.com/nishad/redbiom/internal/index"
	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/loader"
	"github.com/nishad/redbiom/internal/model"
	"github.com/nishad/redbiom/internal/rerr"
)

// AmbiguityPolicy controls how Fetch reconciles a bare sample_id that
// resolves to more than one redbiom_id (e.g. two tagged preparations of
// the same physical sample).
type AmbiguityPolicy string

const (
	// PolicyNone is the default: every candidate redbiom_id an
	// ambiguous sample id could mean is fetched and added to the table
	// as its own row, keyed by its "sample_id.tag" public id, and the
	// original sample id is also reported in the returned AmbiguityMap.
	// Mirrors _biom_from_samples, which fetches every id in its rimap
	// unconditionally; merge/most-reads collapse that table after the
	// fact rather than filtering what gets fetched.
	PolicyNone AmbiguityPolicy = ""
	// PolicyMerge sums the counts of every candidate redbiom_id's row
	// into a single row keyed by the original public id.
	PolicyMerge AmbiguityPolicy = "merge"
	// PolicyMostReads keeps only the candidate row with the highest
	// total read count, discarding the others.
	PolicyMostReads AmbiguityPolicy = "most-reads"
)

// ErrInconsistentAmbiguity is returned when resolving an ambiguous
// sample id under the requested policy would be undefined, e.g.
// "most-reads" between two candidates tied on total count, or an
// unrecognized policy value.
var ErrInconsistentAmbiguity = rerr.E(rerr.KindAmbiguityInconsistent, "ambiguous sample ids could not be resolved under the requested policy")

// AmbiguityMap reports, for every input id that mapped to more than one
// redbiom_id and was not auto-resolved by policy, the full set of
// candidates it could mean.
type AmbiguityMap map[string][]model.RedbiomID

// FetchOptions configures a single Fetch call.
type FetchOptions struct {
	// Exact restricts a feature-based fetch to samples containing every
	// requested feature, rather than any of them. Ignored when ids name
	// samples rather than features.
	Exact bool
	// ByFeature selects data_from_features semantics: ids are feature
	// ids, and the sample set is derived from their postings.
	ByFeature bool
	// AmbiguityPolicy resolves bare sample ids with multiple candidate
	// redbiom_ids. Defaults to PolicyNone.
	AmbiguityPolicy AmbiguityPolicy
	// IncludeTaxonomy is carried for callers but not read by Fetch:
	// SparseTable has no taxonomy, and lineages are looked up separately
	// with Fetcher.Taxonomies.
	IncludeTaxonomy bool
	// NormalizeTaxonomy lists rank prefixes to pad lineages to (see
	// contextstore.TaxonAncestors); not read by Fetch either.
	NormalizeTaxonomy []string
}

// Fetcher materializes sparse tables from a context's packed sample
// rows.
type Fetcher struct {
	kv   kv.Client
	idx  *index.Manager
	ctxs *contextstore.Store
}

func New(client kv.Client, idx *index.Manager, ctxs *contextstore.Store) *Fetcher {
	return &Fetcher{kv: client, idx: idx, ctxs: ctxs}
}

// Taxonomy maps each feature id present in a fetched table to the
// root-first lineage contextstore.TaxonAncestors returns for it, as built
// by Fetcher.Taxonomies.
type Taxonomy map[string][]string

// Fetch resolves ids against context, reads each resolved redbiom_id's
// packed row, and assembles a SparseTable keyed by the caller-facing
// public id (the bare sample_id, unless ambiguity forced a tagged
// redbiom_id through). When opts.ByFeature is set, ids name features
// instead: the sample universe is derived from their postings (union, or
// intersection if opts.Exact), and every one of those samples' rows is
// fetched in full.
func (f *Fetcher) Fetch(ctx context.Context, context_ string, ids []string, opts FetchOptions) (*SparseTable, AmbiguityMap, error) {
	const op = rerr.Op("fetcher.Fetch")

	if err := f.idx.RequireContext(ctx, context_); err != nil {
		return nil, nil, rerr.Wrap(op, err)
	}

	if opts.ByFeature {
		return f.fetchByFeature(ctx, context_, ids, opts)
	}
	return f.fetchBySample(ctx, context_, ids, opts)
}

func (f *Fetcher) fetchBySample(ctx context.Context, context_ string, ids []string, opts FetchOptions) (*SparseTable, AmbiguityMap, error) {
	const op = rerr.Op("fetcher.fetchBySample")

	resolver := ambiguity.New(func(ctx context.Context) ([]string, error) {
		return f.ctxs.SamplesInContext(ctx, context_)
	})
	res, err := resolver.Resolve(ctx, ids)
	if err != nil {
		return nil, nil, rerr.Wrap(op, err)
	}

	b := NewBuilder()
	ambigOut := make(AmbiguityMap)

	inputs := make([]string, 0, len(ids))
	inputs = append(inputs, ids...)
	sort.Strings(inputs)

	for _, id := range inputs {
		if rid, ok := res.Resolved[id]; ok {
			row, err := f.readRow(ctx, context_, rid)
			if err != nil {
				return nil, nil, rerr.Wrap(op, err)
			}
			b.AddRow(id, row)
			continue
		}

		candidates, ambiguous := res.Ambiguous[id]
		if !ambiguous {
			continue // not found; silently dropped, matching the original's unobserved-id handling
		}

		if opts.AmbiguityPolicy == PolicyNone {
			// Mirror _biom_from_samples: every candidate redbiom_id is
			// fetched unconditionally and added as its own row, keyed
			// by its public id. Merge/most-reads are opt-in post-hoc
			// collapses, not a pre-filter, so nothing is dropped here.
			ambigOut[id] = candidates
			tagCounts := map[string]int{id: len(candidates)}
			for _, rid := range candidates {
				row, err := f.readRow(ctx, context_, rid)
				if err != nil {
					return nil, nil, rerr.Wrap(op, err)
				}
				b.AddRow(string(ambiguity.PublicID(rid, tagCounts)), row)
			}
			continue
		}

		resolved, err := f.resolveAmbiguous(ctx, context_, candidates, opts.AmbiguityPolicy)
		if err != nil {
			ambigOut[id] = candidates
			continue
		}
		b.AddRow(id, resolved)
	}

	table := b.Build()
	if len(ambigOut) > 0 && opts.AmbiguityPolicy != PolicyNone {
		return table, ambigOut, ErrInconsistentAmbiguity
	}
	return table, ambigOut, nil
}

// resolveAmbiguous merges or picks among candidates' rows per policy.
// Returns an error if policy is empty/unrecognized or, under
// most-reads, the top two candidates tie on total count.
func (f *Fetcher) resolveAmbiguous(ctx context.Context, context_ string, candidates []model.RedbiomID, policy AmbiguityPolicy) (map[string]float64, error) {
	switch policy {
	case PolicyMerge:
		merged := make(map[string]float64)
		for _, rid := range candidates {
			row, err := f.readRow(ctx, context_, rid)
			if err != nil {
				return nil, err
			}
			for feature, count := range row {
				merged[feature] += count
			}
		}
		return merged, nil

	case PolicyMostReads:
		type totalled struct {
			row   map[string]float64
			total float64
		}
		var best, secondBest totalled
		for _, rid := range candidates {
			row, err := f.readRow(ctx, context_, rid)
			if err != nil {
				return nil, err
			}
			var total float64
			for _, c := range row {
				total += c
			}
			if total > best.total {
				secondBest = best
				best = totalled{row: row, total: total}
			} else if total > secondBest.total {
				secondBest = totalled{row: row, total: total}
			}
		}
		if len(candidates) > 1 && best.total == secondBest.total {
			return nil, ErrInconsistentAmbiguity
		}
		return best.row, nil

	default:
		return nil, ErrInconsistentAmbiguity
	}
}

func (f *Fetcher) fetchByFeature(ctx context.Context, context_ string, featureIDs []string, opts FetchOptions) (*SparseTable, AmbiguityMap, error) {
	const op = rerr.Op("fetcher.fetchByFeature")

	var universe *roaring.Bitmap
	for i, fid := range featureIDs {
		fidx, ok, err := f.idx.Resolve(ctx, context_, model.AxisFeature, fid)
		if err != nil {
			return nil, nil, rerr.Wrap(op, err)
		}
		if !ok {
			continue
		}
		postings, err := f.ctxs.Postings(ctx, context_, model.AxisFeature, fidx)
		if err != nil {
			return nil, nil, rerr.Wrap(op, err)
		}
		if i == 0 || universe == nil {
			universe = postings
			continue
		}
		if opts.Exact {
			universe = roaring.And(universe, postings)
		} else {
			universe = roaring.Or(universe, postings)
		}
	}
	if universe == nil {
		universe = roaring.New()
	}

	b := NewBuilder()
	it := universe.Iterator()
	var sampleIdxs []uint32
	for it.HasNext() {
		sampleIdxs = append(sampleIdxs, it.Next())
	}
	for _, sidx := range sampleIdxs {
		name, ok, err := f.idx.Name(ctx, context_, model.AxisSample, sidx)
		if err != nil {
			return nil, nil, rerr.Wrap(op, err)
		}
		if !ok {
			continue
		}
		row, err := f.readRow(ctx, context_, model.RedbiomID(name))
		if err != nil {
			return nil, nil, rerr.Wrap(op, err)
		}
		b.AddRow(name, row)
	}

	return b.Build(), AmbiguityMap{}, nil
}

// readRow fetches one redbiom_id's packed (feature_index -> count) hash
// and translates it back to feature names.
func (f *Fetcher) readRow(ctx context.Context, context_ string, rid model.RedbiomID) (map[string]float64, error) {
	packed, err := f.kv.HGetAll(ctx, loader.DataKey(context_, string(rid)))
	if err != nil {
		return nil, err
	}
	row := make(map[string]float64, len(packed))
	for idxStr, valStr := range packed {
		n, err := strconv.ParseUint(idxStr, 10, 32)
		if err != nil {
			continue
		}
		name, ok, err := f.idx.Name(ctx, context_, model.AxisFeature, uint32(n))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			continue
		}
		row[name] = v
	}
	return row, nil
}

// Taxonomies looks up the ancestor lineage for every feature id in
// table, mirroring `_biom_from_samples`'s call into
// `fetch.py:taxon_ancestors` to attach `observation_metadata`.
func (f *Fetcher) Taxonomies(ctx context.Context, context_ string, table *SparseTable, normalize []string) (Taxonomy, error) {
	lineages, err := f.ctxs.TaxonAncestors(ctx, context_, table.FeatureIDs, normalize)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("fetcher.Taxonomies"), err)
	}
	return Taxonomy(lineages), nil
}
