// Package loader implements the Loader: precondition-checked bulk ingest
// of sample data, sample metadata, and free-text/taxonomy indices.
// Grounded on redbiom.admin's load_observations, load_sample_data,
// load_sample_metadata, load_sample_metadata_full_search, and
// _stage_for_load/_indexable.
package loader

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nishad/redbiom/internal/contextstore"
	"github.com/nishad/redbiom/internal/index"
	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/metadatastore"
	"github.com/nishad/redbiom/internal/model"
	"github.com/nishad/redbiom/internal/rerr"
	"github.com/nishad/redbiom/internal/stem"
	"github.com/nishad/redbiom/internal/xlog"
)

// MaxScriptArgs bounds how many ids a single buffered round trip packs,
// leaving headroom under the backend's argument-count ceiling once
// script overhead is accounted for (mirrors redbiom.requests.buffered's
// chunking margin).
const MaxScriptArgs = 7900

// Loader performs the write-side operations every other component's data
// depends on. context strings name a context created via
// index.Manager.CreateContext; sample metadata itself is global
// (context-independent), matching the original's separation between
// per-context count data and study-wide sample metadata.
type Loader struct {
	kv   kv.Client
	idx  *index.Manager
	ctxs *contextstore.Store
	meta *metadatastore.Store
	log  *xlog.Logger
}

func New(client kv.Client, idx *index.Manager, ctxs *contextstore.Store, meta *metadatastore.Store, log *xlog.Logger) *Loader {
	if log == nil {
		log = xlog.Default()
	}
	return &Loader{kv: client, idx: idx, ctxs: ctxs, meta: meta, log: log}
}

// SparseTable is a samples-by-features sparse count table, the load-time
// shape of a "biom-like" table before it is split into per-feature
// postings and per-sample packed rows.
type SparseTable struct {
	// Counts[sampleID][featureID] = count.
	Counts map[string]map[string]float64
}

// stageTag qualifies each input sample id with tag (or UNTAGGED),
// mirroring admin.py's `_stage_for_load`.
func stageTag(tag model.Tag) model.Tag {
	if tag == "" {
		return model.UntaggedTag
	}
	return tag
}

// LoadSampleData loads a samples-by-features count table into context,
// assigning fresh sample/feature indices as needed and writing both the
// feature->samples posting lists and each sample's packed row.
// Preconditions, checked in order: context must exist, sample metadata
// must already be loaded (has_sample_metadata), every count must be a
// non-negative integer (within a small rounding tolerance), and the
// table must not be entirely already loaded
// or entirely empty after staging.
func (l *Loader) LoadSampleData(ctx context.Context, context_ string, table SparseTable, tag model.Tag) (loaded int, err error) {
	const op = rerr.Op("loader.LoadSampleData")

	if err := l.idx.RequireContext(ctx, context_); err != nil {
		return 0, rerr.Wrap(op, err)
	}
	if has, err := l.meta.HasMetadata(ctx); err != nil {
		return 0, rerr.Wrap(op, err)
	} else if !has {
		return 0, rerr.E(op, rerr.KindMetadataMissing, "sample metadata must be loaded before sample data")
	}

	t := stageTag(tag)
	skip := rerr.NewSkipCounter(string(op))

	type row struct {
		redbiomID string
		values    map[string]float64
	}
	var staged []row
	sampleIDs := make([]string, 0, len(table.Counts))
	for sampleID := range table.Counts {
		sampleIDs = append(sampleIDs, sampleID)
	}
	sort.Strings(sampleIDs)

	alreadyLoaded := 0
	for _, sampleID := range sampleIDs {
		values := table.Counts[sampleID]
		rid := string(model.Tagged(t, model.SampleID(sampleID)))

		if existingIdx, ok, err := l.idx.Resolve(ctx, context_, model.AxisSample, rid); err != nil {
			return 0, rerr.Wrap(op, err)
		} else if ok {
			already, err := l.ctxs.IsRepresented(ctx, context_, model.AxisSample, existingIdx)
			if err != nil {
				return 0, rerr.Wrap(op, err)
			}
			if already {
				alreadyLoaded++
				skip.Skip(nil, rid+": already loaded")
				continue
			}
		}

		clean := make(map[string]float64)
		for feature, count := range values {
			if count == 0 {
				continue
			}
			if count < 0 {
				return 0, rerr.E(op, rerr.KindNonCountData, "negative count for "+sampleID+"/"+feature)
			}
			if math.Abs(count-math.Round(count)) > 1e-6 {
				return 0, rerr.E(op, rerr.KindNonCountData, "non-integer count for "+sampleID+"/"+feature)
			}
			clean[feature] = count
		}
		if len(clean) == 0 {
			continue
		}
		staged = append(staged, row{redbiomID: rid, values: clean})
	}

	skip.ReportIfAny(1)
	if len(staged) == 0 {
		if alreadyLoaded == len(sampleIDs) && alreadyLoaded > 0 {
			return 0, rerr.E(op, rerr.KindAlreadyLoaded, "every sample in this table is already loaded")
		}
		return 0, rerr.E(op, rerr.KindEmptyTable, "no novel non-zero rows to load")
	}

	for _, r := range staged {
		sampleIdx, err := l.idx.GetOrCreate(ctx, context_, model.AxisSample, r.redbiomID)
		if err != nil {
			return loaded, rerr.Wrap(op, err)
		}

		packed := make(map[string]string, len(r.values))
		for feature, count := range r.values {
			featureIdx, err := l.idx.GetOrCreate(ctx, context_, model.AxisFeature, feature)
			if err != nil {
				return loaded, rerr.Wrap(op, err)
			}
			packed[strconv.FormatUint(uint64(featureIdx), 10)] = formatCount(count)

			if err := l.ctxs.AddPosting(ctx, context_, model.AxisFeature, featureIdx, []uint32{sampleIdx}); err != nil {
				return loaded, rerr.Wrap(op, err)
			}
			if err := l.ctxs.MarkRepresented(ctx, context_, model.AxisFeature, featureIdx); err != nil {
				return loaded, rerr.Wrap(op, err)
			}
		}

		if err := l.kv.HMSet(ctx, DataKey(context_, r.redbiomID), packed); err != nil {
			return loaded, rerr.Wrap(op, err)
		}
		if err := l.ctxs.MarkRepresented(ctx, context_, model.AxisSample, sampleIdx); err != nil {
			return loaded, rerr.Wrap(op, err)
		}
		loaded++
		l.log.Debugf("loaded sample data for %s (%d features)", r.redbiomID, len(r.values))
	}

	return loaded, nil
}

// DataKey names the hash holding a sample's packed (feature_index ->
// count) row within a context, shared with internal/fetcher so it can
// read rows back without a second copy of the naming convention.
func DataKey(context_, redbiomID string) string { return context_ + ":data:" + redbiomID }

func formatCount(c float64) string {
	if c == float64(int64(c)) {
		return strconv.FormatInt(int64(c), 10)
	}
	return strconv.FormatFloat(c, 'g', -1, 64)
}

// indexable mirrors admin.py's `_indexable`: a value is rejected from the
// metadata index if it is one of the configured null sentinels, or if it
// is a string containing a literal '/' (D1: redbiom cannot disambiguate
// such values from its key-namespacing scheme, so they are silently
// dropped rather than stored).
func indexable(value string, nullables map[string]bool) bool {
	if nullables[strings.ToLower(value)] {
		return false
	}
	return !strings.Contains(value, "/")
}

// DefaultNullables is the set of sentinel strings redbiom treats as
// missing metadata values, shared with internal/stem so the same
// sentinel set governs both full-value filtering here and individual
// stemmed-token dropping there.
var DefaultNullables = stem.DefaultNullables

// LoadSampleMetadata loads one row of sample metadata per sample id,
// dropping non-indexable values per _indexable, and records each sample
// as represented. If tag is non-empty, the caller is retagging an
// already-metadata'd sample_id with a second preparation; this requires
// untagged metadata to already exist, mirroring load_sample_metadata's
// has_sample_metadata precondition for tagged loads.
func (l *Loader) LoadSampleMetadata(ctx context.Context, rows map[string]map[string]string, tag model.Tag) (loaded int, err error) {
	const op = rerr.Op("loader.LoadSampleMetadata")

	if tag != "" {
		if has, err := l.meta.HasMetadata(ctx); err != nil {
			return 0, rerr.Wrap(op, err)
		} else if !has {
			return 0, rerr.E(op, rerr.KindMetadataMissing, "cannot tag a preparation before untagged metadata exists")
		}
	}

	t := stageTag(tag)
	skip := rerr.NewSkipCounter(string(op))

	sampleIDs := make([]string, 0, len(rows))
	for id := range rows {
		sampleIDs = append(sampleIDs, id)
	}
	sort.Strings(sampleIDs)

	alreadyLoaded := 0
	for _, sampleID := range sampleIDs {
		values := rows[sampleID]
		rid := string(model.Tagged(t, model.SampleID(sampleID)))

		if already, err := l.meta.IsRepresented(ctx, rid); err != nil {
			return loaded, rerr.Wrap(op, err)
		} else if already {
			alreadyLoaded++
			skip.Skip(nil, rid+": already loaded")
			continue
		}

		clean := make(map[string]string)
		for col, val := range values {
			if indexable(val, DefaultNullables) {
				clean[col] = val
			}
		}
		if len(clean) == 0 {
			skip.Skip(nil, rid+": no indexable columns")
			continue
		}

		if err := l.meta.WriteRow(ctx, rid, clean); err != nil {
			return loaded, rerr.Wrap(op, err)
		}
		loaded++
	}

	skip.ReportIfAny(1)
	if loaded == 0 {
		if alreadyLoaded == len(sampleIDs) && alreadyLoaded > 0 {
			return 0, rerr.E(op, rerr.KindAlreadyLoaded, "every sample in this table is already loaded")
		}
		return 0, rerr.E(op, rerr.KindEmptyTable, "no novel metadata rows to load")
	}
	return loaded, nil
}

// LoadSampleMetadataFullSearch builds the free-text inverted index over
// already-loaded metadata rows: each value is stemmed and its sample id
// added to text-search:<stem>, and each column name (with underscores
// read as spaces) is stemmed and added to category-search:<stem>.
// Mirrors load_sample_metadata_full_search.
func (l *Loader) LoadSampleMetadataFullSearch(ctx context.Context, rows map[string]map[string]string, tag model.Tag) error {
	const op = rerr.Op("loader.LoadSampleMetadataFullSearch")
	t := stageTag(tag)

	columnsSeen := make(map[string]bool)
	for sampleID, values := range rows {
		rid := string(model.Tagged(t, model.SampleID(sampleID)))
		for col, val := range values {
			terms := stem.Stems(val)
			if len(terms) > 0 {
				if err := l.meta.IndexValueStems(ctx, rid, terms); err != nil {
					return rerr.Wrap(op, err)
				}
			}
			columnsSeen[col] = true
		}
	}

	for col := range columnsSeen {
		terms := stem.Stems(strings.ReplaceAll(col, "_", " "))
		if len(terms) == 0 {
			continue
		}
		if err := l.meta.IndexColumnNameStems(ctx, col, terms); err != nil {
			return rerr.Wrap(op, err)
		}
	}
	return nil
}

// TaxonomyRoot names the synthetic root every top-level rank is attached
// under, since redbiom's taxonomy trees have no single universal root
// node of their own.
const TaxonomyRoot = contextstore.TaxonomyRoot

// LoadTaxonomy records the ancestor chain for each feature's lineage
// (ordered root-first, e.g. ["k__Bacteria", "p__Firmicutes",
// "g__Lactobacillus"]), attaching the feature itself as a terminal tip of
// its deepest named rank. Mirrors the taxonomy edge-list construction
// redbiom.admin performs during a full-search load, including promoting
// an incomplete lineage's last named rank to carry the has-terminal
// sentinel rather than inventing intermediate placeholder nodes. Bare
// rank placeholders (e.g. "s__") are dropped from a lineage, so their
// children attach to the nearest named ancestor.
func (l *Loader) LoadTaxonomy(ctx context.Context, context_ string, featureLineages map[string][]string) error {
	const op = rerr.Op("loader.LoadTaxonomy")
	if err := l.idx.RequireContext(ctx, context_); err != nil {
		return rerr.Wrap(op, err)
	}

	features := make([]string, 0, len(featureLineages))
	for f := range featureLineages {
		features = append(features, f)
	}
	sort.Strings(features)

	for _, feature := range features {
		lineage := make([]string, 0, len(featureLineages[feature]))
		for _, taxon := range featureLineages[feature] {
			if i := strings.Index(taxon, "__"); i >= 0 && strings.TrimSpace(taxon[i+2:]) == "" {
				continue
			}
			lineage = append(lineage, taxon)
		}
		if len(lineage) == 0 {
			continue
		}
		parent := TaxonomyRoot
		for i, taxon := range lineage {
			var tips []string
			if i == len(lineage)-1 {
				tips = []string{feature}
			}
			if err := l.ctxs.AddTaxonomyEdge(ctx, context_, parent, taxon, tips); err != nil {
				return rerr.Wrap(op, err)
			}
			parent = taxon
		}
	}
	return nil
}
