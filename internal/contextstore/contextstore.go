// Package contextstore implements the Context Store: per-(context,axis)
// posting lists, represented-sample/-feature bookkeeping, and taxonomy
// edge storage. Grounded on redbiom.fetch's samples_in_context /
// features_in_context / taxon_ancestors / taxon_descendents and
// redbiom.admin's load_observations / load_sample_data represented-set
// bookkeeping.
package contextstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/nishad/redbiom/internal/index"
	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/model"
	"github.com/nishad/redbiom/internal/rerr"
)

// Store is the per-context posting/represented-set/taxonomy layer. A
// single Store instance serves every context registered via the Index
// Manager; context is always an explicit argument rather than baked into
// the struct, matching how every redbiom request carries its context
// name.
type Store struct {
	kv        kv.Client
	idx       *index.Manager
	chunkSize int
}

func New(client kv.Client, idx *index.Manager) *Store {
	return &Store{kv: client, idx: idx, chunkSize: kv.DefaultChunkSize}
}

// NewWithChunkSize is like New but overrides the posting-list round-trip
// chunk size, letting callers size it to the configured
// loader.MaxScriptArgs margin instead of kv.DefaultChunkSize.
func NewWithChunkSize(client kv.Client, idx *index.Manager, chunkSize int) *Store {
	if chunkSize <= 0 {
		chunkSize = kv.DefaultChunkSize
	}
	return &Store{kv: client, idx: idx, chunkSize: chunkSize}
}

func representedKey(context string, axis model.Axis) string {
	return fmt.Sprintf("%s:%s-represented", context, axis)
}

func postingsKey(context string, axis model.Axis, idx uint32) string {
	return fmt.Sprintf("%s:%s:%d", context, axis, idx)
}

// MarkRepresented records that name (already assigned idx on axis) now
// has data loaded in context, mirroring admin.py's
// `SADD samples-represented-data` / `SADD samples-represented-observations`.
func (s *Store) MarkRepresented(ctx context.Context, context_ string, axis model.Axis, idx uint32) error {
	if err := s.kv.SAdd(ctx, representedKey(context_, axis), strconv.FormatUint(uint64(idx), 10)); err != nil {
		return rerr.Wrap(rerr.Op("contextstore.MarkRepresented"), err)
	}
	return nil
}

// IsRepresented reports whether idx already has data loaded on axis.
func (s *Store) IsRepresented(ctx context.Context, context_ string, axis model.Axis, idx uint32) (bool, error) {
	ok, err := s.kv.SIsMember(ctx, representedKey(context_, axis), strconv.FormatUint(uint64(idx), 10))
	if err != nil {
		return false, rerr.Wrap(rerr.Op("contextstore.IsRepresented"), err)
	}
	return ok, nil
}

// Represented returns the full represented set on axis as a roaring
// bitmap, the structure every other postings/set-algebra operation
// intersects against.
func (s *Store) Represented(ctx context.Context, context_ string, axis model.Axis) (*roaring.Bitmap, error) {
	members, err := s.kv.SMembers(ctx, representedKey(context_, axis))
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("contextstore.Represented"), err)
	}
	return bitmapFromStrings(members), nil
}

// AddPosting adds sampleIdxs to the inverted postings list for a single
// feature index, mirroring `SADD <context>:samples:<obs_id> <samples...>`.
// The axis parameter names which side owns the posting (AxisFeature for
// feature->samples postings, AxisSample for the symmetric case some
// queries need).
func (s *Store) AddPosting(ctx context.Context, context_ string, axis model.Axis, idx uint32, members []uint32) error {
	if len(members) == 0 {
		return nil
	}
	strs := make([]string, len(members))
	for i, m := range members {
		strs[i] = strconv.FormatUint(uint64(m), 10)
	}
	key := postingsKey(context_, axis, idx)
	for chunk := range kv.Buffered(strs, s.chunkSize) {
		if err := s.kv.SAdd(ctx, key, chunk...); err != nil {
			return rerr.Wrap(rerr.Op("contextstore.AddPosting"), err)
		}
	}
	return nil
}

// Postings returns the posting list for idx on axis as a roaring bitmap.
func (s *Store) Postings(ctx context.Context, context_ string, axis model.Axis, idx uint32) (*roaring.Bitmap, error) {
	members, err := s.kv.SMembers(ctx, postingsKey(context_, axis, idx))
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("contextstore.Postings"), err)
	}
	return bitmapFromStrings(members), nil
}

func bitmapFromStrings(members []string) *roaring.Bitmap {
	bm := roaring.New()
	for _, m := range members {
		n, err := strconv.ParseUint(m, 10, 32)
		if err != nil {
			continue
		}
		bm.Add(uint32(n))
	}
	return bm
}

// namesFromBitmap resolves every index in bm back to its name via the
// Index Manager, in ascending index order.
func (s *Store) namesFromBitmap(ctx context.Context, context_ string, axis model.Axis, bm *roaring.Bitmap) ([]string, error) {
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		idx := it.Next()
		name, ok, err := s.idx.Name(ctx, context_, axis, idx)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// SamplesInContext returns every redbiom_id represented on the sample
// axis of context, mirroring redbiom.fetch.samples_in_context.
func (s *Store) SamplesInContext(ctx context.Context, context_ string) ([]string, error) {
	bm, err := s.Represented(ctx, context_, model.AxisSample)
	if err != nil {
		return nil, err
	}
	names, err := s.namesFromBitmap(ctx, context_, model.AxisSample, bm)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("contextstore.SamplesInContext"), err)
	}
	sort.Strings(names)
	return names, nil
}

// FeaturesInContext returns every feature name represented on the
// feature axis of context, mirroring redbiom.fetch.features_in_context.
func (s *Store) FeaturesInContext(ctx context.Context, context_ string) ([]string, error) {
	bm, err := s.Represented(ctx, context_, model.AxisFeature)
	if err != nil {
		return nil, err
	}
	names, err := s.namesFromBitmap(ctx, context_, model.AxisFeature, bm)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("contextstore.FeaturesInContext"), err)
	}
	sort.Strings(names)
	return names, nil
}

// --- Taxonomy ---

func taxChildrenKey(context, taxon string) string { return fmt.Sprintf("%s:taxonomy-children:%s", context, taxon) }
func taxTerminalKey(context, parent string) string {
	return fmt.Sprintf("%s:terminal-of:%s", context, parent)
}

const taxParentHash = "taxonomy-parent"

// HasTerminal is the sentinel pseudo-child redbiom inserts into a taxon's
// children set to mark that it also has directly-assigned feature tips,
// not just deeper-rank descendants.
const HasTerminal = "has-terminal"

// TaxonomyRoot names the synthetic root the loader attaches top-level
// ranks under. TaxonAncestors stops before it, so it never appears in a
// returned lineage.
const TaxonomyRoot = "root"

// AddTaxonomyEdge records that child's parent (in the taxonomy tree for
// context) is parent, and adds child to parent's children set. It does
// not touch parent's own parent edge. tips, when non-empty, are feature
// names assigned directly at
// child (child is then a terminal node and gets the has-terminal
// sentinel).
func (s *Store) AddTaxonomyEdge(ctx context.Context, context_ string, parent, child string, tips []string) error {
	key := fmt.Sprintf("%s:%s", context_, taxParentHash)
	if err := s.kv.HSet(ctx, key, child, parent); err != nil {
		return rerr.Wrap(rerr.Op("contextstore.AddTaxonomyEdge"), err)
	}
	if err := s.kv.SAdd(ctx, taxChildrenKey(context_, parent), child); err != nil {
		return rerr.Wrap(rerr.Op("contextstore.AddTaxonomyEdge"), err)
	}
	if len(tips) > 0 {
		if err := s.kv.SAdd(ctx, taxChildrenKey(context_, child), HasTerminal); err != nil {
			return rerr.Wrap(rerr.Op("contextstore.AddTaxonomyEdge"), err)
		}
		if err := s.kv.SAdd(ctx, taxTerminalKey(context_, child), tips...); err != nil {
			return rerr.Wrap(rerr.Op("contextstore.AddTaxonomyEdge"), err)
		}
	}
	return nil
}

// TaxonAncestors walks each name's parent chain up to (not including)
// TaxonomyRoot, returning its lineage ordered root-first and ending with
// the name itself. When normalize is non-empty, the returned lineage is
// padded/truncated by position to exactly len(normalize) entries, with
// "<rank>__" placeholders filling the positions past the end of the
// observed lineage (a rank missing in the middle is not detected) —
// mirroring redbiom.fetch.taxon_ancestors's normalize behavior.
func (s *Store) TaxonAncestors(ctx context.Context, context_ string, names []string, normalize []string) (map[string][]string, error) {
	key := fmt.Sprintf("%s:%s", context_, taxParentHash)
	out := make(map[string][]string, len(names))
	for _, name := range names {
		var lineage []string
		cur := name
		seen := map[string]bool{}
		for {
			if seen[cur] {
				break
			}
			seen[cur] = true
			lineage = append(lineage, cur)
			parent, ok, err := s.kv.HGet(ctx, key, cur)
			if err != nil {
				return nil, rerr.Wrap(rerr.Op("contextstore.TaxonAncestors"), err)
			}
			if !ok || parent == "" || parent == TaxonomyRoot {
				break
			}
			cur = parent
		}
		// lineage was built tip->root; reverse to root->tip.
		for i, j := 0, len(lineage)-1; i < j; i, j = i+1, j-1 {
			lineage[i], lineage[j] = lineage[j], lineage[i]
		}
		if len(normalize) > 0 {
			lineage = normalizeLineage(lineage, normalize)
		}
		out[name] = lineage
	}
	return out, nil
}

// normalizeLineage pads a lineage out to exactly len(ranks) entries,
// placing a "<rank>__" placeholder wherever the observed lineage is
// shorter than the target rank list (mirroring the original's use of
// itertools.zip_longest against the standard rank ladder).
func normalizeLineage(lineage []string, ranks []string) []string {
	out := make([]string, len(ranks))
	for i, rank := range ranks {
		if i < len(lineage) {
			out[i] = lineage[i]
		} else {
			out[i] = fmt.Sprintf("%s__", rank)
		}
	}
	return out
}

// TaxonDescendents performs a breadth-first walk of taxon's children
// tree, returning every feature tip reachable below it (resolving the
// has-terminal sentinel to that node's directly-assigned tips), mirroring
// redbiom.fetch.taxon_descendents.
func (s *Store) TaxonDescendents(ctx context.Context, context_ string, taxon string) ([]string, error) {
	var tips []string
	queue := []string{taxon}
	visited := map[string]bool{}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if visited[node] {
			continue
		}
		visited[node] = true

		children, err := s.kv.SMembers(ctx, taxChildrenKey(context_, node))
		if err != nil {
			return nil, rerr.Wrap(rerr.Op("contextstore.TaxonDescendents"), err)
		}
		for _, child := range children {
			if child == HasTerminal {
				terminals, err := s.kv.SMembers(ctx, taxTerminalKey(context_, node))
				if err != nil {
					return nil, rerr.Wrap(rerr.Op("contextstore.TaxonDescendents"), err)
				}
				tips = append(tips, terminals...)
				continue
			}
			queue = append(queue, child)
		}
	}
	sort.Strings(tips)
	return tips, nil
}

var ErrUnknownContext = rerr.E(rerr.KindUnknownContext, "unknown context")
