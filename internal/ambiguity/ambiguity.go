// Package ambiguity implements the Ambiguity Resolver: reconciling a
// user-supplied sample_id (or "sample_id.tag" public_id) against the
// internal redbiom_id space, where more than one load of the same
// sample_id under different tags can exist. Grounded on
// redbiom.util.partition_samples_by_tags/has_sample_metadata and
// spec.md §4.5's resolution algorithm (the original's
// resolve_ambiguities was filtered out of the retrieved source, but its
// contract is fully specified there and in scenario #2 of the testable
// properties).
package ambiguity

import (
	"context"
	"sort"
	"strings"

	"github.com/nishad/redbiom/internal/model"
)

// PartitionByTag splits a list of redbiom_ids into four views, mirroring
// redbiom.util.partition_samples_by_tags:
//   - tagged: the full "<tag>_<sample_id>" redbiom_ids that do carry a tag
//   - taggedClean: the bare sample_id half of each tagged entry
//   - tags: the tag half of each tagged entry, same order as taggedClean
//   - untagged: ids with no underscore separator at all
func PartitionByTag(ids []string) (tagged, taggedClean, tags, untagged []string) {
	for _, id := range ids {
		rid := model.RedbiomID(id)
		tag, sample, ok := rid.Split()
		if !ok {
			untagged = append(untagged, id)
			continue
		}
		tagged = append(tagged, id)
		taggedClean = append(taggedClean, string(sample))
		tags = append(tags, string(tag))
	}
	return
}

// Resolution is the outcome of resolving a batch of caller-supplied ids
// against a context's represented redbiom_ids.
type Resolution struct {
	// Resolved maps each input id to the single redbiom_id it resolved
	// to.
	Resolved map[string]model.RedbiomID
	// Ambiguous lists, for each bare sample_id that matched more than one
	// redbiom_id without the caller disambiguating via ".tag", every
	// candidate redbiom_id it could mean.
	Ambiguous map[string][]model.RedbiomID
	// NotFound lists input ids matching no represented redbiom_id at all.
	NotFound []string
}

// RepresentedLister returns every redbiom_id currently represented for
// some scope (a context's sample axis, or the metadata store). Resolve
// is parameterized on this rather than a concrete store so it can
// reconcile against any id universe.
type RepresentedLister func(ctx context.Context) ([]string, error)

// Resolver reconciles caller-supplied ids against a represented-id
// universe it loads on demand.
type Resolver struct {
	list RepresentedLister
}

func New(list RepresentedLister) *Resolver {
	return &Resolver{list: list}
}

// Resolve maps each of ids (bare sample_ids, "sample_id.tag" public ids,
// or already-qualified redbiom_ids) to the redbiom_id it designates,
// following this precedence:
//  1. if id contains a literal '.', treat the suffix after the last '.'
//     as an explicit tag selector and look for "<tag>_<prefix>" among the
//     represented redbiom_ids; if that redbiom_id is not represented, id
//     goes on to rules 2 and 3 unchanged (a sample_id may itself contain
//     '.', e.g. "sample.A");
//  2. otherwise, if id itself is a represented redbiom_id, use it as-is
//     (it was already fully qualified, e.g. "UNTAGGED_s1" or a bare
//     untagged sample_id stored without a tag prefix);
//  3. otherwise, treat id as a bare sample_id and look it up against the
//     tagged-clean view of the represented set: exactly one match
//     resolves; more than one is ambiguous; zero is not-found.
func (r *Resolver) Resolve(ctx context.Context, ids []string) (Resolution, error) {
	represented, err := r.list(ctx)
	if err != nil {
		return Resolution{}, err
	}

	exact := make(map[string]bool, len(represented))
	for _, id := range represented {
		exact[id] = true
	}

	_, taggedClean, tags, _ := PartitionByTag(represented)
	bySample := make(map[string][]model.RedbiomID)
	for i, sample := range taggedClean {
		rid := model.Tagged(model.Tag(tags[i]), model.SampleID(sample))
		bySample[sample] = append(bySample[sample], rid)
	}
	// Untagged redbiom_ids resolve to themselves as their own "sample".
	for _, id := range represented {
		if _, _, ok := model.RedbiomID(id).Split(); !ok {
			bySample[id] = append(bySample[id], model.RedbiomID(id))
		}
	}

	res := Resolution{
		Resolved:  make(map[string]model.RedbiomID),
		Ambiguous: make(map[string][]model.RedbiomID),
	}

	for _, id := range ids {
		if dot := strings.LastIndex(id, "."); dot >= 0 {
			sample, tag := id[:dot], id[dot+1:]
			rid := model.Tagged(model.Tag(tag), model.SampleID(sample))
			if exact[string(rid)] {
				res.Resolved[id] = rid
				continue
			}
		}

		if exact[id] {
			res.Resolved[id] = model.RedbiomID(id)
			continue
		}

		candidates := bySample[id]
		switch len(candidates) {
		case 0:
			res.NotFound = append(res.NotFound, id)
		case 1:
			res.Resolved[id] = candidates[0]
		default:
			sorted := append([]model.RedbiomID(nil), candidates...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			res.Ambiguous[id] = sorted
		}
	}

	return res, nil
}

// PublicID derives the public-facing id for a redbiom_id given how many
// distinct tags that sample_id was loaded under: if only one load ever
// happened, the public id is the bare sample_id; once more than one tag
// exists for the same sample_id, it becomes "sample_id.tag".
func PublicID(rid model.RedbiomID, sampleTagCounts map[string]int) model.PublicID {
	tag, sample, ok := rid.Split()
	if !ok {
		return model.PublicID(rid)
	}
	if sampleTagCounts[string(sample)] <= 1 {
		return model.PublicID(sample)
	}
	return model.PublicID(string(sample) + "." + string(tag))
}
