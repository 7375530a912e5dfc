package app

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/nishad/redbiom/internal/model"
)

// AxisSearch resolves each of ids to an index under axis, reads its
// postings on the opposite axis, and combines them (union, or
// intersection when exact is set), returning the opposite axis's names.
// Mirrors original_source's commands/search.py `_axis_search`. Shared
// by internal/cli's search-features/search-samples commands and
// internal/api's equivalent endpoints.
func AxisSearch(ctx context.Context, a *App, context_ string, ids []string, axis model.Axis, exact bool) ([]string, error) {
	opposite := model.AxisSample
	if axis == model.AxisSample {
		opposite = model.AxisFeature
	}

	var combined *roaring.Bitmap
	for _, id := range ids {
		idx, ok, err := a.Index.Resolve(ctx, context_, axis, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		postings, err := a.Contexts.Postings(ctx, context_, axis, idx)
		if err != nil {
			return nil, err
		}
		if combined == nil {
			combined = postings
			continue
		}
		if exact {
			combined = roaring.And(combined, postings)
		} else {
			combined = roaring.Or(combined, postings)
		}
	}
	if combined == nil {
		return nil, nil
	}

	names := make([]string, 0, combined.GetCardinality())
	it := combined.Iterator()
	for it.HasNext() {
		name, ok, err := a.Index.Name(ctx, context_, opposite, it.Next())
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, name)
		}
	}
	return names, nil
}
