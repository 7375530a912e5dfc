// Package query implements the orchestration layer that ties the
// Set-Expression Evaluator and Predicate Evaluator together into the
// single "metadata full search" operation: split a raw query into its
// set-expression and where-clause halves, evaluate each, and combine
// them. Grounded on redbiom.search's query_plan/metadata_full.
package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/nishad/redbiom/internal/metadatastore"
	"github.com/nishad/redbiom/internal/rerr"
	"github.com/nishad/redbiom/internal/series"
	"github.com/nishad/redbiom/internal/setexpr"
	"github.com/nishad/redbiom/internal/whereexpr"
)

// resultCacheTTL bounds how long a MetadataFull result is reused. Loads
// do not clear the cache, so a repeated query within this window after a
// load can return the result computed before it.
const resultCacheTTL = 30 * time.Second

// Plan splits raw on its first literal "where" token, mirroring
// redbiom.search.query_plan. Both halves must be non-blank; wherePart is
// empty if raw carried no where-clause at all.
func Plan(raw string) (setPart, wherePart string, err error) {
	fields := strings.Fields(raw)
	whereIdx := -1
	for i, f := range fields {
		if strings.EqualFold(f, "where") {
			whereIdx = i
			break
		}
	}
	if whereIdx < 0 {
		setPart = strings.TrimSpace(raw)
		if setPart == "" {
			return "", "", rerr.E(rerr.KindEmptyQuery, "no query")
		}
		return setPart, "", nil
	}
	setPart = strings.TrimSpace(strings.Join(fields[:whereIdx], " "))
	wherePart = strings.TrimSpace(strings.Join(fields[whereIdx+1:], " "))
	if setPart == "" || wherePart == "" {
		return "", "", rerr.E(rerr.KindEmptyQuery, "no query")
	}
	return setPart, wherePart, nil
}

// ErrWhereNotAllowedWithCategories mirrors metadata_full's
// `ValueError("where clauses not allowed with a category search")`.
var ErrWhereNotAllowedWithCategories = rerr.E(rerr.KindWhereNotAllowedWithCategories, "where clauses not allowed with a category search")

// interner maps arbitrary strings to dense uint32 ids for the duration
// of a single query evaluation, letting the Set-Expression Evaluator's
// roaring-bitmap algebra run over category names or sample ids
// interchangeably without the Index Manager's persistent id space.
type interner struct {
	toID   map[string]uint32
	toName []string
}

func newInterner() *interner {
	return &interner{toID: make(map[string]uint32)}
}

func (in *interner) id(name string) uint32 {
	if id, ok := in.toID[name]; ok {
		return id
	}
	id := uint32(len(in.toName))
	in.toID[name] = id
	in.toName = append(in.toName, name)
	return id
}

func (in *interner) bitmapOf(names []string) *roaring.Bitmap {
	bm := roaring.New()
	for _, n := range names {
		bm.Add(in.id(n))
	}
	return bm
}

func (in *interner) namesOf(bm *roaring.Bitmap) []string {
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		id := it.Next()
		if int(id) < len(in.toName) {
			out = append(out, in.toName[id])
		}
	}
	sort.Strings(out)
	return out
}

// Engine wires the Metadata Store into the set/where evaluators.
type Engine struct {
	meta  *metadatastore.Store
	cache *Cache
}

func NewEngine(meta *metadatastore.Store) *Engine {
	return &Engine{meta: meta, cache: NewCache(256, resultCacheTTL)}
}

// cacheKey distinguishes a category search from a value search over the
// same raw query text, since they resolve against different stem
// indices and can return different result sets.
func cacheKey(raw string, categories bool) string {
	if categories {
		return "categories:" + raw
	}
	return "values:" + raw
}

// MetadataFull evaluates a full metadata-search query: a set-expression
// over stemmed free-text (or, if categories is true, over stemmed
// category names), optionally narrowed by a where-clause. Mirrors
// redbiom.search.metadata_full. Results are cached briefly, since a
// caller iterating several related queries (e.g. the CLI's
// select-samples-from-metadata re-deriving a query a script already
// ran) commonly repeats the exact same raw text.
func (e *Engine) MetadataFull(ctx context.Context, raw string, categories bool) ([]string, error) {
	key := cacheKey(raw, categories)
	if cached := e.cache.Get(key); cached != nil {
		return cached.([]string), nil
	}

	names, err := e.metadataFull(ctx, raw, categories)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, names)
	return names, nil
}

func (e *Engine) metadataFull(ctx context.Context, raw string, categories bool) ([]string, error) {
	setPart, wherePart, err := Plan(raw)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("query.MetadataFull"), err)
	}
	if categories && wherePart != "" {
		return nil, rerr.Wrap(rerr.Op("query.MetadataFull"), ErrWhereNotAllowedWithCategories)
	}

	in := newInterner()
	var resolver setexpr.ResolverFunc
	if categories {
		resolver = func(ctx context.Context, term string) (*roaring.Bitmap, error) {
			cols, err := e.meta.ColumnsForStem(ctx, term)
			if err != nil {
				return nil, err
			}
			return in.bitmapOf(cols), nil
		}
	} else {
		resolver = func(ctx context.Context, term string) (*roaring.Bitmap, error) {
			samples, err := e.meta.SamplesForStem(ctx, term)
			if err != nil {
				return nil, err
			}
			return in.bitmapOf(samples), nil
		}
	}

	bm, err := setexpr.Eval(ctx, setPart, resolver)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("query.MetadataFull"), err)
	}
	names := in.namesOf(bm)

	if categories || wherePart == "" {
		return names, nil
	}

	getter := whereexpr.GetterFunc(func(ctx context.Context, column string) (series.Series, error) {
		values, err := e.meta.ColumnValues(ctx, column)
		if err != nil {
			return series.Series{}, err
		}
		return series.New(values), nil
	})

	result, err := whereexpr.Eval(ctx, wherePart, names, getter)
	if err != nil {
		return nil, rerr.Wrap(rerr.Op("query.MetadataFull"), err)
	}
	matched := result.Samples()
	sort.Strings(matched)
	return matched, nil
}
