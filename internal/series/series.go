// Package series implements the small labeled-vector algebra the
// Predicate Evaluator needs: value series keyed by sample id, lazy
// numeric coercion, and the inner/outer alignment rules redbiom's
// where_expr.py applies when combining comparisons. Grounded directly on
// where_expr.py's _left_and_right, _cast_retain_numeric, and BoolOp
// inner/outer join semantics (there ported from pandas.Series.align to
// plain Go maps, since no pack library models a labeled vector).
package series

import "strconv"

// Series is a string-valued vector keyed by sample id. A sample id
// absent from Values means "no value for this column on this sample",
// which is exactly how a category's per-sample hash in the Metadata
// Store represents missing data.
type Series struct {
	Values map[string]string
}

func New(values map[string]string) Series {
	return Series{Values: values}
}

// Numeric coerces every value to float64, dropping entries that do not
// parse — mirroring _cast_retain_numeric's
// `pd.to_numeric(errors='coerce')` followed by `dropna()`.
func (s Series) Numeric() NumericSeries {
	out := make(map[string]float64, len(s.Values))
	for k, v := range s.Values {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = f
		}
	}
	return NumericSeries{Values: out}
}

// NumericSeries is a float64-valued vector keyed by sample id.
type NumericSeries struct {
	Values map[string]float64
}

// BoolSeries is the result of a comparison or boolean combination: a
// sample id present in Values was "in scope" for the comparison that
// produced it; its bool says whether the predicate held.
type BoolSeries struct {
	Values map[string]bool
}

func NewBool(values map[string]bool) BoolSeries {
	return BoolSeries{Values: values}
}

// Samples returns every sample id the predicate holds true for.
func (b BoolSeries) Samples() []string {
	out := make([]string, 0, len(b.Values))
	for k, v := range b.Values {
		if v {
			out = append(out, k)
		}
	}
	return out
}

// CompareNumeric applies op elementwise between two numeric series,
// aligned inner (only sample ids present in both sides are compared),
// mirroring _left_and_right's Series/Series branch for ordering
// comparisons.
func CompareNumeric(op func(a, b float64) bool, left, right NumericSeries) BoolSeries {
	out := make(map[string]bool)
	for k, lv := range left.Values {
		if rv, ok := right.Values[k]; ok {
			out[k] = op(lv, rv)
		}
	}
	return BoolSeries{Values: out}
}

// CompareNumericScalar applies op between every entry in left and the
// scalar right, mirroring _left_and_right's Series/scalar broadcast.
func CompareNumericScalar(op func(a, b float64) bool, left NumericSeries, right float64) BoolSeries {
	out := make(map[string]bool, len(left.Values))
	for k, lv := range left.Values {
		out[k] = op(lv, right)
	}
	return BoolSeries{Values: out}
}

// CompareString applies op elementwise between two string series, aligned
// inner, used for Eq/NotEq/Is/IsNot comparisons that do not require
// numeric coercion.
func CompareString(op func(a, b string) bool, left, right Series) BoolSeries {
	out := make(map[string]bool)
	for k, lv := range left.Values {
		if rv, ok := right.Values[k]; ok {
			out[k] = op(lv, rv)
		}
	}
	return BoolSeries{Values: out}
}

// CompareStringScalar applies op between every entry in left and the
// scalar right.
func CompareStringScalar(op func(a, b string) bool, left Series, right string) BoolSeries {
	out := make(map[string]bool, len(left.Values))
	for k, lv := range left.Values {
		out[k] = op(lv, right)
	}
	return BoolSeries{Values: out}
}

// In reports, per sample, whether its value is a member of the given set.
func In(s Series, set map[string]bool) BoolSeries {
	out := make(map[string]bool, len(s.Values))
	for k, v := range s.Values {
		out[k] = set[v]
	}
	return BoolSeries{Values: out}
}

// And combines two boolean series with an inner join: only sample ids
// present on both sides survive, matching where_expr.BoolOp's And branch
// (pandas' default align behavior for `&`).
func And(a, b BoolSeries) BoolSeries {
	out := make(map[string]bool)
	for k, av := range a.Values {
		if bv, ok := b.Values[k]; ok {
			out[k] = av && bv
		}
	}
	return BoolSeries{Values: out}
}

// Or combines two boolean series with an outer join: every sample id
// present on either side survives, with the missing side treated as
// false, matching where_expr.BoolOp's Or branch.
func Or(a, b BoolSeries) BoolSeries {
	out := make(map[string]bool, len(a.Values)+len(b.Values))
	for k, av := range a.Values {
		out[k] = av
	}
	for k, bv := range b.Values {
		out[k] = out[k] || bv
	}
	return BoolSeries{Values: out}
}
