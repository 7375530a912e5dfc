package fetcher

import "sort"

// SparseTable is a CSR-like samples-by-features count table: rows are
// samples, columns are features, in first-seen column order. No sparse
// matrix library in the pack models a samples-by-features count table
// directly (the closest, scipy.sparse, has no Go equivalent in the
// retrieved examples) so this is a small hand-rolled structure, built
// incrementally via Builder and queried by row.
type SparseTable struct {
	SampleIDs  []string
	FeatureIDs []string

	// RowPtr has len(SampleIDs)+1 entries; row i's entries live in
	// ColIndices[RowPtr[i]:RowPtr[i+1]] and the parallel Data slice.
	RowPtr     []int
	ColIndices []int
	Data       []float64
}

// Row returns sample i's (feature name -> count) entries.
func (t *SparseTable) Row(i int) map[string]float64 {
	if i < 0 || i+1 >= len(t.RowPtr) {
		return nil
	}
	out := make(map[string]float64, t.RowPtr[i+1]-t.RowPtr[i])
	for k := t.RowPtr[i]; k < t.RowPtr[i+1]; k++ {
		out[t.FeatureIDs[t.ColIndices[k]]] = t.Data[k]
	}
	return out
}

// Get looks up a single (sample, feature) cell.
func (t *SparseTable) Get(sampleID, featureID string) (float64, bool) {
	si := indexOf(t.SampleIDs, sampleID)
	if si < 0 {
		return 0, false
	}
	for k := t.RowPtr[si]; k < t.RowPtr[si+1]; k++ {
		if t.FeatureIDs[t.ColIndices[k]] == featureID {
			return t.Data[k], true
		}
	}
	return 0, false
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

// Builder accumulates rows in arrival order while interning feature names
// in first-seen order, then produces an immutable SparseTable.
type Builder struct {
	featureIdx map[string]int
	featureIDs []string
	sampleIDs  []string
	rowPtr     []int
	colIdx     []int
	data       []float64
}

func NewBuilder() *Builder {
	return &Builder{featureIdx: make(map[string]int), rowPtr: []int{0}}
}

// AddRow appends a sample row. Feature iteration order within the row is
// sorted for determinism; column assignment is still first-seen-overall.
func (b *Builder) AddRow(sampleID string, counts map[string]float64) {
	b.sampleIDs = append(b.sampleIDs, sampleID)

	features := make([]string, 0, len(counts))
	for f := range counts {
		features = append(features, f)
	}
	sort.Strings(features)

	for _, f := range features {
		v := counts[f]
		if v == 0 {
			continue
		}
		ci, ok := b.featureIdx[f]
		if !ok {
			ci = len(b.featureIDs)
			b.featureIdx[f] = ci
			b.featureIDs = append(b.featureIDs, f)
		}
		b.colIdx = append(b.colIdx, ci)
		b.data = append(b.data, v)
	}
	b.rowPtr = append(b.rowPtr, len(b.colIdx))
}

func (b *Builder) Build() *SparseTable {
	return &SparseTable{
		SampleIDs:  b.sampleIDs,
		FeatureIDs: b.featureIDs,
		RowPtr:     b.rowPtr,
		ColIndices: b.colIdx,
		Data:       b.data,
	}
}
