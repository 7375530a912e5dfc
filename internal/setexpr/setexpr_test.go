package setexpr

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
)

func fixedResolver(sets map[string][]uint32) Resolver {
	return ResolverFunc(func(ctx context.Context, term string) (*roaring.Bitmap, error) {
		bm := roaring.New()
		for _, v := range sets[term] {
			bm.Add(v)
		}
		return bm, nil
	})
}

func TestEvalAnd(t *testing.T) {
	r := fixedResolver(map[string][]uint32{
		"fecal": {1, 2, 3},
		"human": {2, 3, 4},
	})
	bm, err := Eval(context.Background(), "fecal & human", r)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if bm.GetCardinality() != 2 || !bm.Contains(2) || !bm.Contains(3) {
		t.Fatalf("unexpected result: %v", bm.ToArray())
	}
}

func TestEvalOrAndSubPrecedence(t *testing.T) {
	r := fixedResolver(map[string][]uint32{
		"a": {1, 2},
		"b": {2, 3},
		"c": {3},
	})
	// '-' binds tighter than '|': a | b - c == a | (b - c) == {1,2} | {2} == {1,2}
	bm, err := Eval(context.Background(), "a | b - c", r)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if bm.GetCardinality() != 2 || !bm.Contains(1) || !bm.Contains(2) {
		t.Fatalf("unexpected result: %v", bm.ToArray())
	}
}

func TestEvalParenOverridesPrecedence(t *testing.T) {
	r := fixedResolver(map[string][]uint32{
		"a": {1, 2},
		"b": {2, 3},
		"c": {3},
	})
	// (a | b) - c == {1,2,3} - {3} == {1,2}
	bm, err := Eval(context.Background(), "(a | b) - c", r)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if bm.GetCardinality() != 2 {
		t.Fatalf("unexpected result: %v", bm.ToArray())
	}
}

func TestEvalRejectsUnsupportedCharacters(t *testing.T) {
	r := fixedResolver(nil)
	if _, err := Eval(context.Background(), "a + b", r); err == nil {
		t.Fatalf("expected error for unsupported operator")
	}
}

func TestEvalEmptyExpression(t *testing.T) {
	r := fixedResolver(nil)
	if _, err := Eval(context.Background(), "   ", r); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}
