package whereexpr

import (
	"context"
	"testing"

	"github.com/nishad/redbiom/internal/series"
)

func fixedGetter(cols map[string]map[string]string) Getter {
	return GetterFunc(func(ctx context.Context, column string) (series.Series, error) {
		return series.New(cols[column]), nil
	})
}

var universe = []string{"s1", "s2", "s3", "s4"}

func TestNumericOrdering(t *testing.T) {
	g := fixedGetter(map[string]map[string]string{
		"ph": {"s1": "6.5", "s2": "7.8", "s3": "5.0"},
	})
	got, err := Eval(context.Background(), "ph > 6", universe, g)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got.Values["s1"] || !got.Values["s2"] || got.Values["s3"] {
		t.Fatalf("unexpected result: %v", got.Values)
	}
	if _, ok := got.Values["s4"]; ok {
		t.Fatalf("s4 has no ph value and should be absent from the result")
	}
}

func TestStringEquality(t *testing.T) {
	g := fixedGetter(map[string]map[string]string{
		"host": {"s1": "human", "s2": "mouse"},
	})
	got, err := Eval(context.Background(), "host == 'human'", universe, g)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got.Values["s1"] || got.Values["s2"] {
		t.Fatalf("unexpected result: %v", got.Values)
	}
}

func TestIsNoneChecksPresence(t *testing.T) {
	g := fixedGetter(map[string]map[string]string{
		"ph": {"s1": "6.5"},
	})
	got, err := Eval(context.Background(), "ph is None", universe, g)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got.Values["s1"] {
		t.Fatalf("s1 has a value and should not satisfy 'is None'")
	}
	if !got.Values["s2"] || !got.Values["s3"] || !got.Values["s4"] {
		t.Fatalf("samples without a ph value should satisfy 'is None': %v", got.Values)
	}
}

func TestInTuple(t *testing.T) {
	g := fixedGetter(map[string]map[string]string{
		"host": {"s1": "human", "s2": "mouse", "s3": "rat"},
	})
	got, err := Eval(context.Background(), "host in ('human', 'rat')", universe, g)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got.Values["s1"] || got.Values["s2"] || !got.Values["s3"] {
		t.Fatalf("unexpected result: %v", got.Values)
	}
}

func TestAndIsInnerJoinAcrossColumns(t *testing.T) {
	g := fixedGetter(map[string]map[string]string{
		"ph":   {"s1": "6.5", "s2": "7.0"},
		"host": {"s1": "human", "s3": "mouse"},
	})
	got, err := Eval(context.Background(), "ph > 6 and host == 'human'", universe, g)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got.Values["s1"] {
		t.Fatalf("s1 satisfies both clauses, want true: %v", got.Values)
	}
	if len(got.Samples()) != 1 {
		t.Fatalf("expected exactly one sample to satisfy both predicates, got %v", got.Samples())
	}
}

func TestParenthesesGrouping(t *testing.T) {
	g := fixedGetter(map[string]map[string]string{
		"host": {"s1": "human", "s2": "mouse", "s3": "rat"},
		"ph":   {"s1": "7.0", "s2": "7.0", "s3": "7.0"},
	})
	got, err := Eval(context.Background(), "ph > 6 and (host == 'mouse' or host == 'rat')", universe, g)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got.Values["s1"] {
		t.Fatalf("s1 is human and should be excluded")
	}
	if !got.Values["s2"] || !got.Values["s3"] {
		t.Fatalf("s2/s3 should both satisfy the predicate: %v", got.Values)
	}
}

func TestChainedComparisonOnParenthesizedOperand(t *testing.T) {
	g := fixedGetter(map[string]map[string]string{
		"age": {"A": "3", "B": "20", "C": "10", "D": "5"},
		"sex": {"A": "female", "B": "female", "C": "unknown", "D": "male"},
	})
	samples := []string{"A", "B", "C", "D"}
	got, err := Eval(context.Background(), "(age <= 10) != 8 and sex is not 'female'", samples, g)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	want := map[string]bool{"A": false, "B": false, "C": true, "D": true}
	for id, w := range want {
		if got.Values[id] != w {
			t.Fatalf("sample %s: got %v, want %v (%v)", id, got.Values[id], w, got.Values)
		}
	}
	matched := got.Samples()
	if len(matched) != 2 {
		t.Fatalf("expected exactly {C,D}, got %v", matched)
	}
}

func TestRejectsUnsupportedOperator(t *testing.T) {
	g := fixedGetter(nil)
	if _, err := Eval(context.Background(), "host ~= 'x'", universe, g); err == nil {
		t.Fatalf("expected error for unsupported operator")
	}
}
