package stem

import "testing"

func TestTokenizeSplitsOnPunctuation(t *testing.T) {
	got := Tokenize("Homo sapiens; fecal-sample #1")
	want := []string{"homo", "sapiens", "fecal", "sample", "1"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStemsDropsStopwordsAndNumbers(t *testing.T) {
	got := Stems("the fecal samples of 12 subjects")
	for _, tok := range got {
		if tok == "the" || tok == "of" || tok == "12" {
			t.Fatalf("Stems retained a stopword/number: %v", got)
		}
	}
	if len(got) == 0 {
		t.Fatalf("expected some stems, got none")
	}
}

func TestStemsDropsSingleCharactersAndNullValues(t *testing.T) {
	if got := Stems("Unknown"); len(got) != 0 {
		t.Fatalf("Stems(%q) = %v, want none (null-value sentinel)", "Unknown", got)
	}
	if got := Stems("g"); len(got) != 0 {
		t.Fatalf("Stems(%q) = %v, want none (single character)", "g", got)
	}
}

func TestStemsDropsTimeLikeTokens(t *testing.T) {
	got := Stems("sample collected at 10:30pm sharp")
	for _, tok := range got {
		if tok == "30pm" || tok == "10" || tok == "30" {
			t.Fatalf("Stems retained a time-like fragment: %v", got)
		}
	}
}

func TestStemsIsDeterministicAcrossLoadAndQueryPaths(t *testing.T) {
	a := Stems("Fecal Samples")
	b := Stems("fecal sample")
	found := false
	for _, s := range a {
		for _, q := range b {
			if s == q {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected overlapping stems between %v and %v", a, b)
	}
}
