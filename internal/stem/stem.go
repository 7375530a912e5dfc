// Package stem implements the Stemmer+Tokenizer: the single normalization
// pipeline used on both the load and query paths so a value indexed at
// load time and a query term typed later collapse to the same token.
// Grounded on redbiom.search's
// functools.partial(redbiom.util.stems, stops, stemmer) pipeline, which
// pins nltk.PorterStemmer(MARTIN_EXTENSIONS) over the English stopword
// list from nltk.corpus.stopwords.
package stem

import (
	"regexp"
	"strings"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// wordPattern splits on runs of letters/digits, discarding punctuation —
// the tokenizer is intentionally naive (word-boundary splitting) rather
// than locale-aware, matching how the original feeds whitespace/punct-
// separated metadata cell values straight into the stemmer.
var wordPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// timeLikePattern matches a bare or am/pm-suffixed clock time (e.g.
// "10:30", "10:30pm"). It must be applied to the raw string before
// wordPattern splits on the ':' separator, since by the time Tokenize
// runs the time marker is already gone and "10:30pm" would otherwise
// tokenize as the two unrelated-looking words "10" and "30pm".
var timeLikePattern = regexp.MustCompile(`(?i)\d+:\d+(am|pm)?`)

// Tokenize splits s into lowercased word tokens, first stripping any
// time-like substrings so their digit/letter runs never become tokens.
func Tokenize(s string) []string {
	s = timeLikePattern.ReplaceAllString(s, " ")
	matches := wordPattern.FindAllString(s, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = strings.ToLower(m)
	}
	return out
}

// numericPattern matches a bare integer or decimal (with optional
// leading '-'), mirroring spec's `(^-?\d+\.\d+$)|(^-?\d+$)`. Tokenize
// already discards '-' and '.' as non-word runes, so in practice this
// only ever matches plain digit runs, but is kept as the documented
// rule rather than a narrower digit-only check.
var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Stems tokenizes s, drops stopwords, pure-numeric tokens, single
// characters, and tokens in the null-value set, and Porter-stems what
// remains. It is the single function both the loader (indexing metadata
// values/column names) and the query parser (stemming set-expression
// NAMEs) call, guaranteeing the two paths can never drift apart.
func Stems(s string) []string {
	tokens := Tokenize(s)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) <= 1 || stopwords[tok] || numericPattern.MatchString(tok) || DefaultNullables[tok] {
			continue
		}
		out = append(out, porterstemmer.StemString(tok))
	}
	return out
}

// DefaultNullables is the set of sentinel strings redbiom treats as
// missing metadata values, both when filtering a full metadata value at
// load time (internal/loader's indexable) and when dropping an
// individual stemmed token here.
var DefaultNullables = map[string]bool{
	"no_data": true, "missing:": true, "unknown": true, "not applicable": true,
	"na": true, "n/a": true, "none": true, "": true,
}

// stopwords is the nltk English stopword list, pinned identically to the
// set redbiom.search instantiates via nltk.corpus.stopwords.words('english').
var stopwords = buildStopwords()

func buildStopwords() map[string]bool {
	words := []string{
		"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you",
		"you're", "you've", "you'll", "you'd", "your", "yours", "yourself",
		"yourselves", "he", "him", "his", "himself", "she", "she's", "her",
		"hers", "herself", "it", "it's", "its", "itself", "they", "them",
		"their", "theirs", "themselves", "what", "which", "who", "whom",
		"this", "that", "that'll", "these", "those", "am", "is", "are",
		"was", "were", "be", "been", "being", "have", "has", "had",
		"having", "do", "does", "did", "doing", "a", "an", "the", "and",
		"but", "if", "or", "because", "as", "until", "while", "of", "at",
		"by", "for", "with", "about", "against", "between", "into",
		"through", "during", "before", "after", "above", "below", "to",
		"from", "up", "down", "in", "out", "on", "off", "over", "under",
		"again", "further", "then", "once", "here", "there", "when",
		"where", "why", "how", "all", "any", "both", "each", "few",
		"more", "most", "other", "some", "such", "no", "nor", "not",
		"only", "own", "same", "so", "than", "too", "very", "s", "t",
		"can", "will", "just", "don", "don't", "should", "should've",
		"now", "d", "ll", "m", "o", "re", "ve", "y", "ain", "aren",
		"aren't", "couldn", "couldn't", "didn", "didn't", "doesn",
		"doesn't", "hadn", "hadn't", "hasn", "hasn't", "haven", "haven't",
		"isn", "isn't", "ma", "mightn", "mightn't", "mustn", "mustn't",
		"needn", "needn't", "shan", "shan't", "shouldn", "shouldn't",
		"wasn", "wasn't", "weren", "weren't", "won", "won't", "wouldn",
		"wouldn't",
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}
