package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/couchbase/vellum/levenshtein"
	"github.com/couchbase/vellum/regexp"

	"harshagw/suggester/internal/query"
	"harshagw/suggester/internal/segment"
)

// Selector resolves a multi-term query to its field and the dictionary
// selector that enumerates its terms.
func Selector(q query.Query) (string, segment.Selector, error) {
	switch v := q.(type) {
	case *query.PrefixQuery:
		return v.Field, segment.PrefixSelector(v.Prefix), nil
	case *query.WildcardQuery:
		sel, err := wildcardSelector(v.Pattern)
		return v.Field, sel, err
	case *query.RegexQuery:
		sel, err := regexSelector(v.Pattern)
		return v.Field, sel, err
	case *query.FuzzyQuery:
		sel, err := fuzzySelector(v.Term, v.Fuzziness)
		return v.Field, sel, err
	case *query.TermRangeQuery:
		return v.Field, segment.RangeSelector(v.Start, v.End), nil
	case *query.SuggestQuery:
		sel, err := suggestSelector(v)
		return v.Field, sel, err
	default:
		return "", segment.Selector{}, fmt.Errorf("%T does not select terms", q)
	}
}

func suggestSelector(q *query.SuggestQuery) (segment.Selector, error) {
	switch q.Kind {
	case query.SuggestPrefix:
		return segment.PrefixSelector(q.Value), nil
	case query.SuggestWildcard:
		return wildcardSelector(q.Value)
	case query.SuggestRegex:
		return regexSelector(q.Value)
	case query.SuggestFuzzy:
		return fuzzySelector(q.Value, q.Fuzziness)
	case query.SuggestRange:
		return segment.RangeSelector(q.Value, q.End), nil
	default:
		return segment.Selector{}, fmt.Errorf("unknown suggestion kind %d", q.Kind)
	}
}

// wildcardSelector compiles the pattern and bounds the enumeration by its
// literal prefix.
func wildcardSelector(pattern string) (segment.Selector, error) {
	aut, err := regexp.New(query.WildcardToRegex(pattern))
	if err != nil {
		return segment.Selector{}, fmt.Errorf("wildcard %q: %w", pattern, err)
	}

	sel := segment.AutomatonSelector(aut)
	if i := strings.IndexAny(pattern, "*?"); i > 0 {
		bounds := segment.PrefixSelector(pattern[:i])
		sel.Start, sel.End = bounds.Start, bounds.End
	}
	return sel, nil
}

func regexSelector(pattern string) (segment.Selector, error) {
	aut, err := regexp.New(pattern)
	if err != nil {
		return segment.Selector{}, fmt.Errorf("regex %q: %w", pattern, err)
	}
	return segment.AutomatonSelector(aut), nil
}

var (
	levMu       sync.Mutex
	levBuilders = map[uint8]*levenshtein.LevenshteinAutomatonBuilder{}
)

// levenshteinBuilder returns a shared builder for distance d. Building one is
// expensive, so each distance is built once.
func levenshteinBuilder(d uint8) (*levenshtein.LevenshteinAutomatonBuilder, error) {
	levMu.Lock()
	defer levMu.Unlock()

	if lb, ok := levBuilders[d]; ok {
		return lb, nil
	}
	lb, err := levenshtein.NewLevenshteinAutomatonBuilder(d, true)
	if err != nil {
		return nil, err
	}
	levBuilders[d] = lb
	return lb, nil
}

func fuzzySelector(term string, fuzziness uint8) (segment.Selector, error) {
	if fuzziness > query.MaxFuzziness {
		return segment.Selector{}, fmt.Errorf("fuzziness %d exceeds %d", fuzziness, query.MaxFuzziness)
	}
	if fuzziness == 0 {
		return segment.RangeSelector(term, term+"\x00"), nil
	}

	lb, err := levenshteinBuilder(fuzziness)
	if err != nil {
		return segment.Selector{}, fmt.Errorf("fuzzy %q: %w", term, err)
	}
	dfa, err := lb.BuildDfa(term, fuzziness)
	if err != nil {
		return segment.Selector{}, fmt.Errorf("fuzzy %q: %w", term, err)
	}
	return segment.AutomatonSelector(dfa), nil
}
