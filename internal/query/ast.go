package query

import (
	"fmt"
	"strings"
)

// Query is the closed set of query nodes. Every node reports whether
// evaluating it needs term positions.
type Query interface {
	queryNode()
	String() string

	// RequiresPositions is true when the query, or any boolean clause below
	// it, is a phrase.
	RequiresPositions() bool
}

// TermQuery searches for a single term.
type TermQuery struct {
	Field string
	Term  string
}

func (q *TermQuery) queryNode() {}

func (q *TermQuery) RequiresPositions() bool { return false }

func (q *TermQuery) String() string {
	if q.Field != "" {
		return fmt.Sprintf("term(%s:%s)", q.Field, q.Term)
	}
	return fmt.Sprintf("term(%s)", q.Term)
}

// PhraseQuery searches for consecutive terms. Terms is filled in by Rewrite
// from Phrase. Slot, when set, marks the phrase position of the term being
// completed: only that position of each match is phrase-valid.
type PhraseQuery struct {
	Field  string
	Phrase string
	Terms  []string
	Slot   *int
}

func (q *PhraseQuery) queryNode() {}

func (q *PhraseQuery) RequiresPositions() bool { return true }

func (q *PhraseQuery) String() string {
	slot := ""
	if q.Slot != nil {
		slot = fmt.Sprintf("@%d", *q.Slot)
	}
	if q.Field != "" {
		return fmt.Sprintf("phrase(%s:\"%s\"%s)", q.Field, q.Phrase, slot)
	}
	return fmt.Sprintf("phrase(\"%s\"%s)", q.Phrase, slot)
}

// PrefixQuery searches for terms starting with a prefix.
type PrefixQuery struct {
	Field  string
	Prefix string
}

func (q *PrefixQuery) queryNode() {}

func (q *PrefixQuery) RequiresPositions() bool { return false }

func (q *PrefixQuery) String() string {
	if q.Field != "" {
		return fmt.Sprintf("prefix(%s:%s*)", q.Field, q.Prefix)
	}
	return fmt.Sprintf("prefix(%s*)", q.Prefix)
}

// WildcardQuery searches for terms matching a pattern where * matches any
// run of characters and ? a single one.
type WildcardQuery struct {
	Field   string
	Pattern string
}

func (q *WildcardQuery) queryNode() {}

func (q *WildcardQuery) RequiresPositions() bool { return false }

func (q *WildcardQuery) String() string {
	if q.Field != "" {
		return fmt.Sprintf("wildcard(%s:%s)", q.Field, q.Pattern)
	}
	return fmt.Sprintf("wildcard(%s)", q.Pattern)
}

// RegexQuery searches for terms matching a regex pattern.
type RegexQuery struct {
	Field   string
	Pattern string
}

func (q *RegexQuery) queryNode() {}

func (q *RegexQuery) RequiresPositions() bool { return false }

func (q *RegexQuery) String() string {
	if q.Field != "" {
		return fmt.Sprintf("regex(%s:/%s/)", q.Field, q.Pattern)
	}
	return fmt.Sprintf("regex(/%s/)", q.Pattern)
}

// FuzzyQuery searches for terms within edit distance.
type FuzzyQuery struct {
	Field     string
	Term      string
	Fuzziness uint8
}

func (q *FuzzyQuery) queryNode() {}

func (q *FuzzyQuery) RequiresPositions() bool { return false }

func (q *FuzzyQuery) String() string {
	if q.Field != "" {
		return fmt.Sprintf("fuzzy(%s:%s~%d)", q.Field, q.Term, q.Fuzziness)
	}
	return fmt.Sprintf("fuzzy(%s~%d)", q.Term, q.Fuzziness)
}

// TermRangeQuery searches for terms in [Start, End). Empty bounds are open.
type TermRangeQuery struct {
	Field string
	Start string
	End   string
}

func (q *TermRangeQuery) queryNode() {}

func (q *TermRangeQuery) RequiresPositions() bool { return false }

func (q *TermRangeQuery) String() string {
	if q.Field != "" {
		return fmt.Sprintf("range(%s:[%s TO %s])", q.Field, q.Start, q.End)
	}
	return fmt.Sprintf("range([%s TO %s])", q.Start, q.End)
}

// BoolQuery combines multiple queries with boolean logic. When both Must and
// Should are present, a document must also match at least one Should clause.
type BoolQuery struct {
	Must    []Query
	Should  []Query
	MustNot []Query
}

func (q *BoolQuery) queryNode() {}

// RequiresPositions checks every clause, nested booleans included.
func (q *BoolQuery) RequiresPositions() bool {
	for _, clauses := range [][]Query{q.Must, q.Should, q.MustNot} {
		for _, c := range clauses {
			if c.RequiresPositions() {
				return true
			}
		}
	}
	return false
}

func (q *BoolQuery) String() string {
	var parts []string

	if len(q.Must) > 0 {
		parts = append(parts, fmt.Sprintf("AND(%s)", joinQueries(q.Must)))
	}
	if len(q.Should) > 0 {
		parts = append(parts, fmt.Sprintf("OR(%s)", joinQueries(q.Should)))
	}
	if len(q.MustNot) > 0 {
		parts = append(parts, fmt.Sprintf("NOT(%s)", joinQueries(q.MustNot)))
	}

	if len(parts) == 0 {
		return "bool(empty)"
	}

	return fmt.Sprintf("bool(%s)", strings.Join(parts, " "))
}

func joinQueries(queries []Query) string {
	strs := make([]string, len(queries))
	for i, q := range queries {
		strs[i] = q.String()
	}
	return strings.Join(strs, ", ")
}

// MatchAllQuery matches every live document.
type MatchAllQuery struct{}

func (q *MatchAllQuery) queryNode() {}

func (q *MatchAllQuery) RequiresPositions() bool { return false }

func (q *MatchAllQuery) String() string { return "all()" }

// MatchNoneQuery matches nothing. Rewrite produces it for clauses whose text
// analyzes to no tokens.
type MatchNoneQuery struct{}

func (q *MatchNoneQuery) queryNode() {}

func (q *MatchNoneQuery) RequiresPositions() bool { return false }

func (q *MatchNoneQuery) String() string { return "none()" }

// SuggestKind selects how a SuggestQuery picks dictionary terms.
type SuggestKind int

const (
	SuggestPrefix SuggestKind = iota
	SuggestWildcard
	SuggestRegex
	SuggestFuzzy
	SuggestRange
)

func (k SuggestKind) String() string {
	switch k {
	case SuggestPrefix:
		return "prefix"
	case SuggestWildcard:
		return "wildcard"
	case SuggestRegex:
		return "regex"
	case SuggestFuzzy:
		return "fuzzy"
	case SuggestRange:
		return "range"
	default:
		return "unknown"
	}
}

// SuggestQuery is the predicate selecting candidate completion terms from a
// field's dictionary. Value is the prefix, wildcard pattern, regex, fuzzy
// term or range start depending on Kind; End is the exclusive range end.
type SuggestQuery struct {
	Field     string
	Kind      SuggestKind
	Value     string
	End       string
	Fuzziness uint8
}

func (q *SuggestQuery) queryNode() {}

func (q *SuggestQuery) RequiresPositions() bool { return false }

func (q *SuggestQuery) String() string {
	var body string
	switch q.Kind {
	case SuggestFuzzy:
		body = fmt.Sprintf("%s~%d", q.Value, q.Fuzziness)
	case SuggestRange:
		body = fmt.Sprintf("[%s TO %s]", q.Value, q.End)
	case SuggestRegex:
		body = "/" + q.Value + "/"
	default:
		body = q.Value
	}
	return fmt.Sprintf("suggest(%s %s:%s)", q.Kind, q.Field, body)
}

// IsMatchAll reports whether q is absent or matches every document, in which
// case it places no constraint on suggestions.
func IsMatchAll(q Query) bool {
	if q == nil {
		return true
	}
	_, ok := q.(*MatchAllQuery)
	return ok
}
