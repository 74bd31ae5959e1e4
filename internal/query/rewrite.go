package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchbase/vellum/regexp"

	"harshagw/suggester/internal/analysis"
)

var (
	// ErrNegativeOnly is returned for boolean queries with only NOT clauses.
	ErrNegativeOnly = errors.New("NOT queries require a positive clause")

	// ErrEmptyPredicate is returned when typed input has no term to complete.
	ErrEmptyPredicate = errors.New("nothing to suggest for")
)

// Rewrite normalizes a parsed query against the index: empty fields become
// defaultField, term and phrase text is analyzed, term patterns are validated
// and boolean structure is flattened. A nil query stays nil.
func Rewrite(q Query, analyzer analysis.Analyzer, defaultField string) (Query, error) {
	r := rewriter{analyzer: analyzer, defaultField: defaultField}
	if q == nil {
		return nil, nil
	}
	return r.rewrite(q)
}

type rewriter struct {
	analyzer     analysis.Analyzer
	defaultField string
}

func (r rewriter) field(f string) string {
	if f == "" {
		return r.defaultField
	}
	return f
}

func (r rewriter) rewrite(q Query) (Query, error) {
	switch v := q.(type) {
	case *TermQuery:
		return r.rewriteText(r.field(v.Field), v.Term, nil)
	case *PhraseQuery:
		return r.rewriteText(r.field(v.Field), v.Phrase, v.Slot)
	case *PrefixQuery:
		return &PrefixQuery{Field: r.field(v.Field), Prefix: analysis.Normalize(v.Prefix)}, nil
	case *WildcardQuery:
		pattern := analysis.Normalize(v.Pattern)
		if _, err := regexp.New(WildcardToRegex(pattern)); err != nil {
			return nil, fmt.Errorf("wildcard %q: %w", v.Pattern, err)
		}
		return &WildcardQuery{Field: r.field(v.Field), Pattern: pattern}, nil
	case *RegexQuery:
		if _, err := regexp.New(v.Pattern); err != nil {
			return nil, fmt.Errorf("regex %q: %w", v.Pattern, err)
		}
		return &RegexQuery{Field: r.field(v.Field), Pattern: v.Pattern}, nil
	case *FuzzyQuery:
		if v.Fuzziness > MaxFuzziness {
			return nil, fmt.Errorf("fuzziness %d exceeds %d", v.Fuzziness, MaxFuzziness)
		}
		return &FuzzyQuery{Field: r.field(v.Field), Term: analysis.Normalize(v.Term), Fuzziness: v.Fuzziness}, nil
	case *TermRangeQuery:
		return &TermRangeQuery{
			Field: r.field(v.Field),
			Start: analysis.Normalize(v.Start),
			End:   analysis.Normalize(v.End),
		}, nil
	case *SuggestQuery:
		cp := *v
		cp.Field = r.field(v.Field)
		return &cp, nil
	case *BoolQuery:
		return r.rewriteBool(v)
	case *MatchAllQuery, *MatchNoneQuery:
		return q, nil
	default:
		return nil, fmt.Errorf("unknown query type: %T", q)
	}
}

// rewriteText analyzes term or phrase text. No tokens match nothing; one
// token without a slot is a term; anything else is a phrase.
func (r rewriter) rewriteText(field, text string, slot *int) (Query, error) {
	terms := analysis.Terms(r.analyzer, text)

	if slot != nil && (*slot < 0 || *slot > len(terms)) {
		return nil, fmt.Errorf("phrase slot %d out of range for %d terms", *slot, len(terms))
	}

	switch {
	case len(terms) == 0:
		return &MatchNoneQuery{}, nil
	case len(terms) == 1 && slot == nil:
		return &TermQuery{Field: field, Term: terms[0]}, nil
	default:
		return &PhraseQuery{Field: field, Phrase: strings.Join(terms, " "), Terms: terms, Slot: slot}, nil
	}
}

func (r rewriter) rewriteBool(q *BoolQuery) (Query, error) {
	var must, should, mustNot []Query
	matchAll := false

	addNot := func(clauses []Query) error {
		for _, c := range clauses {
			rc, err := r.rewrite(c)
			if err != nil {
				return err
			}
			if _, ok := rc.(*MatchNoneQuery); !ok {
				mustNot = append(mustNot, rc)
			}
		}
		return nil
	}

	if err := addNot(q.MustNot); err != nil {
		return nil, err
	}

	for _, c := range q.Must {
		// "a AND NOT b" parses as Must: [a, Bool{MustNot: [b]}]. Hoist the
		// negation into this query.
		if neg, ok := negativeOnly(c); ok {
			if err := addNot(neg); err != nil {
				return nil, err
			}
			continue
		}
		rc, err := r.rewrite(c)
		if err != nil {
			return nil, err
		}
		switch rc.(type) {
		case *MatchNoneQuery:
			return &MatchNoneQuery{}, nil
		case *MatchAllQuery:
			matchAll = true
			continue
		}
		must = append(must, rc)
	}

	for _, c := range q.Should {
		if neg, ok := negativeOnly(c); ok {
			if err := addNot(neg); err != nil {
				return nil, err
			}
			continue
		}
		rc, err := r.rewrite(c)
		if err != nil {
			return nil, err
		}
		if _, ok := rc.(*MatchNoneQuery); ok {
			continue
		}
		should = append(should, rc)
	}

	if len(must) == 0 && matchAll {
		must = append(must, &MatchAllQuery{})
	}

	switch {
	case len(must) == 0 && len(should) == 0 && len(mustNot) > 0:
		return nil, ErrNegativeOnly
	case len(must) == 0 && len(should) == 0:
		if len(q.Should) > 0 {
			return &MatchNoneQuery{}, nil
		}
		return &MatchAllQuery{}, nil
	case len(mustNot) == 0 && len(must)+len(should) == 1:
		if len(must) == 1 {
			return must[0], nil
		}
		return should[0], nil
	}

	return &BoolQuery{Must: must, Should: should, MustNot: mustNot}, nil
}

// negativeOnly unwraps a boolean made only of NOT clauses.
func negativeOnly(q Query) ([]Query, bool) {
	bq, ok := q.(*BoolQuery)
	if !ok || len(bq.Must) > 0 || len(bq.Should) > 0 || len(bq.MustNot) == 0 {
		return nil, false
	}
	return bq.MustNot, true
}

// WildcardToRegex converts a wildcard pattern into an anchored-by-default
// vellum regex: "*" matches any run, "?" one character, the rest literally.
func WildcardToRegex(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexpQuote(r))
		}
	}
	return sb.String()
}

func regexpQuote(r rune) string {
	if strings.ContainsRune(`\.+()|[]{}^$`, r) {
		return `\` + string(r)
	}
	return string(r)
}
