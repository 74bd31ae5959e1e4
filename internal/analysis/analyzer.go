package analysis

import (
	"strings"
	"unicode"
)

type TokenPosition struct {
	Token    string
	Position uint64
}

// Analyzer defines the interface for text analysis.
// The same analyzer must be used to index documents and to rewrite queries,
// otherwise query terms will not line up with the term dictionary.
type Analyzer interface {
	Analyze(text string) []TokenPosition
}

// Simple lowercases and splits on anything that is not a letter or digit.
// Positions are zero-based and increase by one per emitted token.
type Simple struct{}

func NewSimple() *Simple {
	return &Simple{}
}

// Analyze tokenizes text into tokens with positions.
func (a *Simple) Analyze(text string) []TokenPosition {
	var tokens []TokenPosition
	var current strings.Builder
	var position uint64

	emit := func() {
		if current.Len() == 0 {
			return
		}
		tokens = append(tokens, TokenPosition{Token: current.String(), Position: position})
		position++
		current.Reset()
	}

	for _, r := range strings.ToLower(text) {
		if isTokenRune(r) {
			current.WriteRune(r)
			continue
		}
		emit()
	}
	emit()

	return tokens
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Terms returns just the token strings of text, in order.
func Terms(a Analyzer, text string) []string {
	tokens := a.Analyze(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Token
	}
	return terms
}

// Normalize folds a partial term typed by a user the way Simple folds indexed
// text, without splitting it. Characters outside the token alphabet are kept
// so that wildcard and regex predicates survive.
func Normalize(term string) string {
	return strings.ToLower(term)
}
