package query

import (
	"fmt"
	"strings"
	"unicode"

	"harshagw/suggester/internal/analysis"
)

// ParseSuggestion splits text typed so far into the constraining query and
// the predicate for the unfinished term at the end of the input.
//
// The constraint is whatever precedes the unfinished term, with dangling
// operators dropped and open groups closed; it is nil when nothing precedes
// it. Inside an unterminated phrase the words already typed become a phrase
// constraint slotted at the unfinished word, so `title:"quick brown fo`
// suggests terms that follow "quick brown" in title.
func ParseSuggestion(input, defaultField string, analyzer analysis.Analyzer) (Query, *SuggestQuery, error) {
	kind, start, closedAtEnd := scanOpen(input)

	switch kind {
	case openPhrase:
		return parsePhraseSuggestion(input, start, defaultField, analyzer)
	case openRange:
		return parseRangeSuggestion(input, start, defaultField)
	case openRegex:
		field, restEnd := fieldBefore(input, start)
		end := len(input)
		if closedAtEnd {
			end--
		}
		pattern := strings.ReplaceAll(input[start+1:end], `\/`, "/")
		if pattern == "" {
			return nil, nil, ErrEmptyPredicate
		}
		return withConstraint(input[:restEnd], &SuggestQuery{
			Field: orDefault(field, defaultField),
			Kind:  SuggestRegex,
			Value: pattern,
		})
	}

	return parseTermSuggestion(input, defaultField)
}

func parseTermSuggestion(input, defaultField string) (Query, *SuggestQuery, error) {
	if input == "" || isBreak(input[len(input)-1]) {
		return nil, nil, ErrEmptyPredicate
	}
	if last := input[len(input)-1]; last == '"' || last == ']' {
		return nil, nil, ErrEmptyPredicate
	}

	tokenStart := len(input)
	for tokenStart > 0 && !isBreak(input[tokenStart-1]) {
		tokenStart--
	}
	rest := input[:tokenStart]
	word := strings.TrimLeft(input[tokenStart:], "-+")

	field := ""
	if idx := strings.Index(word, ":"); idx > 0 {
		field, word = word[:idx], word[idx+1:]
	}
	if word == "" {
		return nil, nil, ErrEmptyPredicate
	}

	pred := &SuggestQuery{Field: orDefault(field, defaultField)}
	switch tok := classifyWord(word); tok.Type {
	case TokenFuzzy:
		term, fuzziness, err := ParseFuzzy(tok.Value)
		if err != nil {
			return nil, nil, err
		}
		pred.Kind, pred.Value, pred.Fuzziness = SuggestFuzzy, analysis.Normalize(term), fuzziness
	case TokenWildcard:
		pred.Kind, pred.Value = SuggestWildcard, analysis.Normalize(tok.Value)
	default:
		pred.Kind, pred.Value = SuggestPrefix, analysis.Normalize(tok.Value)
	}

	return withConstraint(rest, pred)
}

func parsePhraseSuggestion(input string, start int, defaultField string, analyzer analysis.Analyzer) (Query, *SuggestQuery, error) {
	field, restEnd := fieldBefore(input, start)
	field = orDefault(field, defaultField)
	body := strings.ReplaceAll(input[start+1:], `\"`, `"`)

	wordStart := strings.LastIndexFunc(body, unicode.IsSpace) + 1
	partial := body[wordStart:]
	typed := analysis.Terms(analyzer, body[:wordStart])

	// An empty partial word is only useful after typed phrase words: it asks
	// for any term that continues the phrase.
	if partial == "" && len(typed) == 0 {
		return nil, nil, ErrEmptyPredicate
	}

	pred := &SuggestQuery{Field: field, Kind: SuggestPrefix, Value: analysis.Normalize(partial)}

	constraint, err := parseConstraint(input[:restEnd])
	if err != nil {
		return nil, nil, err
	}
	if len(typed) == 0 {
		return constraint, pred, nil
	}

	slot := len(typed)
	phrase := &PhraseQuery{Field: field, Phrase: strings.Join(typed, " "), Slot: &slot}
	if constraint == nil {
		return phrase, pred, nil
	}
	return &BoolQuery{Must: []Query{constraint, phrase}}, pred, nil
}

func parseRangeSuggestion(input string, start int, defaultField string) (Query, *SuggestQuery, error) {
	field, restEnd := fieldBefore(input, start)
	parts := strings.Fields(input[start+1:])

	pred := &SuggestQuery{Field: orDefault(field, defaultField), Kind: SuggestRange}
	switch {
	case len(parts) == 0:
		return nil, nil, ErrEmptyPredicate
	case len(parts) == 1, len(parts) == 2 && parts[1] == "TO":
		pred.Value = openBound(parts[0])
	case len(parts) == 3 && parts[1] == "TO":
		pred.Value, pred.End = openBound(parts[0]), openBound(parts[2])
	default:
		return nil, nil, fmt.Errorf("invalid range %q: expected [start TO end]", input[start:])
	}
	pred.Value = analysis.Normalize(pred.Value)
	pred.End = analysis.Normalize(pred.End)

	return withConstraint(input[:restEnd], pred)
}

func withConstraint(rest string, pred *SuggestQuery) (Query, *SuggestQuery, error) {
	constraint, err := parseConstraint(rest)
	if err != nil {
		return nil, nil, err
	}
	return constraint, pred, nil
}

// parseConstraint parses the text preceding the unfinished term. Trailing
// operators and open parentheses are dropped and unclosed groups closed.
func parseConstraint(rest string) (Query, error) {
	tokens, err := Tokenize(rest)
	if err != nil {
		return nil, fmt.Errorf("constraint: %w", err)
	}
	tokens = tokens[:len(tokens)-1] // EOF

	for len(tokens) > 0 {
		switch tokens[len(tokens)-1].Type {
		case TokenAnd, TokenOr, TokenNot, TokenField, TokenLParen:
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	depth := 0
	for _, tok := range tokens {
		switch tok.Type {
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
		}
	}
	for ; depth > 0; depth-- {
		tokens = append(tokens, Token{Type: TokenRParen, Value: ")"})
	}
	tokens = append(tokens, Token{Type: TokenEOF})

	q, err := Parse(tokens)
	if err != nil {
		return nil, fmt.Errorf("constraint: %w", err)
	}
	return q, nil
}

type openKind int

const (
	openNone openKind = iota
	openPhrase
	openRegex
	openRange
)

// scanOpen finds the phrase, regex or range still open at the end of input.
// A regex closed by the very last character is reported too, with
// closedAtEnd set.
func scanOpen(input string) (kind openKind, start int, closedAtEnd bool) {
	state := openNone
	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch state {
		case openNone:
			switch {
			case ch == '"':
				state, start = openPhrase, i
			case ch == '/' && atTokenStart(input, i):
				state, start = openRegex, i
			case ch == '[' && atTokenStart(input, i):
				state, start = openRange, i
			}
		case openPhrase:
			if ch == '\\' && i+1 < len(input) && input[i+1] == '"' {
				i++
			} else if ch == '"' {
				state = openNone
			}
		case openRegex:
			if ch == '\\' && i+1 < len(input) && input[i+1] == '/' {
				i++
			} else if ch == '/' {
				state = openNone
				if i == len(input)-1 {
					return openRegex, start, true
				}
			}
		case openRange:
			if ch == ']' {
				state = openNone
			}
		}
	}
	if state == openNone {
		return openNone, 0, false
	}
	return state, start, false
}

func atTokenStart(input string, i int) bool {
	if i == 0 {
		return true
	}
	switch prev := input[i-1]; prev {
	case ':', '-', '+':
		return true
	default:
		return isBreak(prev)
	}
}

// fieldBefore reads a "field:" written directly before position idx.
// restEnd is where the constraint text ends; a leading sign on the clause is
// dropped with it.
func fieldBefore(input string, idx int) (field string, restEnd int) {
	if idx > 0 && input[idx-1] == ':' {
		j := idx - 1
		for j > 0 && !isBreak(input[j-1]) {
			j--
		}
		restEnd = j
		for j < idx-1 && (input[j] == '-' || input[j] == '+') {
			j++
		}
		return input[j : idx-1], restEnd
	}

	restEnd = idx
	for restEnd > 0 && (input[restEnd-1] == '-' || input[restEnd-1] == '+') {
		restEnd--
	}
	return "", restEnd
}

func isBreak(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '(' || ch == ')'
}

func orDefault(field, defaultField string) string {
	if field == "" {
		return defaultField
	}
	return field
}
