package query

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxFuzziness is the largest edit distance a fuzzy clause may ask for.
const MaxFuzziness = 2

// Parser parses tokens into a Query AST.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens, pos: 0}
}

// ParseString tokenizes and parses a query string.
func ParseString(input string) (Query, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse parses tokens into a Query AST. An empty token list matches all
// documents.
func Parse(tokens []Token) (Query, error) {
	parser := NewParser(tokens)
	return parser.Parse()
}

// Parse parses the tokens into a Query AST.
func (p *Parser) Parse() (Query, error) {
	if len(p.tokens) == 0 || (len(p.tokens) == 1 && p.tokens[0].Type == TokenEOF) {
		return &MatchAllQuery{}, nil
	}

	query, err := p.parseOrExpr()
	if err != nil {
		return nil, err
	}

	if p.current().Type != TokenEOF {
		return nil, fmt.Errorf("unexpected token at position %d: %s", p.pos, p.current())
	}

	return query, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	token := p.current()
	p.pos++
	return token
}

func (p *Parser) peek() Token {
	return p.current()
}

func (p *Parser) parseOrExpr() (Query, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}

	var orClauses []Query
	orClauses = append(orClauses, left)

	for p.peek().Type == TokenOr {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		orClauses = append(orClauses, right)
	}

	if len(orClauses) == 1 {
		return orClauses[0], nil
	}

	return &BoolQuery{Should: orClauses}, nil
}

func (p *Parser) parseAndExpr() (Query, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}

	var andClauses []Query
	andClauses = append(andClauses, left)

	for {
		if p.peek().Type == TokenAnd {
			p.advance()
			right, err := p.parseUnaryExpr()
			if err != nil {
				return nil, err
			}
			andClauses = append(andClauses, right)
			continue
		}

		next := p.peek()
		if startsClause(next.Type) {
			right, err := p.parseUnaryExpr()
			if err != nil {
				return nil, err
			}
			andClauses = append(andClauses, right)
			continue
		}

		break
	}

	if len(andClauses) == 1 {
		return andClauses[0], nil
	}

	return &BoolQuery{Must: andClauses}, nil
}

func (p *Parser) parseUnaryExpr() (Query, error) {
	if p.peek().Type == TokenNot {
		p.advance()
		expr, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &BoolQuery{MustNot: []Query{expr}}, nil
	}

	return p.parsePrimary()
}

func startsClause(t TokenType) bool {
	switch t {
	case TokenTerm, TokenPhrase, TokenField, TokenPrefix, TokenWildcard,
		TokenRegex, TokenFuzzy, TokenRange, TokenLParen, TokenNot:
		return true
	}
	return false
}

func (p *Parser) parsePrimary() (Query, error) {
	token := p.peek()

	switch token.Type {
	case TokenLParen:
		return p.parseGrouped()
	case TokenField:
		return p.parseFieldExpr()
	case TokenEOF:
		return nil, fmt.Errorf("unexpected end of query")
	}

	if q, ok, err := p.parseValue("", token); ok || err != nil {
		return q, err
	}
	return nil, fmt.Errorf("unexpected token: %s", token)
}

// parseValue builds the leaf clause for a value token. ok is false when the
// token cannot start a leaf.
func (p *Parser) parseValue(field string, token Token) (q Query, ok bool, err error) {
	switch token.Type {
	case TokenPhrase:
		q = &PhraseQuery{Field: field, Phrase: token.Value}
	case TokenPrefix:
		q = &PrefixQuery{Field: field, Prefix: token.Value}
	case TokenWildcard:
		q = &WildcardQuery{Field: field, Pattern: token.Value}
	case TokenRegex:
		q = &RegexQuery{Field: field, Pattern: token.Value}
	case TokenTerm:
		q = &TermQuery{Field: field, Term: token.Value}
	case TokenFuzzy:
		term, fuzziness, err := ParseFuzzy(token.Value)
		if err != nil {
			return nil, true, err
		}
		q = &FuzzyQuery{Field: field, Term: term, Fuzziness: fuzziness}
	case TokenRange:
		start, end, err := ParseRange(token.Value)
		if err != nil {
			return nil, true, err
		}
		q = &TermRangeQuery{Field: field, Start: start, End: end}
	default:
		return nil, false, nil
	}
	p.advance()
	return q, true, nil
}

func (p *Parser) parseGrouped() (Query, error) {
	p.advance()

	expr, err := p.parseOrExpr()
	if err != nil {
		return nil, err
	}

	if p.peek().Type != TokenRParen {
		return nil, fmt.Errorf("expected ')' at position %d, got %s", p.pos, p.peek())
	}
	p.advance()

	return expr, nil
}

func (p *Parser) parseFieldExpr() (Query, error) {
	fieldToken := p.advance()
	field := fieldToken.Value

	valueToken := p.peek()

	if q, ok, err := p.parseValue(field, valueToken); ok || err != nil {
		return q, err
	}

	switch valueToken.Type {
	case TokenEOF, TokenRParen, TokenAnd, TokenOr:
		return nil, fmt.Errorf("expected term after field '%s:'", field)
	default:
		return nil, fmt.Errorf("expected term after field '%s:', got %s", field, valueToken)
	}
}

// ParseFuzzy splits "term~N" into the term and its edit distance. A missing
// N means 1.
func ParseFuzzy(word string) (string, uint8, error) {
	idx := strings.LastIndex(word, "~")
	if idx < 0 {
		return word, 1, nil
	}
	term, dist := word[:idx], word[idx+1:]
	if term == "" {
		return "", 0, fmt.Errorf("fuzzy clause %q has no term", word)
	}
	if dist == "" {
		return term, 1, nil
	}

	n, err := strconv.ParseUint(dist, 10, 8)
	if err != nil {
		return "", 0, fmt.Errorf("invalid fuzziness in %q: %w", word, err)
	}
	if n > MaxFuzziness {
		return "", 0, fmt.Errorf("fuzziness %d in %q exceeds %d", n, word, MaxFuzziness)
	}
	return term, uint8(n), nil
}

// ParseRange splits the body of "[start TO end]". A "*" bound is open.
func ParseRange(body string) (string, string, error) {
	parts := strings.Fields(body)
	if len(parts) != 3 || parts[1] != "TO" {
		return "", "", fmt.Errorf("invalid range %q: expected [start TO end]", body)
	}
	return openBound(parts[0]), openBound(parts[2]), nil
}

func openBound(s string) string {
	if s == "*" {
		return ""
	}
	return s
}
