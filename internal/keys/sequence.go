package keys

import (
	"fmt"
	"strings"
)

// Policy decides what happens to tokens Parse does not recognize.
type Policy string

const (
	// PolicyLiteral types unrecognized tokens verbatim, with embedded spaces
	// sent as the Space key.
	PolicyLiteral Policy = "literal"
	// PolicyReject fails the whole sequence on the first unrecognized token.
	PolicyReject Policy = "reject"
)

// Sequence is an ordered list of key tokens. Order is significant.
type Sequence []Token

// ParseSequence parses raw tokens in order under the given policy.
func ParseSequence(raw []string, policy Policy) (Sequence, error) {
	seq := make(Sequence, 0, len(raw))
	for i, s := range raw {
		tok, err := Parse(s)
		if err != nil {
			if policy == PolicyLiteral && s != "" {
				seq = append(seq, literalTokens(s)...)
				continue
			}
			return nil, fmt.Errorf("keypress %d: %w", i, err)
		}
		seq = append(seq, tok)
	}
	return seq, nil
}

// literalTokens splits s at spaces so every space is sent as the Space key.
func literalTokens(s string) []Token {
	parts := strings.Split(s, " ")
	toks := make([]Token, 0, 2*len(parts)-1)
	for i, part := range parts {
		if i > 0 {
			toks = append(toks, Key(Space))
		}
		if part != "" {
			toks = append(toks, Literal(part))
		}
	}
	return toks
}

// String renders the sequence as a bracketed, quoted list.
func (s Sequence) String() string {
	parts := make([]string, 0, len(s))
	for _, t := range s {
		parts = append(parts, fmt.Sprintf("%q", t.String()))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyLiteral || p == PolicyReject
}
