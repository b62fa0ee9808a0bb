package sqltoken

// CollapseParens returns tokens with every balanced parenthesized group
// replaced by a single placeholder spanning the group, so that a backwards
// scan only sees the enclosing statement's own tokens. Groups are paired
// front to back with a stack: a close paren matches the latest unmatched
// open. Parens left without a partner stay as they are, while balanced
// groups before, inside or after them still collapse. With collapse false
// the tokens are returned as a copy.
func CollapseParens(tokens []Token, collapse bool) []Token {
	if !collapse {
		return append([]Token(nil), tokens...)
	}

	match := matchParens(tokens)
	out := make([]Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.Type == OpenParen && match[i] > i {
			out = append(out, placeholder(t, tokens[match[i]]))
			i = match[i]
			continue
		}
		out = append(out, t)
	}
	return out
}

// matchParens returns, for each token index, the index of its matching
// parenthesis or -1.
func matchParens(tokens []Token) []int {
	match := make([]int, len(tokens))
	var open []int
	for i, t := range tokens {
		match[i] = -1
		switch t.Type {
		case OpenParen:
			open = append(open, i)
		case CloseParen:
			if len(open) == 0 {
				continue
			}
			j := open[len(open)-1]
			open = open[:len(open)-1]
			match[i], match[j] = j, i
		}
	}
	return match
}

func placeholder(open, close Token) Token {
	return Token{
		Offset:    open.Offset,
		End:       close.End,
		Text:      "()",
		Lower:     "()",
		Type:      Delimiter,
		Line:      open.Line,
		Column:    open.Column,
		NestingID: open.NestingID,
		Collapsed: true,
	}
}

// NearestKeyword returns the closest keyword-class token that is not inside
// a balanced parenthesized group, or nil.
func NearestKeyword(tokens []Token) *Token {
	collapsed := CollapseParens(tokens, true)
	for i := len(collapsed) - 1; i >= 0; i-- {
		if collapsed[i].Type.IsKeyword() {
			t := collapsed[i]
			return &t
		}
	}
	return nil
}
