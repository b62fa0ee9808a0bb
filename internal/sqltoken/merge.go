package sqltoken

import "strings"

// mergeJSONPathOperators joins a '#' with an adjacent '>' or '>>' into the
// #> / #>> path operators.
func mergeJSONPathOperators(tokens []Token) []Token {
	out := tokens[:0]
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.Text == "#" && i+1 < len(tokens) {
			next := tokens[i+1]
			if next.Offset == t.End && (next.Text == ">" || next.Text == ">>") {
				t = join(t, next, Operator)
				i++
			}
		}
		out = append(out, t)
	}
	return out
}

// mergeQualifiedNames folds runs like schema.table or alias.column into a
// single identifier token. Only contiguous runs are joined.
func mergeQualifiedNames(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		for i+2 < len(tokens) {
			dot, right := tokens[i+1], tokens[i+2]
			if !isNamePart(t.Type) || dot.Text != "." || dot.Offset != t.End ||
				right.Offset != dot.End || !(isNamePart(right.Type) || right.Type == Keyword) {
				break
			}
			t = join(join(t, dot, Identifier), right, Identifier)
			i += 2
		}
		out = append(out, t)
	}
	return out
}

func isNamePart(t Type) bool {
	return t == Identifier || t == QuotedIdentifier || t == PredefinedFunction
}

func join(a, b Token, typ Type) Token {
	a.End = b.End
	a.Text += b.Text
	a.Lower = strings.ToLower(a.Text)
	a.Type = typ
	return a
}

func dropComments(tokens []Token) []Token {
	out := tokens[:0]
	for _, t := range tokens {
		if !t.Type.IsComment() {
			out = append(out, t)
		}
	}
	return out
}
