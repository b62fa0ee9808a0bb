package sqltoken

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nested(text string) []Token {
	return AssignNesting(tokenizeText(text, false))
}

func TestNestingID_Child(t *testing.T) {
	var root NestingID
	assert.Equal(t, NestingID("A"), root.child(0))
	assert.Equal(t, NestingID("Z"), root.child(25))
	assert.Equal(t, NestingID("bA"), root.child(26))
	assert.Equal(t, NestingID("baA"), root.child(26*26))

	id := root.child(27).child(3)
	assert.Equal(t, NestingID("bBD"), id)
	assert.Equal(t, 2, id.Depth())
	assert.Equal(t, NestingID("bB"), id.Parent())
	assert.Equal(t, NestingID(""), id.Parent().Parent())
	assert.True(t, id.Parent().Encloses(id))
	assert.False(t, root.child(1).Encloses(id))
}

func TestAssignNesting_Basic(t *testing.T) {
	tokens := nested("SELECT * FROM (SELECT 1) x")
	require.Len(t, tokens, 8)

	for i, want := range []NestingID{"", "", "", "", "A", "A", "", ""} {
		assert.Equal(t, want, tokens[i].NestingID, "token %d %q", i, tokens[i].Text)
	}
	assert.Equal(t, NestingID("A"), tokens[3].Group)
	assert.Equal(t, NestingID("A"), tokens[6].Group)
}

func TestAssignNesting_Siblings(t *testing.T) {
	tokens := nested("f(a) + g(b, h(c))")
	byText := map[string]NestingID{}
	for _, tok := range tokens {
		byText[tok.Text] = tok.NestingID
	}

	assert.Equal(t, NestingID("A"), byText["a"])
	assert.Equal(t, NestingID("B"), byText["b"])
	assert.Equal(t, NestingID("BA"), byText["c"])
	assert.NotEqual(t, byText["a"], byText["b"], "sibling groups at equal depth must differ")
}

func TestAssignNesting_ExplodesParenRuns(t *testing.T) {
	run := Token{Offset: 0, End: 3, Text: "(()", Lower: "(()", Type: Delimiter, Line: 1, Column: 1}
	tokens := AssignNesting([]Token{run})
	require.Len(t, tokens, 3)
	assert.Equal(t, OpenParen, tokens[0].Type)
	assert.Equal(t, OpenParen, tokens[1].Type)
	assert.Equal(t, CloseParen, tokens[2].Type)
	assert.Equal(t, 2, tokens[2].Offset)
	assert.Equal(t, NestingID("A"), tokens[2].NestingID)
}

func TestAssignNesting_UnmatchedClose(t *testing.T) {
	tokens := nested("a) b (c")
	require.Len(t, tokens, 5)
	assert.Equal(t, NestingID(""), tokens[1].NestingID)
	assert.Equal(t, NestingID(""), tokens[1].Group)
	assert.Equal(t, NestingID("A"), tokens[4].NestingID)
}

// For a balanced sequence every token inside a group carries an id that
// extends the group's id, and an id that is a strict prefix of a later one
// always has an unmatched open paren in between.
func TestAssignNesting_WellFormed(t *testing.T) {
	inputs := []string{
		"SELECT (a + (b * (c))) FROM (SELECT x FROM (VALUES (1), (2)) v) s",
		"INSERT INTO t (a, b, (nested, expr)) VALUES (1, 2, (3, 4))",
		"((((((((((((((((((((((((((((x))))))))))))))))))))))))))))",
	}
	for _, input := range inputs {
		tokens := nested(input)
		require.NoError(t, Validate(tokens))

		var stack []NestingID
		for _, tok := range tokens {
			// Both parens of a group belong to the enclosing level.
			if tok.Type == CloseParen {
				require.NotEmpty(t, stack)
				assert.Equal(t, stack[len(stack)-1], tok.Group)
				stack = stack[:len(stack)-1]
			}
			var want NestingID
			if len(stack) > 0 {
				want = stack[len(stack)-1]
			}
			assert.Equal(t, want, tok.NestingID, "%q in %q", tok.Text, input)
			assert.Equal(t, len(stack), tok.NestingID.Depth())
			if tok.Type == OpenParen {
				stack = append(stack, tok.Group)
			}
		}

		for i, a := range tokens {
			for j := i + 1; j < len(tokens); j++ {
				b := tokens[j]
				if a.NestingID == b.NestingID || !a.NestingID.Encloses(b.NestingID) {
					continue
				}
				opened := false
				for k := i; k < j; k++ {
					if tokens[k].Type == OpenParen && tokens[k].Group.Encloses(b.NestingID) && !tokens[k].Group.Encloses(a.NestingID) {
						opened = true
					}
				}
				assert.True(t, opened, "%v then %v without an open paren", a, b)
			}
		}
	}
}

func TestCollapseParens(t *testing.T) {
	tokens := nested("INSERT INTO t (a, b, (nested, expr)) VALUES")
	collapsed := CollapseParens(tokens, true)

	assert.Equal(t, []string{"INSERT", "INTO", "t", "()", "VALUES"}, texts(collapsed))
	group := collapsed[3]
	assert.True(t, group.Collapsed)
	assert.Equal(t, tokens[3].Offset, group.Offset)
	assert.Equal(t, tokens[len(tokens)-2].End, group.End)

	kw := NearestKeyword(tokens[:len(tokens)-1])
	require.NotNil(t, kw)
	assert.Equal(t, "INTO", kw.Text)
}

func TestCollapseParens_Unbalanced(t *testing.T) {
	tokens := nested("SELECT count(x), coalesce(a, (b)")
	collapsed := CollapseParens(tokens, true)
	assert.Equal(t, []string{"SELECT", "count", "()", ",", "coalesce", "(", "a", ",", "()"}, texts(collapsed))

	stray := nested("a) FROM (b)")
	assert.Equal(t, []string{"a", ")", "FROM", "()"}, texts(CollapseParens(stray, true)))

	open := nested("f((a), (b")
	assert.Equal(t, []string{"f", "(", "()", ",", "(", "b"}, texts(CollapseParens(open, true)))
}

func TestCollapseParens_NoCollapseCopies(t *testing.T) {
	tokens := nested("(a)")
	cp := CollapseParens(tokens, false)
	require.Equal(t, tokens, cp)
	cp[0].Text = "changed"
	assert.Equal(t, "(", tokens[0].Text)
}
