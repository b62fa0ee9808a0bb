package sqltoken

import "strings"

// NestingID identifies the parenthesis group a token sits in. It is a path:
// one code word per enclosing group, each naming the group's position among
// its siblings. Code words are prefix-free (lower-case continuation digits
// closed by one upper-case digit), so a string prefix always ends on a group
// boundary and "A is a prefix of B" means "A's group encloses B's".
// The empty id is the top level.
type NestingID string

// Depth returns the number of enclosing groups.
func (id NestingID) Depth() int {
	n := 0
	for i := 0; i < len(id); i++ {
		if isTerminalDigit(id[i]) {
			n++
		}
	}
	return n
}

// Parent returns the id of the enclosing group, or "" at the top level.
func (id NestingID) Parent() NestingID {
	if id == "" {
		return ""
	}
	// Drop the last terminal digit and its continuation digits.
	i := len(id) - 1
	for i > 0 && !isTerminalDigit(id[i-1]) {
		i--
	}
	return id[:i]
}

// Encloses reports whether other lies in the group named by id or below it.
func (id NestingID) Encloses(other NestingID) bool {
	return strings.HasPrefix(string(other), string(id))
}

// child returns the id of the n-th (0-based) child group of id.
func (id NestingID) child(n int) NestingID {
	var digits []byte
	digits = append(digits, byte('A'+n%26))
	for n /= 26; n > 0; n /= 26 {
		digits = append(digits, byte('a'+n%26))
	}
	// Digits were produced least significant first.
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return id + NestingID(digits)
}

func isTerminalDigit(c byte) bool { return c >= 'A' && c <= 'Z' }

// AssignNesting stamps NestingID on every token and Group on parenthesis
// tokens. Runs of parentheses lexed as a single token are split first. An
// open paren takes the id of its surroundings and then opens the group; a
// close paren closes the group first and then takes the outer id, so both
// delimiters of a group share the same NestingID.
func AssignNesting(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, explodeParens(t)...)
	}

	var path NestingID
	// children[d] counts the groups opened so far under the group at depth d.
	children := []int{0}
	var groups []NestingID

	for i := range out {
		t := &out[i]
		switch t.Type {
		case OpenParen:
			t.NestingID = path
			d := len(children) - 1
			group := path.child(children[d])
			children[d]++
			children = append(children, 0)
			groups = append(groups, group)
			path = group
			t.Group = group
		case CloseParen:
			if len(groups) > 0 {
				t.Group = groups[len(groups)-1]
				groups = groups[:len(groups)-1]
				children = children[:len(children)-1]
				path = path.Parent()
			}
			t.NestingID = path
		default:
			t.NestingID = path
		}
	}
	return out
}

func explodeParens(t Token) []Token {
	if len(t.Text) < 2 || strings.Trim(t.Text, "()") != "" {
		return []Token{t}
	}
	parts := make([]Token, 0, len(t.Text))
	for i := 0; i < len(t.Text); i++ {
		p := t
		p.Offset = t.Offset + i
		p.End = p.Offset + 1
		p.Column = t.Column + i
		p.Text = t.Text[i : i+1]
		p.Lower = p.Text
		p.Type = OpenParen
		if p.Text == ")" {
			p.Type = CloseParen
		}
		parts = append(parts, p)
	}
	return parts
}
