package sqltoken

import "strings"

// BlankComments replaces every comment span in lines with spaces, keeping
// each line's length, and reports which lines contained a comment. Text
// inside a blanked comment can never produce a token afterwards.
func BlankComments(lines []string, eol string) ([]string, []bool) {
	out := append([]string(nil), lines...)
	hasComment := make([]bool, len(lines))

	res := Tokenize(lines, Options{EOL: eol, Cursor: NoCursor, IncludeComments: true})
	// open is the line of a block comment left unclosed at its end, so that
	// empty lines inside it (which yield no token) still count as comment.
	open := 0
	markOpen := func(to int) {
		for l := open + 1; open > 0 && l < to; l++ {
			hasComment[l-1] = true
		}
		open = 0
	}
	for _, t := range res.Tokens {
		if !t.Type.IsComment() {
			continue
		}
		markOpen(t.Line)
		idx := t.Line - 1
		line := out[idx]
		start := t.Column - 1
		end := start + (t.End - t.Offset)
		out[idx] = line[:start] + strings.Repeat(" ", end-start) + line[end:]
		hasComment[idx] = true
		if t.Type == QuotedComment && end == len(line) && !strings.HasSuffix(t.Text, "*/") {
			open = t.Line
		}
	}
	markOpen(len(lines) + 1)
	return out, hasComment
}
