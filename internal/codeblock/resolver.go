// Package codeblock finds the statement under the cursor in a multi-statement
// SQL script and exposes cursor-relative token views for completion.
package codeblock

import (
	"strings"

	"github.com/woxQAQ/sqlcursor/internal/sqltoken"
	"github.com/woxQAQ/sqlcursor/pkg/protocol"
)

// DefaultParenBlankLineTolerance is how many blank lines an unbalanced
// parenthesis may reach across when the resolver looks for its partner.
const DefaultParenBlankLineTolerance = 1

// maxResolveDepth bounds smallest-block re-resolution.
const maxResolveDepth = 2

// Options controls Resolve.
type Options struct {
	// Bounds restricts the block to an offset range inside the resolved span.
	Bounds *Bounds

	// SmallestBlock narrows the result to the innermost parenthesized
	// statement (SELECT/UPDATE/DELETE/INSERT/WITH) around the cursor.
	SmallestBlock bool

	// ExpandFrom, when set, widens the span to also cover the statement at
	// this offset.
	ExpandFrom *int

	// ParenBlankLineTolerance overrides DefaultParenBlankLineTolerance when
	// positive. A negative value disables the tolerance.
	ParenBlankLineTolerance int
}

func (o Options) parenTolerance() int {
	switch {
	case o.ParenBlankLineTolerance > 0:
		return o.ParenBlankLineTolerance
	case o.ParenBlankLineTolerance < 0:
		return 0
	}
	return DefaultParenBlankLineTolerance
}

// ResolveText resolves the block at a 0-based position of text.
func ResolveText(text string, pos protocol.Position, opts Options) *Block {
	doc := NewDocument(text)
	return Resolve(doc, doc.OffsetAt(pos), opts)
}

// Resolve returns the block containing cursor. It never returns nil: if
// resolution fails for any reason the whole document becomes the block.
func Resolve(doc *Document, cursor int, opts Options) (b *Block) {
	defer func() {
		if r := recover(); r != nil {
			b = wholeDocument(doc, cursor)
		}
	}()
	return resolve(doc, doc.clampOffset(cursor), opts, 0)
}

func resolve(doc *Document, cursor int, opts Options, depth int) *Block {
	a := newAnalysis(doc)
	span := a.span(cursor, opts.parenTolerance())
	if opts.ExpandFrom != nil {
		other := a.span(doc.clampOffset(*opts.ExpandFrom), opts.parenTolerance())
		span = span.union(other)
	}

	b := a.build(span, cursor, opts.Bounds)

	if opts.SmallestBlock && opts.Bounds == nil && depth < maxResolveDepth && b.CurrentNestingID != "" {
		lim, ok := nestingLimits(b)
		if ok && !lim.empty && lim.bounds.End-lim.bounds.Start < b.EndOffset-b.StartOffset {
			inner := opts
			inner.Bounds = &lim.bounds
			inner.ExpandFrom = nil
			return resolve(doc, cursor, inner, depth+1)
		}
	}
	return b
}

type lineSpan struct{ start, end int }

func (s lineSpan) union(o lineSpan) lineSpan {
	return lineSpan{start: min(s.start, o.start), end: max(s.end, o.end)}
}

// analysis holds the comment-blanked lines of a document.
type analysis struct {
	doc        *Document
	lines      []string
	hasComment []bool
	tokens     []sqltoken.Token
}

func newAnalysis(doc *Document) *analysis {
	a := &analysis{doc: doc, lines: doc.Lines, hasComment: make([]bool, len(doc.Lines))}
	if strings.Contains(doc.Text, "--") || strings.Contains(doc.Text, "/*") {
		a.lines, a.hasComment = sqltoken.BlankComments(doc.Lines, doc.EOL)
	}
	return a
}

func (a *analysis) allTokens() []sqltoken.Token {
	if a.tokens == nil {
		a.tokens = sqltoken.Tokenize(a.lines, sqltoken.Options{EOL: a.doc.EOL, Cursor: sqltoken.NoCursor}).Tokens
	}
	return a.tokens
}

func (a *analysis) isBlank(n int) bool {
	return strings.TrimSpace(a.lines[n-1]) == ""
}

func (a *analysis) isTerminated(n int) bool {
	return strings.HasSuffix(strings.TrimSpace(a.lines[n-1]), ";")
}

// isSeparator reports whether line n ends a statement: a blank line that
// held no comment, or a line ending in ';'.
func (a *analysis) isSeparator(n int) bool {
	return (a.isBlank(n) && !a.hasComment[n-1]) || a.isTerminated(n)
}

// startFrom returns the first line of the statement containing line n.
func (a *analysis) startFrom(n int) int {
	for m := n - 1; m >= 1; m-- {
		if a.isSeparator(m) {
			return m + 1
		}
	}
	return 1
}

// endFrom returns the last line of the statement containing line n.
func (a *analysis) endFrom(n int) int {
	if !a.isBlank(n) && a.isTerminated(n) {
		return n
	}
	for m := n + 1; m <= len(a.lines); m++ {
		if a.isSeparator(m) {
			return m
		}
	}
	return len(a.lines)
}

func (a *analysis) span(cursor, tolerance int) lineSpan {
	line := a.doc.LineAt(cursor)
	s := lineSpan{start: a.startFrom(line), end: a.endFrom(line)}

	overridden := false
	if strings.Contains(a.doc.Text, "$") {
		if ds, ok := a.dollarSpan(cursor); ok {
			s = s.union(ds)
			overridden = true
		}
	}
	if !overridden {
		s = a.balanceParens(s, tolerance)
	}

	for s.start < s.end && a.isBlank(s.start) {
		s.start++
	}
	for s.end > s.start && a.isBlank(s.end) {
		s.end--
	}
	return s
}

// dollarSpan finds the nearest DO block or CREATE FUNCTION/PROCEDURE whose
// statement lines hold the cursor and returns the span from its first
// keyword through the line that closes its dollar-quoted body.
func (a *analysis) dollarSpan(cursor int) (lineSpan, bool) {
	tokens := a.allTokens()
	for k := len(tokens) - 1; k >= 0; k-- {
		t := tokens[k]
		if !t.Type.IsKeyword() || !t.IsAny("do", "function", "procedure") {
			continue
		}
		open := -1
		for j := k + 1; j < len(tokens); j++ {
			if tokens[j].Text == ";" {
				break
			}
			if isDollarDelimiter(tokens[j]) {
				open = j
				break
			}
		}
		if open < 0 {
			continue
		}
		endLine := 0
		for j := open + 1; j < len(tokens); j++ {
			if tokens[j].Text == tokens[open].Text {
				endLine = a.endFrom(tokens[j].Line)
				break
			}
		}
		if endLine == 0 {
			// A body still being typed has no extent yet.
			return lineSpan{}, false
		}
		if a.doc.LineEnd(endLine) < cursor {
			continue
		}

		start := k
		if !t.Is("do") {
			j := k - 1
			for j >= 0 && tokens[j].IsAny("or", "replace") {
				j--
			}
			if j >= 0 && tokens[j].Is("create") {
				start = j
			}
		}
		if a.doc.LineStart(tokens[start].Line) > cursor {
			continue
		}
		return lineSpan{start: tokens[start].Line, end: endLine}, true
	}
	return lineSpan{}, false
}

// isDollarDelimiter reports whether t is a bare $tag$ rather than a whole
// dollar-quoted literal.
func isDollarDelimiter(t sqltoken.Token) bool {
	if t.Type != sqltoken.String || len(t.Text) < 2 || t.Text[0] != '$' || t.Text[len(t.Text)-1] != '$' {
		return false
	}
	return !strings.ContainsAny(t.Text[1:len(t.Text)-1], "$ '\t")
}

func (a *analysis) parenCounts(from, to int) (opens, closes int) {
	for _, t := range a.allTokens() {
		if t.Line < from {
			continue
		}
		if t.Line > to {
			break
		}
		switch t.Type {
		case sqltoken.OpenParen:
			opens++
		case sqltoken.CloseParen:
			closes++
		}
	}
	return opens, closes
}

// balanceParens extends s until its parentheses balance, walking forward for
// unclosed groups and backward for unopened ones. The walk gives up after
// crossing more than tolerance blank lines or at another statement's
// terminator, in which case s is returned unchanged.
func (a *analysis) balanceParens(s lineSpan, tolerance int) lineSpan {
	opens, closes := a.parenCounts(s.start, s.end)
	switch {
	case opens > closes && !a.isTerminated(s.end):
		depth := opens - closes
		blanks := 0
		if a.isBlank(s.end) && !a.hasComment[s.end-1] {
			// The blank line that ended the span counts toward the tolerance.
			blanks++
			if blanks > tolerance {
				return s
			}
		}
		for n := s.end + 1; n <= len(a.lines); n++ {
			if a.isBlank(n) && !a.hasComment[n-1] {
				blanks++
				if blanks > tolerance {
					break
				}
				continue
			}
			o, c := a.parenCounts(n, n)
			depth += o - c
			if depth <= 0 {
				return lineSpan{start: s.start, end: a.endFrom(n)}
			}
			if a.isTerminated(n) {
				break
			}
		}
	case closes > opens:
		depth := closes - opens
		blanks := 0
		for n := s.start - 1; n >= 1; n-- {
			if a.isBlank(n) && !a.hasComment[n-1] {
				blanks++
				if blanks > tolerance {
					break
				}
				continue
			}
			if a.isTerminated(n) {
				break
			}
			o, c := a.parenCounts(n, n)
			depth -= o - c
			if depth <= 0 {
				return lineSpan{start: a.startFrom(n), end: s.end}
			}
		}
	}
	return s
}

func (a *analysis) build(span lineSpan, cursor int, bounds *Bounds) *Block {
	doc := a.doc
	b := newBlock(doc)
	b.Cursor = cursor
	b.StartLine, b.EndLine = span.start, span.end
	b.StartOffset, b.EndOffset = doc.LineStart(span.start), doc.LineEnd(span.end)

	res := sqltoken.Tokenize(a.lines[span.start-1:span.end], sqltoken.Options{
		EOL:         doc.EOL,
		StartOffset: b.StartOffset,
		StartLine:   span.start,
		Cursor:      sqltoken.NoCursor,
	})
	tokens := sqltoken.AssignNesting(res.Tokens)

	if bounds != nil {
		lo, hi := doc.clampOffset(bounds.Start), doc.clampOffset(bounds.End)
		if hi < lo {
			lo, hi = hi, lo
		}
		filtered := make([]sqltoken.Token, 0, len(tokens))
		for _, t := range tokens {
			if t.Offset >= lo && t.End <= hi {
				filtered = append(filtered, t)
			}
		}
		tokens = stripRootNesting(filtered)
		b.Bounds = &Bounds{Start: lo, End: hi}
		b.StartOffset, b.EndOffset = lo, hi
		b.StartLine, b.EndLine = doc.LineAt(lo), doc.LineAt(hi)
	}

	b.Tokens = tokens
	b.Text = doc.Slice(b.StartOffset, b.EndOffset)
	if cursor > b.StartOffset {
		b.PrevText = doc.Slice(b.StartOffset, min(cursor, b.EndOffset))
	}

	lower := make([]string, len(tokens))
	cursorLine := doc.LineAt(cursor)
	for i := range tokens {
		t := &tokens[i]
		lower[i] = t.Lower
		switch {
		case t.End < cursor:
			b.PrevTokens = append(b.PrevTokens, *t)
			if t.Line == cursorLine {
				b.ThisLinePrevTokens = append(b.ThisLinePrevTokens, *t)
			}
		case t.Offset >= cursor:
			b.NextTokens = append(b.NextTokens, *t)
		default:
			cur := *t
			b.CurrentToken = &cur
		}
	}
	b.LowerText = strings.Join(lower, " ")
	b.CurrentNestingID = currentNestingID(b)

	b.IsCommenting = sqltoken.Tokenize(doc.Lines, sqltoken.Options{
		EOL:             doc.EOL,
		Cursor:          cursor,
		IncludeComments: true,
	}).CursorInComment
	return b
}

// currentNestingID picks the group the cursor is in. The cursor sitting
// right next to a parenthesis needs care: after "(" it is inside the new
// group, before ")" it is in the group being closed.
func currentNestingID(b *Block) sqltoken.NestingID {
	currL := b.CurrentToken
	if currL == nil {
		currL = b.Last(0)
	}
	next := b.Next()

	switch {
	case currL != nil && currL.Type == sqltoken.OpenParen && next != nil && next.Type == sqltoken.CloseParen:
		return currL.Group
	case currL != nil && next != nil && next.Type == sqltoken.CloseParen:
		return currL.NestingID
	case currL != nil && currL.Type == sqltoken.OpenParen:
		return currL.Group
	case b.CurrentToken != nil:
		return b.CurrentToken.NestingID
	case next != nil && next.Offset == b.Cursor:
		return next.NestingID
	case currL != nil:
		return currL.NestingID
	}
	return ""
}

func stripRootNesting(tokens []sqltoken.Token) []sqltoken.Token {
	if len(tokens) == 0 {
		return tokens
	}
	root := tokens[0].NestingID
	if root == "" {
		return tokens
	}
	for _, t := range tokens {
		if !root.Encloses(t.NestingID) {
			return tokens
		}
	}
	for i := range tokens {
		tokens[i].NestingID = tokens[i].NestingID[len(root):]
		if root.Encloses(tokens[i].Group) {
			tokens[i].Group = tokens[i].Group[len(root):]
		}
	}
	return tokens
}

type nestingLimit struct {
	bounds Bounds
	empty  bool
}

// nestingLimits walks from the cursor's group outward and returns the inner
// range of the first group that starts with a statement keyword. If none
// does and the cursor's own group is an empty "()", the limit is empty.
func nestingLimits(b *Block) (nestingLimit, bool) {
	toks := b.Tokens
	innermostEmpty := false
	for g := b.CurrentNestingID; g != ""; g = g.Parent() {
		open, closeAt := -1, -1
		for i, t := range toks {
			if t.Group != g {
				continue
			}
			if t.Type == sqltoken.OpenParen {
				open = i
			} else if t.Type == sqltoken.CloseParen {
				closeAt = i
			}
		}
		if open < 0 || open+1 >= len(toks) {
			continue
		}
		first := toks[open+1]
		if open+1 == closeAt {
			if g == b.CurrentNestingID {
				innermostEmpty = true
			}
			continue
		}
		if !first.Type.IsKeyword() || !statementKeywords[first.Lower] || first.NestingID != g {
			continue
		}
		last := -1
		if closeAt > open {
			last = closeAt - 1
		} else {
			for i := len(toks) - 1; i > open; i-- {
				if g.Encloses(toks[i].NestingID) {
					last = i
					break
				}
			}
		}
		if last <= open {
			continue
		}
		return nestingLimit{bounds: Bounds{Start: first.Offset, End: toks[last].End}}, true
	}
	if innermostEmpty {
		return nestingLimit{empty: true}, true
	}
	return nestingLimit{}, false
}

func wholeDocument(doc *Document, cursor int) *Block {
	b := newBlock(doc)
	b.Cursor = doc.clampOffset(cursor)
	b.StartLine, b.EndLine = 1, doc.LineCount()
	b.StartOffset, b.EndOffset = 0, len(doc.Text)
	b.Text = doc.Text
	return b
}
