package sqltoken

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NoCursor disables cursor-in-comment detection.
const NoCursor = -1

// Options controls a Tokenize call.
type Options struct {
	// EOL is the line terminator used to compute offsets. Defaults to "\n".
	EOL string

	// StartOffset is the absolute offset of the first byte of lines[0].
	StartOffset int

	// StartLine is the 1-based line number of lines[0]. Defaults to 1.
	StartLine int

	// Cursor is an absolute offset used to report CursorInComment, or NoCursor.
	Cursor int

	// IncludeComments keeps comment tokens in the result.
	IncludeComments bool
}

// Result holds the tokens of a Tokenize call.
type Result struct {
	Tokens          []Token
	CursorInComment bool
}

type lexState int

const (
	stateCode lexState = iota
	stateBlockComment
	stateString
	stateQuotedIdent
	stateDollar
)

type scanner struct {
	opts Options

	state        lexState
	escapes      bool
	commentDepth int
	blockStart   int

	// dollarTag is the tag of an open dollar-quoted literal.
	dollarTag string
	// routineTag is the tag of an open DO or function body, which is lexed
	// as code. routineStmt is set once the current statement has named one.
	routineTag  string
	routineStmt bool

	tokens    []Token
	inComment bool
}

// Tokenize scans lines into a token stream. State such as an open block
// comment or string carries over from one line to the next, but no token
// spans a line break.
func Tokenize(lines []string, opts Options) Result {
	if opts.EOL == "" {
		opts.EOL = "\n"
	}
	if opts.StartLine <= 0 {
		opts.StartLine = 1
	}

	s := &scanner{opts: opts}
	offset := opts.StartOffset
	for i, line := range lines {
		s.scanLine(line, offset, opts.StartLine+i)
		offset += len(line) + len(opts.EOL)
	}
	if s.state == stateBlockComment {
		// Unterminated block comment runs to the end of input.
		s.markComment(s.blockStart, offset-len(opts.EOL), false)
	}

	tokens := mergeJSONPathOperators(s.tokens)
	tokens = mergeQualifiedNames(tokens)
	for i := range tokens {
		if tokens[i].Lower == "like" || tokens[i].Lower == "ilike" {
			tokens[i].Type = Operator
		}
	}
	if !opts.IncludeComments {
		tokens = dropComments(tokens)
	}

	return Result{Tokens: tokens, CursorInComment: s.inComment}
}

// Lines splits text on eol, the inverse of strings.Join(lines, eol).
func Lines(text, eol string) []string {
	if eol == "" {
		eol = "\n"
	}
	return strings.Split(text, eol)
}

func (s *scanner) emit(typ Type, line string, lineOffset, lineNo, start, end int) {
	if end <= start {
		return
	}
	text := line[start:end]
	s.tokens = append(s.tokens, Token{
		Offset: lineOffset + start,
		End:    lineOffset + end,
		Text:   text,
		Lower:  strings.ToLower(text),
		Type:   typ,
		Line:   lineNo,
		Column: start + 1,
	})
}

func (s *scanner) markComment(start, end int, closed bool) {
	c := s.opts.Cursor
	if c < 0 {
		return
	}
	if start < c && (c < end || (c == end && !closed)) {
		s.inComment = true
	}
}

func (s *scanner) scanLine(line string, lineOffset, lineNo int) {
	i := 0
	n := len(line)

	switch s.state {
	case stateBlockComment:
		i = s.continueBlockComment(line, lineOffset, lineNo, 0)
	case stateString:
		i = s.scanQuoted(line, lineOffset, lineNo, 0, 0, '\'', String)
	case stateQuotedIdent:
		i = s.scanQuoted(line, lineOffset, lineNo, 0, 0, '"', QuotedIdentifier)
	case stateDollar:
		i = s.scanDollarBody(line, lineOffset, lineNo, 0, 0)
	}

	for i < n && s.state == stateCode {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++

		case c == '-' && i+1 < n && line[i+1] == '-':
			s.emit(Comment, line, lineOffset, lineNo, i, n)
			s.markComment(lineOffset+i, lineOffset+n, false)
			i = n

		case c == '/' && i+1 < n && line[i+1] == '*':
			s.state = stateBlockComment
			s.commentDepth = 1
			s.blockStart = lineOffset + i
			i = s.continueBlockComment(line, lineOffset, lineNo, i+2)

		case c == '\'':
			s.state = stateString
			s.escapes = false
			i = s.scanQuoted(line, lineOffset, lineNo, i, i+1, '\'', String)

		case c == '"':
			s.state = stateQuotedIdent
			s.escapes = false
			i = s.scanQuoted(line, lineOffset, lineNo, i, i+1, '"', QuotedIdentifier)

		case c == '$':
			i = s.scanDollar(line, lineOffset, lineNo, i)

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(line[i+1])):
			end := scanNumber(line, i)
			s.emit(Number, line, lineOffset, lineNo, i, end)
			i = end

		case c == '(':
			s.emit(OpenParen, line, lineOffset, lineNo, i, i+1)
			i++

		case c == ')':
			s.emit(CloseParen, line, lineOffset, lineNo, i, i+1)
			i++

		case c == ',' || c == ';' || c == '.' || c == '[' || c == ']':
			s.emit(Delimiter, line, lineOffset, lineNo, i, i+1)
			if c == ';' && s.routineTag == "" {
				s.routineStmt = false
			}
			i++

		case c == '#':
			s.emit(Operator, line, lineOffset, lineNo, i, i+1)
			i++

		case isWordStart(line, i):
			end := scanWord(line, i)
			word := strings.ToLower(line[i:end])
			if end < n && line[end] == '\'' && isStringPrefix(word) {
				s.state = stateString
				s.escapes = word == "e"
				i = s.scanQuoted(line, lineOffset, lineNo, i, end+1, '\'', String)
				continue
			}
			s.emit(classifyWord(word), line, lineOffset, lineNo, i, end)
			if word == "do" || word == "function" || word == "procedure" {
				s.routineStmt = true
			}
			i = end

		default:
			end := scanOperator(line, i)
			s.emit(Operator, line, lineOffset, lineNo, i, end)
			i = end
		}
	}
}

// continueBlockComment consumes comment text from i and returns the offset
// after the comment, or len(line) if it stays open.
func (s *scanner) continueBlockComment(line string, lineOffset, lineNo, i int) int {
	start := 0
	if s.blockStart >= lineOffset {
		start = s.blockStart - lineOffset
	}
	n := len(line)
	for i < n {
		switch {
		case line[i] == '/' && i+1 < n && line[i+1] == '*':
			s.commentDepth++
			i += 2
		case line[i] == '*' && i+1 < n && line[i+1] == '/':
			s.commentDepth--
			i += 2
			if s.commentDepth == 0 {
				s.state = stateCode
				s.emit(QuotedComment, line, lineOffset, lineNo, start, i)
				s.markComment(s.blockStart, lineOffset+i, true)
				return i
			}
		default:
			i++
		}
	}
	s.emit(QuotedComment, line, lineOffset, lineNo, start, n)
	return n
}

// scanQuoted consumes the body of a quoted string or identifier from i,
// honouring doubled quote escapes. start is where the token begins on this
// line. It returns the offset after the closing quote, or len(line) when the
// literal stays open.
func (s *scanner) scanQuoted(line string, lineOffset, lineNo, start, i int, quote byte, typ Type) int {
	n := len(line)
	for i < n {
		switch {
		case s.escapes && line[i] == '\\':
			i += 2
		case line[i] == quote && i+1 < n && line[i+1] == quote:
			i += 2
		case line[i] == quote:
			i++
			s.state = stateCode
			s.emit(typ, line, lineOffset, lineNo, start, i)
			return i
		default:
			i++
		}
	}
	s.emit(typ, line, lineOffset, lineNo, start, n)
	return n
}

func (s *scanner) scanDollar(line string, lineOffset, lineNo, i int) int {
	n := len(line)
	if i+1 < n && isDigit(line[i+1]) {
		end := i + 1
		for end < n && isDigit(line[end]) {
			end++
		}
		s.emit(Identifier, line, lineOffset, lineNo, i, end)
		return end
	}
	j := i + 1
	if j < n && !isDigit(line[j]) {
		for j < n && isDollarTagChar(line[j]) {
			j++
		}
	}
	if j >= n || line[j] != '$' {
		s.emit(Operator, line, lineOffset, lineNo, i, i+1)
		return i + 1
	}

	tag := line[i : j+1]
	switch {
	case s.routineTag != "" && tag == s.routineTag:
		s.emit(String, line, lineOffset, lineNo, i, j+1)
		s.routineTag = ""
		s.routineStmt = false
		return j + 1
	case s.routineTag == "" && s.routineStmt:
		// The body of a DO block or routine stays code, bracketed by its
		// tag tokens.
		s.emit(String, line, lineOffset, lineNo, i, j+1)
		s.routineTag = tag
		return j + 1
	}
	s.state = stateDollar
	s.dollarTag = tag
	return s.scanDollarBody(line, lineOffset, lineNo, i, j+1)
}

// scanDollarBody consumes a dollar-quoted literal up to its closing tag.
// Quotes and comment markers inside it are plain text.
func (s *scanner) scanDollarBody(line string, lineOffset, lineNo, start, i int) int {
	if k := strings.Index(line[i:], s.dollarTag); k >= 0 {
		end := i + k + len(s.dollarTag)
		s.state = stateCode
		s.dollarTag = ""
		s.emit(String, line, lineOffset, lineNo, start, end)
		return end
	}
	s.emit(String, line, lineOffset, lineNo, start, len(line))
	return len(line)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isDollarTagChar(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isStringPrefix(word string) bool {
	switch word {
	case "e", "b", "x", "n", "u&":
		return true
	}
	return false
}

func isWordStart(line string, i int) bool {
	c := line[i]
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	if c < utf8.RuneSelf {
		return false
	}
	r, _ := utf8.DecodeRuneInString(line[i:])
	return unicode.IsLetter(r)
}

func scanWord(line string, i int) int {
	for i < len(line) {
		c := line[i]
		if c == '_' || c == '$' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			i++
			continue
		}
		if c < utf8.RuneSelf {
			break
		}
		r, size := utf8.DecodeRuneInString(line[i:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		i += size
	}
	return i
}

func scanNumber(line string, i int) int {
	n := len(line)
	for i < n && isDigit(line[i]) {
		i++
	}
	if i < n && line[i] == '.' && !(i+1 < n && line[i+1] == '.') {
		i++
		for i < n && isDigit(line[i]) {
			i++
		}
	}
	if i < n && (line[i] == 'e' || line[i] == 'E') {
		j := i + 1
		if j < n && (line[j] == '+' || line[j] == '-') {
			j++
		}
		if j < n && isDigit(line[j]) {
			i = j
			for i < n && isDigit(line[i]) {
				i++
			}
		}
	}
	return i
}

func scanOperator(line string, i int) int {
	best := 0
	rest := line[i:]
	for _, op := range operatorList {
		if len(op) > best && strings.HasPrefix(rest, op) {
			best = len(op)
		}
	}
	if best == 0 {
		_, size := utf8.DecodeRuneInString(rest)
		return i + size
	}
	return i + best
}
