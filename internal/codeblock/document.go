package codeblock

import (
	"sort"
	"strings"

	"github.com/woxQAQ/sqlcursor/pkg/protocol"
)

// Document is an immutable view of a script split into lines. Line numbers
// used by this package are 1-based; protocol positions are 0-based.
type Document struct {
	Text  string
	EOL   string
	Lines []string

	lineStarts []int
}

// NewDocument splits text on its line terminator. A text containing "\r\n"
// is treated as CRLF throughout.
func NewDocument(text string) *Document {
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}
	lines := strings.Split(text, eol)
	starts := make([]int, len(lines))
	offset := 0
	for i, l := range lines {
		starts[i] = offset
		offset += len(l) + len(eol)
	}
	return &Document{Text: text, EOL: eol, Lines: lines, lineStarts: starts}
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	return len(d.Lines)
}

// LineStart returns the offset of the first byte of a 1-based line.
func (d *Document) LineStart(line int) int {
	return d.lineStarts[d.clampLine(line)-1]
}

// LineEnd returns the offset just past the last byte of a 1-based line,
// excluding the terminator.
func (d *Document) LineEnd(line int) int {
	line = d.clampLine(line)
	return d.lineStarts[line-1] + len(d.Lines[line-1])
}

// LineAt returns the 1-based line containing offset.
func (d *Document) LineAt(offset int) int {
	offset = d.clampOffset(offset)
	i := sort.Search(len(d.lineStarts), func(i int) bool { return d.lineStarts[i] > offset })
	if i == 0 {
		return 1
	}
	return i
}

// OffsetAt converts a 0-based position to an offset. Characters are byte
// columns, clamped to the line length.
func (d *Document) OffsetAt(pos protocol.Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(d.Lines) {
		return len(d.Text)
	}
	ch := pos.Character
	if ch < 0 {
		ch = 0
	}
	if ch > len(d.Lines[pos.Line]) {
		ch = len(d.Lines[pos.Line])
	}
	return d.lineStarts[pos.Line] + ch
}

// PositionAt converts an offset to a 0-based position.
func (d *Document) PositionAt(offset int) protocol.Position {
	offset = d.clampOffset(offset)
	line := d.LineAt(offset)
	ch := offset - d.lineStarts[line-1]
	if ch > len(d.Lines[line-1]) {
		// Inside a CRLF terminator.
		ch = len(d.Lines[line-1])
	}
	return protocol.Position{Line: line - 1, Character: ch}
}

// Slice returns the text between two offsets, clamped to the document.
func (d *Document) Slice(start, end int) string {
	start, end = d.clampOffset(start), d.clampOffset(end)
	if end < start {
		return ""
	}
	return d.Text[start:end]
}

func (d *Document) clampLine(line int) int {
	if line < 1 {
		return 1
	}
	if line > len(d.Lines) {
		return len(d.Lines)
	}
	return line
}

func (d *Document) clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(d.Text) {
		return len(d.Text)
	}
	return offset
}
