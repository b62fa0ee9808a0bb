package lsp

import (
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/woxQAQ/sqlcursor/internal/codeblock"
	sqlproto "github.com/woxQAQ/sqlcursor/pkg/protocol"
)

// LSP clients count characters in UTF-16 code units; the resolver counts
// bytes.

func fromClient(doc *codeblock.Document, pos protocol.Position) sqlproto.Position {
	line := int(pos.Line)
	if line >= doc.LineCount() {
		return sqlproto.Position{Line: line, Character: int(pos.Character)}
	}
	return sqlproto.Position{Line: line, Character: utf16ToByte(doc.Lines[line], int(pos.Character))}
}

func toClient(doc *codeblock.Document, pos sqlproto.Position) protocol.Position {
	ch := pos.Character
	if pos.Line < doc.LineCount() {
		ch = byteToUTF16(doc.Lines[pos.Line], ch)
	}
	return protocol.Position{Line: protocol.UInteger(pos.Line), Character: protocol.UInteger(ch)}
}

func toClientRange(doc *codeblock.Document, r sqlproto.Range) protocol.Range {
	return protocol.Range{Start: toClient(doc, r.Start), End: toClient(doc, r.End)}
}

func utf16ToByte(line string, units int) int {
	i := 0
	for i < len(line) && units > 0 {
		r, size := utf8.DecodeRuneInString(line[i:])
		units -= runeUnits(r)
		if units < 0 {
			// Inside a surrogate pair.
			break
		}
		i += size
	}
	return i
}

func byteToUTF16(line string, offset int) int {
	if offset > len(line) {
		offset = len(line)
	}
	units := 0
	for i := 0; i < offset; {
		r, size := utf8.DecodeRuneInString(line[i:])
		if i+size > offset {
			break
		}
		units += runeUnits(r)
		i += size
	}
	return units
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
