package codeblock

import (
	"strings"
	"sync"

	"github.com/woxQAQ/sqlcursor/internal/sqltoken"
)

// Bounds restricts a block to an offset range [Start, End].
type Bounds struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Block is the statement under the cursor together with cursor-relative
// views of its tokens. A Block is built once per request and never changed.
type Block struct {
	doc *Document

	// StartLine and EndLine are 1-based and inclusive.
	StartLine   int `json:"startLine"`
	EndLine     int `json:"endLine"`
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`
	Cursor      int `json:"cursor"`

	Bounds *Bounds `json:"bounds,omitempty"`

	Text      string `json:"text"`
	LowerText string `json:"-"`
	PrevText  string `json:"-"`

	Tokens             []sqltoken.Token `json:"-"`
	PrevTokens         []sqltoken.Token `json:"-"`
	NextTokens         []sqltoken.Token `json:"-"`
	ThisLinePrevTokens []sqltoken.Token `json:"-"`
	CurrentToken       *sqltoken.Token  `json:"-"`

	CurrentNestingID sqltoken.NestingID `json:"nestingId"`
	IsCommenting     bool               `json:"isCommenting"`

	prevTopKeywords func() []KeywordMatch
}

func newBlock(doc *Document) *Block {
	b := &Block{doc: doc}
	b.prevTopKeywords = sync.OnceValue(func() []KeywordMatch {
		matches := matchStartingKeywords(sqltoken.CollapseParens(b.PrevTokens, true))
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
		return matches
	})
	return b
}

// Document returns the document the block was resolved from.
func (b *Block) Document() *Document { return b.doc }

// First returns the first token before the cursor, or nil.
func (b *Block) First() *sqltoken.Token {
	if len(b.PrevTokens) == 0 {
		return nil
	}
	return &b.PrevTokens[0]
}

// Last returns the n-th token counting back from the cursor: Last(0) is the
// token immediately before the cursor. It returns nil past the start.
func (b *Block) Last(n int) *sqltoken.Token {
	i := len(b.PrevTokens) - 1 - n
	if n < 0 || i < 0 {
		return nil
	}
	return &b.PrevTokens[i]
}

// Next returns the first token at or after the cursor, or nil.
func (b *Block) Next() *sqltoken.Token {
	if len(b.NextTokens) == 0 {
		return nil
	}
	return &b.NextTokens[0]
}

// PrevTopKeywords returns the statement-starting keywords before the cursor
// that are not inside a closed parenthesized group, nearest first.
func (b *Block) PrevTopKeywords() []KeywordMatch {
	return b.prevTopKeywords()
}

// PrevTokensNoParens returns the tokens before the cursor, optionally with
// closed parenthesized groups collapsed to placeholders.
func (b *Block) PrevTokensNoParens(collapse bool) []sqltoken.Token {
	return sqltoken.CollapseParens(b.PrevTokens, collapse)
}

// ReplaceSpan is the range a completion should overwrite: the word under the
// cursor (after its last '.' for qualified names), or an empty range at the
// cursor.
func (b *Block) ReplaceSpan() (int, int) {
	t := b.CurrentToken
	if t == nil || !isWordLike(t.Type) {
		return b.Cursor, b.Cursor
	}
	start := t.Offset
	if i := strings.LastIndexByte(t.Text, '.'); i >= 0 && t.Type == sqltoken.Identifier {
		start = t.Offset + i + 1
	}
	if start > b.Cursor {
		start = b.Cursor
	}
	return start, t.End
}

// Word returns the part of the word under the cursor that precedes it.
func (b *Block) Word() string {
	start, _ := b.ReplaceSpan()
	return b.doc.Slice(start, b.Cursor)
}

func isWordLike(t sqltoken.Type) bool {
	switch t {
	case sqltoken.Identifier, sqltoken.QuotedIdentifier, sqltoken.Keyword,
		sqltoken.PredefinedFunction, sqltoken.BlockKeyword, sqltoken.ChoiceKeyword:
		return true
	}
	return false
}

// Identifiers returns the distinct unquoted names used in the block, in
// order of first appearance.
func (b *Block) Identifiers() []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range b.Tokens {
		if t.Type != sqltoken.Identifier && t.Type != sqltoken.QuotedIdentifier {
			continue
		}
		name := unquote(t.Text)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// TableRef is a relation named in a block.
type TableRef struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
	Alias  string `json:"alias,omitempty"`
}

// Matches reports whether name refers to the relation by alias or name.
func (r TableRef) Matches(name string) bool {
	name = unquote(name)
	return strings.EqualFold(r.Alias, name) || strings.EqualFold(r.Name, name)
}

var relationKeywords = map[string]bool{
	"from": true, "join": true, "update": true, "into": true, "table": true,
	"truncate": true, "only": true,
}

// TableRefs returns the relations referenced after FROM, JOIN, UPDATE, INTO
// and similar keywords anywhere in the block, with their aliases.
func (b *Block) TableRefs() []TableRef {
	var refs []TableRef
	toks := b.Tokens
	for i := 0; i < len(toks); i++ {
		if !toks[i].Type.IsKeyword() || !relationKeywords[toks[i].Lower] {
			continue
		}
		for j := i + 1; j < len(toks); {
			ref, next, ok := parseTableRef(toks, j)
			if !ok {
				break
			}
			refs = append(refs, ref)
			if toks[i].Lower != "from" || next >= len(toks) || toks[next].Text != "," {
				i = next - 1
				break
			}
			j = next + 1
		}
	}
	return refs
}

func parseTableRef(toks []sqltoken.Token, i int) (TableRef, int, bool) {
	if i >= len(toks) || (toks[i].Type != sqltoken.Identifier && toks[i].Type != sqltoken.QuotedIdentifier) {
		return TableRef{}, i, false
	}
	ref := TableRef{Name: unquote(toks[i].Text)}
	if dot := strings.LastIndexByte(toks[i].Text, '.'); dot > 0 && toks[i].Type == sqltoken.Identifier {
		ref.Schema = unquote(toks[i].Text[:dot])
		ref.Name = unquote(toks[i].Text[dot+1:])
	}
	i++
	if i < len(toks) && toks[i].Lower == "as" {
		i++
	}
	if i < len(toks) && (toks[i].Type == sqltoken.Identifier || toks[i].Type == sqltoken.QuotedIdentifier) &&
		!strings.Contains(toks[i].Text, ".") && !toks[i].IsAny("left", "right", "inner") {
		ref.Alias = unquote(toks[i].Text)
		i++
	}
	return ref, i, true
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}
