package completion

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/codeblock"
	"github.com/woxQAQ/sqlcursor/internal/sqltoken"
)

const valueLimit = 20

var comparisonOperators = map[string]bool{
	"=": true, ">": true, "<": true, ">=": true, "<=": true, "<>": true, "!=": true,
	"like": true, "ilike": true, "~~": true, "!~~": true,
}

var jsonSelectors = map[string]bool{"->": true, "->>": true, "#>": true, "#>>": true}

// conditionKeyword returns the keyword that governs the expression the
// cursor is in: the nearest keyword outside closed groups that is not the
// target of a cast.
func (r *request) conditionKeyword() *sqltoken.Token {
	toks := r.b.PrevTokensNoParens(true)
	for i := len(toks) - 1; i >= 0; i-- {
		t := toks[i]
		if t.Type != sqltoken.Keyword && t.Type != sqltoken.ChoiceKeyword {
			continue
		}
		if i > 0 && toks[i-1].Text == "::" {
			continue
		}
		return &toks[i]
	}
	return nil
}

func (r *request) prevContains(words ...string) bool {
	for i := range r.b.PrevTokens {
		if r.b.PrevTokens[i].IsAny(words...) {
			return true
		}
	}
	return false
}

// matchCondition recognizes the expression after WHERE, HAVING, WHEN, a
// JOIN's ON, or the USING/CHECK/WHERE clause of policy and replication DDL.
func matchCondition(r *request) bool {
	kw := r.conditionKeyword()
	if kw == nil {
		return false
	}
	if kw.IsAny("using", "check", "where") && r.prevContains("policy", "publication", "subscription") {
		return true
	}
	switch kw.Lower {
	case "where", "when", "having":
		return true
	case "on":
		return r.prevContains("join")
	}
	return false
}

// handleCondition suggests what can follow in a boolean expression: column
// values inside string literals, columns ranked by the type on the other
// side of an operator, and operators after a complete operand.
func handleCondition(r *request) ([]Candidate, bool) {
	b := r.b
	cur := b.CurrentToken
	kw := r.conditionKeyword()

	if q := r.qualifier(); q != "" {
		ref, ok := r.refByAlias(q)
		if !ok {
			return []Candidate{}, true
		}
		return r.rankColumns(r.columnsOf(ref), r.leftType()), true
	}

	if cur != nil && cur.Type == sqltoken.String {
		return r.columnValues(kw), true
	}

	l, l1 := r.last(0), r.last(1)
	if l != nil && l.Text == "::" {
		return nil, false
	}
	if l != nil && jsonSelectors[l.Text] {
		return []Candidate{}, true
	}
	switch {
	case l.Is("is"):
		return keywordCandidates("NULL", "NOT NULL", "TRUE", "FALSE", "DISTINCT FROM"), true
	case l.Is("not") && l1.Is("is"):
		return keywordCandidates("NULL", "TRUE", "FALSE", "DISTINCT FROM"), true
	case l.Is("exists"):
		return nil, false
	}

	if l != nil && (l.Offset == kw.Offset || l.IsAny("and", "or") || l.Type == sqltoken.Operator) {
		typ := r.leftType()
		return append(r.rankColumns(r.referencedColumns(), typ), r.rankFunctions(typ)...), true
	}

	if l != nil && l.Type == sqltoken.CloseParen {
		out := objectCandidates(r.operators())
		out = append(out, keywordCandidates("IS NULL", "IS NOT NULL")...)
		return append(out, keywordCandidates("AND", "OR")...), true
	}

	operand := (isName(l) && !l.IsAny("left", "right", "inner")) ||
		(l1 != nil && l1.Type == sqltoken.Operator && l != nil && l.Type != sqltoken.OpenParen)
	if !operand {
		return nil, false
	}
	if cur != nil && cur.Type == sqltoken.Operator {
		return []Candidate{}, true
	}
	if l1 != nil && l1.Type == sqltoken.Operator && !l1.IsAny("and", "or") && strings.HasSuffix(b.PrevText, " ") {
		return keywordCandidates("AND", "OR"), true
	}

	col, _, found := r.columnByName(l.Text)
	if !found {
		return append(objectCandidates(r.operators()), keywordCandidates("AND", "OR")...), true
	}
	var out []Candidate
	seen := make(map[string]bool)
	add := func(cs ...Candidate) {
		for _, c := range cs {
			if !seen[c.Label] {
				seen[c.Label] = true
				out = append(out, c)
			}
		}
	}
	for _, op := range r.operators() {
		if appliesTo(op, col.DataType) {
			add(objectCandidate(op))
		}
	}
	if !isName(l) {
		add(keywordCandidates("AND", "OR")...)
	}
	add(keywordCandidates("IN", "NOT", "IS NULL", "IS NOT NULL")...)
	return out, true
}

// appliesTo reports whether an operator accepts a left operand of the given
// type. Operators without declared types accept anything.
func appliesTo(op catalog.Object, dataType string) bool {
	if len(op.LeftArgTypes) == 0 {
		return true
	}
	dt := strings.ToLower(dataType)
	for _, t := range op.LeftArgTypes {
		t = strings.ToLower(t)
		if t == "" {
			continue
		}
		if strings.HasPrefix(dt, t) || strings.HasSuffix(dt, t) {
			return true
		}
	}
	return false
}

// leftType returns the data type of the column on the left of the operator
// before the cursor, or "".
func (r *request) leftType() string {
	l, l1 := r.last(0), r.last(1)
	if l == nil || l.Type != sqltoken.Operator || l.IsAny("and", "or", "not") || l1 == nil {
		return ""
	}
	col, _, ok := r.columnByName(l1.Text)
	if !ok {
		return ""
	}
	return col.DataType
}

func (r *request) referencedColumns() []catalog.Object {
	var out []catalog.Object
	for _, ref := range r.tableRefs() {
		out = append(out, r.columnsOf(ref)...)
	}
	return out
}

// rankColumns puts columns whose type matches typ first.
func (r *request) rankColumns(cols []catalog.Object, typ string) []Candidate {
	out := make([]Candidate, 0, len(cols))
	for i, col := range cols {
		c := objectCandidate(col)
		rank := "b"
		if typ != "" && strings.EqualFold(col.DataType, typ) {
			rank = "a"
		}
		c.SortKey = fmt.Sprintf("%s%04d", rank, i)
		out = append(out, c)
	}
	return out
}

// rankFunctions sorts after every column, preferring functions that
// return typ.
func (r *request) rankFunctions(typ string) []Candidate {
	var out []Candidate
	for i, fn := range r.snap.Functions("") {
		c := objectCandidate(fn)
		rank := "d"
		if typ != "" && strings.EqualFold(fn.Returns, typ) {
			rank = "c"
		}
		c.SortKey = fmt.Sprintf("%s%04d", rank, i)
		out = append(out, c)
	}
	return out
}

// columnValues completes a string literal compared against a column with
// the distinct values stored in that column.
func (r *request) columnValues(kw *sqltoken.Token) []Candidate {
	b := r.b
	cur := b.CurrentToken
	if r.lookup == nil || !kw.Is("where") || !(r.firstIs("select") || r.firstIs("with") || r.firstIs("delete") || r.firstIs("update")) {
		return []Candidate{}
	}

	col, ref, ok := r.comparedColumn()
	if !ok {
		return []Candidate{}
	}

	contentStart := cur.Offset + strings.IndexByte(cur.Text, '\'') + 1
	if contentStart <= cur.Offset {
		return []Candidate{}
	}
	contentEnd := cur.End
	if strings.HasSuffix(cur.Text, "'") && cur.End-1 >= contentStart && len(cur.Text) > 1 {
		contentEnd = cur.End - 1
	}
	prefix := ""
	if b.Cursor > contentStart {
		prefix = b.Document().Slice(contentStart, min(b.Cursor, contentEnd))
	}

	ctx, cancel := r.withTimeout()
	defer cancel()
	values, err := r.lookup.ColumnValues(ctx, catalog.ColumnValuesRequest{
		Schema: ref.Schema,
		Table:  ref.Name,
		Column: col,
		Prefix: prefix,
		Limit:  valueLimit,
	})
	if err != nil {
		r.c.logger.Warn("Column value lookup failed",
			zap.String("table", ref.Name),
			zap.String("column", col),
			zap.Error(err))
		return []Candidate{}
	}

	out := make([]Candidate, 0, len(values))
	for _, v := range values {
		out = append(out, Candidate{
			Label:      v,
			InsertText: strings.ReplaceAll(v, "'", "''"),
			Category:   CategoryValue,
			Replace:    Span{Start: contentStart, End: contentEnd},
		})
	}
	return out
}

// comparedColumn finds the column a string literal under the cursor is
// compared with: "col = '..." or "col IN ('...', '...".
func (r *request) comparedColumn() (string, codeblock.TableRef, bool) {
	l, l1 := r.last(0), r.last(1)
	var name *sqltoken.Token
	switch {
	case l != nil && comparisonOperators[l.Lower] && isName(l1):
		name = l1
	default:
		name = r.inListColumn()
	}
	if name == nil {
		return "", codeblock.TableRef{}, false
	}
	if col, ref, ok := r.columnByName(name.Text); ok {
		return col.Name, ref, true
	}
	refs := r.tableRefs()
	if len(refs) != 1 {
		return "", codeblock.TableRef{}, false
	}
	colName := name.Text
	if i := strings.LastIndexByte(colName, '.'); i >= 0 {
		colName = colName[i+1:]
	}
	return strings.Trim(colName, `"`), refs[0], true
}

// inListColumn returns the name before "IN (" when the cursor is inside
// that list.
func (r *request) inListColumn() *sqltoken.Token {
	id := r.b.CurrentNestingID
	if id == "" {
		return nil
	}
	toks := r.b.PrevTokens
	for i := len(toks) - 1; i >= 0; i-- {
		if toks[i].Type != sqltoken.OpenParen || toks[i].Group != id {
			continue
		}
		if i >= 2 && toks[i-1].Is("in") && isName(&toks[i-2]) {
			return &toks[i-2]
		}
		return nil
	}
	return nil
}
