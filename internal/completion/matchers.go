package completion

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/sqltoken"
)

// chain is the ordered matcher list; the first matcher that accepts wins.
func chain() []matcher {
	return []matcher{
		{name: "comment", match: func(r *request) bool { return r.b.IsCommenting }, handle: none},
		{name: "formatPlaceholders", match: matchFormat, handle: handleFormat},
		{name: "wildcard", match: matchWildcard, handle: handleWildcard},
		{name: "caseWhen", match: matchCaseWhen, handle: keywords("WHEN")},
		{name: "condition", match: matchCondition, handle: handleCondition},
		{name: "stringLiteral", match: inString, handle: none},
		{name: "functionSignature", match: matchFunctionSignature, handle: handleFunctionSignature},
		{name: "tableStatement", match: firstWord("table"), handle: handleRelation},
		{name: "truncate", match: firstWord("truncate"), handle: handleTruncate},
		{name: "explain", match: firstWord("explain"), handle: handleExplain},
		{name: "call", match: firstWord("call"), handle: handleCall},
		{name: "psqlCommand", match: matchPsql, handle: handlePsql},
		{name: "cast", match: matchCast, handle: handleCast},
		{name: "refresh", match: firstWord("refresh"), handle: handleRefresh},
		{name: "drop", match: firstWord("drop"), handle: handleDrop},
		{name: "vacuum", match: firstWord("vacuum"), handle: handleVacuum},
		{name: "grant", match: firstWord("grant"), handle: handleGrant},
		{name: "revoke", match: firstWord("revoke"), handle: handleGrant},
		{name: "cte", match: firstWord("with"), handle: handleWith},
		{name: "joinDirection", match: matchJoinDirection, handle: keywords("JOIN")},
		{name: "relation", match: matchRelation, handle: handleRelation},
		{name: "selectList", match: matchSelectList, handle: handleSelectList},
	}
}

// none accepts the context with no suggestions.
func none(*request) ([]Candidate, bool) { return []Candidate{}, true }

func keywords(words ...string) func(*request) ([]Candidate, bool) {
	return func(*request) ([]Candidate, bool) { return keywordCandidates(words...), true }
}

// firstWord matches once word has been typed as the statement's first token
// and the cursor has moved past it.
func firstWord(word string) func(*request) bool {
	return func(r *request) bool {
		return len(r.b.PrevTokens) > 0 && r.b.PrevTokens[0].Is(word)
	}
}

func fallback(*request) []Candidate {
	return slices.Clone(startingKeywords)
}

func inString(r *request) bool {
	cur := r.b.CurrentToken
	return cur != nil && cur.Type == sqltoken.String
}

func matchFormat(r *request) bool {
	l, l1 := r.last(0), r.last(1)
	return inString(r) && l != nil && l.Text == "(" && l1.Is("format")
}

func handleFormat(*request) ([]Candidate, bool) {
	out := make([]Candidate, 0, len(formatPlaceholders))
	for _, p := range formatPlaceholders {
		out = append(out, Candidate{
			Label:         p.label,
			InsertText:    p.label,
			Category:      CategoryValue,
			Documentation: p.docs,
		})
	}
	return out, true
}

func isWildcard(t *sqltoken.Token) bool { return t != nil && t.Text == "?" }

func matchWildcard(r *request) bool {
	return isWildcard(r.last(1)) || isWildcard(r.last(0))
}

// handleWildcard lists object kinds after a bare "?", or every object of the
// kind typed after it ("? table users").
func handleWildcard(r *request) ([]Candidate, bool) {
	b := r.b
	l := r.last(0)
	if l == nil || len(b.Tokens) < 2 || (b.CurrentToken != nil && len(b.Tokens) <= 2) {
		var out []Candidate
		for _, k := range catalog.Kinds {
			out = append(out, Candidate{
				Label:      string(k),
				InsertText: string(k) + " ",
				Category:   categoryOf(k),
				Detail:     fmt.Sprintf("%d objects", len(r.snap.ByKind(k))),
			})
		}
		return out, true
	}

	kind, ok := catalog.ParseKind(l.Text)
	if !ok {
		return nil, false
	}
	var q *sqltoken.Token
	for i := len(b.PrevTokens) - 1; i >= 0; i-- {
		if isWildcard(&b.PrevTokens[i]) {
			q = &b.PrevTokens[i]
			break
		}
	}
	if q == nil {
		return nil, false
	}
	_, end := b.ReplaceSpan()
	out := objectCandidates(r.snap.ByKind(kind))
	for i := range out {
		out[i].Replace = Span{Start: q.Offset, End: end}
		out[i].FilterText = "? " + l.Text + " " + out[i].filterText()
	}
	return out, true
}

func matchCaseWhen(r *request) bool {
	l := r.last(0)
	return l != nil && l.Type == sqltoken.BlockKeyword && l.Is("case")
}

func matchFunctionSignature(r *request) bool {
	l := r.last(0)
	if l == nil || (l.Text != "(" && l.Text != ",") {
		return false
	}
	name := r.enclosingCall()
	return name != nil && (isName(name) || name.Type == sqltoken.PredefinedFunction)
}

// handleFunctionSignature shows the overloads of the enclosing function
// followed by the columns in scope. Unknown functions decline.
func handleFunctionSignature(r *request) ([]Candidate, bool) {
	name := r.enclosingCall().Text
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Trim(name, `"`)

	var sigs []catalog.Object
	if r.lookup != nil {
		ctx, cancel := r.withTimeout()
		var err error
		sigs, err = r.lookup.FunctionSignatures(ctx, name)
		cancel()
		if err != nil {
			r.c.logger.Warn("Function signature lookup failed", zap.String("function", name), zap.Error(err))
		}
	}
	if len(sigs) == 0 {
		sigs = r.snap.Functions(name)
	}
	if len(sigs) == 0 {
		return nil, false
	}

	word := r.b.Word()
	var out []Candidate
	for i, sig := range sigs {
		c := objectCandidate(sig)
		c.InsertText = ""
		c.Snippet = false
		// Hints stay visible whatever has been typed.
		c.FilterText = word
		c.SortKey = fmt.Sprintf("a%03d", i)
		out = append(out, c)
	}
	for i, c := range r.columnCandidates() {
		c.SortKey = fmt.Sprintf("b%04d", i)
		out = append(out, c)
	}
	return out, true
}

func handleTruncate(r *request) ([]Candidate, bool) {
	b := r.b
	l := r.last(0)
	switch {
	case len(b.PrevTokens) == 1:
		return append(keywordCandidates("ONLY"), r.relationCandidates()...), true
	case l.Is("only") || l != nil && l.Text == ",":
		return r.relationCandidates(), true
	}
	var opts []string
	for _, o := range truncateOptions {
		if !strings.Contains(b.LowerText, strings.ToLower(o)) {
			opts = append(opts, o)
		}
	}
	return keywordCandidates(opts...), true
}

var explainBody = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"with": true, "execute": true, "values": true,
}

// handleExplain offers options inside EXPLAIN ( ... ) and the statement
// keywords after EXPLAIN. Once the explained statement has started it
// declines so the statement's own matchers apply.
func handleExplain(r *request) ([]Candidate, bool) {
	used := make(map[string]bool)
	for _, t := range r.b.PrevTokens {
		if explainBody[t.Lower] {
			return nil, false
		}
		used[t.Lower] = true
	}

	if call := r.enclosingCall(); call.Is("explain") {
		var out []Candidate
		for _, o := range explainOptions {
			if used[strings.ToLower(o.name)] {
				continue
			}
			out = append(out, Candidate{
				Label:         o.name,
				InsertText:    o.name,
				Category:      CategoryKeyword,
				Documentation: o.docs,
			})
		}
		return out, true
	}

	out := []Candidate{{
		Label:      "( ...options )",
		InsertText: "( $0 )",
		Category:   CategorySnippet,
		Snippet:    true,
	}}
	for _, kw := range []string{"ANALYZE", "VERBOSE"} {
		if !used[strings.ToLower(kw)] {
			out = append(out, keywordCandidates(kw)...)
		}
	}
	return append(out, keywordCandidates(explainStatements...)...), true
}

func handleCall(r *request) ([]Candidate, bool) {
	if len(r.b.PrevTokens) != 1 {
		return nil, false
	}
	return objectCandidates(r.snap.Functions("")), true
}

func matchPsql(r *request) bool {
	return strings.HasPrefix(strings.TrimSpace(r.b.PrevText), `\`)
}

// handlePsql replaces the whole block with the catalog query behind the
// chosen meta-command.
func handlePsql(r *request) ([]Candidate, bool) {
	b := r.b
	out := make([]Candidate, 0, len(psqlCommands))
	for _, c := range psqlCommands {
		out = append(out, Candidate{
			Label:      c.cmd + "   " + c.desc,
			InsertText: fmt.Sprintf("/* psql %s -- %s */\n%s", c.cmd, c.desc, c.query),
			Category:   CategorySnippet,
			Detail:     c.desc,
			FilterText: c.cmd + " " + c.desc,
			Replace:    Span{Start: b.StartOffset, End: b.EndOffset},
		})
	}
	return out, true
}

func matchCast(r *request) bool {
	l := r.last(0)
	return l != nil && l.Text == "::"
}

// handleCast lists data types by priority.
func handleCast(r *request) ([]Candidate, bool) {
	types := slices.Clone(r.dataTypes())
	sort.SliceStable(types, func(i, j int) bool { return types[i].Priority < types[j].Priority })
	out := objectCandidates(types)
	for i := range out {
		out[i].SortKey = fmt.Sprintf("%04d", types[i].Priority)
	}
	return out, true
}

func handleRefresh(r *request) ([]Candidate, bool) {
	for _, t := range r.b.Tokens {
		if t.Is("view") {
			return objectCandidates(r.snap.ByKind(catalog.KindMaterializedView)), true
		}
	}
	_, end := r.b.ReplaceSpan()
	return []Candidate{
		{
			Label:         "MATERIALIZED VIEW",
			InsertText:    "MATERIALIZED VIEW ",
			Category:      CategorySnippet,
			Documentation: keywordDocs["REFRESH"],
		},
		{
			Label:         "REFRESH MATERIALIZED VIEW CONCURRENTLY",
			InsertText:    "REFRESH MATERIALIZED VIEW CONCURRENTLY ",
			Category:      CategorySnippet,
			Documentation: keywordDocs["REFRESH"],
			Replace:       Span{Start: r.b.StartOffset, End: end},
		},
	}, true
}

func matchJoinDirection(r *request) bool {
	l := r.last(0)
	return l != nil && l.Type == sqltoken.Identifier && l.IsAny("inner", "left", "right")
}

func matchRelation(r *request) bool {
	a := r.anchor()
	if a == nil {
		return false
	}
	if a.Type.IsKeyword() && a.IsAny("from", "join", "into", "update", "table", "only") {
		return true
	}
	if a.Text == "," {
		return sqltoken.NearestKeyword(r.b.PrevTokens).Is("from")
	}
	return false
}

func handleRelation(r *request) ([]Candidate, bool) {
	return r.relationCandidates(), true
}

func matchSelectList(r *request) bool {
	kws := r.b.PrevTopKeywords()
	if len(kws) == 0 || kws[0].Keyword != "SELECT" {
		return false
	}
	a := r.anchor()
	return a != nil && (a.Is("select") || a.Is("distinct") || a.Text == ",")
}

// handleSelectList offers the columns of every relation the statement
// references, then functions. "alias." narrows to that relation's columns.
func handleSelectList(r *request) ([]Candidate, bool) {
	if q := r.qualifier(); q != "" {
		ref, ok := r.refByAlias(q)
		if !ok {
			return []Candidate{}, true
		}
		return objectCandidates(r.columnsOf(ref)), true
	}
	out := r.columnCandidates()
	return append(out, objectCandidates(r.snap.Functions(""))...), true
}
