package completion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/codeblock"
	"github.com/woxQAQ/sqlcursor/internal/sqltoken"
	"github.com/woxQAQ/sqlcursor/pkg/protocol"
)

func testSnapshot() *catalog.Snapshot {
	col := func(rel, name, typ string) catalog.Object {
		return catalog.Object{Kind: catalog.KindColumn, Schema: "public", Parent: rel, Name: name, DataType: typ}
	}
	return catalog.NewSnapshot([]catalog.Object{
		{Kind: catalog.KindTable, Schema: "public", Name: "orders"},
		{Kind: catalog.KindTable, Schema: "public", Name: "customers"},
		{Kind: catalog.KindMaterializedView, Schema: "reporting", Name: "daily_totals"},
		col("orders", "id", "integer"),
		col("orders", "customer_id", "integer"),
		col("orders", "status", "text"),
		col("customers", "id", "integer"),
		col("customers", "name", "text"),
		{Kind: catalog.KindFunction, Schema: "pg_catalog", Name: "format", Args: []string{"text", `VARIADIC "any"`}, Returns: "text"},
		{Kind: catalog.KindFunction, Schema: "public", Name: "order_total", Args: []string{"order_id integer"}, Returns: "numeric"},
		{Kind: catalog.KindDataType, Name: "jsonb", Priority: 2},
		{Kind: catalog.KindDataType, Name: "text", Priority: 0},
		{Kind: catalog.KindDataType, Name: "integer", Priority: 1},
		{Kind: catalog.KindOperator, Name: "="},
		{Kind: catalog.KindOperator, Name: "~~", LeftArgTypes: []string{"text"}},
		{Kind: catalog.KindOperator, Name: "@>", LeftArgTypes: []string{"jsonb"}},
	})
}

const (
	formatSig     = `format(text, VARIADIC "any")`
	orderTotalSig = "order_total(order_id integer)"
)

type fakeLookup struct {
	values []string
	sigs   []catalog.Object
	err    error

	valueReqs []catalog.ColumnValuesRequest
	sigNames  []string
}

func (f *fakeLookup) FunctionSignatures(_ context.Context, name string) ([]catalog.Object, error) {
	f.sigNames = append(f.sigNames, name)
	return f.sigs, f.err
}

func (f *fakeLookup) ColumnValues(_ context.Context, req catalog.ColumnValuesRequest) ([]string, error) {
	f.valueReqs = append(f.valueReqs, req)
	return f.values, f.err
}

// block resolves text with the cursor at the '|' marker.
func block(t *testing.T, text string) *codeblock.Block {
	t.Helper()
	cursor := strings.Index(text, "|")
	require.GreaterOrEqual(t, cursor, 0, "missing cursor marker")
	doc := codeblock.NewDocument(strings.Replace(text, "|", "", 1))
	return codeblock.Resolve(doc, cursor, codeblock.Options{})
}

func complete(t *testing.T, text string, lookup catalog.LiveLookup) []Candidate {
	t.Helper()
	c := NewClassifier(zaptest.NewLogger(t), DefaultOptions())
	return c.Classify(context.Background(), block(t, text), testSnapshot(), lookup)
}

func labels(cands []Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Label)
	}
	return out
}

func find(t *testing.T, cands []Candidate, label string) Candidate {
	t.Helper()
	for _, c := range cands {
		if c.Label == label {
			return c
		}
	}
	t.Fatalf("candidate %q not found in %v", label, labels(cands))
	return Candidate{}
}

func TestClassify_InsideComment(t *testing.T) {
	cands := complete(t, "SELECT 1 -- co|mment", nil)
	assert.NotNil(t, cands)
	assert.Empty(t, cands)
}

func TestClassify_FallbackIsDeterministic(t *testing.T) {
	first := complete(t, "|", nil)
	second := complete(t, "|", nil)
	require.Equal(t, first, second)
	require.Len(t, first, len(startingKeywords))

	assert.Equal(t,
		[]string{"SELECT", "INSERT INTO", "UPDATE", "CREATE", "DELETE FROM", "DROP", "WITH", "ALTER", "RESET", "SET"},
		labels(first[:10]))
	assert.Equal(t, "a00", first[0].SortKey)
	assert.Equal(t, "a07", first[7].SortKey)
	assert.Equal(t, "a07", first[9].SortKey)
	assert.Equal(t, CategoryKeyword, first[0].Category)
	assert.NotEmpty(t, first[0].Documentation)
	assert.NotContains(t, labels(first), "INSERT")
	assert.NotContains(t, labels(first), "DELETE")
}

func TestClassify_FallbackReplacesTypedWord(t *testing.T) {
	cands := complete(t, "sel|", nil)
	require.NotEmpty(t, cands)
	assert.Equal(t, "SELECT", cands[0].Label)
	assert.Equal(t, Span{Start: 0, End: 3}, cands[0].Replace)
}

func TestClassify_Relations(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		labels []string
	}{
		{"after FROM", "SELECT * FROM |", []string{"orders", "customers", "daily_totals"}},
		{"after JOIN", "SELECT * FROM orders o JOIN |", []string{"orders", "customers", "daily_totals"}},
		{"after comma in FROM", "SELECT * FROM orders o,|", []string{"orders", "customers", "daily_totals"}},
		{"TABLE statement", "TABLE |", []string{"orders", "customers", "daily_totals"}},
		{"schema qualified", "SELECT * FROM reporting.|", []string{"daily_totals"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.labels, labels(complete(t, tt.text, nil)))
		})
	}
}

func TestClassify_RelationInsertText(t *testing.T) {
	cands := complete(t, "SELECT * FROM |", nil)
	assert.Equal(t, "orders", find(t, cands, "orders").InsertText)
	assert.Equal(t, "reporting.daily_totals", find(t, cands, "daily_totals").InsertText)
	assert.Equal(t, Span{Start: 14, End: 14}, cands[0].Replace)

	qualified := complete(t, "SELECT * FROM reporting.|", nil)
	require.Len(t, qualified, 1)
	assert.Equal(t, "daily_totals", qualified[0].InsertText)
}

func TestClassify_SelectList(t *testing.T) {
	cands := complete(t, "SELECT | FROM orders o", nil)
	assert.Equal(t, []string{"id", "customer_id", "status", formatSig, orderTotalSig}, labels(cands))

	fn := find(t, cands, formatSig)
	assert.Equal(t, "format($0)", fn.InsertText)
	assert.True(t, fn.Snippet)
	assert.Equal(t, "format", fn.FilterText)
	assert.Equal(t, "returns text", fn.Detail)
	assert.Equal(t, "integer", find(t, cands, "id").Detail)
}

func TestClassify_SelectListQualified(t *testing.T) {
	cands := complete(t, "SELECT o.| FROM orders o", nil)
	assert.Equal(t, []string{"id", "customer_id", "status"}, labels(cands))
	assert.Equal(t, Span{Start: 9, End: 9}, cands[0].Replace)

	partial := complete(t, "SELECT o.st| FROM orders o", nil)
	assert.Equal(t, []string{"id", "customer_id", "status"}, labels(partial))
	assert.Equal(t, Span{Start: 9, End: 11}, partial[0].Replace)

	unknown := complete(t, "SELECT x.| FROM orders o", nil)
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

func TestClassify_SelectListTwoRelations(t *testing.T) {
	cands := complete(t, "SELECT | FROM orders o JOIN customers c ON c.id = o.customer_id", nil)
	assert.Equal(t, "o · integer", cands[0].Detail)
	assert.Equal(t, "name", cands[4].Label)
	assert.Equal(t, "c · text", cands[4].Detail)
}

func TestClassify_ConditionRanksColumnsByType(t *testing.T) {
	cands := complete(t, "SELECT * FROM orders WHERE status = |", nil)
	assert.Equal(t, []string{"id", "customer_id", "status", formatSig, orderTotalSig}, labels(cands))
	assert.Equal(t, "a0002", find(t, cands, "status").SortKey)
	assert.Equal(t, "b0000", find(t, cands, "id").SortKey)
	assert.Equal(t, "c0000", find(t, cands, formatSig).SortKey)
	assert.Equal(t, "d0001", find(t, cands, orderTotalSig).SortKey)
}

func TestClassify_Condition(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		labels []string
	}{
		{
			name:   "operators for a text column",
			text:   "SELECT * FROM orders WHERE status |",
			labels: []string{"=", "~~", "IN", "NOT", "IS NULL", "IS NOT NULL"},
		},
		{
			name:   "after a complete comparison",
			text:   "SELECT * FROM orders WHERE status = 'paid' |",
			labels: []string{"AND", "OR"},
		},
		{
			name:   "after IS",
			text:   "SELECT * FROM orders WHERE status IS |",
			labels: []string{"NULL", "NOT NULL", "TRUE", "FALSE", "DISTINCT FROM"},
		},
		{
			name:   "after IS NOT",
			text:   "SELECT * FROM orders WHERE status IS NOT |",
			labels: []string{"NULL", "TRUE", "FALSE", "DISTINCT FROM"},
		},
		{
			name:   "qualified column in ON",
			text:   "SELECT * FROM orders o JOIN customers c ON c.|",
			labels: []string{"id", "name"},
		},
		{
			name:   "after closed group",
			text:   "SELECT * FROM orders WHERE (status = 'a') |",
			labels: []string{"=", "~~", "@>", "IS NULL", "IS NOT NULL", "AND", "OR"},
		},
		{
			name:   "json selector",
			text:   "SELECT * FROM orders WHERE status->|",
			labels: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.labels, labels(complete(t, tt.text, nil)))
		})
	}
}

func TestClassify_JoinCondition(t *testing.T) {
	cands := complete(t, "SELECT * FROM orders o JOIN customers c ON |", nil)
	assert.Equal(t, []string{"id", "customer_id", "status", "id", "name", formatSig, orderTotalSig}, labels(cands))
}

func TestClassify_ColumnValues(t *testing.T) {
	lookup := &fakeLookup{values: []string{"paid", "o'brien"}}
	cands := complete(t, "SELECT * FROM orders WHERE status = 'pa|'", lookup)

	require.Len(t, lookup.valueReqs, 1)
	assert.Equal(t, catalog.ColumnValuesRequest{Table: "orders", Column: "status", Prefix: "pa", Limit: 20}, lookup.valueReqs[0])

	assert.Equal(t, []string{"paid", "o'brien"}, labels(cands))
	assert.Equal(t, "o''brien", cands[1].InsertText)
	assert.Equal(t, CategoryValue, cands[0].Category)
	assert.Equal(t, Span{Start: 37, End: 39}, cands[0].Replace)
}

func TestClassify_ColumnValuesInList(t *testing.T) {
	lookup := &fakeLookup{values: []string{"paid"}}
	cands := complete(t, "SELECT * FROM orders WHERE status IN ('paid', '|')", lookup)

	require.Len(t, lookup.valueReqs, 1)
	assert.Equal(t, "status", lookup.valueReqs[0].Column)
	assert.Empty(t, lookup.valueReqs[0].Prefix)
	assert.Equal(t, []string{"paid"}, labels(cands))
}

func TestClassify_ColumnValuesDegrade(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := NewClassifier(zap.New(core), DefaultOptions())
	lookup := &fakeLookup{err: errors.New("connection refused")}

	cands := c.Classify(context.Background(), block(t, "SELECT * FROM orders WHERE status = 'pa|'"), testSnapshot(), lookup)
	assert.NotNil(t, cands)
	assert.Empty(t, cands)
	assert.Equal(t, 1, logs.FilterMessage("Column value lookup failed").Len())

	withoutLookup := complete(t, "SELECT * FROM orders WHERE status = 'pa|'", nil)
	assert.NotNil(t, withoutLookup)
	assert.Empty(t, withoutLookup)
}

func TestClassify_FunctionSignature(t *testing.T) {
	cands := complete(t, "SELECT format(|) FROM orders", nil)
	require.Equal(t, []string{formatSig, "id", "customer_id", "status"}, labels(cands))

	hint := cands[0]
	assert.Empty(t, hint.InsertText)
	assert.False(t, hint.Snippet)
	assert.Equal(t, "a000", hint.SortKey)
	assert.Equal(t, "b0000", cands[1].SortKey)

	second := complete(t, "SELECT order_total(1, |) FROM orders", nil)
	assert.Equal(t, orderTotalSig, second[0].Label)
}

func TestClassify_FunctionSignatureLookup(t *testing.T) {
	lookup := &fakeLookup{sigs: []catalog.Object{
		{Kind: catalog.KindFunction, Name: "format", Args: []string{"text"}, Returns: "text"},
	}}
	cands := complete(t, "SELECT format(|) FROM orders", lookup)
	assert.Equal(t, []string{"format"}, lookup.sigNames)
	assert.Equal(t, "format(text)", cands[0].Label)

	failing := &fakeLookup{err: errors.New("timeout")}
	cands = complete(t, "SELECT format(|) FROM orders", failing)
	assert.Equal(t, formatSig, cands[0].Label)
}

func TestClassify_Cast(t *testing.T) {
	cands := complete(t, "SELECT id::| FROM orders", nil)
	assert.Equal(t, []string{"text", "integer", "jsonb"}, labels(cands))
	assert.Equal(t, []string{"0000", "0001", "0002"}, []string{cands[0].SortKey, cands[1].SortKey, cands[2].SortKey})
	assert.Equal(t, Span{Start: 11, End: 11}, cands[0].Replace)

	c := NewClassifier(zaptest.NewLogger(t), DefaultOptions())
	builtin := c.Classify(context.Background(), block(t, "SELECT id::|"), nil, nil)
	require.NotEmpty(t, builtin)
	assert.Equal(t, "text", builtin[0].Label)
}

func TestClassify_PsqlCommands(t *testing.T) {
	cands := complete(t, "SELECT 1;\n\\d|", nil)
	require.Len(t, cands, len(psqlCommands))

	dt := find(t, cands, `\dt   list tables`)
	assert.Equal(t, CategorySnippet, dt.Category)
	assert.Equal(t, `\dt list tables`, dt.FilterText)
	assert.True(t, strings.HasPrefix(dt.InsertText, "/* psql \\dt -- list tables */\n"))
	assert.Contains(t, dt.InsertText, "FROM pg_catalog.pg_class c")
	assert.Equal(t, Span{Start: 10, End: 12}, dt.Replace)
}

func TestClassify_Wildcard(t *testing.T) {
	kinds := complete(t, "?|", nil)
	require.Len(t, kinds, len(catalog.Kinds))
	assert.Equal(t, "table", kinds[0].Label)
	assert.Equal(t, "2 objects", kinds[0].Detail)

	tables := complete(t, "? table |", nil)
	assert.Equal(t, []string{"orders", "customers"}, labels(tables))
	assert.Equal(t, Span{Start: 0, End: 8}, tables[0].Replace)
	assert.Equal(t, "? table orders", tables[0].FilterText)
}

func TestClassify_Truncate(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		labels []string
	}{
		{"first word", "TRUNCATE |", []string{"ONLY", "orders", "customers", "daily_totals"}},
		{"after ONLY", "TRUNCATE ONLY |", []string{"orders", "customers", "daily_totals"}},
		{"options", "TRUNCATE orders |", []string{"RESTART IDENTITY", "CONTINUE IDENTITY", "CASCADE", "RESTRICT"}},
		{"used option", "TRUNCATE orders CASCADE |", []string{"RESTART IDENTITY", "CONTINUE IDENTITY", "RESTRICT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.labels, labels(complete(t, tt.text, nil)))
		})
	}
}

func TestClassify_FirstWordBeingTyped(t *testing.T) {
	strict := NewClassifier(zaptest.NewLogger(t), Options{StrictInvariants: true})
	fallbackLabels := labels(complete(t, "|", nil))

	tests := []struct {
		text string
		word string
	}{
		{"TRUNCATE|", "TRUNCATE"},
		{"|TRUNCATE orders", "TRUNCATE"},
		{"TABLE|", "TABLE"},
		{"REFRESH|", "REFRESH"},
		{"CALL|", "CALL"},
		{"EXPLAIN|", "EXPLAIN"},
		{"DROP|", "DROP"},
		{"VACUUM|", "VACUUM"},
		{"GRANT|", "GRANT"},
		{"REVOKE|", "REVOKE"},
		{"WITH|", "WITH"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var cands []Candidate
			require.NotPanics(t, func() {
				cands = strict.Classify(context.Background(), block(t, tt.text), testSnapshot(), nil)
			})
			assert.Equal(t, fallbackLabels, labels(cands))
			assert.Contains(t, labels(cands), tt.word)
		})
	}
}

func TestClassify_Explain(t *testing.T) {
	start := labels(complete(t, "EXPLAIN |", nil))
	require.GreaterOrEqual(t, len(start), 4)
	assert.Equal(t, []string{"( ...options )", "ANALYZE", "VERBOSE", "SELECT"}, start[:4])

	opts := labels(complete(t, "EXPLAIN (ANALYZE, |)", nil))
	assert.NotContains(t, opts, "ANALYZE")
	assert.Contains(t, opts, "COSTS")
	assert.Contains(t, opts, "FORMAT")

	body := labels(complete(t, "EXPLAIN SELECT |", nil))
	assert.Equal(t, []string{formatSig, orderTotalSig}, body)
}

func TestClassify_Keywords(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		labels []string
	}{
		{"case", "SELECT CASE |", []string{"WHEN"}},
		{"join direction", "SELECT * FROM orders o LEFT |", []string{"JOIN"}},
		{"refresh", "REFRESH |", []string{"MATERIALIZED VIEW", "REFRESH MATERIALIZED VIEW CONCURRENTLY"}},
		{"refresh view", "REFRESH MATERIALIZED VIEW |", []string{"daily_totals"}},
		{"call", "CALL |", []string{formatSig, orderTotalSig}},
		{"format placeholders", "SELECT format('%|')", []string{"%s", "%I", "%L", "%1$s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.labels, labels(complete(t, tt.text, nil)))
		})
	}
}

func TestClassify_RefreshReplacesStatement(t *testing.T) {
	cands := complete(t, "REFRESH |", nil)
	require.Len(t, cands, 2)
	assert.Equal(t, Span{Start: 8, End: 8}, cands[0].Replace)
	assert.Equal(t, Span{Start: 0, End: 8}, cands[1].Replace)
}

func TestClassify_MaxCandidates(t *testing.T) {
	c := NewClassifier(zaptest.NewLogger(t), Options{MaxCandidates: 2})
	cands := c.Classify(context.Background(), block(t, "SELECT * FROM cu|"), testSnapshot(), nil)
	assert.Equal(t, []string{"customers", "orders"}, labels(cands))
}

func TestClassify_InvalidTokens(t *testing.T) {
	b := &codeblock.Block{Tokens: []sqltoken.Token{{Offset: 5, End: 3, Text: "x"}}}

	lenient := NewClassifier(zaptest.NewLogger(t), DefaultOptions())
	assert.Nil(t, lenient.Classify(context.Background(), b, nil, nil))

	strict := NewClassifier(zaptest.NewLogger(t), Options{StrictInvariants: true})
	assert.Panics(t, func() {
		strict.Classify(context.Background(), b, nil, nil)
	})
}

func TestItems(t *testing.T) {
	c := NewClassifier(zaptest.NewLogger(t), DefaultOptions())
	b := block(t, "SELECT\n  o.st| FROM orders o")
	items := c.Items(b, c.Classify(context.Background(), b, testSnapshot(), nil))
	require.Len(t, items, 3)

	status := items[2]
	assert.Equal(t, "status", status.Label)
	assert.Equal(t, protocol.CompletionItemKindColumn, status.Kind)
	assert.Equal(t, "z0002", status.SortText)
	assert.Equal(t, protocol.InsertTextFormatPlainText, status.InsertTextFormat)
	require.NotNil(t, status.TextEdit)
	assert.Equal(t, "status", status.TextEdit.NewText)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 4},
		End:   protocol.Position{Line: 1, Character: 6},
	}, status.TextEdit.Range)

	fns := c.Items(b, complete(t, "SELECT | FROM orders", nil))
	assert.Equal(t, protocol.InsertTextFormatSnippet, fns[3].InsertTextFormat)
	assert.Equal(t, protocol.CompletionItemKindFunction, fns[3].Kind)
}
