package catalog

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMockPostgres(t *testing.T, opts PostgresOptions) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db, opts, zaptest.NewLogger(t)), mock
}

func TestPostgres_Snapshot(t *testing.T) {
	p, mock := newMockPostgres(t, PostgresOptions{Schemas: []string{"public", "sales"}})
	// The catalog queries run concurrently.
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("FROM pg_catalog.pg_class").
		WithArgs("public,sales").
		WillReturnRows(sqlmock.NewRows([]string{"relkind", "nspname", "relname", "comment"}).
			AddRow("r", "public", "orders", "Customer orders").
			AddRow("m", "sales", "monthly", ""))
	mock.ExpectQuery("FROM pg_catalog.pg_attribute").
		WithArgs("public,sales").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "attname", "type", "comment"}).
			AddRow("public", "orders", "id", "integer", "").
			AddRow("public", "orders", "status", "text", "order state"))
	mock.ExpectQuery("FROM pg_catalog.pg_proc").
		WithArgs("public,sales", "").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "proname", "args", "result", "comment"}).
			AddRow("pg_catalog", "left", "text, integer", "text", "extract the first n characters"))
	mock.ExpectQuery("FROM pg_catalog.pg_type").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "name"}).
			AddRow("pg_catalog", "integer").
			AddRow("public", "mood"))
	mock.ExpectQuery("FROM pg_catalog.pg_operator").
		WillReturnRows(sqlmock.NewRows([]string{"oprname", "left", "comment"}).
			AddRow("~~", "text", "matches LIKE expression").
			AddRow("~~", "character", "matches LIKE expression").
			AddRow("@>", "jsonb", ""))
	mock.ExpectQuery("FROM pg_catalog.pg_settings").
		WillReturnRows(sqlmock.NewRows([]string{"name", "setting", "short_desc"}).
			AddRow("work_mem", "4096", "Sets the maximum memory to be used for query workspaces."))
	mock.ExpectQuery("FROM pg_catalog.pg_roles").
		WillReturnRows(sqlmock.NewRows([]string{"rolname"}).AddRow("postgres"))

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	rels := snap.Relations()
	require.Len(t, rels, 2)
	assert.Equal(t, KindTable, rels[0].Kind)
	assert.Equal(t, KindMaterializedView, rels[1].Kind)

	cols := snap.Columns("public", "orders")
	require.Len(t, cols, 2)
	assert.Equal(t, "order state", cols[1].Documentation)

	fns := snap.Functions("left")
	require.Len(t, fns, 1)
	assert.Equal(t, []string{"text", "integer"}, fns[0].Args)

	types := snap.ByKind(KindDataType)
	require.Len(t, types, 2)
	assert.Equal(t, 1, types[0].Priority, "integer ranks after text")
	assert.Equal(t, len(builtinTypes), types[1].Priority)

	ops := snap.ByKind(KindOperator)
	require.Len(t, ops, 2)
	assert.Equal(t, []string{"text", "character"}, ops[0].LeftArgTypes)

	assert.Len(t, snap.ByKind(KindSetting), 1)
	assert.Len(t, snap.ByKind(KindRole), 1)
}

func TestPostgres_SnapshotQueryError(t *testing.T) {
	p, mock := newMockPostgres(t, PostgresOptions{})
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("FROM pg_catalog.pg_class").WillReturnError(assert.AnError)

	_, err := p.Snapshot(context.Background())
	require.Error(t, err)

	var qerr *IntrospectionError
	require.ErrorAs(t, err, &qerr)
}

func TestPostgres_FunctionSignatures(t *testing.T) {
	p, mock := newMockPostgres(t, PostgresOptions{})
	mock.ExpectQuery("FROM pg_catalog.pg_proc").
		WithArgs("", "format").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "proname", "args", "result", "comment"}).
			AddRow("pg_catalog", "format", "text", "text", "").
			AddRow("pg_catalog", "format", `text, VARIADIC "any"`, "text", ""))

	fns, err := p.FunctionSignatures(context.Background(), "FORMAT")
	require.NoError(t, err)
	require.Len(t, fns, 2)
	assert.Equal(t, `format(text, VARIADIC "any")`, fns[1].Signature())
	require.NoError(t, mock.ExpectationsWereMet())

	fns, err = p.FunctionSignatures(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, fns)
}

func TestPostgres_ColumnValues(t *testing.T) {
	p, mock := newMockPostgres(t, PostgresOptions{ValueLimit: 5})
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT DISTINCT LEFT("status"::TEXT, 500) FROM "public"."orders" WHERE LEFT("status"::TEXT, 500) ILIKE $1 ORDER BY 1 LIMIT 5`)).
		WithArgs(`%pa\_d%`).
		WillReturnRows(sqlmock.NewRows([]string{"str"}).AddRow("pa_d").AddRow(nil))
	mock.ExpectRollback()

	vals, err := p.ColumnValues(context.Background(), ColumnValuesRequest{
		Schema: "public", Table: "orders", Column: "status", Prefix: "pa_d", Limit: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pa_d"}, vals)
	require.NoError(t, mock.ExpectationsWereMet())

	vals, err = p.ColumnValues(context.Background(), ColumnValuesRequest{Table: "orders"})
	assert.NoError(t, err)
	assert.Nil(t, vals)
}

func TestSplitArgs(t *testing.T) {
	assert.Nil(t, splitArgs(" "))
	assert.Equal(t, []string{"numeric(10, 2)", "text"}, splitArgs("numeric(10, 2), text"))
}
