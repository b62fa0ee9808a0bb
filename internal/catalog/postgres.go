package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	queryRelations = `SELECT c.relkind, n.nspname, c.relname, coalesce(obj_description(c.oid, 'pg_class'), '')
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'p', 'v', 'm', 'f')
  AND n.nspname NOT IN ('pg_catalog', 'information_schema') AND n.nspname NOT LIKE 'pg_toast%'
  AND ($1 = '' OR n.nspname = ANY(string_to_array($1, ',')))
ORDER BY n.nspname, c.relname`

	queryColumns = `SELECT n.nspname, c.relname, a.attname, format_type(a.atttypid, a.atttypmod),
  coalesce(col_description(c.oid, a.attnum), '')
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE a.attnum > 0 AND NOT a.attisdropped AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
  AND n.nspname NOT IN ('pg_catalog', 'information_schema') AND n.nspname NOT LIKE 'pg_toast%'
  AND ($1 = '' OR n.nspname = ANY(string_to_array($1, ',')))
ORDER BY n.nspname, c.relname, a.attnum`

	queryFunctions = `SELECT n.nspname, p.proname, pg_get_function_identity_arguments(p.oid),
  coalesce(pg_get_function_result(p.oid), ''), coalesce(obj_description(p.oid, 'pg_proc'), '')
FROM pg_catalog.pg_proc p
JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
WHERE n.nspname NOT IN ('information_schema') AND n.nspname NOT LIKE 'pg_toast%'
  AND ($1 = '' OR n.nspname = 'pg_catalog' OR n.nspname = ANY(string_to_array($1, ',')))
  AND ($2 = '' OR p.proname = $2)
ORDER BY p.proname, n.nspname`

	queryDataTypes = `SELECT n.nspname, format_type(t.oid, NULL)
FROM pg_catalog.pg_type t
JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
WHERE t.typtype IN ('b', 'd', 'e', 'r', 'm') AND t.typelem = 0 AND t.typname NOT LIKE '\_%'
  AND n.nspname NOT IN ('information_schema') AND n.nspname NOT LIKE 'pg_toast%'
ORDER BY 2`

	queryOperators = `SELECT o.oprname, format_type(o.oprleft, NULL), coalesce(obj_description(o.oid, 'pg_operator'), '')
FROM pg_catalog.pg_operator o
WHERE o.oprleft <> 0
ORDER BY o.oprname`

	querySettings = `SELECT name, setting, short_desc FROM pg_catalog.pg_settings ORDER BY name`

	queryRoles = `SELECT rolname FROM pg_catalog.pg_roles ORDER BY rolname`
)

const defaultValueLimit = 20

// PostgresOptions controls introspection.
type PostgresOptions struct {
	// Schemas restricts relations and functions; empty means every
	// non-system schema.
	Schemas []string
	// ValueLimit caps ColumnValues results.
	ValueLimit int
}

// Postgres introspects a PostgreSQL server into a Snapshot and answers live
// lookups against it.
type Postgres struct {
	db     *sql.DB
	opts   PostgresOptions
	logger *zap.Logger
}

// OpenPostgres connects through the pgx database/sql driver and verifies
// the connection.
func OpenPostgres(ctx context.Context, dsn string, opts PostgresOptions, logger *zap.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return NewPostgres(db, opts, logger), nil
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB, opts PostgresOptions, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ValueLimit <= 0 {
		opts.ValueLimit = defaultValueLimit
	}
	return &Postgres{
		db:     db,
		opts:   opts,
		logger: logger.With(zap.String("component", "catalog.postgres")),
	}
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) schemaFilter() string {
	return strings.Join(p.opts.Schemas, ",")
}

// Snapshot runs the catalog queries concurrently and assembles the result.
// Any failed query fails the whole snapshot.
func (p *Postgres) Snapshot(ctx context.Context) (*Snapshot, error) {
	var relations, columns, functions, types, operators, settings, roles []Object

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		relations, err = p.relations(gctx)
		return err
	})
	g.Go(func() (err error) {
		columns, err = p.columns(gctx)
		return err
	})
	g.Go(func() (err error) {
		functions, err = p.functions(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		types, err = p.dataTypes(gctx)
		return err
	})
	g.Go(func() (err error) {
		operators, err = p.operators(gctx)
		return err
	})
	g.Go(func() (err error) {
		settings, err = p.settings(gctx)
		return err
	})
	g.Go(func() (err error) {
		roles, err = p.roles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var objects []Object
	for _, part := range [][]Object{relations, columns, functions, types, operators, settings, roles} {
		objects = append(objects, part...)
	}
	p.logger.Info("Catalog introspected",
		zap.Int("relations", len(relations)),
		zap.Int("columns", len(columns)),
		zap.Int("functions", len(functions)))
	return NewSnapshot(objects), nil
}

// FunctionSignatures implements LiveLookup.
func (p *Postgres) FunctionSignatures(ctx context.Context, name string) ([]Object, error) {
	if name == "" {
		return nil, nil
	}
	return p.functions(ctx, strings.ToLower(name))
}

// ColumnValues implements LiveLookup. The query runs in a read-only
// transaction that is always rolled back.
func (p *Postgres) ColumnValues(ctx context.Context, req ColumnValuesRequest) ([]string, error) {
	if req.Table == "" || req.Column == "" {
		return nil, nil
	}
	limit := req.Limit
	if limit <= 0 || limit > p.opts.ValueLimit {
		limit = p.opts.ValueLimit
	}

	table := pgx.Identifier{req.Table}
	if req.Schema != "" {
		table = pgx.Identifier{req.Schema, req.Table}
	}
	col := pgx.Identifier{req.Column}.Sanitize()
	query := fmt.Sprintf(
		"SELECT DISTINCT LEFT(%[1]s::TEXT, 500) FROM %[2]s WHERE LEFT(%[1]s::TEXT, 500) ILIKE $1 ORDER BY 1 LIMIT %[3]d",
		col, table.Sanitize(), limit)

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, &IntrospectionError{Query: "column values", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, "%"+escapeLike(req.Prefix)+"%")
	if err != nil {
		return nil, &IntrospectionError{Query: "column values", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, &IntrospectionError{Query: "column values", Err: err}
		}
		if v.Valid {
			values = append(values, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Query: "column values", Err: err}
	}
	return values, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// collect runs query and maps each row through scan.
func (p *Postgres) collect(ctx context.Context, name, query string, scan func(*sql.Rows) (Object, error), args ...any) ([]Object, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &IntrospectionError{Query: name, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []Object
	for rows.Next() {
		o, err := scan(rows)
		if err != nil {
			return nil, &IntrospectionError{Query: name, Err: err}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Query: name, Err: err}
	}
	return out, nil
}

var relkinds = map[string]Kind{
	"r": KindTable, "p": KindTable, "f": KindTable,
	"v": KindView,
	"m": KindMaterializedView,
}

func (p *Postgres) relations(ctx context.Context) ([]Object, error) {
	return p.collect(ctx, "relations", queryRelations, func(rows *sql.Rows) (Object, error) {
		var relkind string
		var o Object
		err := rows.Scan(&relkind, &o.Schema, &o.Name, &o.Documentation)
		o.Kind = relkinds[relkind]
		if o.Kind == "" {
			o.Kind = KindTable
		}
		return o, err
	}, p.schemaFilter())
}

func (p *Postgres) columns(ctx context.Context) ([]Object, error) {
	return p.collect(ctx, "columns", queryColumns, func(rows *sql.Rows) (Object, error) {
		o := Object{Kind: KindColumn}
		err := rows.Scan(&o.Schema, &o.Parent, &o.Name, &o.DataType, &o.Documentation)
		o.Detail = o.DataType
		return o, err
	}, p.schemaFilter())
}

func (p *Postgres) functions(ctx context.Context, name string) ([]Object, error) {
	return p.collect(ctx, "functions", queryFunctions, func(rows *sql.Rows) (Object, error) {
		o := Object{Kind: KindFunction}
		var args string
		err := rows.Scan(&o.Schema, &o.Name, &args, &o.Returns, &o.Documentation)
		o.Args = splitArgs(args)
		o.Detail = o.Returns
		return o, err
	}, p.schemaFilter(), name)
}

func (p *Postgres) dataTypes(ctx context.Context) ([]Object, error) {
	ranks := make(map[string]int, len(builtinTypes))
	for i, t := range builtinTypes {
		ranks[t] = i
	}
	return p.collect(ctx, "data types", queryDataTypes, func(rows *sql.Rows) (Object, error) {
		o := Object{Kind: KindDataType}
		err := rows.Scan(&o.Schema, &o.Name)
		o.Priority = len(builtinTypes)
		if r, ok := ranks[o.Name]; ok {
			o.Priority = r
		}
		return o, err
	})
}

func (p *Postgres) operators(ctx context.Context) ([]Object, error) {
	all, err := p.collect(ctx, "operators", queryOperators, func(rows *sql.Rows) (Object, error) {
		o := Object{Kind: KindOperator, Schema: "pg_catalog"}
		var left string
		err := rows.Scan(&o.Name, &left, &o.Documentation)
		o.LeftArgTypes = []string{left}
		return o, err
	})
	if err != nil {
		return nil, err
	}
	// One object per operator name, holding every left operand type.
	var out []Object
	index := make(map[string]int)
	for _, o := range all {
		if i, ok := index[o.Name]; ok {
			out[i].LeftArgTypes = append(out[i].LeftArgTypes, o.LeftArgTypes...)
			continue
		}
		index[o.Name] = len(out)
		out = append(out, o)
	}
	return out, nil
}

func (p *Postgres) settings(ctx context.Context) ([]Object, error) {
	return p.collect(ctx, "settings", querySettings, func(rows *sql.Rows) (Object, error) {
		o := Object{Kind: KindSetting}
		err := rows.Scan(&o.Name, &o.DataType, &o.Documentation)
		o.Detail = o.DataType
		return o, err
	})
}

func (p *Postgres) roles(ctx context.Context) ([]Object, error) {
	return p.collect(ctx, "roles", queryRoles, func(rows *sql.Rows) (Object, error) {
		o := Object{Kind: KindRole}
		return o, rows.Scan(&o.Name)
	})
}

// splitArgs splits an identity argument list on top-level commas.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
