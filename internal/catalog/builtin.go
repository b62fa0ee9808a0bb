package catalog

import "sync"

// builtinTypes are ranked roughly by how often they are cast to.
var builtinTypes = []string{
	"text", "integer", "bigint", "numeric", "boolean", "date", "timestamp",
	"timestamptz", "jsonb", "uuid", "varchar", "json", "interval",
	"double precision", "real", "smallint", "time", "timetz", "bytea",
	"inet", "cidr", "macaddr", "money", "tsvector", "tsquery", "xml",
	"point", "int4range", "int8range", "numrange", "tsrange", "tstzrange",
	"daterange", "regclass", "regtype", "oid", "text[]", "integer[]",
}

var builtinOperators = []struct {
	name string
	left []string
}{
	{"=", nil},
	{"<>", nil},
	{"!=", nil},
	{"<", nil},
	{">", nil},
	{"<=", nil},
	{">=", nil},
	{"LIKE", []string{"text", "character", "name"}},
	{"ILIKE", []string{"text", "character", "name"}},
	{"~", []string{"text", "character", "name"}},
	{"~*", []string{"text", "character", "name"}},
	{"@>", []string{"json", "anyarray", "anyrange", "tsquery"}},
	{"<@", []string{"json", "anyarray", "anyelement", "tsquery"}},
	{"?", []string{"json"}},
	{"&&", []string{"anyarray", "anyrange", "tsvector"}},
	{"@@", []string{"tsvector", "text"}},
}

// Builtin returns the data types and operators every PostgreSQL server has.
// Callers use it when a snapshot carries none of its own.
var Builtin = sync.OnceValue(func() *Snapshot {
	objects := make([]Object, 0, len(builtinTypes)+len(builtinOperators))
	for i, name := range builtinTypes {
		objects = append(objects, Object{
			Kind:     KindDataType,
			Name:     name,
			Schema:   "pg_catalog",
			Priority: i,
		})
	}
	for _, op := range builtinOperators {
		objects = append(objects, Object{
			Kind:         KindOperator,
			Name:         op.name,
			Schema:       "pg_catalog",
			LeftArgTypes: op.left,
		})
	}
	return NewSnapshot(objects)
})
