package sqltoken

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var blockKeywords = wordSet("begin", "case", "end")

var choiceKeywords = wordSet("when", "then", "else")

// Word operators. like/ilike are keywords here and get promoted to operators
// in a post-pass.
var wordOperators = wordSet(
	"and", "or", "not", "in", "exists", "between", "is", "any", "all", "some",
)

var keywords = wordSet(
	"abort", "access", "action", "add", "admin", "after", "aggregate", "also",
	"alter", "always", "analyze", "analyse", "as", "asc", "assertion",
	"assignment", "asymmetric", "at", "attach", "attribute", "authorization",
	"backward", "before", "bigint", "binary", "boolean", "both", "buffers",
	"by", "cache", "call", "called", "cascade", "cascaded", "cast", "catalog",
	"chain", "char", "character", "characteristics", "check", "checkpoint",
	"class", "close", "cluster", "collate", "collation", "column", "columns",
	"comment", "comments", "commit", "committed", "concurrently",
	"configuration", "conflict", "connection", "constraint", "constraints",
	"continue", "conversion", "copy", "cost", "costs", "create", "cross",
	"csv", "cube", "current", "cursor", "cycle", "database", "deallocate",
	"dec", "decimal", "declare", "default", "defaults", "deferrable",
	"deferred", "definer", "delete", "delimiter", "delimiters", "depends",
	"desc", "detach", "dictionary", "disable", "discard", "distinct", "do",
	"domain", "double", "drop", "each", "enable", "encoding", "encrypted",
	"enum", "escape", "event", "except", "exclude", "excluding", "exclusive",
	"execute", "explain", "expression", "extension", "external", "false",
	"family", "fetch", "filter", "first", "float", "following", "for",
	"force", "foreign", "format", "forward", "freeze", "from", "full",
	"function", "functions", "generated", "global", "grant", "granted",
	"group", "grouping", "groups", "handler", "having", "hold", "identity",
	"if", "ilike", "immediate", "immutable", "implicit", "import", "include",
	"including", "increment", "index", "indexes", "inherit", "inherits",
	"initially", "inline", "inout", "input", "insensitive", "insert",
	"instead", "int", "integer", "intersect", "interval", "into", "invoker",
	"isolation", "join", "json", "jsonb", "language", "large", "last",
	"lateral", "leading", "leakproof", "like", "limit", "listen", "load",
	"local", "localtime", "localtimestamp", "lock", "locked", "logged",
	"mapping", "match", "materialized", "maxvalue", "method", "minvalue",
	"move", "national", "natural", "new", "next", "no", "none", "nothing",
	"notify", "nowait", "null", "nulls", "numeric", "object", "of", "off",
	"offset", "oids", "old", "on", "only", "operator", "option", "options",
	"ordinality", "others", "out", "outer", "over", "overlaps", "overriding",
	"owned", "parallel", "parser", "partial", "partition", "passing",
	"placing", "plans", "policy", "preceding", "precision", "prepare",
	"prepared", "preserve", "primary", "prior", "privileges", "procedural",
	"procedure", "procedures", "program", "publication", "quote", "range",
	"read", "real", "reassign", "recheck", "recursive", "ref", "references",
	"referencing", "refresh", "reindex", "relative", "release", "rename",
	"repeatable", "replace", "replica", "reset", "restart", "restrict",
	"return", "returning", "returns", "revoke", "role", "rollback", "rollup",
	"routine", "routines", "row", "rows", "rule", "savepoint", "schema",
	"schemas", "scroll", "search", "security", "select", "sequence",
	"sequences", "serializable", "server", "session", "session_user", "set",
	"setof", "sets", "settings", "share", "show", "similar", "simple", "skip",
	"smallint", "snapshot", "stable", "standalone", "start", "statement",
	"statistics", "stdin", "stdout", "storage", "stored", "strict", "strip",
	"subscription", "symmetric", "sysid", "system", "table", "tables",
	"tablesample", "tablespace", "temp", "template", "temporary", "ties",
	"time", "timestamp", "timing", "to", "trailing", "transaction",
	"transform", "treat", "trigger", "true", "truncate", "trusted",
	"unbounded", "uncommitted", "unencrypted", "union", "unique", "unknown",
	"unlisten", "unlogged", "until", "update", "using", "vacuum", "valid",
	"validate", "validator", "values", "varchar", "variadic", "varying",
	"verbose", "view", "views", "volatile", "wal", "where", "whitespace",
	"window", "with", "within", "without", "work", "wrapper", "write", "xml",
	"yes", "zone", "order",
)

var predefinedFunctions = wordSet(
	"abs", "age", "array_agg", "array_length", "avg", "bool_and", "bool_or",
	"ceil", "char_length", "coalesce", "concat", "concat_ws", "count",
	"current_date", "current_setting", "current_timestamp", "current_user",
	"date_part", "date_trunc", "extract", "floor", "format", "greatest",
	"json_agg", "json_build_object", "jsonb_agg", "jsonb_build_object",
	"least", "length", "lower", "lpad", "ltrim", "max", "md5", "min", "now",
	"nullif", "random", "regexp_replace", "repeat", "replace", "round",
	"row_number", "rpad", "rtrim", "split_part", "string_agg", "substr",
	"substring", "sum", "to_char", "to_date", "to_json", "to_jsonb",
	"to_timestamp", "trim", "unnest", "upper",
)

// classifyWord returns the token type for an unquoted word given in lower case.
func classifyWord(lower string) Type {
	if _, ok := blockKeywords[lower]; ok {
		return BlockKeyword
	}
	if _, ok := choiceKeywords[lower]; ok {
		return ChoiceKeyword
	}
	if _, ok := wordOperators[lower]; ok {
		return Operator
	}
	if _, ok := predefinedFunctions[lower]; ok {
		return PredefinedFunction
	}
	if _, ok := keywords[lower]; ok {
		return Keyword
	}
	return Identifier
}

// Operators recognized by longest match. '#' is scanned alone and merged with
// a following '>' in a post-pass.
var operatorList = []string{
	"->>", "!~~*", "!~~", "~~*", "!~*",
	"::", "<=", ">=", "<>", "!=", "||", "->", "@>", "<@", "~~", "~*", "!~",
	"&&", ":=", "=>", "<<", ">>", "?|", "?&", "@@",
	"+", "-", "*", "/", "%", "^", "=", "<", ">", "~", "!", "@", "&", "|",
	"?", ":", "\\",
}
