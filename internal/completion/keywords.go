package completion

import (
	"fmt"
	"sort"

	"github.com/woxQAQ/sqlcursor/internal/codeblock"
)

var startingPriority = map[string]int{
	"SELECT":      0,
	"INSERT INTO": 1,
	"UPDATE":      2,
	"CREATE":      3,
	"DELETE FROM": 4,
	"DROP":        5,
	"WITH":        6,
	"ALTER":       7,
	"SET":         7,
	"RESET":       7,
	"GRANT":       9,
	"EXPLAIN":     10,
	"REVOKE":      10,
	"VACUUM":      11,
	"TRUNCATE":    14,
	"PREPARE":     14,
	"EXECUTE":     14,
	"CLUSTER":     16,
}

const defaultStartingPriority = 99

// startingKeywords is the fallback list: every statement-starting keyword,
// ordered by priority and then alphabetically.
var startingKeywords = func() []Candidate {
	words := make([]string, 0, len(codeblock.StartingKeywords))
	seen := make(map[string]bool)
	for _, kw := range codeblock.StartingKeywords {
		// Bare INSERT and DELETE are covered by their INTO / FROM forms.
		if kw == "INSERT" || kw == "DELETE" || seen[kw] {
			continue
		}
		seen[kw] = true
		words = append(words, kw)
	}
	priority := func(kw string) int {
		if p, ok := startingPriority[kw]; ok {
			return p
		}
		return defaultStartingPriority
	}
	sort.SliceStable(words, func(i, j int) bool {
		pi, pj := priority(words[i]), priority(words[j])
		if pi != pj {
			return pi < pj
		}
		return words[i] < words[j]
	})

	out := keywordCandidates(words...)
	for i := range out {
		out[i].SortKey = fmt.Sprintf("a%02d", priority(out[i].Label))
	}
	return out
}()

var keywordDocs = map[string]string{
	"SELECT":      "Retrieve rows from a table or view.",
	"INSERT INTO": "Create new rows in a table.",
	"UPDATE":      "Update rows of a table.",
	"CREATE":      "Define a new database object.",
	"DELETE FROM": "Delete rows of a table.",
	"DROP":        "Remove a database object.",
	"WITH":        "Define auxiliary statements (common table expressions) for use in a larger query.",
	"ALTER":       "Change the definition of a database object.",
	"SET":         "Change a run-time parameter.",
	"RESET":       "Restore the value of a run-time parameter to the default value.",
	"GRANT":       "Define access privileges.",
	"EXPLAIN":     "Show the execution plan of a statement.",
	"REVOKE":      "Remove access privileges.",
	"VACUUM":      "Garbage-collect and optionally analyze a database.",
	"TRUNCATE":    "Empty a table or set of tables.",
	"PREPARE":     "Prepare a statement for execution.",
	"EXECUTE":     "Execute a prepared statement.",
	"CLUSTER":     "Cluster a table according to an index.",
	"COPY":        "Copy data between a file and a table.",
	"REINDEX":     "Rebuild indexes.",
	"ROLLBACK":    "Abort the current transaction.",
	"DO":          "Execute an anonymous code block.",
	"BEGIN":       "Start a transaction block.",
	"CALL":        "Invoke a procedure.",
	"COMMENT":     "Define or change the comment of an object.",
	"NOTIFY":      "Generate a notification.",
	"LISTEN":      "Listen for a notification.",
	"SHOW":        "Show the value of a run-time parameter.",
	"REASSIGN":    "Change the ownership of database objects owned by a database role.",
	"TABLE":       "Retrieve all rows of a table. Equivalent to SELECT * FROM table.",
	"REFRESH":     "Replace the contents of a materialized view.",
	"ANALYZE":     "Collect statistics about a database.",

	"WHEN":    "Start a CASE branch.",
	"ONLY":    "If ONLY is specified before the table name, only that table is truncated. Otherwise the table and all its descendant tables (if any) are truncated.",
	"JOIN":    "Combine rows from two relations.",
	"AND":     "Both conditions must hold.",
	"OR":      "Either condition must hold.",
	"IN":      "Match any value of a list or subquery.",
	"NOT":     "Negate the following condition.",
	"VERBOSE": "Display additional information regarding the plan.",

	"RESTART IDENTITY":  "Automatically restart sequences owned by columns of the truncated table(s).",
	"CONTINUE IDENTITY": "Do not change the values of sequences. This is the default.",
	"CASCADE":           "Automatically truncate all tables that have foreign-key references to any of the named tables.",
	"RESTRICT":          "Refuse to truncate if any of the tables have foreign-key references from tables that are not listed in the command. This is the default.",
}

var truncateOptions = []string{"RESTART IDENTITY", "CONTINUE IDENTITY", "CASCADE", "RESTRICT"}

var explainOptions = []struct {
	name string
	docs string
}{
	{"ANALYZE", "Carry out the command and show actual run times and other statistics. Defaults to FALSE."},
	{"VERBOSE", "Display additional information regarding the plan. Defaults to FALSE."},
	{"COSTS", "Include the estimated startup and total cost of each plan node, and the estimated number and width of rows. Defaults to TRUE."},
	{"SETTINGS", "Include configuration parameters affecting query planning that differ from the built-in default. Defaults to FALSE."},
	{"GENERIC_PLAN", "Allow parameter placeholders like $1 and generate a generic plan. Cannot be used together with ANALYZE."},
	{"BUFFERS", "Include information on buffer usage. Defaults to FALSE."},
	{"WAL", "Include information on WAL record generation. Requires ANALYZE."},
	{"TIMING", "Include actual startup time and time spent in each node. Requires ANALYZE. Defaults to TRUE."},
	{"SUMMARY", "Include summary information such as totaled timing after the query plan."},
	{"FORMAT", "Specify the output format: TEXT, XML, JSON or YAML. Defaults to TEXT."},
}

// explainStatements may follow EXPLAIN and its options.
var explainStatements = []string{"SELECT", "INSERT INTO", "UPDATE", "DELETE FROM", "WITH", "EXECUTE", "VALUES"}

var formatPlaceholders = []struct {
	label string
	docs  string
}{
	{"%s", "SELECT format('Hello %s', 'world');\n=> 'Hello world'"},
	{"%I", "SELECT format('Hello %I', 'select');\n=> 'Hello \"select\"'"},
	{"%L", "SELECT format('Hello %L', 'world');\n=> 'Hello ''world'''"},
	{"%1$s", "SELECT format('%1$s apple, %2$s orange, %1$s banana', 'small', 'big');\n=> 'small apple, big orange, small banana'"},
}
