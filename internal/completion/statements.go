package completion

import (
	"strings"

	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/sqltoken"
)

// option is a keyword with its own documentation, for words whose meaning
// depends on the statement (CASCADE after DROP is not CASCADE after
// TRUNCATE).
type option struct {
	name string
	docs string
}

func optionCandidates(opts []option, used map[string]bool) []Candidate {
	out := make([]Candidate, 0, len(opts))
	for _, o := range opts {
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
	return out
}

func typedWords(tokens []sqltoken.Token) map[string]bool {
	used := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		used[t.Lower] = true
	}
	return used
}

func isText(t *sqltoken.Token, text string) bool { return t != nil && t.Text == text }

func roleCandidates(r *request) []Candidate {
	out := objectCandidates(r.snap.ByKind(catalog.KindRole))
	return append(out, keywordCandidates("PUBLIC", "CURRENT_USER", "SESSION_USER")...)
}

// dropObject pairs an object type DROP accepts with the catalog kind that
// lists its instances.
type dropObject struct {
	label string
	kind  catalog.Kind
}

var dropObjects = []dropObject{
	{"TABLE", catalog.KindTable},
	{"VIEW", catalog.KindView},
	{"MATERIALIZED VIEW", catalog.KindMaterializedView},
	{"INDEX", catalog.KindIndex},
	{"FUNCTION", catalog.KindFunction},
	{"PROCEDURE", catalog.KindFunction},
	{"TYPE", catalog.KindDataType},
	{"SCHEMA", catalog.KindSchema},
	{"EXTENSION", catalog.KindExtension},
	{"ROLE", catalog.KindRole},
	{"DATABASE", catalog.KindDatabase},
	{"POLICY", catalog.KindPolicy},
	{"TRIGGER", catalog.KindTrigger},
	{"EVENT TRIGGER", catalog.KindEventTrigger},
	{"RULE", catalog.KindRule},
	{"PUBLICATION", catalog.KindPublication},
	{"SUBSCRIPTION", catalog.KindSubscription},
}

var dropBehaviour = []option{
	{"CASCADE", "Automatically drop objects that depend on the dropped object, and in turn all objects that depend on those objects."},
	{"RESTRICT", "Refuse to drop the object if any objects depend on it. This is the default."},
}

// dropKind finds the object type named after DROP and returns it with the
// number of words it spans.
func dropKind(prev []sqltoken.Token) (dropObject, int, bool) {
	for _, obj := range dropObjects {
		words := strings.Fields(strings.ToLower(obj.label))
		if len(prev) <= len(words) {
			continue
		}
		ok := true
		for i, w := range words {
			if !prev[1+i].Is(w) {
				ok = false
				break
			}
		}
		if ok {
			return obj, len(words), true
		}
	}
	return dropObject{}, 0, false
}

// dropTargets lists the existing objects of a kind in the form DROP expects
// them: functions with their argument list, table-bound objects with their
// ON clause.
func (r *request) dropTargets(kind catalog.Kind) []Candidate {
	objs := r.snap.ByKind(kind)
	out := objectCandidates(objs)
	for i, o := range objs {
		switch {
		case kind == catalog.KindFunction:
			out[i].InsertText = o.QualifiedIdentifier() + "(" + strings.Join(o.Args, ", ") + ")"
			out[i].Snippet = false
		case (kind == catalog.KindPolicy || kind == catalog.KindTrigger || kind == catalog.KindRule) && o.Parent != "":
			out[i].InsertText = o.Identifier() + " ON " + catalog.QuoteIdent(o.Parent)
		}
	}
	return out
}

// handleDrop walks DROP <type> [IF EXISTS] name [, ...] [CASCADE | RESTRICT]
// and DROP OWNED BY role.
func handleDrop(r *request) ([]Candidate, bool) {
	prev := r.b.PrevTokens
	l := r.last(0)
	if len(prev) == 1 {
		var words []string
		for _, obj := range dropObjects {
			words = append(words, obj.label, obj.label+" IF EXISTS")
		}
		return keywordCandidates(append(words, "OWNED BY")...), true
	}

	if prev[1].Is("owned") {
		switch {
		case l.Is("owned"):
			return keywordCandidates("BY"), true
		case l.Is("by") || isText(l, ","):
			return objectCandidates(r.snap.ByKind(catalog.KindRole)), true
		}
		return optionCandidates(dropBehaviour, typedWords(prev)), true
	}

	obj, n, ok := dropKind(prev)
	if !ok {
		return nil, false
	}
	rest := prev[1+n:]
	switch {
	case len(rest) == 0:
		return append(keywordCandidates("IF EXISTS"), r.dropTargets(obj.kind)...), true
	case l.Is("if"):
		return keywordCandidates("EXISTS"), true
	case l.Is("exists") || isText(l, ","):
		return r.dropTargets(obj.kind), true
	case l.Is("on"):
		return r.relationCandidates(), true
	}

	used := typedWords(rest)
	switch obj.kind {
	case catalog.KindDatabase:
		if used["with"] {
			return []Candidate{}, true
		}
		return []Candidate{{
			Label:         "WITH (FORCE)",
			InsertText:    "WITH (FORCE)",
			Category:      CategoryKeyword,
			Documentation: "Attempt to terminate all existing connections to the target database before dropping it.",
		}}, true
	case catalog.KindRole:
		return []Candidate{}, true
	case catalog.KindPolicy, catalog.KindTrigger, catalog.KindRule:
		if !used["on"] {
			return keywordCandidates("ON"), true
		}
	}
	return optionCandidates(dropBehaviour, used), true
}

// vacuumOptions starts with the four that may also follow VACUUM without
// parentheses.
var vacuumOptions = []option{
	{"FULL", "Reclaim more space by rewriting the table. Takes much longer and locks the table exclusively."},
	{"FREEZE", "Aggressively freeze tuples, as with vacuum_freeze_min_age and vacuum_freeze_table_age set to zero."},
	{"VERBOSE", "Print a detailed vacuum activity report for each table."},
	{"ANALYZE", "Update the statistics the planner uses to choose query plans."},
	{"DISABLE_PAGE_SKIPPING", "Process every page, ignoring the visibility map."},
	{"SKIP_LOCKED", "Skip relations that cannot be locked immediately."},
	{"INDEX_CLEANUP", "Force (ON), skip (OFF) or let VACUUM decide (AUTO) whether indexes are vacuumed."},
	{"PROCESS_MAIN", "Process the main relation. Defaults to TRUE."},
	{"PROCESS_TOAST", "Process the TOAST table of each relation. Required with FULL."},
	{"TRUNCATE", "Truncate empty pages at the end of the table and return the space to the operating system."},
	{"PARALLEL", "Vacuum indexes in parallel using up to the given number of background workers."},
	{"SKIP_DATABASE_STATS", "Skip updating the database-wide statistics about oldest unfrozen XIDs."},
	{"ONLY_DATABASE_STATS", "Only update the database-wide statistics about oldest unfrozen XIDs."},
	{"BUFFER_USAGE_LIMIT", "Size of the ring buffer VACUUM reuses instead of evicting shared buffers."},
}

// handleVacuum offers the option list inside VACUUM ( ... ), the legacy
// flags after VACUUM, tables after the options and columns inside a
// table's column list.
func handleVacuum(r *request) ([]Candidate, bool) {
	used := typedWords(r.b.PrevTokens)
	call := r.enclosingCall()
	switch {
	case call.Is("vacuum"):
		return optionCandidates(vacuumOptions, used), true
	case isName(call):
		return objectCandidates(r.snap.Columns("", unqualified(call.Text))), true
	}

	l := r.last(0)
	switch {
	case l.Is("vacuum") || l.IsAny("full", "freeze", "verbose", "analyze"):
		var out []Candidate
		if l.Is("vacuum") {
			out = append(out, Candidate{
				Label:      "( ...options )",
				InsertText: "( $0 )",
				Category:   CategorySnippet,
				Snippet:    true,
			})
		}
		out = append(out, optionCandidates(vacuumOptions[:4], used)...)
		return append(out, r.relationCandidates()...), true
	case isText(l, ")") || isText(l, ","):
		return r.relationCandidates(), true
	}
	return nil, false
}

func unqualified(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.Trim(name, `"`)
}

var privileges = []option{
	{"SELECT", "Allow SELECT from the table, view or sequence, or from the listed columns."},
	{"INSERT", "Allow INSERT of new rows, optionally restricted to the listed columns."},
	{"UPDATE", "Allow UPDATE of any column, or of the listed columns."},
	{"DELETE", "Allow DELETE of rows."},
	{"TRUNCATE", "Allow TRUNCATE on the table."},
	{"REFERENCES", "Allow creation of foreign keys referencing the table or the listed columns."},
	{"TRIGGER", "Allow creation of triggers on the table."},
	{"CREATE", "Allow creating objects in the database or schema."},
	{"CONNECT", "Allow connecting to the database."},
	{"TEMPORARY", "Allow creating temporary tables in the database."},
	{"EXECUTE", "Allow calling the function or procedure."},
	{"USAGE", "Allow use of the schema, sequence, type, language or foreign server."},
	{"SET", "Allow setting a server configuration parameter."},
	{"ALTER SYSTEM", "Allow ALTER SYSTEM on a server configuration parameter."},
	{"MAINTAIN", "Allow VACUUM, ANALYZE, CLUSTER, REFRESH MATERIALIZED VIEW, REINDEX and LOCK TABLE."},
	{"ALL PRIVILEGES", "Grant every privilege available for the object type."},
}

// columnPrivileges may carry a column list.
var columnPrivileges = map[string]bool{"select": true, "insert": true, "update": true, "references": true}

var privilegeWords = map[string]bool{
	"delete": true, "truncate": true, "trigger": true, "create": true,
	"connect": true, "temporary": true, "temp": true, "execute": true,
	"usage": true, "set": true, "system": true, "maintain": true, "privileges": true,
}

var grantTargets = []string{
	"TABLE", "ALL TABLES IN SCHEMA", "SEQUENCE", "ALL SEQUENCES IN SCHEMA",
	"FUNCTION", "PROCEDURE", "ALL FUNCTIONS IN SCHEMA", "SCHEMA", "DATABASE",
}

// grantObject returns the object named after ON anywhere in the statement,
// with the object type keyword that preceded it, if any.
func grantObject(tokens []sqltoken.Token) (kind, name string) {
	for i, t := range tokens {
		if !t.Is("on") || t.NestingID != "" {
			continue
		}
		for _, u := range tokens[i+1:] {
			switch {
			case u.IsAny("table", "sequence", "function", "procedure", "schema", "database"):
				kind = u.Lower
			case isName(&u):
				return kind, u.Text
			default:
				return kind, ""
			}
		}
	}
	return "", ""
}

// handleGrant walks GRANT privileges ON object TO role and its REVOKE ...
// FROM mirror, plus role membership grants.
func handleGrant(r *request) ([]Candidate, bool) {
	b := r.b
	recipient := "to"
	if r.firstIs("revoke") {
		recipient = "from"
	}
	l := r.last(0)
	used := typedWords(b.PrevTokens)

	if call := r.enclosingCall(); call != nil && columnPrivileges[call.Lower] {
		if _, name := grantObject(b.Tokens); name != "" {
			return objectCandidates(r.snap.Columns("", unqualified(name))), true
		}
		return objectCandidates(r.snap.ByKind(catalog.KindColumn)), true
	}

	switch {
	case used[recipient]:
		if l.Is(recipient) || isText(l, ",") {
			return roleCandidates(r), true
		}
		if recipient == "to" {
			return keywordCandidates("WITH GRANT OPTION", "GRANTED BY"), true
		}
		return optionCandidates([]option{
			{"CASCADE", "Also revoke privileges that were granted onward using the revoked grant option."},
			{"RESTRICT", "Refuse to revoke if dependent privileges exist. This is the default."},
		}, used), true

	case used["on"]:
		kind, _ := grantObject(b.PrevTokens)
		switch {
		case l.Is("on"):
			return append(keywordCandidates(grantTargets...), r.relationCandidates()...), true
		case l.Is("schema"):
			return objectCandidates(r.snap.ByKind(catalog.KindSchema)), true
		case l.IsAny("function", "procedure"):
			return objectCandidates(r.snap.Functions("")), true
		case l.Is("database"):
			return objectCandidates(r.snap.ByKind(catalog.KindDatabase)), true
		case l.Is("table") || isText(l, ","):
			switch kind {
			case "schema":
				return objectCandidates(r.snap.ByKind(catalog.KindSchema)), true
			case "function", "procedure":
				return objectCandidates(r.snap.Functions("")), true
			case "database":
				return objectCandidates(r.snap.ByKind(catalog.KindDatabase)), true
			}
			return r.relationCandidates(), true
		}
		return keywordCandidates(strings.ToUpper(recipient)), true
	}

	switch {
	case len(b.PrevTokens) == 1:
		out := optionCandidates(privileges, nil)
		return append(out, objectCandidates(r.snap.ByKind(catalog.KindRole))...), true
	case isText(l, ","):
		return optionCandidates(privileges, used), true
	case isText(l, ")"):
		return keywordCandidates("ON"), true
	case l.Is("all"):
		return keywordCandidates("PRIVILEGES", "ON"), true
	case l != nil && columnPrivileges[l.Lower]:
		return []Candidate{
			keywordCandidates("ON")[0],
			{Label: "(columns) ON", InsertText: "($0) ON ", Category: CategorySnippet, Snippet: true},
		}, true
	case l != nil && privilegeWords[l.Lower]:
		return keywordCandidates("ON"), true
	case isName(l):
		// GRANT role TO member
		return keywordCandidates(strings.ToUpper(recipient)), true
	}
	return nil, false
}

// cteStatements may form the body of a common table expression.
var cteStatements = []string{"SELECT", "INSERT INTO", "UPDATE", "DELETE FROM", "VALUES"}

// handleWith covers the scaffolding of WITH: the CTE name, AS, the start of
// each body and the main statement. Once the main statement has started, or
// inside a body past its first keyword, it declines so the statement's own
// matchers apply.
func handleWith(r *request) ([]Candidate, bool) {
	l := r.last(0)
	if call := r.enclosingCall(); call.IsAny("as", "materialized") {
		if isText(l, "(") {
			return keywordCandidates(cteStatements...), true
		}
		return nil, false
	}
	if r.b.CurrentNestingID != "" {
		return nil, false
	}
	for _, t := range r.b.PrevTokens[1:] {
		if t.NestingID == "" && t.IsAny("select", "insert", "update", "delete", "values") {
			return nil, false
		}
	}

	l1 := r.last(1)
	switch {
	case l.Is("with"):
		return append(keywordCandidates("RECURSIVE"), cteSnippet), true
	case l.Is("recursive"):
		return []Candidate{cteSnippet}, true
	case isName(l) && (l1.IsAny("with", "recursive") || isText(l1, ",")):
		return keywordCandidates("AS", "AS MATERIALIZED", "AS NOT MATERIALIZED"), true
	case isText(l, ")"):
		return keywordCandidates("SELECT", "INSERT INTO", "UPDATE", "DELETE FROM"), true
	}
	return nil, false
}

var cteSnippet = Candidate{
	Label:      "cte AS ( ... )",
	InsertText: "${1:cte} AS (\n  $0\n)",
	Category:   CategorySnippet,
	Snippet:    true,
}
