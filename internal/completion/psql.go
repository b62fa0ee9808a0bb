package completion

// psqlCommand is a psql meta-command together with the catalog query that
// produces the same listing, so it can run over a plain connection.
type psqlCommand struct {
	cmd   string
	desc  string
	query string
}

var psqlCommands = []psqlCommand{
	{`\l`, "list databases", `SELECT datname AS "Name", pg_catalog.pg_get_userbyid(datdba) AS "Owner",
  pg_catalog.pg_encoding_to_char(encoding) AS "Encoding"
FROM pg_catalog.pg_database
ORDER BY 1;`},
	{`\dn`, "list schemas", `SELECT n.nspname AS "Name", pg_catalog.pg_get_userbyid(n.nspowner) AS "Owner"
FROM pg_catalog.pg_namespace n
WHERE n.nspname !~ '^pg_' AND n.nspname <> 'information_schema'
ORDER BY 1;`},
	{`\dt`, "list tables", `SELECT n.nspname AS "Schema", c.relname AS "Name", pg_catalog.pg_get_userbyid(c.relowner) AS "Owner"
FROM pg_catalog.pg_class c
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'p') AND n.nspname <> 'pg_catalog' AND n.nspname !~ '^pg_toast' AND n.nspname <> 'information_schema'
ORDER BY 1, 2;`},
	{`\dv`, "list views", `SELECT n.nspname AS "Schema", c.relname AS "Name", pg_catalog.pg_get_userbyid(c.relowner) AS "Owner"
FROM pg_catalog.pg_class c
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'v' AND n.nspname <> 'pg_catalog' AND n.nspname <> 'information_schema'
ORDER BY 1, 2;`},
	{`\dm`, "list materialized views", `SELECT n.nspname AS "Schema", c.relname AS "Name", pg_catalog.pg_get_userbyid(c.relowner) AS "Owner"
FROM pg_catalog.pg_class c
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'm'
ORDER BY 1, 2;`},
	{`\di`, "list indexes", `SELECT n.nspname AS "Schema", c.relname AS "Name", c2.relname AS "Table"
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_index i ON i.indexrelid = c.oid
JOIN pg_catalog.pg_class c2 ON i.indrelid = c2.oid
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname <> 'pg_catalog' AND n.nspname !~ '^pg_toast'
ORDER BY 1, 2;`},
	{`\ds`, "list sequences", `SELECT n.nspname AS "Schema", c.relname AS "Name"
FROM pg_catalog.pg_class c
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'S'
ORDER BY 1, 2;`},
	{`\df`, "list functions", `SELECT n.nspname AS "Schema", p.proname AS "Name",
  pg_catalog.pg_get_function_result(p.oid) AS "Result data type",
  pg_catalog.pg_get_function_arguments(p.oid) AS "Argument data types"
FROM pg_catalog.pg_proc p
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
WHERE n.nspname <> 'pg_catalog' AND n.nspname <> 'information_schema'
ORDER BY 1, 2;`},
	{`\dT`, "list data types", `SELECT n.nspname AS "Schema", pg_catalog.format_type(t.oid, NULL) AS "Name"
FROM pg_catalog.pg_type t
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
WHERE (t.typrelid = 0 OR (SELECT c.relkind = 'c' FROM pg_catalog.pg_class c WHERE c.oid = t.typrelid))
  AND n.nspname <> 'pg_catalog' AND n.nspname <> 'information_schema'
ORDER BY 1, 2;`},
	{`\du`, "list roles", `SELECT r.rolname AS "Role name", r.rolsuper AS "Superuser", r.rolcanlogin AS "Can login"
FROM pg_catalog.pg_roles r
WHERE r.rolname !~ '^pg_'
ORDER BY 1;`},
	{`\dx`, "list extensions", `SELECT e.extname AS "Name", e.extversion AS "Version", n.nspname AS "Schema"
FROM pg_catalog.pg_extension e
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = e.extnamespace
ORDER BY 1;`},
	{`\dy`, "list event triggers", `SELECT evtname AS "Name", evtevent AS "Event", pg_catalog.pg_get_userbyid(e.evtowner) AS "Owner"
FROM pg_catalog.pg_event_trigger e
ORDER BY 1;`},
	{`\dRp`, "list replication publications", `SELECT pubname AS "Name", pg_catalog.pg_get_userbyid(pubowner) AS "Owner", puballtables AS "All tables"
FROM pg_catalog.pg_publication
ORDER BY 1;`},
	{`\dRs`, "list replication subscriptions", `SELECT subname AS "Name", pg_catalog.pg_get_userbyid(subowner) AS "Owner", subenabled AS "Enabled"
FROM pg_catalog.pg_subscription
ORDER BY 1;`},
	{`\dp`, "list table, view, and sequence access privileges", `SELECT n.nspname AS "Schema", c.relname AS "Name", pg_catalog.array_to_string(c.relacl, E'\n') AS "Access privileges"
FROM pg_catalog.pg_class c
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'v', 'm', 'S', 'f', 'p') AND n.nspname !~ '^pg_' AND n.nspname <> 'information_schema'
ORDER BY 1, 2;`},
	{`\dconfig`, "list configuration parameters", `SELECT name AS "Parameter", setting AS "Value", short_desc AS "Description"
FROM pg_catalog.pg_settings
ORDER BY 1;`},
}
