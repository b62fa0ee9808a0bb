// Package catalog holds the database objects completion can suggest: a
// read-only Snapshot loaded from a file or introspected from PostgreSQL, and
// the LiveLookup contract for queries that need a live connection.
package catalog

import (
	"regexp"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Kind is the type of a catalog object.
type Kind string

const (
	KindTable            Kind = "table"
	KindView             Kind = "view"
	KindMaterializedView Kind = "mview"
	KindColumn           Kind = "column"
	KindFunction         Kind = "function"
	KindDataType         Kind = "dataType"
	KindExtension        Kind = "extension"
	KindKeyword          Kind = "keyword"
	KindSchema           Kind = "schema"
	KindSetting          Kind = "setting"
	KindRole             Kind = "role"
	KindDatabase         Kind = "database"
	KindPolicy           Kind = "policy"
	KindPublication      Kind = "publication"
	KindSubscription     Kind = "subscription"
	KindIndex            Kind = "index"
	KindOperator         Kind = "operator"
	KindConstraint       Kind = "constraint"
	KindTrigger          Kind = "trigger"
	KindEventTrigger     Kind = "eventTrigger"
	KindRule             Kind = "rule"
)

// Kinds lists every object kind in display order.
var Kinds = []Kind{
	KindTable, KindView, KindMaterializedView, KindColumn, KindFunction,
	KindDataType, KindExtension, KindKeyword, KindSchema, KindSetting,
	KindRole, KindDatabase, KindPolicy, KindPublication, KindSubscription,
	KindIndex, KindOperator, KindConstraint, KindTrigger, KindEventTrigger,
	KindRule,
}

// ParseKind matches s against the known kinds, ignoring case. Plural forms
// ("tables") are accepted.
func ParseKind(s string) (Kind, bool) {
	s = strings.TrimSuffix(strings.ToLower(s), "s")
	for _, k := range Kinds {
		if strings.TrimSuffix(strings.ToLower(string(k)), "s") == s {
			return k, true
		}
	}
	return "", false
}

// IsRelation reports whether objects of this kind can appear after FROM.
func (k Kind) IsRelation() bool {
	return k == KindTable || k == KindView || k == KindMaterializedView
}

// Object is one catalog entry.
type Object struct {
	Kind   Kind   `json:"kind" yaml:"kind"`
	Name   string `json:"name" yaml:"name"`
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// Parent is the owning relation of a column, index, trigger or policy.
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
	// DataType is the type of a column, or the value of a setting.
	DataType string `json:"dataType,omitempty" yaml:"data_type,omitempty"`

	Args         []string `json:"args,omitempty" yaml:"args,omitempty"`
	Returns      string   `json:"returns,omitempty" yaml:"returns,omitempty"`
	LeftArgTypes []string `json:"leftArgTypes,omitempty" yaml:"left_arg_types,omitempty"`

	// Priority ranks data types for casts; lower comes first.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	Detail        string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty" yaml:"documentation,omitempty"`
}

// Identifier returns the name as it should be typed: quoted when it is not
// a plain lower-case identifier.
func (o Object) Identifier() string {
	return QuoteIdent(o.Name)
}

// QualifiedIdentifier prefixes the schema unless it is on the default
// search path.
func (o Object) QualifiedIdentifier() string {
	if o.Schema == "" || o.Schema == "public" || o.Schema == "pg_catalog" {
		return o.Identifier()
	}
	return QuoteIdent(o.Schema) + "." + o.Identifier()
}

// Signature renders a function as name(args).
func (o Object) Signature() string {
	return o.Name + "(" + strings.Join(o.Args, ", ") + ")"
}

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

// QuoteIdent quotes name unless it is a plain lower-case identifier.
func QuoteIdent(name string) string {
	if plainIdent.MatchString(name) {
		return name
	}
	return pgx.Identifier{name}.Sanitize()
}

// Snapshot is an immutable set of catalog objects. A nil *Snapshot is valid
// and empty.
type Snapshot struct {
	objects []Object
	byKind  map[Kind][]int
}

// NewSnapshot indexes objects. The slice is copied.
func NewSnapshot(objects []Object) *Snapshot {
	s := &Snapshot{
		objects: slices.Clone(objects),
		byKind:  make(map[Kind][]int),
	}
	for i, o := range s.objects {
		s.byKind[o.Kind] = append(s.byKind[o.Kind], i)
	}
	return s
}

// Len returns the number of objects.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.objects)
}

// Objects returns every object in load order.
func (s *Snapshot) Objects() []Object {
	if s == nil {
		return nil
	}
	return slices.Clone(s.objects)
}

// ByKind returns the objects of the given kinds, grouped in argument order.
func (s *Snapshot) ByKind(kinds ...Kind) []Object {
	if s == nil {
		return nil
	}
	var out []Object
	for _, k := range kinds {
		for _, i := range s.byKind[k] {
			out = append(out, s.objects[i])
		}
	}
	return out
}

// Relations returns tables, views and materialized views.
func (s *Snapshot) Relations() []Object {
	return s.ByKind(KindTable, KindView, KindMaterializedView)
}

// Relation finds a relation by name. An empty schema matches any schema.
func (s *Snapshot) Relation(schema, name string) (Object, bool) {
	for _, o := range s.Relations() {
		if strings.EqualFold(o.Name, name) && (schema == "" || strings.EqualFold(o.Schema, schema)) {
			return o, true
		}
	}
	return Object{}, false
}

// Columns returns the columns of a relation in declaration order. An empty
// schema matches any schema.
func (s *Snapshot) Columns(schema, relation string) []Object {
	var out []Object
	for _, o := range s.ByKind(KindColumn) {
		if strings.EqualFold(o.Parent, relation) && (schema == "" || strings.EqualFold(o.Schema, schema)) {
			out = append(out, o)
		}
	}
	return out
}

// Functions returns the overloads of a function. An empty name returns all
// functions.
func (s *Snapshot) Functions(name string) []Object {
	fns := s.ByKind(KindFunction)
	if name == "" {
		return fns
	}
	var out []Object
	for _, o := range fns {
		if strings.EqualFold(o.Name, name) {
			out = append(out, o)
		}
	}
	return out
}

// Merge returns a snapshot holding the objects of s followed by those of
// other. Either may be nil.
func (s *Snapshot) Merge(other *Snapshot) *Snapshot {
	if other.Len() == 0 {
		return s
	}
	if s.Len() == 0 {
		return other
	}
	return NewSnapshot(append(s.Objects(), other.objects...))
}
